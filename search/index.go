package search

import (
	"context"
	"fitpulse-chat/domain"
	"fmt"
	"log/slog"
	"strings"

	"github.com/blugelabs/bluge"
)

const (
	idField           = "_id"
	contentField      = "content"
	conversationField = "conversation"
	senderField       = "sender"
	langField         = "lang"
	typeField         = "type"
	createdField      = "created"
)

// Index is the full-text index of message content, one document per message.
type Index struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func OpenIndex(path string, log *slog.Logger) (*Index, error) {
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(path))
	if err != nil {
		return nil, fmt.Errorf("open bluge index %s: %w", path, err)
	}
	return NewIndex(writer, log), nil
}

func NewIndex(writer *bluge.Writer, log *slog.Logger) *Index {
	return &Index{writer: writer, log: log}
}

// Index stores the searchable text of a message. Messages without text or file name are skipped.
func (i *Index) Index(_ context.Context, msg domain.Message, lang string) error {
	text := searchableText(msg)
	if text == "" {
		return nil
	}
	doc := bluge.NewDocument(string(msg.ID)).
		AddField(bluge.NewTextField(contentField, text).StoreValue()).
		AddField(bluge.NewKeywordField(conversationField, string(msg.ConversationID)).StoreValue()).
		AddField(bluge.NewKeywordField(senderField, string(msg.SenderID)).StoreValue()).
		AddField(bluge.NewKeywordField(langField, lang).StoreValue()).
		AddField(bluge.NewKeywordField(typeField, string(msg.Type)).StoreValue()).
		AddField(bluge.NewDateTimeField(createdField, msg.CreatedAt).StoreValue())
	if err := i.writer.Update(doc.ID(), doc); err != nil {
		return fmt.Errorf("index message %s: %w", msg.ID, err)
	}
	return nil
}

// Search returns the ids of the best matching messages of one conversation.
func (i *Index) Search(ctx context.Context, conversationID domain.ConversationID, terms string, sender *domain.UserID, limit int) ([]domain.MessageID, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			i.log.Warn("Unable to close bluge reader", "error", err)
		}
	}()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(terms).SetField(contentField)).
		AddMust(bluge.NewTermQuery(string(conversationID)).SetField(conversationField))
	if sender != nil {
		query.AddMust(bluge.NewTermQuery(string(*sender)).SetField(senderField))
	}

	dmi, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, err
	}

	var ids []domain.MessageID
	match, err := dmi.Next()
	for err == nil && match != nil {
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == idField {
				ids = append(ids, domain.MessageID(value))
				return false
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		match, err = dmi.Next()
	}
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (i *Index) Close() error {
	return i.writer.Close()
}

func searchableText(msg domain.Message) string {
	var parts []string
	if msg.Content != nil {
		parts = append(parts, *msg.Content)
	}
	if msg.Media != nil && msg.Media.FileName != "" {
		parts = append(parts, msg.Media.FileName)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}
