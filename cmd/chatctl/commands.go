package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fitpulse-chat/auth"
	"fitpulse-chat/domain"
	"fitpulse-chat/domain/event"
	admin "fitpulse-chat/infrastructure/grpc"
	"fitpulse-chat/internal"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/olekukonko/tablewriter"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"
)

const requestTimeout = 5 * time.Second

func health(cfg Config, out printer, args []string) error {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	service := fs.String("service", admin.ChatServiceName, "Service to check, empty for the whole server")
	if err := fs.Parse(args); err != nil {
		return err
	}

	conn, err := grpc.NewClient(cfg.AdminAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", cfg.AdminAddr, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	resp, err := admin.Check(ctx, conn, *service)
	if err != nil {
		return err
	}

	out.header(fmt.Sprintf("health %s", cfg.AdminAddr))
	marshaler := protojson.MarshalOptions{UseProtoNames: true, Multiline: true, EmitUnpopulated: true}
	out.status(resp.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING, marshaler.Format(resp))
	return nil
}

func token(cfg Config, out printer, args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	user := fs.String("user", "", "User id to sign the token for")
	ttl := fs.Duration("ttl", 24*time.Hour, "Token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	signed, err := mint(cfg, domain.UserID(*user), *ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(out.w, signed)
	return nil
}

func mint(cfg Config, user domain.UserID, ttl time.Duration) (string, error) {
	if user == "" {
		return "", fmt.Errorf("a user id is required")
	}
	if cfg.JWTSecret == "" {
		return "", fmt.Errorf("CHATCTL_JWT_SECRET is not set")
	}
	return auth.NewTokenService(cfg.JWTSecret).GenerateToken(user, ttl)
}

// connect opens a websocket session. Each stdin line "<conversationId> <text>"
// is sent as a message, server events are printed as they arrive.
func connect(cfg Config, out printer, in io.Reader, args []string) error {
	fs := flag.NewFlagSet("connect", flag.ContinueOnError)
	user := fs.String("user", "", "User id, a token is minted with CHATCTL_JWT_SECRET")
	tokenFlag := fs.String("token", "", "Token to connect with")
	if err := fs.Parse(args); err != nil {
		return err
	}
	credential := *tokenFlag
	if credential == "" {
		signed, err := mint(cfg, domain.UserID(*user), time.Hour)
		if err != nil {
			return err
		}
		credential = signed
	}

	endpoint := url.URL{Scheme: "ws", Host: cfg.ServerAddr, Path: "/ws", RawQuery: url.Values{"token": {credential}}.Encode()}
	conn, resp, err := websocket.DefaultDialer.Dial(endpoint.String(), nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("handshake rejected with %s", resp.Status)
		}
		return err
	}
	defer conn.Close()
	out.header(fmt.Sprintf("connected to %s", cfg.ServerAddr))

	readErr := make(chan error, 1)
	go func() {
		for {
			var frame event.Inbound
			if err := conn.ReadJSON(&frame); err != nil {
				readErr <- err
				return
			}
			out.frame(frame.Type, frame.Data)
		}
	}()

	lines := bufio.NewScanner(in)
	for lines.Scan() {
		frame, ok := parseLine(lines.Text())
		if !ok {
			fmt.Fprintln(os.Stderr, "expected: <conversationId> <text>")
			continue
		}
		if err := conn.WriteJSON(frame); err != nil {
			return err
		}
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

	select {
	case err := <-readErr:
		if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			return nil
		}
		return err
	case <-time.After(time.Second):
		return lines.Err()
	}
}

func parseLine(line string) (event.Event, bool) {
	conversation, text, found := strings.Cut(strings.TrimSpace(line), " ")
	text = strings.TrimSpace(text)
	if !found || conversation == "" || text == "" {
		return event.Event{}, false
	}
	return event.New(event.SendMessageType, domain.SendMessageCommand{
		ConversationID: conversation,
		Content:        &text,
	}), true
}

func inspect(cfg Config, w io.Writer, args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	prefix := fs.String("prefix", "conv:", "Key prefix to scan")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client := http.Client{Timeout: requestTimeout}
	endpoint := url.URL{Scheme: "http", Host: cfg.ServerAddr, Path: "/debug/inspect", RawQuery: url.Values{"prefix": {*prefix}}.Encode()}
	resp, err := client.Get(endpoint.String())
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inspect returned %s, is the server running with LOG_LEVEL=DEBUG?", resp.Status)
	}

	var page internal.InspectPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return err
	}
	renderInspect(w, page)
	return nil
}

func renderInspect(w io.Writer, page internal.InspectPage) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Key", "Type", "Timestamp", "Entity ID", "Namespace", "Detail"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	for _, row := range page.Items {
		table.Append([]string{row.Key, row.Type, row.Timestamp, row.EntityID, row.Namespace, row.Detail})
	}
	table.Render()
}
