package search

import (
	"fitpulse-chat/domain"
	"strconv"
	"strings"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Query is a parsed search box input.
// Example: "protein shake --from bob --limit 5"
type Query struct {
	RawInput string
	Terms    string
	From     *domain.UserID
	Limit    int
}

// NewSearchQuery extracts command-line style flags and keeps the rest as search terms.
func NewSearchQuery(input string) Query {
	query := Query{RawInput: input, Limit: DefaultLimit}

	parts := strings.Fields(input)
	var textTerms []string

	for i := 0; i < len(parts); i++ {
		part := parts[i]

		if strings.HasPrefix(part, "--") && i+1 < len(parts) {
			switch strings.TrimPrefix(part, "--") {
			case "from":
				from := domain.UserID(parts[i+1])
				query.From = &from
			case "limit":
				if limit, err := strconv.Atoi(parts[i+1]); err == nil && limit > 0 {
					query.Limit = min(limit, MaxLimit)
				}
			}
			i++ // Skip the value part in next iteration
			continue
		}

		if !strings.HasPrefix(part, "/") {
			textTerms = append(textTerms, part)
		}
	}

	query.Terms = strings.Join(textTerms, " ")
	return query
}
