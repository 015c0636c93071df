package auth

import "strings"

const bearerPrefix = "Bearer "

// ExtractCredential picks the bearer token from the Authorization header,
// falling back to the token query field browsers use for websocket upgrades.
func ExtractCredential(authorization, query string) string {
	if strings.HasPrefix(authorization, bearerPrefix) {
		if token := strings.TrimSpace(strings.TrimPrefix(authorization, bearerPrefix)); token != "" {
			return token
		}
	}
	return strings.TrimSpace(query)
}
