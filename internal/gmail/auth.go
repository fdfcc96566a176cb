package gmail

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Scopes requested for the shared Google credential. Mail needs modify
// rights for labeling; calendar needs event read/write.
var oauthScopes = []string{
	"https://www.googleapis.com/auth/gmail.modify",
	"https://www.googleapis.com/auth/calendar",
}

// NewAuthorizedClient builds the OAuth2 HTTP client shared by the Gmail
// and Calendar services. Both credential files must already exist; the
// interactive consent flow is a one-time setup step, not something a
// headless agent can perform.
func NewAuthorizedClient(ctx context.Context, credentialsPath, tokenPath string) (*http.Client, error) {
	b, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read oauth credentials %s: %w", credentialsPath, err)
	}
	cfg, err := google.ConfigFromJSON(b, oauthScopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse oauth credentials: %w", err)
	}

	tok, err := tokenFromFile(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load oauth token %s (run the setup flow first): %w", tokenPath, err)
	}
	return cfg.Client(ctx, tok), nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("malformed token file: %w", err)
	}
	return tok, nil
}
