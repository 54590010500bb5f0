package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/NahanaBanahnah/trell-api/internal/models"
)

type TrelloClient struct {
	Client   *http.Client
	BaseURL  string
	APIKey   string
	APIToken string
}

func NewTrelloClient(key, token string) *TrelloClient {
	return &TrelloClient{
		Client:   &http.Client{Timeout: 30 * time.Second},
		BaseURL:  "https://api.trello.com",
		APIKey:   key,
		APIToken: token,
	}
}

// CardAttachments fetches the attachment list for a card.
func (tc *TrelloClient) CardAttachments(ctx context.Context, cardID string) ([]models.Attachment, error) {
	var attachments []models.Attachment
	path := fmt.Sprintf("/1/cards/%s/attachments", cardID)
	if err := tc.get(ctx, path, &attachments); err != nil {
		return nil, err
	}
	return attachments, nil
}

// AuthHeader returns the OAuth header Trello requires for downloading
// attachment binaries, which reject plain key/token query parameters.
func (tc *TrelloClient) AuthHeader() string {
	return fmt.Sprintf(`OAuth oauth_consumer_key="%s", oauth_token="%s"`,
		tc.APIKey, tc.APIToken)
}

func (tc *TrelloClient) get(ctx context.Context, path string, result interface{}) error {
	query := url.Values{}
	query.Set("key", tc.APIKey)
	query.Set("token", tc.APIToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		tc.BaseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create get request: %v", err)
	}

	resp, err := tc.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send get request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("trello API returned non-200 status: %s, body: %s", resp.Status, string(bodyBytes))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode Trello response: %v", err)
	}

	return nil
}
