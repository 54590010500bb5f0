package integrations

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// ErrNoEndpoint means a board has no configured destination webhook.
// That is a configuration fault: the request cannot be delivered, but
// the process keeps running and the upstream caller still gets a 200.
var ErrNoEndpoint = errors.New("no destination webhook configured for board")

// Dispatcher delivers message documents to the Discord channel webhook
// mapped to each board, and deletes previously delivered messages.
type Dispatcher struct {
	session *discordgo.Session
	boards  map[string]string
}

func NewDispatcher(boards map[string]string) (*Dispatcher, error) {
	// Webhook execution needs no bot token; an unauthenticated session
	// is enough for the REST calls used here.
	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	return &Dispatcher{
		session: session,
		boards:  boards,
	}, nil
}

// Send executes the board's webhook with wait=true so Discord returns
// the created message synchronously, and returns its id.
func (d *Dispatcher) Send(boardID string, params *discordgo.WebhookParams) (string, error) {
	id, token, err := d.endpoint(boardID)
	if err != nil {
		return "", err
	}

	msg, err := d.session.WebhookExecute(id, token, true, params)
	if err != nil {
		return "", fmt.Errorf("failed to execute webhook for board %s: %w", boardID, err)
	}
	if msg == nil {
		return "", fmt.Errorf("discord returned no message for board %s", boardID)
	}

	return msg.ID, nil
}

// DeleteMessage removes a previously sent webhook message.
func (d *Dispatcher) DeleteMessage(boardID, messageID string) error {
	id, token, err := d.endpoint(boardID)
	if err != nil {
		return err
	}

	if err := d.session.WebhookMessageDelete(id, token, messageID); err != nil {
		return fmt.Errorf("failed to delete webhook message %s: %w", messageID, err)
	}

	return nil
}

func (d *Dispatcher) endpoint(boardID string) (string, string, error) {
	raw, ok := d.boards[boardID]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrNoEndpoint, boardID)
	}
	return parseWebhookURL(raw)
}

// parseWebhookURL splits a Discord webhook URL of the form
// .../api/webhooks/{id}/{token} into its id and token.
func parseWebhookURL(raw string) (string, string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid webhook URL: %w", err)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 3 || parts[len(parts)-3] != "webhooks" {
		return "", "", fmt.Errorf("webhook URL %q has no id/token path", raw)
	}

	return parts[len(parts)-2], parts[len(parts)-1], nil
}
