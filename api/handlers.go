package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/NahanaBanahnah/trell-api/database"
	"github.com/NahanaBanahnah/trell-api/internal/config"
	"github.com/NahanaBanahnah/trell-api/internal/models"
	"github.com/NahanaBanahnah/trell-api/internal/relay"
)

// Sender delivers a message document for a board and returns the id of
// the created Discord message.
type Sender interface {
	Send(boardID string, params *discordgo.WebhookParams) (string, error)
}

type Handler struct {
	DB         *gorm.DB
	Router     *relay.Router
	Dispatcher Sender
	Config     *config.Config
}

// TrelloWebhookHandler is the single inbound endpoint. Only a bad
// digest earns a non-2xx: Trello disables a webhook after repeated
// failing responses, so every content-level problem answers 200 with a
// short status string instead.
func (h *Handler) TrelloWebhookHandler(c *gin.Context) {
	// Trello probes the callback URL with HEAD/GET on registration
	if c.Request.Method != http.MethodPost {
		c.Status(http.StatusOK)
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		zap.L().Warn("Failed to read webhook body", zap.Error(err))
		c.String(http.StatusOK, "error")
		return
	}

	if !ValidSignature(body, h.Config.Trello.CallbackURL, h.Config.Trello.Secret,
		c.GetHeader("x-trello-webhook")) {
		zap.L().Warn("Webhook signature mismatch")
		c.String(http.StatusUnauthorized, "invalid signature")
		return
	}

	var payload models.TrelloWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		zap.L().Warn("Could not decode webhook payload", zap.Error(err))
		c.String(http.StatusOK, "error")
		return
	}

	event := models.Extract(&payload)
	outcome := h.Router.Route(c.Request.Context(), event)

	switch outcome.Status {
	case relay.SoftRejected:
		zap.L().Debug("Ignoring webhook event",
			zap.String("type", payload.Action.Type),
			zap.String("board", event.BoardID),
			zap.String("reason", outcome.Reason))
		c.String(http.StatusOK, "ignored")

	case relay.Suppressed:
		zap.L().Info("Handled archival event",
			zap.String("card", event.CardID),
			zap.String("reason", outcome.Reason))
		c.String(http.StatusOK, "removed")

	case relay.Produced:
		messageID, err := h.Dispatcher.Send(event.BoardID, outcome.Message)
		if err != nil {
			zap.L().Error("Failed to dispatch message",
				zap.String("board", event.BoardID), zap.Error(err))
			c.String(http.StatusOK, "error")
			return
		}

		if h.Config.Policy.IsDesignated(event.BoardID) {
			if err := database.SaveCrossReference(h.DB, event.CardID, messageID); err != nil {
				zap.L().Error("Failed to save cross reference",
					zap.String("card", event.CardID), zap.Error(err))
			}
		}

		zap.L().Info("Relayed webhook event",
			zap.String("kind", string(event.Kind)),
			zap.String("board", event.BoardID),
			zap.String("message", messageID))
		c.String(http.StatusOK, "ok")
	}
}

func (h *Handler) HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
