package relay

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/NahanaBanahnah/trell-api/database"
	"github.com/NahanaBanahnah/trell-api/internal/assets"
	"github.com/NahanaBanahnah/trell-api/internal/config"
	"github.com/NahanaBanahnah/trell-api/internal/models"
)

const embedColor = 0x0079BF // Trello blue

// Status is the router's tri-state result: a message to deliver, a
// benign refusal, or "handled, nothing to send" after an archival.
type Status int

const (
	Produced Status = iota
	SoftRejected
	Suppressed
)

// Outcome is what routing one event yields. Message is set only when
// Status is Produced.
type Outcome struct {
	Status  Status
	Message *discordgo.WebhookParams
	Reason  string
}

func softReject(reason string) Outcome {
	return Outcome{Status: SoftRejected, Reason: reason}
}

func produce(params *discordgo.WebhookParams) Outcome {
	return Outcome{Status: Produced, Message: params}
}

// AttachmentLister is the Trello read surface the router needs for the
// Sent-label lookup.
type AttachmentLister interface {
	CardAttachments(ctx context.Context, cardID string) ([]models.Attachment, error)
}

// MessageDeleter removes a previously delivered message for a board.
type MessageDeleter interface {
	DeleteMessage(boardID, messageID string) error
}

// Router turns extracted events into outbound message documents. A
// fresh document is allocated per call; nothing is shared between
// requests.
type Router struct {
	Trello   AttachmentLister
	Deleter  MessageDeleter
	Assets   *assets.Fetcher
	DB       *gorm.DB
	Policy   config.PolicyConfig
	Mentions map[string]string
}

// Route dispatches an event by kind. Unknown kinds and kinds filtered
// out by the board policy soft-reject; the archival flow suppresses.
func (r *Router) Route(ctx context.Context, ev models.Event) Outcome {
	designated := r.Policy.IsDesignated(ev.BoardID)

	if designated && ev.Kind != models.KindLabelAdded && ev.Kind != models.KindCardArchived {
		return softReject("action filtered for board")
	}

	switch ev.Kind {
	case models.KindCommentAdded:
		return r.routeComment(ctx, ev)
	case models.KindAttachmentAdded:
		return r.routeAttachment(ctx, ev)
	case models.KindCardCreated:
		return r.routeCardCreated(ctx, ev)
	case models.KindCardMoved:
		return r.routeCardMoved(ctx, ev)
	case models.KindLabelAdded:
		if designated {
			return r.routeSentLabel(ctx, ev)
		}
		return r.routeLabel(ctx, ev)
	case models.KindCardArchived:
		if !designated {
			return softReject("wrong action")
		}
		return r.routeArchived(ev)
	default:
		return softReject("unrecognised action")
	}
}

func (r *Router) routeComment(ctx context.Context, ev models.Event) Outcome {
	embed := r.baseEmbed(ctx, ev)
	embed.Title = fmt.Sprintf("New Comment By %s", ev.AuthorName)

	rewritten, mentions := RewriteMentions(ev.Text, r.Mentions)
	embed.Description = rewritten

	return produce(&discordgo.WebhookParams{
		Content: mentions,
		Embeds:  []*discordgo.MessageEmbed{embed},
	})
}

func (r *Router) routeAttachment(ctx context.Context, ev models.Event) Outcome {
	embed := r.baseEmbed(ctx, ev)
	embed.Title = "New Image Added"

	// A failed fetch or a non-image attachment just leaves the embed
	// without an image.
	name, err := r.Assets.Fetch(ctx, ev.AttachmentURL, ev.AttachmentName)
	if err != nil {
		zap.L().Debug("Skipping attachment image",
			zap.String("card", ev.CardID), zap.Error(err))
	} else {
		embed.Image = &discordgo.MessageEmbedImage{URL: r.Assets.PublicURL(name)}
	}

	return produce(&discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{embed},
	})
}

func (r *Router) routeCardCreated(ctx context.Context, ev models.Event) Outcome {
	embed := r.baseEmbed(ctx, ev)
	embed.Title = fmt.Sprintf("New Card Added By %s", ev.AuthorName)

	return produce(&discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{embed},
	})
}

func (r *Router) routeCardMoved(ctx context.Context, ev models.Event) Outcome {
	embed := r.baseEmbed(ctx, ev)
	embed.Title = fmt.Sprintf("Card Moved to %s", ev.ListAfter)
	embed.Description = fmt.Sprintf("%s moved from %s to %s",
		ev.CardName, ev.ListBefore, ev.ListAfter)
	dropField(embed, "List")

	return produce(&discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{embed},
	})
}

func (r *Router) routeLabel(ctx context.Context, ev models.Event) Outcome {
	embed := r.baseEmbed(ctx, ev)
	embed.Title = fmt.Sprintf("Label Added To %s", ev.CardName)
	embed.Description = fmt.Sprintf("The label %s was added to %s",
		ev.LabelName, ev.CardName)
	dropField(embed, "List")

	return produce(&discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{embed},
	})
}

// routeSentLabel handles the designated board's Sent marker: look up
// the card's first attachment and send a bare download/gallery embed
// instead of the usual notification document.
func (r *Router) routeSentLabel(ctx context.Context, ev models.Event) Outcome {
	if !r.Policy.IsSentLabel(ev.LabelName, ev.LabelColor) {
		return softReject("label not relayed for board")
	}

	attachments, err := r.Trello.CardAttachments(ctx, ev.CardID)
	if err != nil {
		zap.L().Error("Failed to fetch card attachments",
			zap.String("card", ev.CardID), zap.Error(err))
		return softReject("attachment lookup failed")
	}
	if len(attachments) == 0 {
		return softReject("card has no attachments")
	}

	embed := &discordgo.MessageEmbed{
		Title: ev.CardName,
		Color: embedColor,
		Description: fmt.Sprintf("[Download](%s)\n[Gallery](%s)",
			attachments[0].URL, r.Policy.GalleryURL),
		Timestamp: ev.Date,
	}

	return produce(&discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{embed},
	})
}

// routeArchived deletes every Discord message recorded for the card.
// Each stored id gets its own delete attempt; one failure doesn't stop
// the rest. The local rows are cleared afterwards.
func (r *Router) routeArchived(ev models.Event) Outcome {
	refs, err := database.CrossReferencesForCard(r.DB, ev.CardID)
	if err != nil {
		zap.L().Error("Failed to load cross references",
			zap.String("card", ev.CardID), zap.Error(err))
		return Outcome{Status: Suppressed, Reason: "lookup failed"}
	}

	for _, ref := range refs {
		if err := r.Deleter.DeleteMessage(ev.BoardID, ref.MessageID); err != nil {
			zap.L().Error("Failed to delete message",
				zap.String("card", ev.CardID),
				zap.String("message", ref.MessageID),
				zap.Error(err))
		}
	}

	if len(refs) > 0 {
		if err := database.DeleteCrossReferences(r.DB, ev.CardID); err != nil {
			zap.L().Error("Failed to clear cross references",
				zap.String("card", ev.CardID), zap.Error(err))
		}
	}

	return Outcome{Status: Suppressed, Reason: "card archived"}
}

// baseEmbed builds the default message document every general branch
// starts from. When the card carries a scaled cover the fetched cover
// replaces the author avatar as the thumbnail; a failed cover fetch
// keeps the avatar.
func (r *Router) baseEmbed(ctx context.Context, ev models.Event) *discordgo.MessageEmbed {
	thumbnail := ev.AuthorAvatarURL
	if ev.CoverURL != "" {
		name, err := r.Assets.Fetch(ctx, ev.CoverURL, ev.CardID+"_cover")
		if err != nil {
			zap.L().Debug("Skipping card cover",
				zap.String("card", ev.CardID), zap.Error(err))
		} else {
			thumbnail = r.Assets.PublicURL(name)
		}
	}

	embed := &discordgo.MessageEmbed{
		URL:   ev.CardURL(),
		Color: embedColor,
		Author: &discordgo.MessageEmbedAuthor{
			Name:    ev.AuthorName,
			IconURL: ev.AuthorAvatarURL,
		},
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Card", Value: ev.CardName, Inline: true},
			{Name: "List", Value: ev.ListName, Inline: true},
		},
		Footer:    &discordgo.MessageEmbedFooter{Text: ev.BoardName},
		Timestamp: ev.Date,
	}

	if thumbnail != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: thumbnail}
	}

	return embed
}

func dropField(embed *discordgo.MessageEmbed, name string) {
	fields := embed.Fields[:0]
	for _, f := range embed.Fields {
		if f.Name != name {
			fields = append(fields, f)
		}
	}
	embed.Fields = fields
}
