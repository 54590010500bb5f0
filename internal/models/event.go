package models

// ActionKind classifies a board event after extraction. Trello reports
// card moves and archivals as plain "updateCard" actions, so Extract
// derives the two synthetic kinds from the action data.
type ActionKind string

const (
	KindCommentAdded    ActionKind = "commentCard"
	KindAttachmentAdded ActionKind = "addAttachmentToCard"
	KindCardCreated     ActionKind = "createCard"
	KindLabelAdded      ActionKind = "addLabelToCard"
	KindCardMoved       ActionKind = "moveCard"
	KindCardArchived    ActionKind = "archiveCard"
	KindUnknown         ActionKind = ""
)

type IdName struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CoverPreview struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type CardData struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ShortLink string `json:"shortLink"`
	Closed    bool   `json:"closed"`
	Cover     struct {
		IDAttachment string         `json:"idAttachment"`
		Scaled       []CoverPreview `json:"scaled"`
	} `json:"cover"`
}

type BoardData struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ShortLink string `json:"shortLink"`
}

type Attachment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

type LabelData struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// TrelloWebhookPayload mirrors the action envelope Trello posts to the
// callback URL. Only the sub-structures relevant to the routed kinds are
// declared; everything here is optional and decodes to its zero value
// when the action type doesn't carry it.
type TrelloWebhookPayload struct {
	Action struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Date string `json:"date"`
		Data struct {
			Text       string     `json:"text"`
			Card       CardData   `json:"card"`
			Board      BoardData  `json:"board"`
			List       IdName     `json:"list"`
			ListBefore IdName     `json:"listBefore"`
			ListAfter  IdName     `json:"listAfter"`
			Attachment Attachment `json:"attachment"`
			Label      LabelData  `json:"label"`
			Old        struct {
				Closed *bool `json:"closed"`
			} `json:"old"`
		} `json:"data"`
		MemberCreator struct {
			ID        string `json:"id"`
			Username  string `json:"username"`
			FullName  string `json:"fullName"`
			AvatarURL string `json:"avatarUrl"`
		} `json:"memberCreator"`
	} `json:"action"`
	Model struct {
		ID string `json:"id"`
	} `json:"model"`
}

// Event is the flat view of one webhook payload the router works with.
// Fields not carried by the event's kind are left empty.
type Event struct {
	Kind ActionKind

	BoardID        string
	BoardName      string
	BoardShortLink string

	CardID        string
	CardName      string
	CardShortLink string

	ListName   string
	ListBefore string
	ListAfter  string

	AttachmentID   string
	AttachmentName string
	AttachmentURL  string

	Text       string
	LabelName  string
	LabelColor string

	CoverURL string

	AuthorName      string
	AuthorAvatarURL string
	Date            string
}

func (e Event) CardURL() string {
	if e.CardShortLink == "" {
		return ""
	}
	return "https://trello.com/c/" + e.CardShortLink
}

func (e Event) BoardURL() string {
	if e.BoardShortLink == "" {
		return ""
	}
	return "https://trello.com/b/" + e.BoardShortLink
}

// Extract flattens a webhook payload into an Event. It never fails:
// absent sub-structures surface as empty fields, and an action type
// outside the routed set yields KindUnknown for the router to reject.
func Extract(p *TrelloWebhookPayload) Event {
	a := p.Action
	d := a.Data

	ev := Event{
		BoardID:        d.Board.ID,
		BoardName:      d.Board.Name,
		BoardShortLink: d.Board.ShortLink,
		CardID:         d.Card.ID,
		CardName:       d.Card.Name,
		CardShortLink:  d.Card.ShortLink,
		ListName:       d.List.Name,
		ListBefore:     d.ListBefore.Name,
		ListAfter:      d.ListAfter.Name,
		AttachmentID:   d.Attachment.ID,
		AttachmentName: d.Attachment.Name,
		AttachmentURL:  d.Attachment.URL,
		Text:           d.Text,
		LabelName:      d.Label.Name,
		LabelColor:     d.Label.Color,
		CoverURL:       largestPreview(d.Card.Cover.Scaled),
		AuthorName:     a.MemberCreator.FullName,
		Date:           a.Date,
	}

	if ev.AuthorName == "" {
		ev.AuthorName = a.MemberCreator.Username
	}
	if a.MemberCreator.AvatarURL != "" {
		ev.AuthorAvatarURL = a.MemberCreator.AvatarURL + "/170.png"
	}

	switch a.Type {
	case "commentCard":
		ev.Kind = KindCommentAdded
	case "addAttachmentToCard":
		ev.Kind = KindAttachmentAdded
	case "createCard":
		ev.Kind = KindCardCreated
	case "addLabelToCard":
		ev.Kind = KindLabelAdded
	case "updateCard":
		switch {
		case d.ListBefore.ID != "" && d.ListAfter.ID != "":
			ev.Kind = KindCardMoved
		case d.Card.Closed && d.Old.Closed != nil && !*d.Old.Closed:
			ev.Kind = KindCardArchived
		default:
			ev.Kind = KindUnknown
		}
	default:
		ev.Kind = KindUnknown
	}

	return ev
}

func largestPreview(scaled []CoverPreview) string {
	var url string
	var width int
	for _, p := range scaled {
		if p.Width >= width {
			width = p.Width
			url = p.URL
		}
	}
	return url
}
