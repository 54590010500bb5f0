package models

import "time"

// CrossReference links a Trello card to a Discord message sent for it,
// so an archival on the card can delete the message later. One row per
// successful send; a card may accumulate several rows.
type CrossReference struct {
	ID        uint   `gorm:"primaryKey"`
	CardID    string `gorm:"index"`
	MessageID string
	CreatedAt time.Time
}
