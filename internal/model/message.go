package model

import "time"

type MessageStatus string

const (
	MessagePending MessageStatus = "pending"
	MessageSent    MessageStatus = "sent"
	MessageFailed  MessageStatus = "failed"
)

// ParseMessageStatus rejects unknown status strings at the persistence
// boundary instead of letting them flow through as free-form text.
func ParseMessageStatus(raw string) (MessageStatus, bool) {
	switch MessageStatus(raw) {
	case MessagePending, MessageSent, MessageFailed:
		return MessageStatus(raw), true
	}
	return "", false
}

// Message is one delivery record: the body rendered for one recipient of
// one campaign. Created when a send is initiated, one row per resolved
// recipient with a usable phone. Status only moves forward:
// pending -> sent or pending -> failed, never back.
type Message struct {
	ID         int64
	CampaignID int64
	ContactID  int64

	// Phone is snapshotted at send initiation so a later contact edit
	// cannot change where a recorded attempt went.
	Phone   string
	Content string

	Status    MessageStatus
	SentAt    *time.Time
	LastError *string
	CreatedAt time.Time
}
