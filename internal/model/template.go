package model

import "time"

// MessageTemplate is a reusable message body with placeholder tokens.
// UseCount goes up exactly once per completed campaign send that used
// the template, regardless of recipient count.
type MessageTemplate struct {
	ID       int64
	Name     string
	Body     string
	Favorite bool
	UseCount int

	CreatedAt time.Time
	UpdatedAt time.Time
}
