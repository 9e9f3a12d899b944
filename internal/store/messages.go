package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/LeventeLantos/campaign-manager/internal/model"
)

// InsertMessages writes the pending delivery records for one campaign
// run. IDs are filled into the slice in place.
func (o ops) InsertMessages(ctx context.Context, msgs []model.Message) error {
	now := time.Now().UTC()
	for i := range msgs {
		m := &msgs[i]
		if m.Status == "" {
			m.Status = model.MessagePending
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}

		err := o.queryRow(ctx, `
			INSERT INTO messages (campaign_id, contact_id, phone, content, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			RETURNING id
		`, m.CampaignID, m.ContactID, m.Phone, m.Content, string(m.Status), fmtTime(m.CreatedAt)).Scan(&m.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

// MarkMessageSent moves a pending message to sent. The WHERE clause
// keeps the status monotonic: a message already sent or failed is never
// rewritten.
func (o ops) MarkMessageSent(ctx context.Context, id int64, sentAt time.Time) error {
	_, err := o.exec(ctx, `
		UPDATE messages SET status = ?, sent_at = ? WHERE id = ? AND status = ?
	`, string(model.MessageSent), fmtTime(sentAt), id, string(model.MessagePending))
	return err
}

func (o ops) MarkMessageFailed(ctx context.Context, id int64, reason string) error {
	_, err := o.exec(ctx, `
		UPDATE messages SET status = ?, last_error = ? WHERE id = ? AND status = ?
	`, string(model.MessageFailed), reason, id, string(model.MessagePending))
	return err
}

func (o ops) MessagesByCampaign(ctx context.Context, campaignID int64) ([]model.Message, error) {
	rows, err := o.query(ctx, `
		SELECT id, campaign_id, contact_id, phone, content, status, sent_at, last_error, created_at
		FROM messages
		WHERE campaign_id = ?
		ORDER BY id ASC
	`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var (
			m         model.Message
			rawStatus string
			sentAt    sql.NullString
			lastErr   sql.NullString
			createdAt string
		)
		if err := rows.Scan(&m.ID, &m.CampaignID, &m.ContactID, &m.Phone, &m.Content,
			&rawStatus, &sentAt, &lastErr, &createdAt); err != nil {
			return nil, err
		}

		status, ok := model.ParseMessageStatus(rawStatus)
		if !ok {
			return nil, fmt.Errorf("message %d has unknown status %q", m.ID, rawStatus)
		}
		m.Status = status

		if m.SentAt, err = parseNullTime(sentAt); err != nil {
			return nil, err
		}
		if lastErr.Valid {
			s := lastErr.String
			m.LastError = &s
		}
		if m.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
