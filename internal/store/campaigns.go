package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/LeventeLantos/campaign-manager/internal/model"
)

func (o ops) InsertCampaign(ctx context.Context, c *model.Campaign) (int64, error) {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}

	errsJSON, err := marshalErrors(c.Errors)
	if err != nil {
		return 0, err
	}

	var id int64
	err = o.queryRow(ctx, `
		INSERT INTO campaigns (name, status, template_id, scheduled_at, total_recipients, sent_count, failed_count, errors, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`, c.Name, string(c.Status), nullInt64(c.TemplateID), fmtNullTime(c.ScheduledAt),
		c.TotalRecipients, c.SentCount, c.FailedCount, errsJSON,
		fmtTime(c.CreatedAt), fmtTime(c.UpdatedAt)).Scan(&id)
	if err != nil {
		return 0, err
	}
	c.ID = id

	for _, gid := range c.GroupIDs {
		if _, err := o.exec(ctx, `
			INSERT INTO campaign_groups (campaign_id, group_id) VALUES (?, ?)
			ON CONFLICT (campaign_id, group_id) DO NOTHING
		`, id, gid); err != nil {
			return 0, err
		}
	}
	return id, nil
}

func (o ops) CampaignByID(ctx context.Context, id int64) (*model.Campaign, error) {
	row := o.queryRow(ctx, `
		SELECT id, name, status, template_id, scheduled_at, total_recipients, sent_count, failed_count, errors, created_at, updated_at
		FROM campaigns WHERE id = ?
	`, id)

	c, err := scanCampaign(row)
	if err != nil {
		return nil, err
	}

	c.GroupIDs, err = o.campaignGroupIDs(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (o ops) ListCampaigns(ctx context.Context) ([]model.Campaign, error) {
	rows, err := o.query(ctx, `
		SELECT id, name, status, template_id, scheduled_at, total_recipients, sent_count, failed_count, errors, created_at, updated_at
		FROM campaigns
		ORDER BY id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// DueScheduled returns scheduled campaigns whose send time has passed.
func (o ops) DueScheduled(ctx context.Context, now time.Time) ([]model.Campaign, error) {
	rows, err := o.query(ctx, `
		SELECT id, name, status, template_id, scheduled_at, total_recipients, sent_count, failed_count, errors, created_at, updated_at
		FROM campaigns
		WHERE status = ? AND scheduled_at IS NOT NULL AND scheduled_at <= ?
		ORDER BY scheduled_at ASC
	`, string(model.CampaignScheduled), fmtTime(now))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// TransitionCampaign moves a campaign to a new status after checking the
// transition table against the currently persisted status.
func (o ops) TransitionCampaign(ctx context.Context, id int64, to model.CampaignStatus) error {
	var raw string
	err := o.queryRow(ctx, `SELECT status FROM campaigns WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	from, err := model.ParseCampaignStatus(raw)
	if err != nil {
		return err
	}
	if !from.CanTransition(to) {
		return fmt.Errorf("invalid campaign transition %s -> %s", from, to)
	}

	_, err = o.exec(ctx, `UPDATE campaigns SET status = ?, updated_at = ? WHERE id = ?`,
		string(to), fmtTime(time.Now().UTC()), id)
	return err
}

// ScheduleCampaign sets the send time and moves the campaign to
// scheduled, going through the transition table.
func (o ops) ScheduleCampaign(ctx context.Context, id int64, at time.Time) error {
	if err := o.TransitionCampaign(ctx, id, model.CampaignScheduled); err != nil {
		return err
	}
	_, err := o.exec(ctx, `UPDATE campaigns SET scheduled_at = ? WHERE id = ?`, fmtTime(at.UTC()), id)
	return err
}

// UnscheduleCampaign reverts a scheduled campaign to draft and clears
// its send time.
func (o ops) UnscheduleCampaign(ctx context.Context, id int64) error {
	if err := o.TransitionCampaign(ctx, id, model.CampaignDraft); err != nil {
		return err
	}
	_, err := o.exec(ctx, `UPDATE campaigns SET scheduled_at = NULL WHERE id = ?`, id)
	return err
}

// BeginCampaignSend marks the campaign sending and snapshots the
// recipient total, zeroing the counters for the new run.
func (o ops) BeginCampaignSend(ctx context.Context, id int64, totalRecipients int) error {
	res, err := o.exec(ctx, `
		UPDATE campaigns
		SET status = ?, total_recipients = ?, sent_count = 0, failed_count = 0, errors = '[]', updated_at = ?
		WHERE id = ?
	`, string(model.CampaignSending), totalRecipients, fmtTime(time.Now().UTC()), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (o ops) UpdateCampaignProgress(ctx context.Context, id int64, sent, failed int) error {
	res, err := o.exec(ctx, `
		UPDATE campaigns SET sent_count = ?, failed_count = ?, updated_at = ? WHERE id = ?
	`, sent, failed, fmtTime(time.Now().UTC()), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// FinishCampaign persists the terminal status plus the final counters
// and error list in one statement.
func (o ops) FinishCampaign(ctx context.Context, id int64, status model.CampaignStatus, sent, failed int, errs []string) error {
	if !status.Terminal() {
		return fmt.Errorf("campaign status %s is not terminal", status)
	}
	errsJSON, err := marshalErrors(errs)
	if err != nil {
		return err
	}

	res, err := o.exec(ctx, `
		UPDATE campaigns
		SET status = ?, sent_count = ?, failed_count = ?, errors = ?, updated_at = ?
		WHERE id = ?
	`, string(status), sent, failed, errsJSON, fmtTime(time.Now().UTC()), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DeleteCampaign removes the campaign with its group links and delivery
// records (the only path that ever deletes messages).
func (o ops) DeleteCampaign(ctx context.Context, id int64) error {
	if _, err := o.exec(ctx, `DELETE FROM messages WHERE campaign_id = ?`, id); err != nil {
		return err
	}
	if _, err := o.exec(ctx, `DELETE FROM campaign_groups WHERE campaign_id = ?`, id); err != nil {
		return err
	}
	res, err := o.exec(ctx, `DELETE FROM campaigns WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (o ops) campaignGroupIDs(ctx context.Context, campaignID int64) ([]int64, error) {
	rows, err := o.query(ctx, `SELECT group_id FROM campaign_groups WHERE campaign_id = ? ORDER BY group_id`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanCampaign(row rowScanner) (*model.Campaign, error) {
	var (
		c           model.Campaign
		rawStatus   string
		templateID  sql.NullInt64
		scheduledAt sql.NullString
		errsJSON    string
		createdAt   string
		updatedAt   string
	)
	err := row.Scan(&c.ID, &c.Name, &rawStatus, &templateID, &scheduledAt,
		&c.TotalRecipients, &c.SentCount, &c.FailedCount, &errsJSON, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if c.Status, err = model.ParseCampaignStatus(rawStatus); err != nil {
		return nil, err
	}
	if templateID.Valid {
		v := templateID.Int64
		c.TemplateID = &v
	}
	if c.ScheduledAt, err = parseNullTime(scheduledAt); err != nil {
		return nil, err
	}
	if err = json.Unmarshal([]byte(errsJSON), &c.Errors); err != nil {
		return nil, fmt.Errorf("decode campaign errors: %w", err)
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func marshalErrors(errs []string) (string, error) {
	if errs == nil {
		errs = []string{}
	}
	b, err := json.Marshal(errs)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
