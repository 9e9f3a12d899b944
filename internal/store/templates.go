package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/LeventeLantos/campaign-manager/internal/model"
)

func (o ops) InsertTemplate(ctx context.Context, t *model.MessageTemplate) (int64, error) {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	var id int64
	err := o.queryRow(ctx, `
		INSERT INTO templates (name, body, favorite, use_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`, t.Name, t.Body, t.Favorite, t.UseCount, fmtTime(t.CreatedAt), fmtTime(t.UpdatedAt)).Scan(&id)
	if err != nil {
		return 0, err
	}
	t.ID = id
	return id, nil
}

func (o ops) UpdateTemplate(ctx context.Context, t *model.MessageTemplate) error {
	t.UpdatedAt = time.Now().UTC()
	res, err := o.exec(ctx, `
		UPDATE templates SET name = ?, body = ?, favorite = ?, updated_at = ? WHERE id = ?
	`, t.Name, t.Body, t.Favorite, fmtTime(t.UpdatedAt), t.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// IncrementTemplateUseCount bumps the usage counter by one. Called
// exactly once per campaign run that reached a terminal state.
func (o ops) IncrementTemplateUseCount(ctx context.Context, id int64) error {
	res, err := o.exec(ctx, `
		UPDATE templates SET use_count = use_count + 1, updated_at = ? WHERE id = ?
	`, fmtTime(time.Now().UTC()), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (o ops) TemplateByID(ctx context.Context, id int64) (*model.MessageTemplate, error) {
	var (
		t         model.MessageTemplate
		createdAt string
		updatedAt string
	)
	err := o.queryRow(ctx, `
		SELECT id, name, body, favorite, use_count, created_at, updated_at
		FROM templates WHERE id = ?
	`, id).Scan(&t.ID, &t.Name, &t.Body, &t.Favorite, &t.UseCount, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (o ops) ListTemplates(ctx context.Context) ([]model.MessageTemplate, error) {
	rows, err := o.query(ctx, `
		SELECT id, name, body, favorite, use_count, created_at, updated_at
		FROM templates
		ORDER BY favorite DESC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.MessageTemplate
	for rows.Next() {
		var (
			t         model.MessageTemplate
			createdAt string
			updatedAt string
		)
		if err := rows.Scan(&t.ID, &t.Name, &t.Body, &t.Favorite, &t.UseCount, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if t.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (o ops) DeleteTemplate(ctx context.Context, id int64) error {
	res, err := o.exec(ctx, `DELETE FROM templates WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}
