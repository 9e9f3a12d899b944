package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/LeventeLantos/campaign-manager/internal/model"
)

func (o ops) InsertGroup(ctx context.Context, g *model.ContactGroup) (int64, error) {
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}

	var id int64
	err := o.queryRow(ctx, `
		INSERT INTO groups (name, color, created_at) VALUES (?, ?, ?)
		RETURNING id
	`, g.Name, g.Color, fmtTime(g.CreatedAt)).Scan(&id)
	if err != nil {
		return 0, err
	}
	g.ID = id
	return id, nil
}

func (o ops) GroupByID(ctx context.Context, id int64) (*model.ContactGroup, error) {
	var (
		g         model.ContactGroup
		createdAt string
	)
	err := o.queryRow(ctx, `SELECT id, name, color, created_at FROM groups WHERE id = ?`, id).
		Scan(&g.ID, &g.Name, &g.Color, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if g.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &g, nil
}

func (o ops) ListGroups(ctx context.Context) ([]model.ContactGroup, error) {
	rows, err := o.query(ctx, `SELECT id, name, color, created_at FROM groups ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ContactGroup
	for rows.Next() {
		var (
			g         model.ContactGroup
			createdAt string
		)
		if err := rows.Scan(&g.ID, &g.Name, &g.Color, &createdAt); err != nil {
			return nil, err
		}
		if g.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (o ops) DeleteGroup(ctx context.Context, id int64) error {
	if _, err := o.exec(ctx, `DELETE FROM contact_groups WHERE group_id = ?`, id); err != nil {
		return err
	}
	if _, err := o.exec(ctx, `DELETE FROM campaign_groups WHERE group_id = ?`, id); err != nil {
		return err
	}
	res, err := o.exec(ctx, `DELETE FROM groups WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}
