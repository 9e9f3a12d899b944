package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/LeventeLantos/campaign-manager/internal/model"
)

func (o ops) InsertContact(ctx context.Context, c *model.Contact) (int64, error) {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	var id int64
	err := o.queryRow(ctx, `
		INSERT INTO contacts (first_name, last_name, phone, email, notes, imported, external_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`, c.FirstName, c.LastName, c.Phone, c.Email, c.Notes, c.Imported,
		nullStr(c.ExternalID), fmtTime(c.CreatedAt), fmtTime(c.UpdatedAt)).Scan(&id)
	if err != nil {
		return 0, err
	}
	c.ID = id
	return id, nil
}

// UpdateContact overwrites the mutable fields. ExternalID, Imported and
// CreatedAt are deliberately not touched: the identifier is immutable
// once set and creation time never changes.
func (o ops) UpdateContact(ctx context.Context, c *model.Contact) error {
	c.UpdatedAt = time.Now().UTC()
	res, err := o.exec(ctx, `
		UPDATE contacts
		SET first_name = ?, last_name = ?, phone = ?, email = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`, c.FirstName, c.LastName, c.Phone, c.Email, c.Notes, fmtTime(c.UpdatedAt), c.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (o ops) DeleteContact(ctx context.Context, id int64) error {
	if _, err := o.exec(ctx, `DELETE FROM contact_groups WHERE contact_id = ?`, id); err != nil {
		return err
	}
	res, err := o.exec(ctx, `DELETE FROM contacts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (o ops) ContactByID(ctx context.Context, id int64) (*model.Contact, error) {
	return o.contactBy(ctx, `WHERE id = ?`, id)
}

func (o ops) ContactByExternalID(ctx context.Context, externalID string) (*model.Contact, error) {
	return o.contactBy(ctx, `WHERE external_id = ?`, externalID)
}

func (o ops) contactBy(ctx context.Context, where string, arg any) (*model.Contact, error) {
	row := o.queryRow(ctx, `
		SELECT id, first_name, last_name, phone, email, notes, imported, external_id, created_at, updated_at
		FROM contacts `+where, arg)

	c, err := scanContact(row)
	if err != nil {
		return nil, err
	}

	groupIDs, err := o.contactGroupIDs(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	c.GroupIDs = groupIDs
	return c, nil
}

func (o ops) ListContacts(ctx context.Context) ([]model.Contact, error) {
	rows, err := o.query(ctx, `
		SELECT id, first_name, last_name, phone, email, notes, imported, external_id, created_at, updated_at
		FROM contacts
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectContacts(rows)
}

// ContactsInGroups returns the deduplicated union of sendable contacts
// across the given groups, ordered ascending by contact id. That order
// is the documented recipient order for a campaign run.
func (o ops) ContactsInGroups(ctx context.Context, groupIDs []int64) ([]model.Contact, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(groupIDs)), ", ")
	args := make([]any, len(groupIDs))
	for i, id := range groupIDs {
		args[i] = id
	}

	rows, err := o.query(ctx, fmt.Sprintf(`
		SELECT DISTINCT c.id, c.first_name, c.last_name, c.phone, c.email, c.notes, c.imported, c.external_id, c.created_at, c.updated_at
		FROM contacts c
		JOIN contact_groups cg ON cg.contact_id = c.id
		WHERE cg.group_id IN (%s) AND TRIM(c.phone) <> ''
		ORDER BY c.id ASC
	`, placeholders), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectContacts(rows)
}

func (o ops) AddContactToGroup(ctx context.Context, contactID, groupID int64) error {
	_, err := o.exec(ctx, `
		INSERT INTO contact_groups (contact_id, group_id) VALUES (?, ?)
		ON CONFLICT (contact_id, group_id) DO NOTHING
	`, contactID, groupID)
	return err
}

func (o ops) RemoveContactFromGroup(ctx context.Context, contactID, groupID int64) error {
	_, err := o.exec(ctx, `DELETE FROM contact_groups WHERE contact_id = ? AND group_id = ?`, contactID, groupID)
	return err
}

func (o ops) contactGroupIDs(ctx context.Context, contactID int64) ([]int64, error) {
	rows, err := o.query(ctx, `SELECT group_id FROM contact_groups WHERE contact_id = ? ORDER BY group_id`, contactID)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (*model.Contact, error) {
	var (
		c          model.Contact
		externalID sql.NullString
		createdAt  string
		updatedAt  string
	)
	err := row.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Phone, &c.Email, &c.Notes,
		&c.Imported, &externalID, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if externalID.Valid {
		s := externalID.String
		c.ExternalID = &s
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func collectContacts(rows *sql.Rows) ([]model.Contact, error) {
	var out []model.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
