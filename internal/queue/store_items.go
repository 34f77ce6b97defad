package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// NewItem enqueues a file for matching. Re-enqueueing a path that already has
// an item returns the existing item unchanged.
func (s *Store) NewItem(ctx context.Context, sourcePath string) (*Item, error) {
	if existing, err := s.FindBySourcePath(ctx, sourcePath); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO queue_items (source_path, status, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		sourcePath,
		StatusPending,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a queue item by identifier. A missing item returns nil
// without an error.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+itemColumns+` FROM queue_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// FindBySourcePath returns the item tracking a file path, or nil.
func (s *Store) FindBySourcePath(ctx context.Context, sourcePath string) (*Item, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+itemColumns+` FROM queue_items WHERE source_path = ?`,
		sourcePath,
	)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find item by path: %w", err)
	}
	return item, nil
}

// Update persists all mutable fields of an item.
func (s *Store) Update(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("nil item")
	}
	item.UpdatedAt = time.Now().UTC()

	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items SET
            source_path = ?, status = ?, decision = ?, decision_reason = ?,
            chosen_guid = ?, final_path = ?, artifact_json = ?, error_message = ?,
            updated_at = ?
        WHERE id = ?`,
		item.SourcePath,
		item.Status,
		nullableString(item.Decision),
		nullableString(item.DecisionReason),
		nullableString(item.ChosenGUID),
		nullableString(item.FinalPath),
		nullableString(item.ArtifactJSON),
		nullableString(item.ErrorMessage),
		item.UpdatedAt.Format(time.RFC3339Nano),
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("item %d not found", item.ID)
	}
	return nil
}

// ItemsByStatus lists items in any of the given statuses, oldest first.
func (s *Store) ItemsByStatus(ctx context.Context, statuses ...Status) ([]*Item, error) {
	if len(statuses) == 0 {
		return s.List(ctx)
	}

	placeholders := make([]byte, 0, len(statuses)*2)
	args := make([]any, 0, len(statuses))
	for i, status := range statuses {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args = append(args, status)
	}

	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+itemColumns+` FROM queue_items WHERE status IN (`+string(placeholders)+`) ORDER BY created_at ASC, id ASC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list items by status: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// List returns every queue item, oldest first.
func (s *Store) List(ctx context.Context) ([]*Item, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+itemColumns+` FROM queue_items ORDER BY created_at ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

func collectItems(rows *sql.Rows) ([]*Item, error) {
	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ResetStuck rolls items abandoned mid-processing back to pending so the next
// run retries them.
func (s *Store) ResetStuck(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items SET status = ?, error_message = NULL, updated_at = ? WHERE status = ?`,
		StatusPending,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusMatching,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck items: %w", err)
	}
	return res.RowsAffected()
}

// Delete removes an item.
func (s *Store) Delete(ctx context.Context, id int64) error {
	_, err := s.execWithRetry(ctx, `DELETE FROM queue_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

// Clear removes items in terminal states. With none given, everything goes.
func (s *Store) Clear(ctx context.Context, statuses ...Status) (int64, error) {
	if len(statuses) == 0 {
		res, err := s.execWithRetry(ctx, `DELETE FROM queue_items`)
		if err != nil {
			return 0, fmt.Errorf("clear queue: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := make([]byte, 0, len(statuses)*2)
	args := make([]any, 0, len(statuses))
	for i, status := range statuses {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args = append(args, status)
	}
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items WHERE status IN (`+string(placeholders)+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}
