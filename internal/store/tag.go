package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/renewly/internal/model"
)

type TagStore struct {
	db *sql.DB
}

func NewTagStore(db *sql.DB) *TagStore {
	return &TagStore{db: db}
}

const tagCols = `id, user_id, name, color, created_at`

func scanTag(scanner interface{ Scan(...any) error }) (*model.Tag, error) {
	var t model.Tag
	err := scanner.Scan(&t.ID, &t.UserID, &t.Name, &t.Color, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *TagStore) List(ctx context.Context, userID int64) ([]model.Tag, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+tagCols+` FROM tags WHERE user_id = ? ORDER BY name ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var tags []model.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, *t)
	}
	return tags, rows.Err()
}

func (s *TagStore) GetByID(ctx context.Context, id, userID int64) (*model.Tag, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+tagCols+` FROM tags WHERE id = ? AND user_id = ?`, id, userID)
	t, err := scanTag(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tag: %w", err)
	}
	return t, nil
}

func (s *TagStore) Create(ctx context.Context, userID int64, name, color string) (*model.Tag, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO tags (user_id, name, color) VALUES (?, ?, ?)`, userID, name, color)
	if err != nil {
		return nil, fmt.Errorf("insert tag: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id, userID)
}

func (s *TagStore) Update(ctx context.Context, id, userID int64, name, color string) (*model.Tag, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tags SET name = ?, color = ? WHERE id = ? AND user_id = ?`, name, color, id, userID)
	if err != nil {
		return nil, fmt.Errorf("update tag: %w", err)
	}
	return s.GetByID(ctx, id, userID)
}

func (s *TagStore) Delete(ctx context.Context, id, userID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tags WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	return nil
}
