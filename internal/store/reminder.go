package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/renewly/internal/model"
	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrReminderExists is returned by CreateSent when a pending reminder already
// exists for the same subscription and renewal date.
var ErrReminderExists = errors.New("pending reminder already exists")

const sqliteTimeLayout = "2006-01-02 15:04:05"

type ReminderStore struct {
	db *sql.DB
}

func NewReminderStore(db *sql.DB) *ReminderStore {
	return &ReminderStore{db: db}
}

const reminderCols = `id, user_id, subscription_id, reminder_type, reminder_date, status, created_at`

func scanReminder(scanner interface{ Scan(...any) error }) (*model.ReminderHistoryEntry, error) {
	var e model.ReminderHistoryEntry
	var date string
	err := scanner.Scan(&e.ID, &e.UserID, &e.SubscriptionID, &e.Type, &date, &e.Status, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.ReminderDate, err = time.Parse(model.DateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("parse reminder date %q: %w", date, err)
	}
	return &e, nil
}

// FindPending returns the sent, not yet viewed or dismissed reminder for the
// subscription's renewal date, or nil.
func (s *ReminderStore) FindPending(ctx context.Context, subscriptionID int64, renewalDate time.Time) (*model.ReminderHistoryEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reminderCols+` FROM reminder_history
		 WHERE subscription_id = ? AND reminder_date = ? AND status = 'sent'`,
		subscriptionID, renewalDate.Format(model.DateLayout),
	)
	e, err := scanReminder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find pending reminder: %w", err)
	}
	return e, nil
}

// CreateSent records a reminder in the sent state. The partial unique index on
// (subscription_id, reminder_date) rejects a second pending entry for the same
// cycle, which is reported as ErrReminderExists.
func (s *ReminderStore) CreateSent(ctx context.Context, entry model.ReminderHistoryEntry) (*model.ReminderHistoryEntry, error) {
	if !entry.Type.Valid() {
		return nil, fmt.Errorf("insert reminder: invalid reminder type %q", entry.Type)
	}
	entry.ID = uuid.NewString()
	entry.Status = model.ReminderSent

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reminder_history
		   (id, user_id, subscription_id, reminder_type, reminder_date, status)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.UserID, entry.SubscriptionID, entry.Type,
		entry.ReminderDate.Format(model.DateLayout), entry.Status,
	)
	if isUniqueViolation(err) {
		return nil, ErrReminderExists
	}
	if err != nil {
		return nil, fmt.Errorf("insert reminder: %w", err)
	}
	return s.GetByID(ctx, entry.ID, entry.UserID)
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

// CancelPending deletes every sent reminder for the subscription and reports
// how many were removed. Viewed and dismissed entries stay as history.
func (s *ReminderStore) CancelPending(ctx context.Context, subscriptionID int64) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM reminder_history WHERE subscription_id = ? AND status = 'sent'`, subscriptionID)
	if err != nil {
		return 0, fmt.Errorf("cancel pending reminders: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

func (s *ReminderStore) GetByID(ctx context.Context, id string, userID int64) (*model.ReminderHistoryEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reminderCols+` FROM reminder_history WHERE id = ? AND user_id = ?`, id, userID)
	e, err := scanReminder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reminder: %w", err)
	}
	return e, nil
}

// ListByUser returns the user's reminder history, newest first. A non-zero
// subscriptionID narrows it to one subscription.
func (s *ReminderStore) ListByUser(ctx context.Context, userID, subscriptionID int64, limit int) ([]model.ReminderHistoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + reminderCols + ` FROM reminder_history WHERE user_id = ?`
	args := []any{userID}
	if subscriptionID != 0 {
		query += ` AND subscription_id = ?`
		args = append(args, subscriptionID)
	}
	query += ` ORDER BY created_at DESC, reminder_date DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()

	var entries []model.ReminderHistoryEntry
	for rows.Next() {
		e, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// UpdateStatus moves a reminder to viewed or dismissed. Going back to sent is
// not allowed because it could break the one-pending-per-cycle rule.
func (s *ReminderStore) UpdateStatus(ctx context.Context, id string, userID int64, status model.ReminderStatus) (*model.ReminderHistoryEntry, error) {
	if status != model.ReminderViewed && status != model.ReminderDismissed {
		return nil, fmt.Errorf("update reminder status: invalid status %q", status)
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE reminder_history SET status = ? WHERE id = ? AND user_id = ?`, status, id, userID)
	if err != nil {
		return nil, fmt.Errorf("update reminder status: %w", err)
	}
	return s.GetByID(ctx, id, userID)
}

// PurgeResolved deletes viewed and dismissed reminders created before the
// cutoff. Pending reminders are never purged.
func (s *ReminderStore) PurgeResolved(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM reminder_history WHERE status IN ('viewed', 'dismissed') AND created_at < ?`,
		before.UTC().Format(sqliteTimeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("purge resolved reminders: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}
