package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/renewly/internal/model"
)

type SubscriptionStore struct {
	db *sql.DB
}

func NewSubscriptionStore(db *sql.DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

const subscriptionCols = `id, user_id, name, amount_cents, currency, billing_cycle, renewal_date,
	auto_renew, status, category_id, notes, created_at, updated_at`

func scanSubscription(scanner interface{ Scan(...any) error }) (*model.Subscription, error) {
	var sub model.Subscription
	var renewal string
	var autoRenew int
	var categoryID sql.NullInt64

	err := scanner.Scan(
		&sub.ID, &sub.UserID, &sub.Name, &sub.AmountCents, &sub.Currency, &sub.BillingCycle,
		&renewal, &autoRenew, &sub.Status, &categoryID, &sub.Notes, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	sub.RenewalDate, err = time.Parse(model.DateLayout, renewal)
	if err != nil {
		return nil, fmt.Errorf("parse renewal date %q: %w", renewal, err)
	}
	sub.AutoRenew = autoRenew != 0
	if categoryID.Valid {
		sub.CategoryID = &categoryID.Int64
	}
	return &sub, nil
}

func (s *SubscriptionStore) Create(ctx context.Context, sub model.Subscription) (*model.Subscription, error) {
	if sub.Status == "" {
		sub.Status = model.SubscriptionActive
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO subscriptions
		   (user_id, name, amount_cents, currency, billing_cycle, renewal_date, auto_renew, status, category_id, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.UserID, sub.Name, sub.AmountCents, sub.Currency, sub.BillingCycle,
		sub.RenewalDate.Format(model.DateLayout), boolInt(sub.AutoRenew), sub.Status,
		nullInt64(sub.CategoryID), sub.Notes,
	)
	if err != nil {
		return nil, fmt.Errorf("insert subscription: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if err := replaceTags(ctx, tx, id, sub.TagIDs); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit subscription: %w", err)
	}
	return s.GetByID(ctx, id, sub.UserID)
}

// GetByID returns the subscription if it belongs to userID, or nil.
func (s *SubscriptionStore) GetByID(ctx context.Context, id, userID int64) (*model.Subscription, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+subscriptionCols+` FROM subscriptions WHERE id = ? AND user_id = ?`, id, userID)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}

	tags, err := s.tagIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	sub.TagIDs = tags[sub.ID]
	return sub, nil
}

func (s *SubscriptionStore) ListByUser(ctx context.Context, userID int64) ([]model.Subscription, error) {
	return s.list(ctx, userID,
		`SELECT `+subscriptionCols+` FROM subscriptions WHERE user_id = ?
		 ORDER BY renewal_date ASC, id ASC`)
}

// ListActiveByUser returns the subscriptions the user has not cancelled. That
// includes ones already marked expired, which keep receiving overdue notices
// until the user renews or cancels them.
func (s *SubscriptionStore) ListActiveByUser(ctx context.Context, userID int64) ([]model.Subscription, error) {
	return s.list(ctx, userID,
		`SELECT `+subscriptionCols+` FROM subscriptions
		 WHERE user_id = ? AND status IN ('active', 'expired')
		 ORDER BY renewal_date ASC, id ASC`)
}

func (s *SubscriptionStore) list(ctx context.Context, userID int64, query string) ([]model.Subscription, error) {
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []model.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	tags, err := s.tagIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range subs {
		subs[i].TagIDs = tags[subs[i].ID]
	}
	return subs, nil
}

func (s *SubscriptionStore) Update(ctx context.Context, sub model.Subscription) (*model.Subscription, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE subscriptions SET
		   name = ?, amount_cents = ?, currency = ?, billing_cycle = ?, renewal_date = ?,
		   auto_renew = ?, status = ?, category_id = ?, notes = ?
		 WHERE id = ? AND user_id = ?`,
		sub.Name, sub.AmountCents, sub.Currency, sub.BillingCycle,
		sub.RenewalDate.Format(model.DateLayout), boolInt(sub.AutoRenew), sub.Status,
		nullInt64(sub.CategoryID), sub.Notes, sub.ID, sub.UserID,
	)
	if err != nil {
		return nil, fmt.Errorf("update subscription: %w", err)
	}
	if err := replaceTags(ctx, tx, sub.ID, sub.TagIDs); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit subscription: %w", err)
	}
	return s.GetByID(ctx, sub.ID, sub.UserID)
}

// UpdateStatus sets only the status column.
func (s *SubscriptionStore) UpdateStatus(ctx context.Context, id int64, status model.SubscriptionStatus) error {
	result, err := s.db.ExecContext(ctx, `UPDATE subscriptions SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("update subscription status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("update subscription status: subscription %d not found", id)
	}
	return nil
}

func (s *SubscriptionStore) Delete(ctx context.Context, id, userID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}

// tagIDs maps subscription id to tag ids for every subscription of userID.
func (s *SubscriptionStore) tagIDs(ctx context.Context, userID int64) (map[int64][]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT st.subscription_id, st.tag_id FROM subscription_tags st
		 JOIN subscriptions s ON s.id = st.subscription_id
		 WHERE s.user_id = ? ORDER BY st.tag_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list subscription tags: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]int64)
	for rows.Next() {
		var subID, tagID int64
		if err := rows.Scan(&subID, &tagID); err != nil {
			return nil, fmt.Errorf("scan subscription tag: %w", err)
		}
		out[subID] = append(out[subID], tagID)
	}
	return out, rows.Err()
}

func replaceTags(ctx context.Context, tx *sql.Tx, subID int64, tagIDs []int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM subscription_tags WHERE subscription_id = ?`, subID); err != nil {
		return fmt.Errorf("clear subscription tags: %w", err)
	}
	for _, tagID := range tagIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO subscription_tags (subscription_id, tag_id) VALUES (?, ?)`,
			subID, tagID,
		); err != nil {
			return fmt.Errorf("add subscription tag: %w", err)
		}
	}
	return nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
