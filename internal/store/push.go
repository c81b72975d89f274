package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/renewly/internal/model"
)

type PushStore struct {
	db *sql.DB
}

func NewPushStore(db *sql.DB) *PushStore {
	return &PushStore{db: db}
}

const pushDeviceCols = `id, user_id, endpoint, p256dh_key, auth_key, device_name, created_at`

func scanPushDevice(scanner interface{ Scan(...any) error }) (*model.PushDevice, error) {
	var d model.PushDevice
	err := scanner.Scan(&d.ID, &d.UserID, &d.Endpoint, &d.P256dhKey, &d.AuthKey, &d.DeviceName, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateDevice registers a push endpoint. Re-registering an endpoint refreshes
// its keys and hands it to the calling user.
func (s *PushStore) CreateDevice(ctx context.Context, userID int64, endpoint, p256dh, auth, deviceName string) (*model.PushDevice, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO push_devices (user_id, endpoint, p256dh_key, auth_key, device_name)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(endpoint) DO UPDATE SET
		   user_id = excluded.user_id,
		   p256dh_key = excluded.p256dh_key,
		   auth_key = excluded.auth_key,
		   device_name = excluded.device_name`,
		userID, endpoint, p256dh, auth, deviceName,
	)
	if err != nil {
		return nil, fmt.Errorf("create push device: %w", err)
	}
	return s.getByEndpoint(ctx, endpoint)
}

func (s *PushStore) GetByID(ctx context.Context, id, userID int64) (*model.PushDevice, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+pushDeviceCols+` FROM push_devices WHERE id = ? AND user_id = ?`, id, userID)
	d, err := scanPushDevice(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get push device: %w", err)
	}
	return d, nil
}

func (s *PushStore) getByEndpoint(ctx context.Context, endpoint string) (*model.PushDevice, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+pushDeviceCols+` FROM push_devices WHERE endpoint = ?`, endpoint)
	d, err := scanPushDevice(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get push device by endpoint: %w", err)
	}
	return d, nil
}

func (s *PushStore) ListByUser(ctx context.Context, userID int64) ([]model.PushDevice, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+pushDeviceCols+` FROM push_devices WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list push devices: %w", err)
	}
	defer rows.Close()

	var devices []model.PushDevice
	for rows.Next() {
		d, err := scanPushDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan push device: %w", err)
		}
		devices = append(devices, *d)
	}
	return devices, rows.Err()
}

func (s *PushStore) DeleteDevice(ctx context.Context, id, userID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM push_devices WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete push device: %w", err)
	}
	return nil
}

func (s *PushStore) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM push_devices WHERE endpoint = ?`, endpoint)
	if err != nil {
		return fmt.Errorf("delete push device by endpoint: %w", err)
	}
	return nil
}
