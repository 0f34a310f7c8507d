package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "rolesync/pkg/domain"
	"rolesync/pkg/platform/notify"
)

// Store persists durable alerts in the account_alerts table. Rows stay open
// until the user acknowledges them.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, event notify.Event) error {
	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("marshal alert details: %w", err)
	}
	eventID, err := uuid.Parse(event.ID)
	if err != nil {
		eventID = uuid.New()
	}
	query := `
		INSERT INTO account_alerts (id, account_id, event_type, message, details, request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = s.db.ExecContext(ctx, query,
		eventID.String(),
		event.AccountID.String(),
		string(event.Type),
		event.Message,
		string(details),
		event.RequestID,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert account alert: %w", err)
	}
	return nil
}

func (s *Store) ListOpenAlerts(ctx context.Context, accountID id.AccountID) ([]notify.Event, error) {
	query := `
		SELECT id, event_type, message, details, request_id, created_at
		FROM account_alerts
		WHERE account_id = $1 AND acknowledged_at IS NULL
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query, accountID.String())
	if err != nil {
		return nil, fmt.Errorf("query account alerts: %w", err)
	}
	defer rows.Close()

	var out []notify.Event
	for rows.Next() {
		var (
			e         notify.Event
			eventID   uuid.UUID
			eventType string
			details   []byte
			requestID sql.NullString
		)
		if err := rows.Scan(&eventID, &eventType, &e.Message, &details, &requestID, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan account alert: %w", err)
		}
		e.ID = eventID.String()
		e.Type = notify.EventType(eventType)
		e.AccountID = accountID
		e.RequestID = requestID.String
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("decode alert details: %w", err)
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate account alerts: %w", err)
	}
	return out, nil
}

func (s *Store) Acknowledge(ctx context.Context, eventID string) error {
	parsed, err := uuid.Parse(eventID)
	if err != nil {
		return fmt.Errorf("parse alert id: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE account_alerts SET acknowledged_at = $2 WHERE id = $1 AND acknowledged_at IS NULL`,
		parsed.String(), time.Now())
	if err != nil {
		return fmt.Errorf("acknowledge account alert: %w", err)
	}
	return nil
}
