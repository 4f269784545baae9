// Package eventlog records lead processing events, keeps the most recent
// ones in memory for the live dashboard and streams changes to websocket
// subscribers.
package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"leadflow/internal/models"
)

var ErrEventNotFound = errors.New("event not found")

const eventColumns = `id, event_type, event_data, status, COALESCE(error_message, ''), COALESCE(team_id, ''), created_at, updated_at`

// Store persists events in the event_logs table.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (models.EventLog, error) {
	var (
		e      models.EventLog
		data   []byte
		status string
	)
	if err := row.Scan(&e.ID, &e.EventType, &data, &status, &e.ErrorMessage, &e.TeamID, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return e, err
	}
	e.Status = models.EventStatus(status)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &e.EventData); err != nil {
			return e, fmt.Errorf("decode event_data of event %d: %w", e.ID, err)
		}
	}
	return e, nil
}

func encodeData(data map[string]interface{}) ([]byte, error) {
	if data == nil {
		return nil, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode event_data: %w", err)
	}
	return b, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Insert writes a new event and returns it as stored.
func (s *Store) Insert(ctx context.Context, eventType string, data map[string]interface{}, status models.EventStatus, errorMessage, teamID string) (models.EventLog, error) {
	payload, err := encodeData(data)
	if err != nil {
		return models.EventLog{}, err
	}

	query := `INSERT INTO event_logs (event_type, event_data, status, error_message, team_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + eventColumns
	return scanEvent(s.db.QueryRowContext(ctx, query, eventType, payload, string(status), nullable(errorMessage), nullable(teamID)))
}

// Update sets the status. The error message and data are only replaced when
// given.
func (s *Store) Update(ctx context.Context, id int64, status models.EventStatus, errorMessage string, data map[string]interface{}) (models.EventLog, error) {
	payload, err := encodeData(data)
	if err != nil {
		return models.EventLog{}, err
	}

	query := `UPDATE event_logs SET
			status = $2,
			error_message = COALESCE($3, error_message),
			event_data = COALESCE($4, event_data),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + eventColumns
	e, err := scanEvent(s.db.QueryRowContext(ctx, query, id, string(status), nullable(errorMessage), payload))
	if errors.Is(err, sql.ErrNoRows) {
		return e, fmt.Errorf("%w: %d", ErrEventNotFound, id)
	}
	return e, err
}

// Recent returns the newest events, optionally for one team.
func (s *Store) Recent(ctx context.Context, limit int, teamID string) ([]models.EventLog, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if teamID != "" {
		rows, err = s.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM event_logs
			WHERE team_id = $1 ORDER BY created_at DESC LIMIT $2`, teamID, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM event_logs
			ORDER BY created_at DESC LIMIT $1`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []models.EventLog{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// ExpireProcessing moves every event still processing and created before
// cutoff to error. The status condition makes repeated sweeps no-ops.
func (s *Store) ExpireProcessing(ctx context.Context, cutoff time.Time, message string) ([]models.EventLog, error) {
	query := `UPDATE event_logs SET
			status = $1,
			error_message = $2,
			updated_at = NOW()
		WHERE status = $3 AND created_at < $4
		RETURNING ` + eventColumns
	rows, err := s.db.QueryContext(ctx, query, string(models.EventStatusError), message, string(models.EventStatusProcessing), cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []models.EventLog
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		expired = append(expired, e)
	}
	return expired, rows.Err()
}
