package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	json "github.com/goccy/go-json"

	"github.com/nerrad567/rpihome/internal/infrastructure/database"
)

// Store reads and writes the state tables created by the migrations package.
type Store struct {
	db  *database.DB
	now func() time.Time
}

// DesiredState is the last desired patch the agent acknowledged.
type DesiredState struct {
	Version    int64
	Properties []string
	UpdatedAt  time.Time
}

// NewStore wraps a migrated database.
func NewStore(db *database.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// SaveLastValues upserts one row per field. Fields not present in values
// keep their previous row.
func (s *Store) SaveLastValues(ctx context.Context, component string, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	updatedAt := s.now().UTC().Format(time.RFC3339Nano)
	for field, value := range values {
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encoding %s.%s: %w", component, field, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO component_values (component, field, value, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (component, field) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		`, component, field, string(encoded), updatedAt); err != nil {
			return fmt.Errorf("saving %s.%s: %w", component, field, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing last values: %w", err)
	}
	return nil
}

// LastValues returns the stored fields of a component. A component that
// was never saved yields an empty map.
func (s *Store) LastValues(ctx context.Context, component string) (map[string]any, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT field, value FROM component_values WHERE component = ?", component,
	)
	if err != nil {
		return nil, fmt.Errorf("querying last values: %w", err)
	}
	defer rows.Close()

	values := make(map[string]any)
	for rows.Next() {
		var field, raw string
		if err := rows.Scan(&field, &raw); err != nil {
			return nil, fmt.Errorf("scanning last value: %w", err)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("decoding %s.%s: %w", component, field, err)
		}
		values[field] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating last values: %w", err)
	}
	return values, nil
}

// RecordDesired stores the version and top-level keys of an acknowledged
// desired patch, replacing the previous record.
func (s *Store) RecordDesired(ctx context.Context, version int64, properties map[string]any) error {
	keys := make([]string, 0, len(properties))
	for k := range properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	encoded, err := json.Marshal(keys)
	if err != nil {
		return fmt.Errorf("encoding property keys: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO twin_state (id, desired_version, properties, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			desired_version = excluded.desired_version,
			properties = excluded.properties,
			updated_at = excluded.updated_at
	`, version, string(encoded), s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("recording desired version: %w", err)
	}
	return nil
}

// Desired returns the last acknowledged desired patch. ok is false when
// nothing has been recorded yet.
func (s *Store) Desired(ctx context.Context) (state DesiredState, ok bool, err error) {
	var raw, updatedAt string
	err = s.db.QueryRowContext(ctx,
		"SELECT desired_version, properties, updated_at FROM twin_state WHERE id = 1",
	).Scan(&state.Version, &raw, &updatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return DesiredState{}, false, nil
	case err != nil:
		return DesiredState{}, false, fmt.Errorf("reading desired version: %w", err)
	}

	if err := json.Unmarshal([]byte(raw), &state.Properties); err != nil {
		return DesiredState{}, false, fmt.Errorf("decoding property keys: %w", err)
	}
	state.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt) //nolint:errcheck // Format is controlled
	return state, true, nil
}
