package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

//go:embed migrations.sql
var migrationSQL string

// PostgresStore keeps slots in a single jsonb table.
type PostgresStore struct {
	DB *sql.DB
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	DB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := DB.PingContext(ctx); err != nil {
		_ = DB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &PostgresStore{DB: DB}
	if err := s.Migrate(ctx); err != nil {
		_ = DB.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the slot table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, migrationSQL); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error { return s.DB.Close() }

func (s *PostgresStore) Load(ctx context.Context, slot string) ([]byte, error) {
	var data []byte
	err := s.DB.QueryRowContext(ctx, `SELECT data FROM storefront_slots WHERE slot = $1`, slot).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load slot %s: %w", slot, err)
	}
	return data, nil
}

func (s *PostgresStore) Save(ctx context.Context, slot string, data []byte) error {
	// jsonb does not accept bytea, so the blob goes over the wire as text
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO storefront_slots (slot, data, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (slot)
		DO UPDATE SET data = EXCLUDED.data, updated_at = now()
	`, slot, string(data))
	if err != nil {
		return fmt.Errorf("save slot %s: %w", slot, err)
	}
	return nil
}
