package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lukasbauer/sahayak/internal/dialogue"
)

// PostgresStore keeps sessions in the conversation_sessions table.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a store on an existing pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Load(ctx context.Context, id string) (dialogue.State, bool, error) {
	var data []byte
	err := s.db.QueryRow(ctx, `
		SELECT state FROM conversation_sessions WHERE id=$1
	`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return dialogue.State{}, false, nil
	}
	if err != nil {
		return dialogue.State{}, false, fmt.Errorf("load session: %w", err)
	}
	state, err := decode(data)
	if err != nil {
		return dialogue.State{}, false, err
	}
	return state, true, nil
}

func (s *PostgresStore) Save(ctx context.Context, id string, state dialogue.State) error {
	data, err := encode(state)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO conversation_sessions (id, stage, state, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			stage = EXCLUDED.stage,
			state = EXCLUDED.state,
			updated_at = NOW()
	`, id, string(state.Stage), data)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM conversation_sessions WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
