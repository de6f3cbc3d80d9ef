package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emberhold/encounter/internal/game/encounter"
)

// SessionRepository is the durable encounter.Store used when the game server
// runs as more than one process. Combat state (combatants, cooldowns, minions,
// used-ability log) lives in JSONB columns; the update is conditional on the
// stored turn counter so concurrent turns can never both commit.
type SessionRepository struct {
	db  *pgxpool.Pool
	ttl time.Duration
}

// NewSessionRepository creates a SessionRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool; ttl > 0.
func NewSessionRepository(db *pgxpool.Pool, ttl time.Duration) *SessionRepository {
	return &SessionRepository{db: db, ttl: ttl}
}

// sessionColumns groups the JSONB payloads marshalled per write.
type sessionColumns struct {
	usedAbilities []byte
	cooldowns     []byte
	minions       []byte
	player        []byte
	boss          []byte
}

func marshalSession(sess *encounter.Session) (sessionColumns, error) {
	var cols sessionColumns
	var err error
	if cols.usedAbilities, err = json.Marshal(sess.UsedAbilities); err != nil {
		return cols, fmt.Errorf("marshalling used abilities: %w", err)
	}
	if cols.cooldowns, err = json.Marshal(sess.Cooldowns); err != nil {
		return cols, fmt.Errorf("marshalling cooldowns: %w", err)
	}
	if cols.minions, err = json.Marshal(sess.Minions); err != nil {
		return cols, fmt.Errorf("marshalling minions: %w", err)
	}
	if cols.player, err = json.Marshal(sess.Player); err != nil {
		return cols, fmt.Errorf("marshalling player state: %w", err)
	}
	if cols.boss, err = json.Marshal(sess.Boss); err != nil {
		return cols, fmt.Errorf("marshalling boss state: %w", err)
	}
	return cols, nil
}

func scanSession(row pgx.Row) (*encounter.Session, error) {
	var sess encounter.Session
	var cols sessionColumns
	err := row.Scan(
		&sess.ID, &sess.CharacterID, &sess.BossID,
		&sess.PhaseNumber, &sess.Turn, &sess.TotalDamageDealt,
		&cols.usedAbilities, &cols.cooldowns, &cols.minions,
		&cols.player, &cols.boss,
		&sess.CreatedAt, &sess.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(cols.usedAbilities, &sess.UsedAbilities); err != nil {
		return nil, fmt.Errorf("unmarshalling used abilities: %w", err)
	}
	if err := json.Unmarshal(cols.cooldowns, &sess.Cooldowns); err != nil {
		return nil, fmt.Errorf("unmarshalling cooldowns: %w", err)
	}
	if err := json.Unmarshal(cols.minions, &sess.Minions); err != nil {
		return nil, fmt.Errorf("unmarshalling minions: %w", err)
	}
	if err := json.Unmarshal(cols.player, &sess.Player); err != nil {
		return nil, fmt.Errorf("unmarshalling player state: %w", err)
	}
	if err := json.Unmarshal(cols.boss, &sess.Boss); err != nil {
		return nil, fmt.Errorf("unmarshalling boss state: %w", err)
	}
	if sess.Cooldowns == nil {
		sess.Cooldowns = make(map[string]int)
	}
	return &sess, nil
}

// Create inserts a new combat session with a fresh expiry.
//
// Postcondition: Returns nil, or ErrSessionExists on an id collision.
func (r *SessionRepository) Create(ctx context.Context, sess *encounter.Session) error {
	cols, err := marshalSession(sess)
	if err != nil {
		return err
	}
	expiresAt := time.Now().Add(r.ttl)
	_, err = r.db.Exec(ctx, `
		INSERT INTO combat_sessions
			(id, character_id, boss_id, phase_number, turn, total_damage_dealt,
			 used_abilities, cooldowns, minions, player, boss, created_at, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		sess.ID, sess.CharacterID, sess.BossID,
		sess.PhaseNumber, sess.Turn, sess.TotalDamageDealt,
		cols.usedAbilities, cols.cooldowns, cols.minions, cols.player, cols.boss,
		sess.CreatedAt, expiresAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return encounter.ErrSessionExists
		}
		return fmt.Errorf("inserting combat session: %w", err)
	}
	sess.ExpiresAt = expiresAt
	return nil
}

// FindByID retrieves a session by id. Sessions past their expiry are treated
// as absent; Sweep reclaims the rows.
//
// Postcondition: Returns the session or encounter.ErrSessionNotFound.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*encounter.Session, error) {
	sess, err := scanSession(r.db.QueryRow(ctx, `
		SELECT id, character_id, boss_id, phase_number, turn, total_damage_dealt,
		       used_abilities, cooldowns, minions, player, boss, created_at, expires_at
		FROM combat_sessions
		WHERE id = $1 AND expires_at > now()`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, encounter.ErrSessionNotFound
		}
		return nil, fmt.Errorf("finding combat session: %w", err)
	}
	return sess, nil
}

// Update replaces the stored record iff its turn counter equals expectedTurn,
// pushing the expiry forward. The WHERE clause carries the optimistic check,
// so two concurrent turns can never both commit.
//
// Postcondition: Returns nil on commit, encounter.ErrStaleSession on a turn
// mismatch, or encounter.ErrSessionNotFound when the row is gone or expired.
func (r *SessionRepository) Update(ctx context.Context, sess *encounter.Session, expectedTurn int) error {
	cols, err := marshalSession(sess)
	if err != nil {
		return err
	}
	expiresAt := time.Now().Add(r.ttl)
	tag, err := r.db.Exec(ctx, `
		UPDATE combat_sessions
		SET phase_number = $2, turn = $3, total_damage_dealt = $4,
		    used_abilities = $5, cooldowns = $6, minions = $7,
		    player = $8, boss = $9, expires_at = $10
		WHERE id = $1 AND turn = $11 AND expires_at > now()`,
		sess.ID,
		sess.PhaseNumber, sess.Turn, sess.TotalDamageDealt,
		cols.usedAbilities, cols.cooldowns, cols.minions, cols.player, cols.boss,
		expiresAt, expectedTurn,
	)
	if err != nil {
		return fmt.Errorf("updating combat session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		err := r.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM combat_sessions WHERE id = $1 AND expires_at > now())`,
			sess.ID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("checking combat session: %w", err)
		}
		if exists {
			return encounter.ErrStaleSession
		}
		return encounter.ErrSessionNotFound
	}
	sess.ExpiresAt = expiresAt
	return nil
}

// Delete removes the session iff its turn counter equals expectedTurn. The
// WHERE clause carries the same optimistic check as Update, so a terminal
// turn that lost the race cannot close the session a second time.
//
// Postcondition: Returns nil on removal, encounter.ErrStaleSession on a turn
// mismatch, or encounter.ErrSessionNotFound when the row is gone or expired.
func (r *SessionRepository) Delete(ctx context.Context, id string, expectedTurn int) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM combat_sessions WHERE id = $1 AND turn = $2 AND expires_at > now()`,
		id, expectedTurn,
	)
	if err != nil {
		return fmt.Errorf("deleting combat session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		err := r.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM combat_sessions WHERE id = $1 AND expires_at > now())`,
			id,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("checking combat session: %w", err)
		}
		if exists {
			return encounter.ErrStaleSession
		}
		return encounter.ErrSessionNotFound
	}
	return nil
}

// Sweep deletes every expired session row and returns how many were reclaimed.
func (r *SessionRepository) Sweep(ctx context.Context) (int, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM combat_sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("sweeping combat sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
