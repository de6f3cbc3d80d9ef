package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emberhold/encounter/internal/game/character"
)

// ErrCharacterNotFound is returned when a character lookup yields no results.
var ErrCharacterNotFound = errors.New("character not found")

// CharacterRepository reads and writes the character record slice the engine
// consumes: combat stats and health.
type CharacterRepository struct {
	db *pgxpool.Pool
}

// NewCharacterRepository creates a CharacterRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewCharacterRepository(db *pgxpool.Pool) *CharacterRepository {
	return &CharacterRepository{db: db}
}

// FindByID retrieves a character by its identifier.
//
// Postcondition: Returns the Character or ErrCharacterNotFound.
func (r *CharacterRepository) FindByID(ctx context.Context, id string) (*character.Character, error) {
	var c character.Character
	err := r.db.QueryRow(ctx, `
		SELECT id, name, level, combat_stat, defense, current_hp, max_hp
		FROM characters WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Name, &c.Level, &c.CombatStat, &c.Defense, &c.CurrentHP, &c.MaxHP)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCharacterNotFound
		}
		return nil, fmt.Errorf("finding character: %w", err)
	}
	return &c, nil
}

// UpdateHealth writes the character's current health back after a turn.
//
// Precondition: currentHP must already be clamped to [0, max_hp].
// Postcondition: Returns nil, or ErrCharacterNotFound when no row matched.
func (r *CharacterRepository) UpdateHealth(ctx context.Context, id string, currentHP int) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE characters SET current_hp = $2, updated_at = now() WHERE id = $1`,
		id, currentHP,
	)
	if err != nil {
		return fmt.Errorf("updating character health: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCharacterNotFound
	}
	return nil
}

// Create inserts a new character record and returns it. Used by tests and
// seeding; character creation proper belongs to the account service.
func (r *CharacterRepository) Create(ctx context.Context, c *character.Character) (*character.Character, error) {
	var out character.Character
	err := r.db.QueryRow(ctx, `
		INSERT INTO characters (id, name, level, combat_stat, defense, current_hp, max_hp)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id, name, level, combat_stat, defense, current_hp, max_hp`,
		c.ID, c.Name, c.Level, c.CombatStat, c.Defense, c.CurrentHP, c.MaxHP,
	).Scan(&out.ID, &out.Name, &out.Level, &out.CombatStat, &out.Defense, &out.CurrentHP, &out.MaxHP)
	if err != nil {
		return nil, fmt.Errorf("inserting character: %w", err)
	}
	return &out, nil
}
