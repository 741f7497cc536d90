package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Crosspost/internal/domain"
)

// PlatformRepo — репозиторий платформ.
type PlatformRepo struct {
	pool *pgxpool.Pool
}

// NewPlatformRepo создаёт новый PlatformRepo.
func NewPlatformRepo(pool *pgxpool.Pool) *PlatformRepo {
	return &PlatformRepo{pool: pool}
}

const platformColumns = `id, name, type, character_limit, is_active, created_at, updated_at`

// List возвращает все платформы.
func (r *PlatformRepo) List(ctx context.Context) ([]domain.Platform, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+platformColumns+` FROM platforms ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list platforms: %w", err)
	}
	defer rows.Close()

	var platforms []domain.Platform
	for rows.Next() {
		p, err := scanPlatform(rows)
		if err != nil {
			return nil, err
		}
		platforms = append(platforms, *p)
	}
	return platforms, rows.Err()
}

// GetByID возвращает платформу по ID.
func (r *PlatformRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Platform, error) {
	return scanPlatform(r.pool.QueryRow(ctx, `SELECT `+platformColumns+` FROM platforms WHERE id = $1`, id))
}

// GetByType возвращает платформу по типу.
func (r *PlatformRepo) GetByType(ctx context.Context, t domain.PlatformType) (*domain.Platform, error) {
	return scanPlatform(r.pool.QueryRow(ctx, `SELECT `+platformColumns+` FROM platforms WHERE type = $1`, t))
}

// Upsert создаёт платформу или обновляет существующую с тем же типом.
// ID существующей записи сохраняется и возвращается в p.ID.
func (r *PlatformRepo) Upsert(ctx context.Context, p *domain.Platform) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()

	query := `
		INSERT INTO platforms (` + platformColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (type) DO UPDATE
		SET name = EXCLUDED.name,
		    character_limit = EXCLUDED.character_limit,
		    is_active = EXCLUDED.is_active,
		    updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		p.ID,
		p.Name,
		p.Type,
		p.CharacterLimit,
		p.IsActive,
		now,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert platform: %w", err)
	}
	return nil
}

func scanPlatform(row pgx.Row) (*domain.Platform, error) {
	var p domain.Platform
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Type,
		&p.CharacterLimit,
		&p.IsActive,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	switch err = noRows(err); {
	case errors.Is(err, ErrNotFound):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("scan platform: %w", err)
	}
	return &p, nil
}
