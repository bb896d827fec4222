package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stackbound/identity-api/internal/domain/entity"
	"github.com/stackbound/identity-api/internal/domain/repository"
)

// IdentityRepository is the Postgres-backed store. Uniqueness and atomic
// mutation are delegated to the database: a unique index on lower(email)
// makes conflicting concurrent creates fail with 23505 instead of racing.
type IdentityRepository struct {
	pool *pgxpool.Pool
}

func NewIdentityRepository(pool *pgxpool.Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

// Init verifies the database is reachable. Schema is managed by migrations
// at startup.
func (r *IdentityRepository) Init(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: ping: %v", repository.ErrUnavailable, err)
	}
	return nil
}

func (r *IdentityRepository) GetByEmail(ctx context.Context, email string) (*entity.Identity, error) {
	return r.getBy(ctx, `
		SELECT id, email, password_hash, name, created_at, updated_at
		FROM identities
		WHERE lower(email) = $1
	`, entity.NormalizeEmail(email))
}

func (r *IdentityRepository) GetByID(ctx context.Context, id string) (*entity.Identity, error) {
	return r.getBy(ctx, `
		SELECT id, email, password_hash, name, created_at, updated_at
		FROM identities
		WHERE id = $1
	`, id)
}

func (r *IdentityRepository) getBy(ctx context.Context, query string, arg any) (*entity.Identity, error) {
	rec := &entity.Identity{}
	row := r.pool.QueryRow(ctx, query, arg)
	if err := row.Scan(&rec.ID, &rec.Email, &rec.PasswordHash, &rec.Name,
		&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", repository.ErrUnavailable, err)
	}
	return rec, nil
}

func (r *IdentityRepository) Create(ctx context.Context, cand entity.Identity) (*entity.Identity, error) {
	cand.ID = uuid.NewString()
	cand.Email = entity.NormalizeEmail(cand.Email)

	row := r.pool.QueryRow(ctx, `
		INSERT INTO identities (id, email, password_hash, name)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, cand.ID, cand.Email, cand.PasswordHash, cand.Name)

	if err := row.Scan(&cand.CreatedAt, &cand.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, repository.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("%w: %v", repository.ErrUnavailable, err)
	}
	return &cand, nil
}

func (r *IdentityRepository) Update(ctx context.Context, id string, fields entity.ProfileUpdate) (*entity.Identity, error) {
	rec := &entity.Identity{}
	row := r.pool.QueryRow(ctx, `
		UPDATE identities
		SET name = COALESCE($2, name), updated_at = now()
		WHERE id = $1
		RETURNING id, email, password_hash, name, created_at, updated_at
	`, id, fields.Name)

	if err := row.Scan(&rec.ID, &rec.Email, &rec.PasswordHash, &rec.Name,
		&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", repository.ErrUnavailable, err)
	}
	return rec, nil
}

var _ repository.IdentityRepository = (*IdentityRepository)(nil)
