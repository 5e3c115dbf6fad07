package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/resellhub/backend/internal/models"
)

const platformColumns = `id, name, contact_name, contact_email, contact_phone, metadata,
	credit_balance, low_balance_threshold, is_active, created_at, updated_at`

type PlatformRepo struct {
	pool *pgxpool.Pool
}

func NewPlatformRepo(pool *pgxpool.Pool) *PlatformRepo {
	return &PlatformRepo{pool: pool}
}

func scanPlatform(row pgx.Row) (*models.Platform, error) {
	var p models.Platform
	err := row.Scan(&p.ID, &p.Name, &p.ContactName, &p.ContactEmail, &p.ContactPhone, &p.Metadata,
		&p.CreditBalance, &p.LowBalanceThreshold, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PlatformRepo) Create(ctx context.Context, p *models.Platform) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO platforms (id, name, contact_name, contact_email, contact_phone, metadata, credit_balance, low_balance_threshold, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, p.ID, p.Name, p.ContactName, p.ContactEmail, p.ContactPhone, p.Metadata,
		p.CreditBalance, p.LowBalanceThreshold, p.IsActive).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *PlatformRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Platform, error) {
	return scanPlatform(r.pool.QueryRow(ctx, `
		SELECT `+platformColumns+` FROM platforms WHERE id = $1
	`, id))
}

// List returns platforms newest first. With activeOnly it skips deactivated ones.
func (r *PlatformRepo) List(ctx context.Context, activeOnly bool) ([]*models.Platform, error) {
	query := `SELECT ` + platformColumns + ` FROM platforms`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Platform
	for rows.Next() {
		p, err := scanPlatform(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// SetActive flips the soft-deactivation flag. Platforms with movements are
// never hard-deleted.
func (r *PlatformRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE platforms SET is_active = $2, updated_at = now() WHERE id = $1
	`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// GetByIDForUpdate locks the platform row for update. Call within a transaction.
func (r *PlatformRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Platform, error) {
	return scanPlatform(tx.QueryRow(ctx, `
		SELECT `+platformColumns+` FROM platforms WHERE id = $1 FOR UPDATE
	`, id))
}

// UpdateBalanceTx sets the platform's credit_balance. Call after
// GetByIDForUpdate in the same tx; the ledger service is the only caller.
func (r *PlatformRepo) UpdateBalanceTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, balance decimal.Decimal) error {
	_, err := tx.Exec(ctx, `
		UPDATE platforms SET credit_balance = $2, updated_at = now() WHERE id = $1
	`, id, balance)
	return err
}

// ListLowBalance returns active platforms at or below their own threshold,
// lowest balance first.
func (r *PlatformRepo) ListLowBalance(ctx context.Context) ([]*models.Platform, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+platformColumns+` FROM platforms
		WHERE is_active AND credit_balance <= low_balance_threshold
		ORDER BY credit_balance ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Platform
	for rows.Next() {
		p, err := scanPlatform(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}
