package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/resellhub/backend/internal/models"
)

type ProductRepo struct {
	pool *pgxpool.Pool
}

func NewProductRepo(pool *pgxpool.Pool) *ProductRepo {
	return &ProductRepo{pool: pool}
}

func (r *ProductRepo) Create(ctx context.Context, p *models.DigitalProduct) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO digital_products (id, name, category, selling_price, is_recurring, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, p.ID, p.Name, p.Category, p.SellingPrice, p.IsRecurring, p.IsActive).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *ProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.DigitalProduct, error) {
	var p models.DigitalProduct
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, category, selling_price, is_recurring, is_active, created_at, updated_at
		FROM digital_products WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Category, &p.SellingPrice, &p.IsRecurring, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
