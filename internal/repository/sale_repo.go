package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/resellhub/backend/internal/models"
)

// SaleQuery filters stock_sales for the reporting engine. Nil/empty fields
// mean "no filter".
type SaleQuery struct {
	PlatformID  *uuid.UUID
	ProductID   *uuid.UUID
	Category    string
	PaymentType string
	From        *time.Time
	To          *time.Time
}

type SaleRepo struct {
	pool *pgxpool.Pool
}

func NewSaleRepo(pool *pgxpool.Pool) *SaleRepo {
	return &SaleRepo{pool: pool}
}

// CreateTx inserts a sale inside the given transaction, so callers can couple
// it atomically with the platform credit deduction it triggers.
func (r *SaleRepo) CreateTx(ctx context.Context, tx pgx.Tx, s *models.Sale) error {
	return tx.QueryRow(ctx, `
		INSERT INTO stock_sales
			(id, product_id, platform_id, quantity, unit_price, total_price, platform_buying_price, profit, payment_type, status, is_recurring, sale_date, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at
	`, s.ID, s.ProductID, s.PlatformID, s.Quantity, s.UnitPrice, s.TotalPrice,
		s.PlatformBuyingPrice, s.Profit, s.PaymentType, s.Status, s.IsRecurring, s.SaleDate, s.CreatedBy).Scan(&s.CreatedAt)
}

func (r *SaleRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Sale, error) {
	var s models.Sale
	err := r.pool.QueryRow(ctx, `
		SELECT id, product_id, platform_id, quantity, unit_price, total_price, platform_buying_price, profit, payment_type, status, is_recurring, sale_date, created_by, created_at
		FROM stock_sales WHERE id = $1
	`, id).Scan(&s.ID, &s.ProductID, &s.PlatformID, &s.Quantity, &s.UnitPrice, &s.TotalPrice,
		&s.PlatformBuyingPrice, &s.Profit, &s.PaymentType, &s.Status, &s.IsRecurring, &s.SaleDate, &s.CreatedBy, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns matching sales joined with product and platform names, oldest
// first so date aggregates see them in order.
func (r *SaleRepo) List(ctx context.Context, q SaleQuery) ([]*models.SaleDetail, error) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if q.PlatformID != nil {
		add("s.platform_id = $%d", *q.PlatformID)
	}
	if q.ProductID != nil {
		add("s.product_id = $%d", *q.ProductID)
	}
	if q.Category != "" {
		add("dp.category = $%d", q.Category)
	}
	if q.PaymentType != "" {
		add("s.payment_type = $%d", q.PaymentType)
	}
	if q.From != nil {
		add("s.sale_date >= $%d", *q.From)
	}
	if q.To != nil {
		add("s.sale_date <= $%d", *q.To)
	}

	query := `
		SELECT s.id, s.product_id, s.platform_id, s.quantity, s.unit_price, s.total_price,
			s.platform_buying_price, s.profit, s.payment_type, s.status, s.is_recurring,
			s.sale_date, s.created_by, s.created_at,
			coalesce(dp.name, ''), coalesce(dp.category, ''), coalesce(p.name, '')
		FROM stock_sales s
		LEFT JOIN digital_products dp ON dp.id = s.product_id
		LEFT JOIN platforms p ON p.id = s.platform_id`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY s.sale_date ASC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSaleDetails(rows)
}

func scanSaleDetails(rows pgx.Rows) ([]*models.SaleDetail, error) {
	var list []*models.SaleDetail
	for rows.Next() {
		var d models.SaleDetail
		if err := rows.Scan(&d.ID, &d.ProductID, &d.PlatformID, &d.Quantity, &d.UnitPrice, &d.TotalPrice,
			&d.PlatformBuyingPrice, &d.Profit, &d.PaymentType, &d.Status, &d.IsRecurring,
			&d.SaleDate, &d.CreatedBy, &d.CreatedAt,
			&d.ProductName, &d.ProductCategory, &d.PlatformName); err != nil {
			return nil, err
		}
		list = append(list, &d)
	}
	return list, rows.Err()
}
