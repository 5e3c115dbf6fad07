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

// MovementQuery filters platform_credit_movements. Zero values mean "no
// filter"; Limit 0 means unbounded.
type MovementQuery struct {
	PlatformID  uuid.UUID
	Kind        string
	ReferenceID *uuid.UUID
	From        *time.Time
	To          *time.Time
	Limit       int
	Offset      int
}

const movementColumns = `id, platform_id, movement_type, amount, previous_balance, new_balance,
	reference_type, reference_id, description, created_by, created_at`

type MovementRepo struct {
	pool *pgxpool.Pool
}

func NewMovementRepo(pool *pgxpool.Pool) *MovementRepo {
	return &MovementRepo{pool: pool}
}

// CreateTx appends a movement inside the given transaction. Movements are
// append-only: there is no update or delete.
func (r *MovementRepo) CreateTx(ctx context.Context, tx pgx.Tx, m *models.CreditMovement) error {
	return tx.QueryRow(ctx, `
		INSERT INTO platform_credit_movements
			(id, platform_id, movement_type, amount, previous_balance, new_balance, reference_type, reference_id, description, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`, m.ID, m.PlatformID, m.MovementType, m.Amount, m.PreviousBalance, m.NewBalance,
		m.ReferenceType, m.ReferenceID, m.Description, m.CreatedBy).Scan(&m.CreatedAt)
}

func movementWhere(q MovementQuery) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if q.PlatformID != uuid.Nil {
		add("platform_id = $%d", q.PlatformID)
	}
	if q.Kind != "" {
		add("movement_type = $%d", q.Kind)
	}
	if q.ReferenceID != nil {
		add("reference_id = $%d", *q.ReferenceID)
	}
	if q.From != nil {
		add("created_at >= $%d", *q.From)
	}
	if q.To != nil {
		add("created_at <= $%d", *q.To)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns matching movements newest first, plus the total match count
// before pagination.
func (r *MovementRepo) List(ctx context.Context, q MovementQuery) ([]*models.CreditMovement, int, error) {
	where, args := movementWhere(q)

	var total int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM platform_credit_movements`+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + movementColumns + ` FROM platform_credit_movements` + where + ` ORDER BY created_at DESC`
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var list []*models.CreditMovement
	for rows.Next() {
		var m models.CreditMovement
		if err := rows.Scan(&m.ID, &m.PlatformID, &m.MovementType, &m.Amount, &m.PreviousBalance, &m.NewBalance,
			&m.ReferenceType, &m.ReferenceID, &m.Description, &m.CreatedBy, &m.CreatedAt); err != nil {
			return nil, 0, err
		}
		list = append(list, &m)
	}
	return list, total, rows.Err()
}
