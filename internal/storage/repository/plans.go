package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/streamvault/internal/models"
)

// SeedPlans добавляет тарифы только если таблица plans пуста.
// Возвращает true, если тарифы были добавлены.
func (s *Storage) SeedPlans(ctx context.Context, plans ...models.Plan) (bool, error) {
	const op = "storage.SeedPlans"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}

	seeded := false
	err := s.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `LOCK TABLE plans IN SHARE ROW EXCLUSIVE MODE`); err != nil {
			return err
		}
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM plans)`).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return nil
		}
		for _, p := range plans {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO plans (name, price, razorpay_plan_id) VALUES ($1, $2, $3)`,
				p.Name, p.Price, p.RazorpayPlanID)
			if err != nil {
				return err
			}
		}
		seeded = len(plans) > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return seeded, nil
}

// ListPlans возвращает все тарифы по порядку добавления.
func (s *Storage) ListPlans(ctx context.Context) ([]models.Plan, error) {
	const op = "storage.ListPlans"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT id, name, price, razorpay_plan_id FROM plans ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var plans []models.Plan
	for rows.Next() {
		var p models.Plan
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.RazorpayPlanID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return plans, nil
}

// GetPlan возвращает тариф по ID.
func (s *Storage) GetPlan(ctx context.Context, id int64) (*models.Plan, error) {
	const op = "storage.GetPlan"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	var p models.Plan
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, name, price, razorpay_plan_id FROM plans WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Price, &p.RazorpayPlanID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &p, nil
}
