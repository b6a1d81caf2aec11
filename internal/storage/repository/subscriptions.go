package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/magabrotheeeer/streamvault/internal/models"
)

// ActivateSubscription в одной транзакции сохраняет подписку и выставляет
// пользователю is_subscribed = true. Либо применяются оба изменения, либо ни одно.
// Повторная активация по тому же заказу возвращает ErrAlreadyActivated.
func (s *Storage) ActivateSubscription(ctx context.Context, sub models.Subscription) (int64, error) {
	const op = "storage.ActivateSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}

	var id int64
	err := s.InTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = insertSubscription(ctx, tx, sub)
		if err != nil {
			return err
		}
		return markSubscribed(ctx, tx, sub.UserID)
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

func insertSubscription(ctx context.Context, tx *sql.Tx, sub models.Subscription) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO subscriptions (user_id, plan_id, start_date, end_date, razorpay_subscription_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (razorpay_subscription_id) DO NOTHING
		RETURNING id`,
		sub.UserID, sub.PlanID, sub.StartDate, sub.EndDate, sub.RazorpaySubscriptionID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrAlreadyActivated
	}
	return id, err
}

func markSubscribed(ctx context.Context, tx *sql.Tx, userID int64) error {
	res, err := tx.ExecContext(ctx, `UPDATE users SET is_subscribed = true WHERE id = $1`, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return ErrNotFound
	}
	return nil
}

// GetSubscriptionByOrderID возвращает подписку, оформленную по заказу orderID.
func (s *Storage) GetSubscriptionByOrderID(ctx context.Context, orderID string) (*models.Subscription, error) {
	const op = "storage.GetSubscriptionByOrderID"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	var sub models.Subscription
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, user_id, plan_id, start_date, end_date, razorpay_subscription_id
		FROM subscriptions WHERE razorpay_subscription_id = $1`, orderID).
		Scan(&sub.ID, &sub.UserID, &sub.PlanID, &sub.StartDate, &sub.EndDate, &sub.RazorpaySubscriptionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &sub, nil
}

// ActiveUntil возвращает максимальную дату окончания действующих подписок
// пользователя. Если действующих подписок нет, возвращается ErrNotFound.
func (s *Storage) ActiveUntil(ctx context.Context, userID int64, now time.Time) (time.Time, error) {
	const op = "storage.ActiveUntil"
	if err := checkCtx(ctx, op); err != nil {
		return time.Time{}, err
	}

	var until sql.NullTime
	err := s.DB.QueryRowContext(ctx, `
		SELECT MAX(end_date) FROM subscriptions
		WHERE user_id = $1 AND start_date <= $2 AND end_date > $2`, userID, now).Scan(&until)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}
	if !until.Valid {
		return time.Time{}, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return until.Time, nil
}

// HasActiveSubscription сообщает, есть ли у пользователя подписка,
// действующая в момент now.
func (s *Storage) HasActiveSubscription(ctx context.Context, userID int64, now time.Time) (bool, error) {
	const op = "storage.HasActiveSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}

	var exists bool
	err := s.DB.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM subscriptions
			WHERE user_id = $1 AND start_date <= $2 AND end_date > $2
		)`, userID, now).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// RevokeLapsed снимает is_subscribed у пользователей без подписки,
// действующей после now, и возвращает их ID.
// Кандидаты сначала блокируются FOR UPDATE, затем отсутствие подписки
// проверяется повторно в новом снимке: продление, закоммиченное пока
// строка была заблокирована, флаг не снимает.
func (s *Storage) RevokeLapsed(ctx context.Context, now time.Time) ([]int64, error) {
	const op = "storage.RevokeLapsed"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	var ids []int64
	err := s.InTx(ctx, func(tx *sql.Tx) error {
		candidates, err := queryIDs(ctx, tx, `
			SELECT u.id FROM users u
			WHERE u.is_subscribed
			  AND NOT EXISTS (
				SELECT 1 FROM subscriptions s
				WHERE s.user_id = u.id AND s.end_date > $1
			  )
			ORDER BY u.id
			FOR UPDATE`, now)
		if err != nil || len(candidates) == 0 {
			return err
		}

		ids, err = queryIDs(ctx, tx, `
			UPDATE users u SET is_subscribed = false
			WHERE u.id = ANY($2)
			  AND u.is_subscribed
			  AND NOT EXISTS (
				SELECT 1 FROM subscriptions s
				WHERE s.user_id = u.id AND s.end_date > $1
			  )
			RETURNING u.id`, now, candidates)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	slices.Sort(ids)
	return ids, nil
}

func queryIDs(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
