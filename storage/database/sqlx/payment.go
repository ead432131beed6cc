package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tutorias/core/payment"
)

var _ payment.Repository = (*repo)(nil) // interface compliance check

var paymentColumns = []string{"id", "enrollment_id", "amount", "status", "transaction_code", "expires_at", "paid_at", "created_at"}

type paymentRow struct {
	ID              int       `db:"id"`
	EnrollmentID    int       `db:"enrollment_id"`
	Amount          int64     `db:"amount"`
	Status          string    `db:"status"`
	TransactionCode string    `db:"transaction_code"`
	ExpiresAt       time.Time `db:"expires_at"`
	PaidAt          null.Time `db:"paid_at"`
	CreatedAt       time.Time `db:"created_at"`
}

func (row paymentRow) payment() payment.Payment {
	return payment.Payment{
		ID:              row.ID,
		EnrollmentID:    row.EnrollmentID,
		Amount:          row.Amount,
		Status:          payment.Status(row.Status),
		TransactionCode: row.TransactionCode,
		ExpiresAt:       row.ExpiresAt,
		PaidAt:          row.PaidAt.Ptr(),
		CreatedAt:       row.CreatedAt,
	}
}

func (r *repo) GetPayment(ctx context.Context, code string) (payment.Payment, error) {
	var row paymentRow
	b := psql.Select(paymentColumns...).From("payment").Where(sq.Eq{"transaction_code": code})
	if err := r.get(ctx, &row, b, payment.ErrNotFound, "getting payment"); err != nil {
		return payment.Payment{}, err
	}
	return row.payment(), nil
}

func (r *repo) QueryPayments(ctx context.Context, filter payment.QueryFilter) ([]payment.Payment, error) {
	b := psql.Select(paymentColumns...).From("payment").OrderBy("id")
	if filter.EnrollmentID != 0 {
		b = b.Where(sq.Eq{"enrollment_id": filter.EnrollmentID})
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		b = b.Where(sq.Eq{"status": statuses})
	}

	var rows []paymentRow
	if err := r.selectRows(ctx, &rows, b, "querying payments"); err != nil {
		return nil, err
	}
	payments := make([]payment.Payment, 0, len(rows))
	for _, row := range rows {
		payments = append(payments, row.payment())
	}
	return payments, nil
}

func (r *repo) CreatePayment(ctx context.Context, p payment.Payment) (payment.Payment, error) {
	b := psql.Insert("payment").Columns(paymentColumns[1:]...).
		Values(p.EnrollmentID, p.Amount, string(p.Status), p.TransactionCode, p.ExpiresAt.UTC(), null.TimeFromPtr(p.PaidAt), p.CreatedAt.UTC()).
		Suffix("RETURNING id")
	if err := r.get(ctx, &p.ID, b, nil, "inserting payment"); err != nil {
		return payment.Payment{}, err
	}
	return p, nil
}

func (r *repo) UpdatePayment(ctx context.Context, p payment.Payment) (payment.Payment, error) {
	b := psql.Update("payment").
		Set("status", string(p.Status)).
		Set("paid_at", null.TimeFromPtr(p.PaidAt)).
		Where(sq.Eq{"transaction_code": p.TransactionCode})

	n, err := r.execute(ctx, b, "updating payment")
	if err != nil {
		return payment.Payment{}, err
	}
	if n == 0 {
		return payment.Payment{}, payment.ErrNotFound
	}
	return p, nil
}

func (r *repo) ExpirePayments(ctx context.Context, now time.Time) (int, error) {
	b := psql.Update("payment").
		Set("status", string(payment.StatusExpired)).
		Where(sq.Eq{"status": string(payment.StatusPending)}).
		Where(sq.LtOrEq{"expires_at": now.UTC()})

	n, err := r.execute(ctx, b, "expiring payments")
	return int(n), err
}
