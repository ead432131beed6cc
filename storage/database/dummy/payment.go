package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/tutorias/core/payment"
)

var _ payment.Repository = (*repo)(nil) // interface compliance check

func (r *repo) GetPayment(_ context.Context, code string) (payment.Payment, error) {
	if p, ok := r.payments.get(code); ok {
		return p, nil
	}
	return payment.Payment{}, payment.ErrNotFound
}

func (r *repo) QueryPayments(_ context.Context, filter payment.QueryFilter) ([]payment.Payment, error) {
	payments := make([]payment.Payment, 0)
	for _, p := range r.payments.list() {
		if filter.Matches(p) {
			payments = append(payments, p)
		}
	}
	sort.Slice(payments, func(i, j int) bool { return payments[i].ID < payments[j].ID })
	return payments, nil
}

func (r *repo) CreatePayment(_ context.Context, p payment.Payment) (payment.Payment, error) {
	p.ID = r.db.nextID("payment")
	r.payments.put(p.TransactionCode, p)
	return p, nil
}

func (r *repo) UpdatePayment(_ context.Context, p payment.Payment) (payment.Payment, error) {
	if _, ok := r.payments.get(p.TransactionCode); !ok {
		return payment.Payment{}, payment.ErrNotFound
	}
	r.payments.put(p.TransactionCode, p)
	return p, nil
}

func (r *repo) ExpirePayments(_ context.Context, now time.Time) (int, error) {
	n := 0
	for _, p := range r.payments.list() {
		if p.Status == payment.StatusPending && !now.Before(p.ExpiresAt) {
			p.Status = payment.StatusExpired
			r.payments.put(p.TransactionCode, p)
			n++
		}
	}
	return n, nil
}
