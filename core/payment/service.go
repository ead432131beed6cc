package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tutorias/core"
	"github.com/trezcool/tutorias/core/enrollment"
	"github.com/trezcool/tutorias/core/tutoring"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("payment")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		enrollment.Repository

		GetPayment(ctx context.Context, code string) (Payment, error)
		QueryPayments(ctx context.Context, filter QueryFilter) ([]Payment, error)
		CreatePayment(ctx context.Context, p Payment) (Payment, error)
		UpdatePayment(ctx context.Context, p Payment) (Payment, error)
		// ExpirePayments marks every pending payment due before now as expired.
		ExpirePayments(ctx context.Context, now time.Time) (int, error)
	}

	Store interface {
		Repository

		Atomic(ctx context.Context, keys []core.LockKey, fn func(repo Repository) error) error
	}

	// Activator turns a paid enrollment active.
	Activator interface {
		ActivateByPayment(ctx context.Context, enrollmentID int, transactionCode string) (enrollment.Enrollment, error)
	}

	Service struct {
		store     Store
		activator Activator
		expiry    time.Duration
		delay     time.Duration
		logger    core.Logger
	}
)

func NewService(store Store, activator Activator, conf *core.Config, logger core.Logger) *Service {
	expiry := conf.Payment.Expiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	return &Service{
		store:     store,
		activator: activator,
		expiry:    expiry,
		delay:     conf.Payment.SimulatedDelay,
		logger:    logger,
	}
}

// Generate creates a pending payment for the price of the enrollment's tutoring session.
func (svc *Service) Generate(ctx context.Context, actor core.Actor, enrollmentID int) (Payment, error) {
	seen, err := svc.store.GetEnrollment(ctx, enrollmentID)
	if err != nil {
		return Payment{}, err
	}

	var created Payment
	err = svc.store.Atomic(ctx, []core.LockKey{core.SessionKey(seen.SessionID)}, func(repo Repository) error {
		e, err := repo.GetEnrollment(ctx, enrollmentID)
		if err != nil {
			return err
		}
		if !e.Active {
			return enrollment.ErrNotFound
		}
		if state := e.State(); state == enrollment.StateCancelled || state == enrollment.StateRejected || state == enrollment.StateActive {
			return core.NewInvalidStateError("generate payment", string(state))
		}

		if actor.IsStudent() {
			std, err := tutoring.ResolveStudent(ctx, repo, actor)
			if err != nil {
				return err
			}
			if std.ID != e.StudentID {
				return core.NewPermissionError("students may only pay for their own enrollments")
			}
		} else if !actor.IsAdmin() {
			return core.NewPermissionError("only students and admins may generate payments")
		}

		now := nowFunc().UTC()
		payments, err := repo.QueryPayments(ctx, QueryFilter{EnrollmentID: e.ID})
		if err != nil {
			return errors.Wrap(err, "querying payments")
		}
		for _, p := range payments {
			if p.Live(now) {
				return core.NewDuplicateError(fmt.Sprintf("enrollment %d already has payment %s", e.ID, p.TransactionCode))
			}
		}

		sess, err := repo.GetSession(ctx, e.SessionID)
		if err != nil {
			return err
		}
		created, err = repo.CreatePayment(ctx, Payment{
			EnrollmentID:    e.ID,
			Amount:          sess.Price,
			Status:          StatusPending,
			TransactionCode: newTransactionCode(),
			ExpiresAt:       now.Add(svc.expiry),
			CreatedAt:       now,
		})
		return err
	})
	if err != nil {
		return Payment{}, err
	}

	svc.logger.Info(fmt.Sprintf("payment %s generated for enrollment %d", created.TransactionCode, created.EnrollmentID), actor)
	return created, nil
}

func (svc *Service) Get(ctx context.Context, code string) (Payment, error) {
	return svc.store.GetPayment(ctx, core.CleanString(code))
}

// wait simulates the latency of the payment provider.
func (svc *Service) wait(ctx context.Context) error {
	if svc.delay <= 0 {
		return nil
	}
	timer := time.NewTimer(svc.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Complete marks a pending payment as paid, then activates its enrollment.
// Both steps commit separately: when activation fails the payment stays completed
// and the activation error is returned along with it.
func (svc *Service) Complete(ctx context.Context, code string) (Payment, enrollment.Enrollment, error) {
	code = core.CleanString(code)
	if err := svc.wait(ctx); err != nil {
		return Payment{}, enrollment.Enrollment{}, errors.Wrap(err, "waiting for payment provider")
	}

	seen, err := svc.store.GetPayment(ctx, code)
	if err != nil {
		return Payment{}, enrollment.Enrollment{}, err
	}
	e, err := svc.store.GetEnrollment(ctx, seen.EnrollmentID)
	if err != nil {
		return Payment{}, enrollment.Enrollment{}, err
	}

	var paid Payment
	err = svc.store.Atomic(ctx, []core.LockKey{core.SessionKey(e.SessionID)}, func(repo Repository) error {
		p, err := repo.GetPayment(ctx, code)
		if err != nil {
			return err
		}
		now := nowFunc().UTC()
		switch {
		case p.Status == StatusCompleted:
			return core.NewInvalidStateError("complete payment", string(StatusCompleted))
		case p.Expired(now):
			return core.NewInvalidStateError("complete payment", string(StatusExpired))
		}

		current, err := repo.GetEnrollment(ctx, p.EnrollmentID)
		if err != nil {
			return err
		}
		if state := current.State(); state == enrollment.StateCancelled || state == enrollment.StateRejected {
			return core.NewInvalidStateError("complete payment", string(state))
		}

		done, err := repo.HasCompletedPayment(ctx, p.EnrollmentID)
		if err != nil {
			return errors.Wrap(err, "checking payment")
		}
		if done {
			return core.NewConflictError(core.ConflictPayment, fmt.Sprintf("enrollment %d is already paid", p.EnrollmentID))
		}

		p.Status = StatusCompleted
		p.PaidAt = &now
		paid, err = repo.UpdatePayment(ctx, p)
		return err
	})
	if err != nil {
		return Payment{}, enrollment.Enrollment{}, err
	}
	svc.logger.Info(fmt.Sprintf("payment %s completed", paid.TransactionCode), core.SystemActor)

	activated, err := svc.activator.ActivateByPayment(ctx, paid.EnrollmentID, paid.TransactionCode)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("payment %s completed but enrollment %d was not activated: %v", paid.TransactionCode, paid.EnrollmentID, err), err)
		return paid, enrollment.Enrollment{}, err
	}
	return paid, activated, nil
}

// ExpireStale marks overdue pending payments as expired and returns how many were.
func (svc *Service) ExpireStale(ctx context.Context) (int, error) {
	n, err := svc.store.ExpirePayments(ctx, nowFunc().UTC())
	if err != nil {
		return 0, errors.Wrap(err, "expiring payments")
	}
	if n > 0 {
		svc.logger.Info(fmt.Sprintf("%d stale payment(s) expired", n), core.SystemActor)
	}
	return n, nil
}
