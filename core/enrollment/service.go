package enrollment

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tutorias/core"
	"github.com/trezcool/tutorias/core/tutoring"
)

const DefaultRejectReason = "rejected by the tutoring session owner"

var (
	// errors
	ErrNotFound = core.NewNotFoundError("enrollment")

	nowFunc = time.Now // mockable
)

type (
	// Repository reads and writes enrollments. GetEnrollment returns soft-deleted rows too.
	Repository interface {
		tutoring.Repository

		GetEnrollment(ctx context.Context, id int) (Enrollment, error)
		QueryEnrollments(ctx context.Context, filter QueryFilter) ([]Enrollment, error)
		CountSeats(ctx context.Context, sessionID int, seats SeatPredicate) (int, error)
		CreateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
		UpdateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
		HasCompletedPayment(ctx context.Context, enrollmentID int) (bool, error)
		UpdateSessionCapacity(ctx context.Context, sessionID, capacity int) (tutoring.Session, error)
	}

	// Store runs fn as one all-or-nothing unit while holding every key.
	Store interface {
		Repository

		Atomic(ctx context.Context, keys []core.LockKey, fn func(repo Repository) error) error
	}

	Service struct {
		store   Store
		mailSvc core.EmailService
		logger  core.Logger
	}
)

func NewService(store Store, mailSvc core.EmailService, logger core.Logger) *Service {
	return &Service{store: store, mailSvc: mailSvc, logger: logger}
}

// checkSeats fails with a CapacityExceededError when no seat is left under seats.
func checkSeats(ctx context.Context, repo Repository, sess tutoring.Session, seats SeatPredicate) error {
	occupied, err := repo.CountSeats(ctx, sess.ID, seats)
	if err != nil {
		return errors.Wrap(err, "counting seats")
	}
	if sess.Capacity-occupied <= 0 {
		return core.NewCapacityExceededError(sess.ID, sess.Capacity, occupied)
	}
	return nil
}

// RequestEnrollment registers a pending request of a student for a tutoring session.
// Students may only enroll themselves.
func (svc *Service) RequestEnrollment(ctx context.Context, actor core.Actor, ne NewEnrollment) (Enrollment, error) {
	if err := ne.Validate(); err != nil {
		return Enrollment{}, err
	}
	if ne.StudentID == 0 {
		std, err := tutoring.ResolveStudent(ctx, svc.store, actor)
		if err != nil {
			if core.IsPermission(err) {
				return Enrollment{}, core.NewValidationError(nil, core.FieldError{Field: "student_id", Error: "student_id is required"})
			}
			return Enrollment{}, err
		}
		ne.StudentID = std.ID
	}

	var created Enrollment
	err := svc.store.Atomic(ctx, []core.LockKey{core.SessionKey(ne.SessionID)}, func(repo Repository) error {
		sess, err := tutoring.ActiveSession(ctx, repo, ne.SessionID)
		if err != nil {
			return err
		}
		std, err := tutoring.ActiveStudent(ctx, repo, ne.StudentID)
		if err != nil {
			return err
		}

		existing, err := repo.QueryEnrollments(ctx, QueryFilter{SessionID: sess.ID, StudentID: std.ID, ActiveOnly: true})
		if err != nil {
			return errors.Wrap(err, "querying enrollments")
		}
		for _, e := range existing {
			if e.live() {
				return core.NewDuplicateError(fmt.Sprintf("student %d already has an enrollment in tutoring session %s", std.ID, sess.Sigla))
			}
		}

		if err = checkSeats(ctx, repo, sess, SeatsForRequest); err != nil {
			return err
		}

		if actor.IsStudent() {
			if std.UserID != actor.UserID {
				return core.NewPermissionError("students may only enroll themselves")
			}
		} else if err = tutoring.CheckOwnership(ctx, repo, sess, actor); err != nil {
			return err
		}

		now := nowFunc().UTC()
		created, err = repo.CreateEnrollment(ctx, Enrollment{
			StudentID:     std.ID,
			SessionID:     sess.ID,
			EnrolledAt:    now,
			Status:        StatusPending,
			RequestStatus: RequestPending,
			Active:        true,
			UpdatedAt:     now,
		})
		return err
	})
	if err != nil {
		return Enrollment{}, err
	}

	svc.logger.Info(fmt.Sprintf("enrollment %d requested: student %d, session %d", created.ID, created.StudentID, created.SessionID), actor)
	return created, nil
}

// withEnrollment runs fn on the freshly read, live enrollment while holding the lock of its session.
func (svc *Service) withEnrollment(ctx context.Context, id int, fn func(repo Repository, e Enrollment) (Enrollment, error)) (Enrollment, error) {
	seen, err := svc.store.GetEnrollment(ctx, id)
	if err != nil {
		return Enrollment{}, err
	}

	var updated Enrollment
	err = svc.store.Atomic(ctx, []core.LockKey{core.SessionKey(seen.SessionID)}, func(repo Repository) error {
		e, err := repo.GetEnrollment(ctx, id)
		if err != nil {
			return err
		}
		if !e.Active {
			return ErrNotFound
		}
		updated, err = fn(repo, e)
		return err
	})
	if err != nil {
		return Enrollment{}, err
	}
	return updated, nil
}

// checkNotCancelled refuses request transitions on an enrollment cancelled while still active.
func checkNotCancelled(e Enrollment, action string) error {
	if e.Status == StatusCancelled {
		return core.NewInvalidStateError(action, string(e.Status))
	}
	return nil
}

// Approve accepts a pending request, provided a seat is left among approved enrollments.
func (svc *Service) Approve(ctx context.Context, actor core.Actor, id int) (Enrollment, error) {
	approved, err := svc.withEnrollment(ctx, id, func(repo Repository, e Enrollment) (Enrollment, error) {
		if err := checkNotCancelled(e, "approve enrollment"); err != nil {
			return Enrollment{}, err
		}
		request, err := transitionRequest(ctx, e.RequestStatus, eventApprove, "approve enrollment")
		if err != nil {
			return Enrollment{}, err
		}
		sess, err := tutoring.ActiveSession(ctx, repo, e.SessionID)
		if err != nil {
			return Enrollment{}, err
		}
		if err = tutoring.CheckOwnership(ctx, repo, sess, actor); err != nil {
			return Enrollment{}, err
		}
		if err = checkSeats(ctx, repo, sess, SeatsForApproval); err != nil {
			return Enrollment{}, err
		}

		now := nowFunc().UTC()
		e.RequestStatus = request
		e.ApproverID = actor.UserID
		e.ApprovedAt = &now
		e.UpdatedAt = now
		return repo.UpdateEnrollment(ctx, e)
	})
	if err != nil {
		return Enrollment{}, err
	}

	svc.logger.Info(fmt.Sprintf("enrollment %d approved", approved.ID), actor)
	svc.notify(ctx, approved, tmplApproved, "enrollment approved", nil)
	return approved, nil
}

// Reject turns down a pending request. An empty reason is replaced by DefaultRejectReason.
func (svc *Service) Reject(ctx context.Context, actor core.Actor, id int, reason string) (Enrollment, error) {
	reason = core.CleanString(reason, false)
	if reason == "" {
		reason = DefaultRejectReason
	}

	rejected, err := svc.withEnrollment(ctx, id, func(repo Repository, e Enrollment) (Enrollment, error) {
		if err := checkNotCancelled(e, "reject enrollment"); err != nil {
			return Enrollment{}, err
		}
		request, err := transitionRequest(ctx, e.RequestStatus, eventReject, "reject enrollment")
		if err != nil {
			return Enrollment{}, err
		}
		sess, err := repo.GetSession(ctx, e.SessionID)
		if err != nil {
			return Enrollment{}, err
		}
		if err = tutoring.CheckOwnership(ctx, repo, sess, actor); err != nil {
			return Enrollment{}, err
		}

		now := nowFunc().UTC()
		e.RequestStatus = request
		e.ApproverID = actor.UserID
		e.RejectedAt = &now
		e.Reason = reason
		e.UpdatedAt = now
		return repo.UpdateEnrollment(ctx, e)
	})
	if err != nil {
		return Enrollment{}, err
	}

	svc.logger.Info(fmt.Sprintf("enrollment %d rejected: %s", rejected.ID, reason), actor)
	svc.notify(ctx, rejected, tmplRejected, "enrollment rejected", nil)
	return rejected, nil
}

// ActivateByPayment activates an enrollment once its payment completed.
// transactionCode only feeds the confirmation email.
func (svc *Service) ActivateByPayment(ctx context.Context, id int, transactionCode string) (Enrollment, error) {
	activated, err := svc.withEnrollment(ctx, id, func(repo Repository, e Enrollment) (Enrollment, error) {
		if e.RequestStatus == RequestRejected {
			return Enrollment{}, core.NewInvalidStateError("activate enrollment", string(e.RequestStatus))
		}
		paid, err := repo.HasCompletedPayment(ctx, e.ID)
		if err != nil {
			return Enrollment{}, errors.Wrap(err, "checking payment")
		}
		if !paid {
			return Enrollment{}, core.NewInvalidStateError("activate enrollment", "unpaid")
		}
		status, err := transitionStatus(ctx, e.Status, eventActivate, "activate enrollment")
		if err != nil {
			return Enrollment{}, err
		}
		sess, err := repo.GetSession(ctx, e.SessionID)
		if err != nil {
			return Enrollment{}, err
		}
		if err = checkSeats(ctx, repo, sess, SeatsForActivation); err != nil {
			return Enrollment{}, err
		}

		e.Status = status
		e.UpdatedAt = nowFunc().UTC()
		return repo.UpdateEnrollment(ctx, e)
	})
	if err != nil {
		return Enrollment{}, err
	}

	svc.logger.Info(fmt.Sprintf("enrollment %d activated by payment %s", activated.ID, transactionCode), core.SystemActor)
	svc.notify(ctx, activated, tmplActivated, "enrollment active", func(n *Notice) {
		n.TransactionCode = transactionCode
	})
	return activated, nil
}

// Cancel marks an unpaid, not yet active enrollment as cancelled.
func (svc *Service) Cancel(ctx context.Context, actor core.Actor, id int, reason string) (Enrollment, error) {
	cancelled, err := svc.withEnrollment(ctx, id, func(repo Repository, e Enrollment) (Enrollment, error) {
		sess, err := repo.GetSession(ctx, e.SessionID)
		if err != nil {
			return Enrollment{}, err
		}
		if err = tutoring.CheckOwnership(ctx, repo, sess, actor); err != nil {
			return Enrollment{}, err
		}
		paid, err := repo.HasCompletedPayment(ctx, e.ID)
		if err != nil {
			return Enrollment{}, errors.Wrap(err, "checking payment")
		}
		if paid {
			return Enrollment{}, core.NewConflictError(core.ConflictPayment, fmt.Sprintf("enrollment %d has associated payment", e.ID))
		}
		status, err := transitionStatus(ctx, e.Status, eventCancel, "cancel enrollment")
		if err != nil {
			return Enrollment{}, err
		}

		e.Status = status
		if reason = core.CleanString(reason, false); reason != "" {
			e.Reason = reason
		}
		e.UpdatedAt = nowFunc().UTC()
		return repo.UpdateEnrollment(ctx, e)
	})
	if err != nil {
		return Enrollment{}, err
	}

	svc.logger.Info(fmt.Sprintf("enrollment %d cancelled", cancelled.ID), actor)
	return cancelled, nil
}

// Withdraw lets a student take back a request nobody acted on yet. The enrollment is soft-deleted.
func (svc *Service) Withdraw(ctx context.Context, actor core.Actor, id int) (Enrollment, error) {
	std, err := tutoring.ResolveStudent(ctx, svc.store, actor)
	if err != nil {
		return Enrollment{}, err
	}

	withdrawn, err := svc.withEnrollment(ctx, id, func(repo Repository, e Enrollment) (Enrollment, error) {
		if e.StudentID != std.ID {
			return Enrollment{}, core.NewPermissionError("students may only withdraw their own enrollments")
		}
		if e.RequestStatus != RequestPending {
			return Enrollment{}, core.NewInvalidStateError("withdraw enrollment", string(e.RequestStatus))
		}
		paid, err := repo.HasCompletedPayment(ctx, e.ID)
		if err != nil {
			return Enrollment{}, errors.Wrap(err, "checking payment")
		}
		if paid {
			return Enrollment{}, core.NewConflictError(core.ConflictPayment, fmt.Sprintf("enrollment %d has associated payment", e.ID))
		}
		status, err := transitionStatus(ctx, e.Status, eventWithdraw, "withdraw enrollment")
		if err != nil {
			return Enrollment{}, err
		}

		e.Status = status
		e.Active = false
		e.UpdatedAt = nowFunc().UTC()
		return repo.UpdateEnrollment(ctx, e)
	})
	if err != nil {
		return Enrollment{}, err
	}

	svc.logger.Info(fmt.Sprintf("enrollment %d withdrawn", withdrawn.ID), actor)
	return withdrawn, nil
}

// ResizeSession changes the capacity of a tutoring session; it never drops below the seats already taken.
func (svc *Service) ResizeSession(ctx context.Context, actor core.Actor, sessionID, capacity int) (tutoring.Session, error) {
	if capacity < 1 {
		return tutoring.Session{}, core.NewValidationError(nil, core.FieldError{Field: "capacity", Error: "capacity must be at least 1"})
	}

	var resized tutoring.Session
	err := svc.store.Atomic(ctx, []core.LockKey{core.SessionKey(sessionID)}, func(repo Repository) error {
		sess, err := tutoring.ActiveSession(ctx, repo, sessionID)
		if err != nil {
			return err
		}
		if err = tutoring.CheckOwnership(ctx, repo, sess, actor); err != nil {
			return err
		}
		occupied, err := repo.CountSeats(ctx, sess.ID, SeatsForRequest)
		if err != nil {
			return errors.Wrap(err, "counting seats")
		}
		if capacity < occupied {
			return core.NewConflictError(core.ConflictCapacity,
				fmt.Sprintf("tutoring session %s already has %d seats taken", sess.Sigla, occupied))
		}
		resized, err = repo.UpdateSessionCapacity(ctx, sess.ID, capacity)
		return err
	})
	if err != nil {
		return tutoring.Session{}, err
	}

	svc.logger.Info(fmt.Sprintf("tutoring session %s resized to %d seats", resized.Sigla, resized.Capacity), actor)
	return resized, nil
}

// Seats summarizes the occupancy of a tutoring session.
func (svc *Service) Seats(ctx context.Context, sessionID int) (SeatSummary, error) {
	sess, err := tutoring.ActiveSession(ctx, svc.store, sessionID)
	if err != nil {
		return SeatSummary{}, err
	}

	summary := SeatSummary{SessionID: sess.ID, Capacity: sess.Capacity}
	for seats, dst := range map[SeatPredicate]*int{
		SeatsForRequest:    &summary.Requested,
		SeatsForApproval:   &summary.Approved,
		SeatsForActivation: &summary.Activated,
	} {
		if *dst, err = svc.store.CountSeats(ctx, sess.ID, seats); err != nil {
			return SeatSummary{}, errors.Wrap(err, "counting seats")
		}
	}
	if summary.Available = sess.Capacity - summary.Requested; summary.Available < 0 {
		summary.Available = 0
	}
	return summary, nil
}

func (svc *Service) GetEnrollment(ctx context.Context, actor core.Actor, id int) (Enrollment, error) {
	e, err := svc.store.GetEnrollment(ctx, id)
	if err != nil {
		return Enrollment{}, err
	}
	if err = svc.checkReader(ctx, actor, &QueryFilter{SessionID: e.SessionID, StudentID: e.StudentID}); err != nil {
		return Enrollment{}, err
	}
	return e, nil
}

// QueryEnrollments lists the enrollments actor may see: students only get their own,
// tutors and institution managers those of a session they own.
func (svc *Service) QueryEnrollments(ctx context.Context, actor core.Actor, filter QueryFilter) ([]Enrollment, error) {
	if err := svc.checkReader(ctx, actor, &filter); err != nil {
		return nil, err
	}
	filter.Ordering = core.FilterOrderings(filter.Ordering, OrderingFields...)

	enrollments, err := svc.store.QueryEnrollments(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	return enrollments, nil
}

func (svc *Service) checkReader(ctx context.Context, actor core.Actor, filter *QueryFilter) error {
	switch {
	case actor.IsAdmin():
		return nil
	case actor.IsStudent():
		std, err := tutoring.ResolveStudent(ctx, svc.store, actor)
		if err != nil {
			return err
		}
		if filter.StudentID != 0 && filter.StudentID != std.ID {
			return core.NewPermissionError("students may only see their own enrollments")
		}
		filter.StudentID = std.ID
		return nil
	default:
		if filter.SessionID == 0 {
			return core.NewValidationError(nil, core.FieldError{Field: "session", Error: "session is required"})
		}
		sess, err := svc.store.GetSession(ctx, filter.SessionID)
		if err != nil {
			return err
		}
		return tutoring.CheckOwnership(ctx, svc.store, sess, actor)
	}
}
