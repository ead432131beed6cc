package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/tutorias/core"
	"github.com/trezcool/tutorias/core/enrollment"
	"github.com/trezcool/tutorias/core/payment"
)

var _ enrollment.Repository = (*repo)(nil) // interface compliance check

func (r *repo) GetEnrollment(_ context.Context, id int) (enrollment.Enrollment, error) {
	if e, ok := r.enrollments.get(id); ok {
		return e, nil
	}
	return enrollment.Enrollment{}, enrollment.ErrNotFound
}

func (r *repo) QueryEnrollments(_ context.Context, filter enrollment.QueryFilter) ([]enrollment.Enrollment, error) {
	enrollments := make([]enrollment.Enrollment, 0)
	for _, e := range r.enrollments.list() {
		if filter.Matches(e) {
			enrollments = append(enrollments, e)
		}
	}
	sortEnrollments(enrollments, filter.Ordering)
	return enrollments, nil
}

func sortEnrollments(enrollments []enrollment.Enrollment, ordering []core.DBOrdering) {
	sort.Slice(enrollments, func(i, j int) bool { return enrollments[i].ID < enrollments[j].ID })
	for k := len(ordering) - 1; k >= 0; k-- {
		ord := ordering[k]
		less := func(a, b enrollment.Enrollment) bool {
			switch ord.Field {
			case "enrolled_at":
				return a.EnrolledAt.Before(b.EnrolledAt)
			case "updated_at":
				return a.UpdatedAt.Before(b.UpdatedAt)
			case "status":
				return a.Status < b.Status
			case "request_status":
				return a.RequestStatus < b.RequestStatus
			default:
				return a.ID < b.ID
			}
		}
		sort.SliceStable(enrollments, func(i, j int) bool {
			if ord.Ascending {
				return less(enrollments[i], enrollments[j])
			}
			return less(enrollments[j], enrollments[i])
		})
	}
}

func (r *repo) CountSeats(_ context.Context, sessionID int, seats enrollment.SeatPredicate) (int, error) {
	n := 0
	for _, e := range r.enrollments.list() {
		if e.SessionID == sessionID && seats.Counts(e) {
			n++
		}
	}
	return n, nil
}

func (r *repo) CreateEnrollment(_ context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	e.ID = r.db.nextID("enrollment")
	r.enrollments.put(e.ID, e)
	return e, nil
}

func (r *repo) UpdateEnrollment(_ context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	if _, ok := r.enrollments.get(e.ID); !ok {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	r.enrollments.put(e.ID, e)
	return e, nil
}

func (r *repo) HasCompletedPayment(_ context.Context, enrollmentID int) (bool, error) {
	for _, p := range r.payments.list() {
		if p.EnrollmentID == enrollmentID && p.Status == payment.StatusCompleted {
			return true, nil
		}
	}
	return false, nil
}
