package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tutorias/core/enrollment"
)

var _ enrollment.Repository = (*repo)(nil) // interface compliance check

var enrollmentColumns = []string{
	"id", "student_id", "session_id", "enrolled_at", "status", "request_status",
	"approver_id", "approved_at", "rejected_at", "reason", "active", "updated_at",
}

type enrollmentRow struct {
	ID            int         `db:"id"`
	StudentID     int         `db:"student_id"`
	SessionID     int         `db:"session_id"`
	EnrolledAt    time.Time   `db:"enrolled_at"`
	Status        string      `db:"status"`
	RequestStatus string      `db:"request_status"`
	ApproverID    null.String `db:"approver_id"`
	ApprovedAt    null.Time   `db:"approved_at"`
	RejectedAt    null.Time   `db:"rejected_at"`
	Reason        null.String `db:"reason"`
	Active        bool        `db:"active"`
	UpdatedAt     time.Time   `db:"updated_at"`
}

func toEnrollmentRow(e enrollment.Enrollment) enrollmentRow {
	return enrollmentRow{
		ID:            e.ID,
		StudentID:     e.StudentID,
		SessionID:     e.SessionID,
		EnrolledAt:    e.EnrolledAt.UTC(),
		Status:        string(e.Status),
		RequestStatus: string(e.RequestStatus),
		ApproverID:    null.NewString(e.ApproverID, e.ApproverID != "" && e.ApproverID != "system"),
		ApprovedAt:    null.TimeFromPtr(e.ApprovedAt),
		RejectedAt:    null.TimeFromPtr(e.RejectedAt),
		Reason:        null.NewString(e.Reason, e.Reason != ""),
		Active:        e.Active,
		UpdatedAt:     e.UpdatedAt.UTC(),
	}
}

func (row enrollmentRow) enrollment() enrollment.Enrollment {
	return enrollment.Enrollment{
		ID:            row.ID,
		StudentID:     row.StudentID,
		SessionID:     row.SessionID,
		EnrolledAt:    row.EnrolledAt,
		Status:        enrollment.Status(row.Status),
		RequestStatus: enrollment.RequestStatus(row.RequestStatus),
		ApproverID:    row.ApproverID.String,
		ApprovedAt:    row.ApprovedAt.Ptr(),
		RejectedAt:    row.RejectedAt.Ptr(),
		Reason:        row.Reason.String,
		Active:        row.Active,
		UpdatedAt:     row.UpdatedAt,
	}
}

func (r *repo) GetEnrollment(ctx context.Context, id int) (enrollment.Enrollment, error) {
	var row enrollmentRow
	b := psql.Select(enrollmentColumns...).From("enrollment").Where(sq.Eq{"id": id})
	if err := r.get(ctx, &row, b, enrollment.ErrNotFound, "getting enrollment"); err != nil {
		return enrollment.Enrollment{}, err
	}
	return row.enrollment(), nil
}

func (r *repo) QueryEnrollments(ctx context.Context, filter enrollment.QueryFilter) ([]enrollment.Enrollment, error) {
	b := psql.Select(enrollmentColumns...).From("enrollment")
	if filter.SessionID != 0 {
		b = b.Where(sq.Eq{"session_id": filter.SessionID})
	}
	if filter.StudentID != 0 {
		b = b.Where(sq.Eq{"student_id": filter.StudentID})
	}
	if filter.ActiveOnly {
		b = b.Where("active")
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		b = b.Where(sq.Eq{"status": statuses})
	}
	if len(filter.RequestStatuses) > 0 {
		statuses := make([]string, 0, len(filter.RequestStatuses))
		for _, s := range filter.RequestStatuses {
			statuses = append(statuses, string(s))
		}
		b = b.Where(sq.Eq{"request_status": statuses})
	}
	for _, ord := range filter.Ordering {
		b = b.OrderBy(ord.String())
	}
	b = b.OrderBy("id")

	var rows []enrollmentRow
	if err := r.selectRows(ctx, &rows, b, "querying enrollments"); err != nil {
		return nil, err
	}
	enrollments := make([]enrollment.Enrollment, 0, len(rows))
	for _, row := range rows {
		enrollments = append(enrollments, row.enrollment())
	}
	return enrollments, nil
}

func (r *repo) CountSeats(ctx context.Context, sessionID int, seats enrollment.SeatPredicate) (int, error) {
	var n int
	b := psql.Select("COUNT(*)").From("enrollment").
		Where(sq.Eq{"session_id": sessionID}).
		Where(seats.SQL())
	err := r.get(ctx, &n, b, nil, "counting seats")
	return n, err
}

func (r *repo) CreateEnrollment(ctx context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	row := toEnrollmentRow(e)
	b := psql.Insert("enrollment").Columns(enrollmentColumns[1:]...).
		Values(row.StudentID, row.SessionID, row.EnrolledAt, row.Status, row.RequestStatus,
			row.ApproverID, row.ApprovedAt, row.RejectedAt, row.Reason, row.Active, row.UpdatedAt).
		Suffix("RETURNING id")
	if err := r.get(ctx, &e.ID, b, nil, "inserting enrollment"); err != nil {
		return enrollment.Enrollment{}, err
	}
	return e, nil
}

func (r *repo) UpdateEnrollment(ctx context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	row := toEnrollmentRow(e)
	b := psql.Update("enrollment").SetMap(map[string]interface{}{
		"status":         row.Status,
		"request_status": row.RequestStatus,
		"approver_id":    row.ApproverID,
		"approved_at":    row.ApprovedAt,
		"rejected_at":    row.RejectedAt,
		"reason":         row.Reason,
		"active":         row.Active,
		"updated_at":     row.UpdatedAt,
	}).Where(sq.Eq{"id": e.ID})

	n, err := r.execute(ctx, b, "updating enrollment")
	if err != nil {
		return enrollment.Enrollment{}, err
	}
	if n == 0 {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	return e, nil
}

func (r *repo) HasCompletedPayment(ctx context.Context, enrollmentID int) (bool, error) {
	var exists bool
	b := psql.Select().Column(sq.Expr("EXISTS (SELECT 1 FROM payment WHERE enrollment_id = ? AND status = 'completed')", enrollmentID))
	err := r.get(ctx, &exists, b, nil, "checking completed payment")
	return exists, err
}
