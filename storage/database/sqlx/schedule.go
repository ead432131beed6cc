package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/trezcool/tutorias/core/schedule"
)

var _ schedule.Repository = (*repo)(nil) // interface compliance check

var assignmentColumns = []string{"room_id", "session_id", "tutor_id", "day", "start_time", "end_time", "active", "created_at", "updated_at"}

func keyEq(key schedule.AssignmentKey) sq.Eq {
	return sq.Eq{"room_id": key.RoomID, "session_id": key.SessionID, "tutor_id": key.TutorID}
}

func (r *repo) GetAssignment(ctx context.Context, key schedule.AssignmentKey) (schedule.Assignment, error) {
	var a schedule.Assignment
	b := psql.Select(assignmentColumns...).From("assignment").Where(keyEq(key))
	err := r.get(ctx, &a, b, schedule.ErrAssignmentNotFound, "getting assignment")
	return a, err
}

func (r *repo) QueryAssignments(ctx context.Context, filter schedule.QueryFilter) ([]schedule.Assignment, error) {
	b := psql.Select(assignmentColumns...).From("assignment").
		OrderBy("day", "start_time", "room_id", "session_id", "tutor_id")
	if filter.RoomID != 0 {
		b = b.Where(sq.Eq{"room_id": filter.RoomID})
	}
	if filter.TutorID != 0 {
		b = b.Where(sq.Eq{"tutor_id": filter.TutorID})
	}
	if filter.SessionID != 0 {
		b = b.Where(sq.Eq{"session_id": filter.SessionID})
	}
	if filter.Day != nil {
		b = b.Where(sq.Eq{"day": int(*filter.Day)})
	}
	if filter.ActiveOnly {
		b = b.Where("active")
	}
	if iv := filter.Overlapping; iv != nil {
		// half-open intervals: touching endpoints do not overlap
		b = b.Where(sq.And{sq.Lt{"start_time": iv.End}, sq.Gt{"end_time": iv.Start}})
	}
	if ex := filter.Exclude; ex != nil {
		b = b.Where(sq.Expr("(room_id, session_id, tutor_id) <> (?, ?, ?)", ex.RoomID, ex.SessionID, ex.TutorID))
	}

	assignments := make([]schedule.Assignment, 0)
	if err := r.selectRows(ctx, &assignments, b, "querying assignments"); err != nil {
		return nil, err
	}
	return assignments, nil
}

func (r *repo) CreateAssignment(ctx context.Context, a schedule.Assignment) (schedule.Assignment, error) {
	b := psql.Insert("assignment").Columns(assignmentColumns...).
		Values(a.RoomID, a.SessionID, a.TutorID, int(a.Day), a.Start, a.End, a.Active, a.CreatedAt, a.UpdatedAt)
	if _, err := r.execute(ctx, b, "inserting assignment"); err != nil {
		return schedule.Assignment{}, err
	}
	return a, nil
}

func (r *repo) UpdateAssignment(ctx context.Context, oldKey schedule.AssignmentKey, a schedule.Assignment) (schedule.Assignment, error) {
	b := psql.Update("assignment").SetMap(map[string]interface{}{
		"room_id":    a.RoomID,
		"session_id": a.SessionID,
		"tutor_id":   a.TutorID,
		"day":        int(a.Day),
		"start_time": a.Start,
		"end_time":   a.End,
		"active":     a.Active,
		"updated_at": a.UpdatedAt,
	}).Where(keyEq(oldKey))

	n, err := r.execute(ctx, b, "updating assignment")
	if err != nil {
		return schedule.Assignment{}, err
	}
	if n == 0 {
		return schedule.Assignment{}, schedule.ErrAssignmentNotFound
	}
	return a, nil
}
