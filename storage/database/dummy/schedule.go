package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/tutorias/core/schedule"
)

var _ schedule.Repository = (*repo)(nil) // interface compliance check

func (r *repo) GetAssignment(_ context.Context, key schedule.AssignmentKey) (schedule.Assignment, error) {
	if a, ok := r.assignments.get(key); ok {
		return a, nil
	}
	return schedule.Assignment{}, schedule.ErrAssignmentNotFound
}

func (r *repo) QueryAssignments(_ context.Context, filter schedule.QueryFilter) ([]schedule.Assignment, error) {
	assignments := make([]schedule.Assignment, 0)
	for _, a := range r.assignments.list() {
		if filter.Matches(a) {
			assignments = append(assignments, a)
		}
	}

	sort.Slice(assignments, func(i, j int) bool {
		a, b := assignments[i], assignments[j]
		switch {
		case a.Day != b.Day:
			return a.Day < b.Day
		case a.Start != b.Start:
			return a.Start < b.Start
		case a.RoomID != b.RoomID:
			return a.RoomID < b.RoomID
		case a.SessionID != b.SessionID:
			return a.SessionID < b.SessionID
		default:
			return a.TutorID < b.TutorID
		}
	})
	return assignments, nil
}

func (r *repo) CreateAssignment(_ context.Context, a schedule.Assignment) (schedule.Assignment, error) {
	r.assignments.put(a.Key(), a)
	return a, nil
}

func (r *repo) UpdateAssignment(_ context.Context, oldKey schedule.AssignmentKey, a schedule.Assignment) (schedule.Assignment, error) {
	if _, ok := r.assignments.get(oldKey); !ok {
		return schedule.Assignment{}, schedule.ErrAssignmentNotFound
	}
	if a.Key() != oldKey {
		r.assignments.del(oldKey)
	}
	r.assignments.put(a.Key(), a)
	return a, nil
}
