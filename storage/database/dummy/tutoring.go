package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/tutorias/core/tutoring"
)

var _ tutoring.Repository = (*repo)(nil) // interface compliance check

func (r *repo) GetInstitution(_ context.Context, id int) (tutoring.Institution, error) {
	if inst, ok := r.institutions.get(id); ok {
		return inst, nil
	}
	return tutoring.Institution{}, tutoring.ErrInstitutionNotFound
}

func (r *repo) GetRoom(_ context.Context, id int) (tutoring.Room, error) {
	if room, ok := r.rooms.get(id); ok {
		return room, nil
	}
	return tutoring.Room{}, tutoring.ErrRoomNotFound
}

func (r *repo) QueryRooms(_ context.Context, filter tutoring.RoomFilter) ([]tutoring.Room, error) {
	rooms := make([]tutoring.Room, 0)
	for _, room := range r.rooms.list() {
		if filter.InstitutionID != 0 && room.InstitutionID != filter.InstitutionID {
			continue
		}
		if filter.ActiveOnly && !room.Active {
			continue
		}
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return rooms, nil
}

func (r *repo) GetTutor(_ context.Context, id int) (tutoring.Tutor, error) {
	if tutor, ok := r.tutors.get(id); ok {
		return tutor, nil
	}
	return tutoring.Tutor{}, tutoring.ErrTutorNotFound
}

func (r *repo) GetTutorByUser(_ context.Context, userID string) (tutoring.Tutor, error) {
	for _, tutor := range r.tutors.list() {
		if tutor.UserID == userID {
			return tutor, nil
		}
	}
	return tutoring.Tutor{}, tutoring.ErrTutorNotFound
}

func (r *repo) GetStudent(_ context.Context, id int) (tutoring.Student, error) {
	if std, ok := r.students.get(id); ok {
		return std, nil
	}
	return tutoring.Student{}, tutoring.ErrStudentNotFound
}

func (r *repo) GetStudentByUser(_ context.Context, userID string) (tutoring.Student, error) {
	for _, std := range r.students.list() {
		if std.UserID == userID {
			return std, nil
		}
	}
	return tutoring.Student{}, tutoring.ErrStudentNotFound
}

func (r *repo) GetSession(_ context.Context, id int) (tutoring.Session, error) {
	if sess, ok := r.sessions.get(id); ok {
		return sess, nil
	}
	return tutoring.Session{}, tutoring.ErrSessionNotFound
}

func (r *repo) UpdateSessionCapacity(ctx context.Context, sessionID, capacity int) (tutoring.Session, error) {
	sess, err := r.GetSession(ctx, sessionID)
	if err != nil {
		return tutoring.Session{}, err
	}
	sess.Capacity = capacity
	r.sessions.put(sess.ID, sess)
	return sess, nil
}
