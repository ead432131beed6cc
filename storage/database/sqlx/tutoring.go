package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/trezcool/tutorias/core/tutoring"
)

var _ tutoring.Repository = (*repo)(nil) // interface compliance check

var (
	institutionColumns = []string{"id", "name", "COALESCE(manager_id::text, '') AS manager_id", "active"}
	roomColumns        = []string{"id", "institution_id", "name", "capacity", "active"}
	tutorColumns       = []string{"id", "COALESCE(user_id::text, '') AS user_id", "name", "active"}
	studentColumns     = []string{"id", "COALESCE(user_id::text, '') AS user_id", "name", "email", "active"}
	sessionColumns     = []string{"id", "sigla", "name", "capacity", "institution_id", "tutor_id", "price", "active"}
)

func (r *repo) GetInstitution(ctx context.Context, id int) (tutoring.Institution, error) {
	var inst tutoring.Institution
	b := psql.Select(institutionColumns...).From("institution").Where(sq.Eq{"id": id})
	err := r.get(ctx, &inst, b, tutoring.ErrInstitutionNotFound, "getting institution")
	return inst, err
}

func (r *repo) GetRoom(ctx context.Context, id int) (tutoring.Room, error) {
	var room tutoring.Room
	b := psql.Select(roomColumns...).From("room").Where(sq.Eq{"id": id})
	err := r.get(ctx, &room, b, tutoring.ErrRoomNotFound, "getting room")
	return room, err
}

func (r *repo) QueryRooms(ctx context.Context, filter tutoring.RoomFilter) ([]tutoring.Room, error) {
	b := psql.Select(roomColumns...).From("room").OrderBy("id")
	if filter.InstitutionID != 0 {
		b = b.Where(sq.Eq{"institution_id": filter.InstitutionID})
	}
	if filter.ActiveOnly {
		b = b.Where("active")
	}

	rooms := make([]tutoring.Room, 0)
	if err := r.selectRows(ctx, &rooms, b, "querying rooms"); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (r *repo) GetTutor(ctx context.Context, id int) (tutoring.Tutor, error) {
	var tutor tutoring.Tutor
	b := psql.Select(tutorColumns...).From("tutor").Where(sq.Eq{"id": id})
	err := r.get(ctx, &tutor, b, tutoring.ErrTutorNotFound, "getting tutor")
	return tutor, err
}

func (r *repo) GetTutorByUser(ctx context.Context, userID string) (tutoring.Tutor, error) {
	var tutor tutoring.Tutor
	b := psql.Select(tutorColumns...).From("tutor").Where(sq.Eq{"user_id::text": userID})
	err := r.get(ctx, &tutor, b, tutoring.ErrTutorNotFound, "getting tutor")
	return tutor, err
}

func (r *repo) GetStudent(ctx context.Context, id int) (tutoring.Student, error) {
	var std tutoring.Student
	b := psql.Select(studentColumns...).From("student").Where(sq.Eq{"id": id})
	err := r.get(ctx, &std, b, tutoring.ErrStudentNotFound, "getting student")
	return std, err
}

func (r *repo) GetStudentByUser(ctx context.Context, userID string) (tutoring.Student, error) {
	var std tutoring.Student
	b := psql.Select(studentColumns...).From("student").Where(sq.Eq{"user_id::text": userID})
	err := r.get(ctx, &std, b, tutoring.ErrStudentNotFound, "getting student")
	return std, err
}

func (r *repo) GetSession(ctx context.Context, id int) (tutoring.Session, error) {
	var sess tutoring.Session
	b := psql.Select(sessionColumns...).From("tutoring_session").Where(sq.Eq{"id": id})
	err := r.get(ctx, &sess, b, tutoring.ErrSessionNotFound, "getting tutoring session")
	return sess, err
}

func (r *repo) UpdateSessionCapacity(ctx context.Context, sessionID, capacity int) (tutoring.Session, error) {
	var sess tutoring.Session
	b := psql.Update("tutoring_session").Set("capacity", capacity).Where(sq.Eq{"id": sessionID}).
		Suffix("RETURNING " + joinColumns(sessionColumns))
	err := r.get(ctx, &sess, b, tutoring.ErrSessionNotFound, "updating tutoring session capacity")
	return sess, err
}
