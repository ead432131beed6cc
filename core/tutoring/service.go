package tutoring

import (
	"context"
	"fmt"
	"strconv"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorias/core"
)

var (
	// errors
	ErrInstitutionNotFound = core.NewNotFoundError("institution")
	ErrRoomNotFound        = core.NewNotFoundError("room")
	ErrTutorNotFound       = core.NewNotFoundError("tutor")
	ErrStudentNotFound     = core.NewNotFoundError("student")
	ErrSessionNotFound     = core.NewNotFoundError("tutoring session")
)

// Repository reads the tutoring catalog. Lookups by id return the row whatever its active flag.
type Repository interface {
	GetInstitution(ctx context.Context, id int) (Institution, error)
	GetRoom(ctx context.Context, id int) (Room, error)
	QueryRooms(ctx context.Context, filter RoomFilter) ([]Room, error)
	GetTutor(ctx context.Context, id int) (Tutor, error)
	GetTutorByUser(ctx context.Context, userID string) (Tutor, error)
	GetStudent(ctx context.Context, id int) (Student, error)
	GetStudentByUser(ctx context.Context, userID string) (Student, error)
	GetSession(ctx context.Context, id int) (Session, error)
}

func ActiveSession(ctx context.Context, repo Repository, id int) (Session, error) {
	sess, err := repo.GetSession(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if !sess.Active {
		return Session{}, ErrSessionNotFound
	}
	return sess, nil
}

func ActiveRoom(ctx context.Context, repo Repository, id int) (Room, error) {
	room, err := repo.GetRoom(ctx, id)
	if err != nil {
		return Room{}, err
	}
	if !room.Active {
		return Room{}, ErrRoomNotFound
	}
	return room, nil
}

func ActiveTutor(ctx context.Context, repo Repository, id int) (Tutor, error) {
	tutor, err := repo.GetTutor(ctx, id)
	if err != nil {
		return Tutor{}, err
	}
	if !tutor.Active {
		return Tutor{}, ErrTutorNotFound
	}
	return tutor, nil
}

func ActiveStudent(ctx context.Context, repo Repository, id int) (Student, error) {
	std, err := repo.GetStudent(ctx, id)
	if err != nil {
		return Student{}, err
	}
	if !std.Active {
		return Student{}, ErrStudentNotFound
	}
	return std, nil
}

// OwnerOf resolves who may manage sess.
func OwnerOf(ctx context.Context, repo Repository, sess Session) (Owner, error) {
	owner := Owner{SessionID: sess.ID}

	tutor, err := repo.GetTutor(ctx, sess.TutorID)
	switch {
	case err == nil:
		owner.TutorUserID = tutor.UserID
	case !errors.Is(err, ErrTutorNotFound):
		return Owner{}, errors.Wrap(err, "finding session tutor")
	}

	inst, err := repo.GetInstitution(ctx, sess.InstitutionID)
	switch {
	case err == nil:
		owner.ManagerUserID = inst.ManagerID
	case !errors.Is(err, ErrInstitutionNotFound):
		return Owner{}, errors.Wrap(err, "finding session institution")
	}
	return owner, nil
}

// CheckOwnership fails with a PermissionError unless actor owns sess.
func CheckOwnership(ctx context.Context, repo Repository, sess Session, actor core.Actor) error {
	if actor.IsAdmin() {
		return nil
	}
	owner, err := OwnerOf(ctx, repo, sess)
	if err != nil {
		return err
	}
	if !owner.Permits(actor) {
		return core.NewPermissionError(fmt.Sprintf("not allowed to manage tutoring session %s", sess.Sigla))
	}
	return nil
}

// ResolveStudent finds the student record owned by a student actor.
func ResolveStudent(ctx context.Context, repo Repository, actor core.Actor) (Student, error) {
	if actor.Role != core.RoleStudent {
		return Student{}, core.NewPermissionError("only students have a student record")
	}
	return repo.GetStudentByUser(ctx, actor.UserID)
}

// ResolveTutor finds the tutor record owned by a tutor actor.
func ResolveTutor(ctx context.Context, repo Repository, actor core.Actor) (Tutor, error) {
	if actor.Role != core.RoleTutor {
		return Tutor{}, core.NewPermissionError("only tutors have a tutor record")
	}
	return repo.GetTutorByUser(ctx, actor.UserID)
}

// Catalog caches the active rooms of each institution.
type Catalog struct {
	repo  Repository
	rooms *cache.Cache
}

func NewCatalog(repo Repository, conf *core.Config) *Catalog {
	ttl := conf.RoomCacheTTL
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &Catalog{
		repo:  repo,
		rooms: cache.New(ttl, 10*ttl),
	}
}

func roomsCacheKey(institutionID int) string {
	return "rooms:" + strconv.Itoa(institutionID)
}

// Rooms returns the active rooms of an institution, or of every institution when institutionID is 0.
func (c *Catalog) Rooms(ctx context.Context, institutionID int) ([]Room, error) {
	key := roomsCacheKey(institutionID)
	if cached, ok := c.rooms.Get(key); ok {
		return cached.([]Room), nil
	}

	rooms, err := c.repo.QueryRooms(ctx, RoomFilter{InstitutionID: institutionID, ActiveOnly: true})
	if err != nil {
		return nil, errors.Wrap(err, "querying rooms")
	}
	c.rooms.SetDefault(key, rooms)
	return rooms, nil
}
