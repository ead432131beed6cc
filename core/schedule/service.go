package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tutorias/core"
	"github.com/trezcool/tutorias/core/tutoring"
)

var (
	// errors
	ErrAssignmentNotFound = core.NewNotFoundError("assignment")

	errStaleLock   = errors.New("assignment moved while waiting for its locks")
	maxLockRetries = 3

	defaultWindow = Interval{Start: NewClockTime(7, 0), End: NewClockTime(22, 0)}
	defaultSlot   = 60

	nowFunc = time.Now // mockable
)

type (
	// Repository reads and writes assignments. GetAssignment returns inactive rows too.
	Repository interface {
		tutoring.Repository

		GetAssignment(ctx context.Context, key AssignmentKey) (Assignment, error)
		QueryAssignments(ctx context.Context, filter QueryFilter) ([]Assignment, error)
		CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		UpdateAssignment(ctx context.Context, oldKey AssignmentKey, a Assignment) (Assignment, error)
	}

	// Store runs fn as one all-or-nothing unit while holding every key.
	// Reads made through the Repository given to fn observe the writes of every unit committed before.
	Store interface {
		Repository

		Atomic(ctx context.Context, keys []core.LockKey, fn func(repo Repository) error) error
	}

	Service struct {
		store       Store
		catalog     *tutoring.Catalog
		window      Interval
		slotMinutes int
		logger      core.Logger
	}
)

func NewService(store Store, catalog *tutoring.Catalog, conf *core.Config, logger core.Logger) *Service {
	svc := &Service{
		store:       store,
		catalog:     catalog,
		window:      defaultWindow,
		slotMinutes: defaultSlot,
		logger:      logger,
	}

	open, oErr := ParseClock(conf.Scheduling.OpenAt)
	closing, cErr := ParseClock(conf.Scheduling.CloseAt)
	if window := (Interval{Start: open, End: closing}); oErr == nil && cErr == nil && window.Valid() {
		svc.window = window
	} else {
		logger.Warn(fmt.Sprintf("invalid scheduling window %q-%q, using %s", conf.Scheduling.OpenAt, conf.Scheduling.CloseAt, defaultWindow))
	}
	if conf.Scheduling.SlotMinutes > 0 {
		svc.slotMinutes = conf.Scheduling.SlotMinutes
	}
	return svc
}

func conflictMsg(kind string, id int, c Assignment) string {
	return fmt.Sprintf("%s %d is already booked on %s %s (tutoring session %d)", kind, id, c.Day, c.Interval(), c.SessionID)
}

// checkConflicts fails with a ConflictError naming the room, or else the tutor, that a already overlaps.
func checkConflicts(ctx context.Context, repo Repository, a Assignment, exclude *AssignmentKey) error {
	iv := a.Interval()
	day := a.Day

	rooms, err := repo.QueryAssignments(ctx, QueryFilter{RoomID: a.RoomID, Day: &day, ActiveOnly: true, Overlapping: &iv, Exclude: exclude})
	if err != nil {
		return errors.Wrap(err, "querying room assignments")
	}
	if len(rooms) > 0 {
		return core.NewConflictError(core.ConflictRoom, conflictMsg("room", a.RoomID, rooms[0]))
	}

	tutors, err := repo.QueryAssignments(ctx, QueryFilter{TutorID: a.TutorID, Day: &day, ActiveOnly: true, Overlapping: &iv, Exclude: exclude})
	if err != nil {
		return errors.Wrap(err, "querying tutor assignments")
	}
	if len(tutors) > 0 {
		return core.NewConflictError(core.ConflictTutor, conflictMsg("tutor", a.TutorID, tutors[0]))
	}
	return nil
}

// CheckAvailability lists the active assignments of a room overlapping the queried interval.
func (svc *Service) CheckAvailability(ctx context.Context, q AvailabilityQuery) (Availability, error) {
	if err := validateDay(q.Day); err != nil {
		return Availability{}, err
	}
	if err := validateInterval(q.Interval); err != nil {
		return Availability{}, err
	}
	if _, err := tutoring.ActiveRoom(ctx, svc.store, q.RoomID); err != nil {
		return Availability{}, err
	}
	return svc.availability(ctx, QueryFilter{RoomID: q.RoomID, Day: &q.Day, ActiveOnly: true, Overlapping: &q.Interval, Exclude: q.Exclude})
}

// CheckTutorAvailability lists the active assignments of a tutor overlapping the queried interval.
func (svc *Service) CheckTutorAvailability(ctx context.Context, q AvailabilityQuery) (Availability, error) {
	if err := validateDay(q.Day); err != nil {
		return Availability{}, err
	}
	if err := validateInterval(q.Interval); err != nil {
		return Availability{}, err
	}
	if _, err := tutoring.ActiveTutor(ctx, svc.store, q.TutorID); err != nil {
		return Availability{}, err
	}
	return svc.availability(ctx, QueryFilter{TutorID: q.TutorID, Day: &q.Day, ActiveOnly: true, Overlapping: &q.Interval, Exclude: q.Exclude})
}

func (svc *Service) availability(ctx context.Context, filter QueryFilter) (Availability, error) {
	conflicts, err := svc.store.QueryAssignments(ctx, filter)
	if err != nil {
		return Availability{}, errors.Wrap(err, "querying assignments")
	}
	if conflicts == nil {
		conflicts = []Assignment{}
	}
	return Availability{Available: len(conflicts) == 0, Conflicts: conflicts}, nil
}

// ListFreeRooms returns the active rooms with no active assignment overlapping iv on day.
// institutionID 0 means every institution.
func (svc *Service) ListFreeRooms(ctx context.Context, day time.Weekday, iv Interval, institutionID int) ([]tutoring.Room, error) {
	if err := validateDay(day); err != nil {
		return nil, err
	}
	if err := validateInterval(iv); err != nil {
		return nil, err
	}

	rooms, err := svc.catalog.Rooms(ctx, institutionID)
	if err != nil {
		return nil, errors.Wrap(err, "listing rooms")
	}
	busy, err := svc.store.QueryAssignments(ctx, QueryFilter{Day: &day, ActiveOnly: true, Overlapping: &iv})
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	busyRooms := make(map[int]struct{}, len(busy))
	for _, a := range busy {
		busyRooms[a.RoomID] = struct{}{}
	}

	free := make([]tutoring.Room, 0, len(rooms))
	for _, room := range rooms {
		if _, ok := busyRooms[room.ID]; !ok {
			free = append(free, room)
		}
	}
	return free, nil
}

// ListFreeSlots partitions the operating window and keeps the slots no active assignment of the room overlaps.
func (svc *Service) ListFreeSlots(ctx context.Context, roomID int, day time.Weekday) ([]Interval, error) {
	if err := validateDay(day); err != nil {
		return nil, err
	}
	if _, err := tutoring.ActiveRoom(ctx, svc.store, roomID); err != nil {
		return nil, err
	}

	booked, err := svc.store.QueryAssignments(ctx, QueryFilter{RoomID: roomID, Day: &day, ActiveOnly: true})
	if err != nil {
		return nil, errors.Wrap(err, "querying room assignments")
	}

	slots := Partition(svc.window, svc.slotMinutes)
	free := make([]Interval, 0, len(slots))
	for _, slot := range slots {
		taken := false
		for _, a := range booked {
			if a.Interval().Overlaps(slot) {
				taken = true
				break
			}
		}
		if !taken {
			free = append(free, slot)
		}
	}
	return free, nil
}

func (svc *Service) QueryAssignments(ctx context.Context, filter QueryFilter) ([]Assignment, error) {
	assignments, err := svc.store.QueryAssignments(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	return assignments, nil
}

// checkParties makes sure the session, room and tutor of a are live and that actor owns the session.
func checkParties(ctx context.Context, repo Repository, a Assignment, actor core.Actor) error {
	sess, err := tutoring.ActiveSession(ctx, repo, a.SessionID)
	if err != nil {
		return err
	}
	if _, err = tutoring.ActiveRoom(ctx, repo, a.RoomID); err != nil {
		return err
	}
	if _, err = tutoring.ActiveTutor(ctx, repo, a.TutorID); err != nil {
		return err
	}
	return tutoring.CheckOwnership(ctx, repo, sess, actor)
}

func (svc *Service) CreateAssignment(ctx context.Context, actor core.Actor, na NewAssignment) (Assignment, error) {
	if err := na.Validate(); err != nil {
		return Assignment{}, err
	}
	a := na.assignment()

	var created Assignment
	err := svc.store.Atomic(ctx, a.LockKeys(), func(repo Repository) error {
		if err := checkParties(ctx, repo, a, actor); err != nil {
			return err
		}

		if _, err := repo.GetAssignment(ctx, a.Key()); err == nil {
			return core.NewDuplicateError(fmt.Sprintf("tutoring session %d already has an assignment for room %d and tutor %d", a.SessionID, a.RoomID, a.TutorID))
		} else if !errors.Is(err, ErrAssignmentNotFound) {
			return errors.Wrap(err, "finding assignment")
		}

		if err := checkConflicts(ctx, repo, a, nil); err != nil {
			return err
		}

		now := nowFunc().UTC()
		a.CreatedAt, a.UpdatedAt = now, now
		var err error
		created, err = repo.CreateAssignment(ctx, a)
		return err
	})
	if err != nil {
		return Assignment{}, err
	}

	svc.logger.Info(fmt.Sprintf("assignment created: room %d, session %d, tutor %d, %s %s",
		created.RoomID, created.SessionID, created.TutorID, created.Day, created.Interval()), actor)
	return created, nil
}

// lockAssignment runs fn on the freshly read assignment under the locks of its current
// room/day and tutor/day plus the extra keys. The locks depend on a first unlocked read,
// so the unit is retried when the row moved in the meantime.
func (svc *Service) lockAssignment(
	ctx context.Context,
	key AssignmentKey,
	extraKeys func(current Assignment) []core.LockKey,
	fn func(repo Repository, current Assignment) error,
) error {
	for attempt := 0; attempt < maxLockRetries; attempt++ {
		seen, err := svc.store.GetAssignment(ctx, key)
		if err != nil {
			return err
		}

		keys := seen.LockKeys()
		if extraKeys != nil {
			keys = append(keys, extraKeys(seen)...)
		}

		err = svc.store.Atomic(ctx, keys, func(repo Repository) error {
			current, err := repo.GetAssignment(ctx, key)
			if err != nil {
				return err
			}
			if current.Day != seen.Day {
				return errStaleLock
			}
			return fn(repo, current)
		})
		if err != errStaleLock {
			return err
		}
	}
	return errors.Wrap(errStaleLock, "locking assignment")
}

// UpdateAssignment re-validates room and tutor conflicts for the new values, ignoring the row being edited.
func (svc *Service) UpdateAssignment(ctx context.Context, actor core.Actor, ua UpdateAssignment) (Assignment, error) {
	if err := ua.Validate(); err != nil {
		return Assignment{}, err
	}

	var updated Assignment
	err := svc.lockAssignment(ctx, ua.Key,
		func(current Assignment) []core.LockKey { return ua.apply(current).LockKeys() },
		func(repo Repository, current Assignment) error {
			if !current.Active {
				return ErrAssignmentNotFound
			}
			upd := ua.apply(current)
			if err := validateInterval(upd.Interval()); err != nil {
				return err
			}
			if err := checkParties(ctx, repo, upd, actor); err != nil {
				return err
			}

			oldKey := current.Key()
			if upd.Key() != oldKey {
				if _, err := repo.GetAssignment(ctx, upd.Key()); err == nil {
					return core.NewDuplicateError(fmt.Sprintf("tutoring session %d already has an assignment for room %d and tutor %d", upd.SessionID, upd.RoomID, upd.TutorID))
				} else if !errors.Is(err, ErrAssignmentNotFound) {
					return errors.Wrap(err, "finding assignment")
				}
			}

			if err := checkConflicts(ctx, repo, upd, &oldKey); err != nil {
				return err
			}

			upd.UpdatedAt = nowFunc().UTC()
			var err error
			updated, err = repo.UpdateAssignment(ctx, oldKey, upd)
			return err
		})
	if err != nil {
		return Assignment{}, err
	}

	svc.logger.Info(fmt.Sprintf("assignment updated: room %d, session %d, tutor %d, %s %s",
		updated.RoomID, updated.SessionID, updated.TutorID, updated.Day, updated.Interval()), actor)
	return updated, nil
}

// DeactivateAssignment soft-deletes an active assignment. A second call fails with NotFoundError.
func (svc *Service) DeactivateAssignment(ctx context.Context, actor core.Actor, key AssignmentKey) (Assignment, error) {
	if err := key.Validate(); err != nil {
		return Assignment{}, err
	}

	var updated Assignment
	err := svc.lockAssignment(ctx, key, nil, func(repo Repository, current Assignment) error {
		if !current.Active {
			return ErrAssignmentNotFound
		}
		sess, err := repo.GetSession(ctx, current.SessionID)
		if err != nil {
			return err
		}
		if err = tutoring.CheckOwnership(ctx, repo, sess, actor); err != nil {
			return err
		}

		current.Active = false
		current.UpdatedAt = nowFunc().UTC()
		updated, err = repo.UpdateAssignment(ctx, key, current)
		return err
	})
	if err != nil {
		return Assignment{}, err
	}

	svc.logger.Info(fmt.Sprintf("assignment deactivated: room %d, session %d, tutor %d", key.RoomID, key.SessionID, key.TutorID), actor)
	return updated, nil
}

// ReactivateAssignment turns an inactive assignment back on, provided it still fits the schedule.
func (svc *Service) ReactivateAssignment(ctx context.Context, actor core.Actor, key AssignmentKey) (Assignment, error) {
	if err := key.Validate(); err != nil {
		return Assignment{}, err
	}

	var updated Assignment
	err := svc.lockAssignment(ctx, key, nil, func(repo Repository, current Assignment) error {
		if current.Active {
			return core.NewInvalidStateError("reactivate assignment", "active")
		}
		if err := checkParties(ctx, repo, current, actor); err != nil {
			return err
		}
		if err := checkConflicts(ctx, repo, current, &key); err != nil {
			return err
		}

		current.Active = true
		current.UpdatedAt = nowFunc().UTC()
		var err error
		updated, err = repo.UpdateAssignment(ctx, key, current)
		return err
	})
	if err != nil {
		return Assignment{}, err
	}

	svc.logger.Info(fmt.Sprintf("assignment reactivated: room %d, session %d, tutor %d", key.RoomID, key.SessionID, key.TutorID), actor)
	return updated, nil
}
