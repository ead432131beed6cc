package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tutorias/core"
	"github.com/trezcool/tutorias/core/user"
)

var _ user.Repository = (*repo)(nil) // interface compliance check

var userColumns = []string{"id", "name", "username", "email", "role", "is_active", "password_hash", "created_at", "updated_at", "last_login"}

type userRow struct {
	ID           string      `db:"id"`
	Name         string      `db:"name"`
	Username     null.String `db:"username"`
	Email        null.String `db:"email"`
	Role         string      `db:"role"`
	IsActive     bool        `db:"is_active"`
	PasswordHash null.Bytes  `db:"password_hash"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
	LastLogin    null.Time   `db:"last_login"`
}

func toUserRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     null.NewString(usr.Username, usr.Username != ""),
		Email:        null.NewString(usr.Email, usr.Email != ""),
		Role:         usr.Role.String(),
		IsActive:     usr.IsActive,
		PasswordHash: null.NewBytes(usr.PasswordHash, usr.PasswordHash != nil),
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (row userRow) user() user.User {
	return user.User{
		ID:           row.ID,
		Name:         row.Name,
		Username:     row.Username.String,
		Email:        row.Email.String,
		Role:         core.Role(row.Role),
		IsActive:     row.IsActive,
		PasswordHash: row.PasswordHash.Bytes,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
		LastLogin:    row.LastLogin.Time,
	}
}

func (r *repo) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	b := psql.Select("username", "email").From(`"user"`).
		Where(sq.Or{sq.Eq{"username": username}, sq.Eq{"email": email}}).
		Limit(1)
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		b = b.Where(sq.NotEq{"id": ids})
	}

	var rows []userRow
	if err := r.selectRows(ctx, &rows, b, "checking user uniqueness"); err != nil {
		return err
	}
	for _, row := range rows {
		if username != "" && row.Username.String == username {
			return user.ErrUsernameExists
		}
		if email != "" && row.Email.String == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (r *repo) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	row := toUserRow(usr)
	b := psql.Insert(`"user"`).Columns(userColumns...).
		Values(row.ID, row.Name, row.Username, row.Email, row.Role, row.IsActive, row.PasswordHash, row.CreatedAt, row.UpdatedAt, row.LastLogin)
	if _, err := r.execute(ctx, b, "inserting user"); err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (r *repo) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	b := psql.Select(userColumns...).From(`"user"`)
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		b = b.Where(sq.Eq{"id": filter.ID})
	case filter.UsernameOrEmail != "":
		b = b.Where(sq.Or{sq.Eq{"username": filter.UsernameOrEmail}, sq.Eq{"email": filter.UsernameOrEmail}})
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := r.get(ctx, &row, b.Limit(1), user.ErrNotFound, "getting user"); err != nil {
		return user.User{}, err
	}
	return row.user(), nil
}

func (r *repo) QueryUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	b := psql.Select(userColumns...).From(`"user"`).OrderBy("created_at")
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		b = b.Where(sq.Or{sq.ILike{"name": like}, sq.ILike{"username": like}, sq.ILike{"email": like}})
	}
	if len(filter.Roles) > 0 {
		roles := make([]string, 0, len(filter.Roles))
		for _, role := range filter.Roles {
			roles = append(roles, role.String())
		}
		b = b.Where(sq.Eq{"role": roles})
	}
	if filter.IsActive != nil {
		b = b.Where(sq.Eq{"is_active": *filter.IsActive})
	}

	var rows []userRow
	if err := r.selectRows(ctx, &rows, b, "querying users"); err != nil {
		return nil, err
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.user())
	}
	return users, nil
}

func (r *repo) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	row := toUserRow(usr)
	b := psql.Update(`"user"`).SetMap(map[string]interface{}{
		"name":          row.Name,
		"username":      row.Username,
		"email":         row.Email,
		"role":          row.Role,
		"is_active":     row.IsActive,
		"password_hash": row.PasswordHash,
		"updated_at":    row.UpdatedAt,
		"last_login":    row.LastLogin,
	}).Where(sq.Eq{"id": usr.ID})

	n, err := r.execute(ctx, b, "updating user")
	if err != nil {
		return user.User{}, err
	}
	if n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}
