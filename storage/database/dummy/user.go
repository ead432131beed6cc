package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/tutorias/core/user"
)

var _ user.Repository = (*repo)(nil) // interface compliance check

func (r *repo) CheckUsernameUniqueness(_ context.Context, username, email string, excludedUsers ...user.User) error {
	excluded := make(map[string]struct{}, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded[u.ID] = struct{}{}
	}

	for _, usr := range r.users.list() {
		if _, ok := excluded[usr.ID]; ok {
			continue
		}
		if username != "" && usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (r *repo) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	r.users.put(usr.ID, usr)
	return usr, nil
}

func (r *repo) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	if filter.ID != "" {
		if usr, ok := r.users.get(filter.ID); ok {
			return usr, nil
		}
		return user.User{}, user.ErrNotFound
	}
	if filter.UsernameOrEmail != "" {
		for _, usr := range r.users.list() {
			if usr.Username == filter.UsernameOrEmail || usr.Email == filter.UsernameOrEmail {
				return usr, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (r *repo) QueryUsers(_ context.Context, filter user.QueryFilter) ([]user.User, error) {
	search := strings.ToLower(filter.Search)
	users := make([]user.User, 0)

	for _, u := range r.users.list() {
		// search keyword matching any Name, Username or Email
		if search != "" &&
			!strings.Contains(strings.ToLower(u.Username), search) &&
			!strings.Contains(strings.ToLower(u.Email), search) &&
			!strings.Contains(strings.ToLower(u.Name), search) {
			continue
		}
		if len(filter.Roles) > 0 {
			found := false
			for _, role := range filter.Roles {
				if u.Role == role {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		if filter.IsActive != nil && u.IsActive != *filter.IsActive {
			continue
		}
		users = append(users, u)
	}

	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users, nil
}

func (r *repo) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	if _, ok := r.users.get(usr.ID); !ok {
		return user.User{}, user.ErrNotFound
	}
	r.users.put(usr.ID, usr)
	return usr, nil
}
