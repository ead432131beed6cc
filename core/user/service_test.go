package user_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/tutorias/core"
	"github.com/trezcool/tutorias/core/user"
	"github.com/trezcool/tutorias/storage/database/dummy"
	"github.com/trezcool/tutorias/tests"
)

const strongPwd = "Tr0ub4dor&3x"

func newService(t *testing.T) (*user.Service, user.Repository) {
	t.Helper()
	db, _ := dummydb.Open()
	repo := dummydb.NewUserRepository(db)
	return user.NewService(repo), repo
}

func fieldOf(err error) string {
	var vErr *core.ValidationError
	if errors.As(err, &vErr) && len(vErr.Fields) > 0 {
		return vErr.Fields[0].Field
	}
	return ""
}

func TestNewUser_Validate(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()
	testutil.CreateUser(t, repo, "Jane", "jane", "jane@example.com", "", core.RoleStudent, true)

	valid := func() user.NewUser {
		return user.NewUser{
			Name:            "Kofi Mensah",
			Username:        "kofi",
			Email:           "kofi@example.com",
			Role:            core.RoleTutor,
			Password:        strongPwd,
			PasswordConfirm: strongPwd,
		}
	}

	tests := []struct {
		name      string
		modify    func(nu *user.NewUser)
		wantField string
	}{
		{name: "valid", modify: func(nu *user.NewUser) {}},
		{name: "email only", modify: func(nu *user.NewUser) { nu.Username = "" }},
		{name: "username or email", modify: func(nu *user.NewUser) { nu.Username, nu.Email = "", "" }, wantField: "username"},
		{name: "name", modify: func(nu *user.NewUser) { nu.Name = "  " }, wantField: "name"},
		{name: "invalid role", modify: func(nu *user.NewUser) { nu.Role = "janitor" }, wantField: "role"},
		{name: "bad email", modify: func(nu *user.NewUser) { nu.Email = "kofi@" }, wantField: "email"},
		{name: "too short", modify: func(nu *user.NewUser) { nu.Password, nu.PasswordConfirm = "Ab1!", "Ab1!" }, wantField: "password"},
		{name: "whitespace", modify: func(nu *user.NewUser) { nu.Password, nu.PasswordConfirm = "Tr0ub 4dor&3x", "Tr0ub 4dor&3x" }, wantField: "password"},
		{name: "numeric", modify: func(nu *user.NewUser) { nu.Password, nu.PasswordConfirm = "1234567890", "1234567890" }, wantField: "password"},
		{name: "not complex", modify: func(nu *user.NewUser) { nu.Password, nu.PasswordConfirm = "troubadour3", "troubadour3" }, wantField: "password"},
		{name: "similar to name", modify: func(nu *user.NewUser) { nu.Password, nu.PasswordConfirm = "Kofimensah1!", "Kofimensah1!" }, wantField: "password"},
		{name: "confirmation", modify: func(nu *user.NewUser) { nu.PasswordConfirm = strongPwd + "?" }, wantField: "password_confirm"},
		{name: "username taken", modify: func(nu *user.NewUser) { nu.Username = " JANE " }, wantField: "username"},
		{name: "email taken", modify: func(nu *user.NewUser) { nu.Email = "Jane@Example.com" }, wantField: "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := valid()
			tt.modify(&nu)
			err := nu.Validate(ctx, svc)
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}
			if !core.IsValidation(err) {
				t.Fatalf("Validate() error = %v, want a validation error", err)
			}
			if got := fieldOf(err); got != tt.wantField {
				t.Errorf("Validate() field = %q, want %q (%v)", got, tt.wantField, err)
			}
		})
	}
}

func TestService_Create(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	usr, err := svc.Create(ctx, user.NewUser{Name: "Kofi", Username: "kofi", Email: "kofi@example.com", Role: core.RoleTutor, Password: strongPwd})
	if err != nil {
		t.Fatalf("Create() unexpected error = %v", err)
	}
	assert.NotEmpty(t, usr.ID)
	assert.True(t, usr.IsActive)
	assert.NoError(t, usr.CheckPassword(strongPwd))

	got, err := svc.GetByUsernameOrEmail(ctx, " KOFI@example.com ")
	if err != nil {
		t.Fatalf("GetByUsernameOrEmail() unexpected error = %v", err)
	}
	assert.Equal(t, usr.ID, got.ID)

	if _, err = svc.GetByID(ctx, "nope"); !errors.Is(err, user.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want %v", err, user.ErrNotFound)
	}

	got, err = svc.SetLastLogin(ctx, usr)
	if err != nil {
		t.Fatalf("SetLastLogin() unexpected error = %v", err)
	}
	assert.False(t, got.LastLogin.IsZero())
}

func TestService_Query(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()

	testutil.CreateUser(t, repo, "Ama Owusu", "ama", "ama@example.com", "", core.RoleStudent, true)
	testutil.CreateUser(t, repo, "Kwame", "kwame", "kwame@school.org", "", core.RoleTutor, true)
	testutil.CreateUser(t, repo, "Esi", "esi", "esi@school.org", "", core.RoleTutor, false)

	active := true
	tests := []struct {
		name   string
		filter user.QueryFilter
		want   []string
	}{
		{name: "all", want: []string{"ama", "kwame", "esi"}},
		{name: "search", filter: user.QueryFilter{Search: " school "}, want: []string{"kwame", "esi"}},
		{name: "role", filter: user.QueryFilter{Roles: []core.Role{core.RoleStudent}}, want: []string{"ama"}},
		{name: "active tutors", filter: user.QueryFilter{Roles: []core.Role{core.RoleTutor}, IsActive: &active}, want: []string{"kwame"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users, err := svc.Query(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Query() unexpected error = %v", err)
			}
			unames := make([]string, 0, len(users))
			for _, u := range users {
				unames = append(unames, u.Username)
			}
			assert.ElementsMatch(t, tt.want, unames)
		})
	}
}

func TestService_UpdateOrCreate(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()
	existing := testutil.CreateUser(t, repo, "Ama", "ama", "ama@example.com", "old-Pwd-1!", core.RoleStudent, false)

	if _, err := svc.UpdateOrCreate(ctx, "ama", "", strongPwd, "janitor"); !core.IsValidation(err) {
		t.Errorf("UpdateOrCreate() error = %v, want a validation error", err)
	}

	updated, err := svc.UpdateOrCreate(ctx, " AMA ", "", strongPwd, core.RoleInstitutionManager)
	if err != nil {
		t.Fatalf("UpdateOrCreate() unexpected error = %v", err)
	}
	assert.Equal(t, existing.ID, updated.ID)
	assert.Equal(t, core.RoleInstitutionManager, updated.Role)
	assert.True(t, updated.IsActive)
	assert.NoError(t, updated.CheckPassword(strongPwd))

	created, err := svc.UpdateOrCreate(ctx, "", "root@example.com", strongPwd, core.RoleAdmin)
	if err != nil {
		t.Fatalf("UpdateOrCreate() unexpected error = %v", err)
	}
	assert.NotEqual(t, existing.ID, created.ID)
	assert.Equal(t, core.RoleAdmin, created.Role)
}

func TestService_ResetPassword(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()
	testutil.CreateUser(t, repo, "Ama", "ama", "ama@example.com", "old-Pwd-1!", core.RoleStudent, true)

	usr, err := svc.ResetPassword(ctx, "ama@example.com", strongPwd)
	if err != nil {
		t.Fatalf("ResetPassword() unexpected error = %v", err)
	}
	assert.NoError(t, usr.CheckPassword(strongPwd))
	assert.Error(t, usr.CheckPassword("old-Pwd-1!"))

	if _, err = svc.ResetPassword(ctx, "ghost", strongPwd); !errors.Is(err, user.ErrNotFound) {
		t.Errorf("ResetPassword() error = %v, want %v", err, user.ErrNotFound)
	}
}
