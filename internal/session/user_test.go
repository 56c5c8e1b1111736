package session

import "testing"

func TestUserRole(t *testing.T) {
	tests := []struct {
		name string
		user User
		want Role
	}{
		{"superuser is admin", User{IsSuperuser: true}, RoleAdmin},
		{"admin role string is admin", User{RoleField: "admin"}, RoleAdmin},
		{"admin role string is case-insensitive", User{RoleField: "Admin"}, RoleAdmin},
		{"staff flag is staff", User{IsStaff: true}, RoleStaff},
		{"superuser outranks staff flag", User{IsSuperuser: true, IsStaff: true}, RoleAdmin},
		{"no flags is user", User{}, RoleUser},
		{"other role string is user", User{RoleField: "viewer"}, RoleUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.user.Role(); got != tt.want {
				t.Errorf("expected role %s, got %s", tt.want, got)
			}
		})
	}
}

func TestUserDisplayName(t *testing.T) {
	tests := []struct {
		name string
		user User
		want string
	}{
		{"full name", User{FirstName: "Ana", LastName: "Reyes", Username: "areyes"}, "Ana Reyes"},
		{"first name only", User{FirstName: "Ana", Username: "areyes"}, "Ana"},
		{"last name only", User{LastName: "Reyes", Username: "areyes"}, "Reyes"},
		{"username fallback", User{Username: "areyes"}, "areyes"},
		{"whitespace-only names fall back", User{FirstName: " ", LastName: " ", Username: "areyes"}, "areyes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.user.DisplayName(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestHasRole(t *testing.T) {
	tests := []struct {
		name     string
		user     *User
		required Role
		want     bool
	}{
		{"admin satisfies admin", &User{IsSuperuser: true}, RoleAdmin, true},
		{"role string satisfies admin", &User{RoleField: "admin"}, RoleAdmin, true},
		{"staff does not satisfy admin", &User{IsStaff: true}, RoleAdmin, false},
		{"admin satisfies staff", &User{IsSuperuser: true}, RoleStaff, true},
		{"staff satisfies staff", &User{IsStaff: true}, RoleStaff, true},
		{"plain user fails staff", &User{}, RoleStaff, false},
		{"anyone satisfies user", &User{}, RoleUser, true},
		{"nil user fails admin", nil, RoleAdmin, false},
		{"nil user fails staff", nil, RoleStaff, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Manager{}
			m.user = tt.user
			if got := m.HasRole(tt.required); got != tt.want {
				t.Errorf("HasRole(%s) = %v, want %v", tt.required, got, tt.want)
			}
		})
	}
}
