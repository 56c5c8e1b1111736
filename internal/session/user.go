package session

import (
	"strings"

	"github.com/mdps/dashboard-client/internal/api"
)

// Role is the derived authorization level
type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
	RoleUser  Role = "user"
)

// Status mirrors the backend's account states. Only Suspended carries
// client-side behavior; the rest are surfaced for display.
type Status string

const (
	StatusActive    Status = "Active"
	StatusInactive  Status = "Inactive"
	StatusPending   Status = "Pending"
	StatusPaused    Status = "Paused"
	StatusSuspended Status = "Suspended"
)

// User is the resolved identity. Authorization fields are never mutated
// locally; the only way they change is a re-fetch from the backend.
type User struct {
	ID          int64
	Username    string
	Email       string
	FirstName   string
	LastName    string
	IsSuperuser bool
	IsStaff     bool
	RoleField   string
	Status      Status
}

// DisplayName derives a presentable name from first/last name, falling back
// to the username. Computed on every call rather than cached.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// Role derives the authorization level from the backend flags
func (u *User) Role() Role {
	if u.isAdmin() {
		return RoleAdmin
	}
	if u.IsStaff {
		return RoleStaff
	}
	return RoleUser
}

func (u *User) isAdmin() bool {
	return u.IsSuperuser || strings.EqualFold(u.RoleField, "admin")
}

func userFromPayload(p *api.UserPayload) *User {
	return &User{
		ID:          p.ID,
		Username:    p.Username,
		Email:       p.Email,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		IsSuperuser: p.IsSuperuser,
		IsStaff:     p.IsStaff,
		RoleField:   p.Role,
		Status:      Status(p.Status),
	}
}
