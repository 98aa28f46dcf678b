package model

import (
	"time"
)

// User mirrors the identity service's account records. This service only
// reads users; creation and authentication live elsewhere.
type User struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Name      string    `db:"name" json:"name"`
	Role      UserRole  `db:"role" json:"role"`
	IsActive  bool      `db:"is_active" json:"isActive"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// CanAccessRobot reports whether the user may read or mutate the robot.
// Admins see everything; everyone else only their own robots.
func (u *User) CanAccessRobot(r *Robot) bool {
	if u.IsAdmin() {
		return true
	}
	return r.OwnerID != nil && *r.OwnerID == u.ID
}
