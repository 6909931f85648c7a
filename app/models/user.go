package models

import "time"

// Role values carried in the users table and in access-token claims.
const (
	RoleAdmin   = "admin"
	RoleDoctor  = "doctor"
	RolePatient = "patient"
)

// ValidRole reports whether role is one of the three portal roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleDoctor, RolePatient:
		return true
	}
	return false
}

// DashboardPath returns the landing route for a role after login.
func DashboardPath(role string) string {
	return "/" + role + "/dashboard"
}

type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}
