package model

import (
	"time"

	"github.com/google/uuid"
)

type UserRole string

const (
	UserRoleAdmin   UserRole = "ADMIN"
	UserRoleDoctor  UserRole = "DOCTOR"
	UserRolePatient UserRole = "PATIENT"
	UserRoleNurse   UserRole = "NURSE"
)

// User is the contract surface of the account collaborator. This service
// only reads it, for notification recipients and relay identities.
type User struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Name      string    `db:"name" json:"name"`
	Role      UserRole  `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
