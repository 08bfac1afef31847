package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Member statuses as used by the registration workflow. Only active
// members may recover their password.
const (
	StatusPending   = "pending"
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusRejected  = "rejected"
)

type User struct {
	ID                primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	StudentID         string             `json:"student_id" bson:"student_id"`
	FirstName         string             `json:"first_name" bson:"first_name"`
	LastName          string             `json:"last_name" bson:"last_name"`
	Email             string             `json:"email" bson:"email"`
	Password          string             `json:"-" bson:"password"`
	Status            string             `json:"status" bson:"status"`
	PasswordChangedAt *time.Time         `json:"password_changed_at,omitempty" bson:"password_changed_at,omitempty"`
	CreatedAt         time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at" bson:"updated_at"`
}

// Eligible reports whether the member can go through password recovery.
func (u *User) Eligible() bool {
	return u.Status == StatusActive && u.Email != ""
}
