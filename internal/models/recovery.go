package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RecoveryRecord is one password recovery attempt. Only bcrypt hashes of
// the OTP code and the reset token are ever stored.
//
// Lifecycle: pending (VerifiedAt nil) -> verified (VerifiedAt set) ->
// used (UsedAt set, terminal).
type RecoveryRecord struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID            primitive.ObjectID `bson:"user_id" json:"user_id"`
	CodeHash          string             `bson:"code_hash" json:"-"`
	ExpiresAt         time.Time          `bson:"expires_at" json:"expires_at"`
	Attempts          int                `bson:"attempts" json:"attempts"`
	VerifiedAt        *time.Time         `bson:"verified_at,omitempty" json:"verified_at,omitempty"`
	ResetTokenHash    string             `bson:"reset_token_hash,omitempty" json:"-"`
	ResetTokenExpires *time.Time         `bson:"reset_token_expires,omitempty" json:"reset_token_expires,omitempty"`
	UsedAt            *time.Time         `bson:"used_at,omitempty" json:"used_at,omitempty"`
	CreatedAt         time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time          `bson:"updated_at" json:"updated_at"`
}
