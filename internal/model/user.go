package model

import (
	"time"
)

// Role is the closed set of permission levels a user account can hold.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleCompany Role = "company"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleCompany
}

// User represents the user account stored in the database
type User struct {
	ID                 uint      `json:"id" gorm:"primaryKey"`
	Email              string    `json:"email" gorm:"type:varchar(120);uniqueIndex;not null"`
	Password           string    `json:"-" gorm:"type:varchar(255);not null"`
	Role               Role      `json:"role" gorm:"type:varchar(20);not null;default:'company'"`
	MustChangePassword bool      `json:"must_change_password" gorm:"default:false"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`

	// One-to-one: a user account owns at most one company profile
	Company *Company `json:"company,omitempty" gorm:"foreignKey:UserID"`
}
