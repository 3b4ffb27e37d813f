package model

import (
	"time"
)

// Company represents a waste-management service provider profile.
// Each company is backed by exactly one user account and serves
// zero or more regions through the company_region join table.
type Company struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	UserID      uint      `json:"user_id" gorm:"uniqueIndex;not null"`
	Name        string    `json:"name" gorm:"type:varchar(100);not null"`
	Phone       string    `json:"phone" gorm:"type:varchar(20);not null"`
	Email       string    `json:"email" gorm:"type:varchar(120);not null"`
	Description string    `json:"description" gorm:"type:text;not null"`
	Approved    bool      `json:"approved" gorm:"default:false"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Relations
	Regions         []Region         `json:"regions" gorm:"many2many:company_region;"`
	ServiceRequests []ServiceRequest `json:"service_requests,omitempty" gorm:"foreignKey:CompanyID"`
}
