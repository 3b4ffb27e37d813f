package model

import (
	"time"
)

// ServiceRequest is a work order owned by a company. The table is part of
// the schema and is removed together with its company, but no HTTP
// operation exposes it yet.
type ServiceRequest struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Description string    `json:"description" gorm:"type:text;not null"`
	Status      string    `json:"status" gorm:"type:varchar(20);default:'pending'"`
	CompanyID   uint      `json:"company_id" gorm:"index;not null"`
	CreatedAt   time.Time `json:"created_at"`
}
