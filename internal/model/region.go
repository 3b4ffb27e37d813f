package model

// Region represents a named geographic service area. Regions cannot be
// deleted while any company still references them.
type Region struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"type:varchar(100);uniqueIndex;not null"`
}
