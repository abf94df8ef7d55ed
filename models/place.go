package models

import (
	"time"
)

// Place точка районного справочника: кафе, мастерская, площадка и т.д.
type Place struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Category    string    `gorm:"size:60;index" json:"category"`
	Address     string    `gorm:"size:512" json:"address"`
	City        string    `gorm:"size:255;index" json:"city"`
	Lat         float64   `json:"lat"`
	Lon         float64   `json:"lon"`
	Description string    `gorm:"type:text" json:"description"`
	AddedByID   int64     `gorm:"index" json:"added_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Place) TableName() string {
	return "places"
}
