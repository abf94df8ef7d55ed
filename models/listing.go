package models

import (
	"time"
)

// ListingStatus статус объявления на барахолке
type ListingStatus string

const (
	ListingStatusActive ListingStatus = "active"
	ListingStatusSold   ListingStatus = "sold"
	ListingStatusHidden ListingStatus = "hidden"
)

// Listing объявление на районной барахолке
type Listing struct {
	ID          int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      int64         `gorm:"index" json:"user_id"`
	Title       string        `gorm:"size:255;not null" json:"title"`
	Description string        `gorm:"type:text" json:"description"`
	PriceCents  int64         `json:"price_cents"`
	Category    string        `gorm:"size:60;index" json:"category"`
	City        string        `gorm:"size:255;index" json:"city"`
	ImageURL    string        `gorm:"size:1024" json:"image_url"`
	Status      ListingStatus `gorm:"size:20;default:'active'" json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func (Listing) TableName() string {
	return "listings"
}

// FeedListing плоская проекция объявления для городской ленты
type FeedListing struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	UserName   string    `json:"user_name"`
	Title      string    `json:"title"`
	PriceCents int64     `json:"price_cents"`
	Category   string    `json:"category"`
	City       string    `json:"city"`
	CreatedAt  time.Time `json:"created_at"`
}

// ListingFeedResponse ответ ленты с курсорной пагинацией
type ListingFeedResponse struct {
	Listings []FeedListing `json:"listings"`
	HasMore  bool          `json:"has_more"`
	LastID   int64         `json:"last_id"`
}
