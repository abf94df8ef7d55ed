package services

import (
	"context"
	"strings"

	"neighborhood/db"
	"neighborhood/models"
)

// CreatePlaceRequest запрос на добавление точки в районный справочник
type CreatePlaceRequest struct {
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Address     string  `json:"address"`
	City        string  `json:"city"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Description string  `json:"description"`
}

type PlaceService struct{}

func NewPlaceService() *PlaceService {
	return &PlaceService{}
}

// CreatePlace добавляет точку в справочник
func (ps *PlaceService) CreatePlace(ctx context.Context, userID int64, req CreatePlaceRequest) (*models.Place, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, &ValidationError{Field: "name"}
	}
	if strings.TrimSpace(req.City) == "" {
		return nil, &ValidationError{Field: "city"}
	}

	place := &models.Place{
		Name:        req.Name,
		Category:    req.Category,
		Address:     req.Address,
		City:        req.City,
		Lat:         req.Lat,
		Lon:         req.Lon,
		Description: req.Description,
		AddedByID:   userID,
	}
	if err := db.GetWriteDB(ctx).Create(place).Error; err != nil {
		return nil, storeErr("create_place", err)
	}
	return place, nil
}

// GetPlace возвращает точку по id
func (ps *PlaceService) GetPlace(ctx context.Context, placeID int64) (*models.Place, error) {
	var place models.Place
	err := db.GetReadOnlyDB(ctx).First(&place, placeID).Error
	if err != nil {
		return nil, storeErr("get_place", err)
	}
	return &place, nil
}

// ListPlaces возвращает точки города, опционально по категории
func (ps *PlaceService) ListPlaces(ctx context.Context, city, category string, limit, offset int) ([]models.Place, error) {
	if strings.TrimSpace(city) == "" {
		return nil, &ValidationError{Field: "city"}
	}
	if limit <= 0 || limit > 200 {
		limit = DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}

	query := db.GetReadOnlyDB(ctx).
		Where("LOWER(city) = ?", strings.ToLower(city))
	if category != "" {
		query = query.Where("category = ?", category)
	}

	var places []models.Place
	err := query.Order("name ASC").Limit(limit).Offset(offset).Find(&places).Error
	if err != nil {
		return nil, storeErr("list_places", err)
	}
	return places, nil
}
