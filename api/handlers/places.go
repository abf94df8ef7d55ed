package handlers

import (
	"net/http"
	"strconv"

	"neighborhood/api/middleware"
	"neighborhood/services"

	"github.com/gin-gonic/gin"
)

// PlaceHandlers обработчики районного справочника
type PlaceHandlers struct {
	svc *services.PlaceService
}

func NewPlaceHandlers(svc *services.PlaceService) *PlaceHandlers {
	return &PlaceHandlers{svc: svc}
}

// Create - добавление точки в справочник
func (h *PlaceHandlers) Create(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req services.CreatePlaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	place, err := h.svc.CreatePlace(c.Request.Context(), userID, req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"place": place})
}

// Get - одна точка справочника
func (h *PlaceHandlers) Get(c *gin.Context) {
	placeID, ok := paramID(c, "place_id")
	if !ok {
		return
	}

	place, err := h.svc.GetPlace(c.Request.Context(), placeID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Place not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"place": place})
}

// List - точки города, опционально по категории
func (h *PlaceHandlers) List(c *gin.Context) {
	city := c.Query("city")
	category := c.Query("category")

	limit := 0
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			limit = l
		}
	}
	offset := 0
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil {
			offset = o
		}
	}

	places, err := h.svc.ListPlaces(c.Request.Context(), city, category, limit, offset)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"places": places})
}
