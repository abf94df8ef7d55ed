package handlers

import (
	"net/http"
	"strconv"

	"neighborhood/api/middleware"
	"neighborhood/services"

	"github.com/gin-gonic/gin"
)

// ListingHandlers обработчики барахолки (районные объявления)
type ListingHandlers struct {
	svc *services.ListingService
}

func NewListingHandlers(svc *services.ListingService) *ListingHandlers {
	return &ListingHandlers{svc: svc}
}

// Create - публикация объявления
func (h *ListingHandlers) Create(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req services.CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	listing, err := h.svc.CreateListing(c.Request.Context(), userID, req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"listing": listing})
}

// CityFeed - городская лента объявлений, курсорная пагинация по last_id
func (h *ListingHandlers) CityFeed(c *gin.Context) {
	city := c.Query("city")
	if city == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "city is required"})
		return
	}

	var lastID int64
	if lastIDStr := c.Query("last_id"); lastIDStr != "" {
		if parsed, err := strconv.ParseInt(lastIDStr, 10, 64); err == nil && parsed > 0 {
			lastID = parsed
		}
	}
	limit := 20
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	feed, err := h.svc.CityFeed(c.Request.Context(), city, lastID, limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, feed)
}

// Get - одно объявление
func (h *ListingHandlers) Get(c *gin.Context) {
	listingID, ok := paramID(c, "listing_id")
	if !ok {
		return
	}

	listing, err := h.svc.GetListing(c.Request.Context(), listingID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"listing": listing})
}

// MarkSold - пометить объявление проданным (только автор)
func (h *ListingHandlers) MarkSold(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	listingID, ok := paramID(c, "listing_id")
	if !ok {
		return
	}

	if err := h.svc.MarkSold(c.Request.Context(), userID, listingID); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Listing marked as sold"})
}

// Delete - снять объявление (только автор)
func (h *ListingHandlers) Delete(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	listingID, ok := paramID(c, "listing_id")
	if !ok {
		return
	}

	if err := h.svc.DeleteListing(c.Request.Context(), userID, listingID); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Listing deleted"})
}
