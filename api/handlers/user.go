package handlers

import (
	"net/http"
	"strconv"

	"neighborhood/services"

	"github.com/gin-gonic/gin"
)

// GetProfile - публичный профиль жителя по ID
func GetProfile(c *gin.Context) {
	userID, ok := paramID(c, "user_id")
	if !ok {
		return
	}

	user, err := services.GetUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, user.ToProfile())
}

// SearchProfiles - поиск жителей по имени и фамилии (префиксный)
func SearchProfiles(c *gin.Context) {
	firstName := c.Query("first_name")
	lastName := c.Query("last_name")
	if firstName == "" && lastName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "first_name or last_name is required"})
		return
	}

	limit := 20
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}
	offset := 0
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	users, err := services.SearchUsers(c.Request.Context(), firstName, lastName, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Search failed"})
		return
	}

	profiles := make([]interface{}, 0, len(users))
	for i := range users {
		profiles = append(profiles, users[i].ToProfile())
	}
	c.JSON(http.StatusOK, gin.H{"users": profiles})
}
