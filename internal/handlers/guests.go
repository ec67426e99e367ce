package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"hostelgate/internal/models"
)

// ListGuests - GET /api/admin/guests
func (h *Handlers) ListGuests(c *gin.Context) {
	filter := models.GuestFilter{Query: c.Query("q")}

	var err error
	if v := c.Query("limit"); v != "" {
		if filter.Limit, err = strconv.Atoi(v); err != nil || filter.Limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
	}
	if v := c.Query("offset"); v != "" {
		if filter.Offset, err = strconv.Atoi(v); err != nil || filter.Offset < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be >= 0"})
			return
		}
	}

	guests, err := h.guests.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	if guests == nil {
		guests = []models.GuestRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"guests": guests})
}

// GetGuest - GET /api/admin/guests/:id
func (h *Handlers) GetGuest(c *gin.Context) {
	id, ok := pathInt64(c, "id")
	if !ok {
		return
	}
	detail, err := h.guests.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// UpdateShareURL - PATCH /api/admin/guests/:id/share-url
func (h *Handlers) UpdateShareURL(c *gin.Context) {
	id, ok := pathInt64(c, "id")
	if !ok {
		return
	}
	var req models.UpdateShareURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	guest, err := h.guests.UpdateShareURL(c.Request.Context(), id, req.ShareURL)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, guest)
}

// DeleteGuest - DELETE /api/admin/guests/:id
// Revokes the guest's PINs on the locks before removing the record.
func (h *Handlers) DeleteGuest(c *gin.Context) {
	id, ok := pathInt64(c, "id")
	if !ok {
		return
	}
	result, err := h.guests.Delete(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
