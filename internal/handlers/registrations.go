package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hostelgate/internal/models"
	"hostelgate/internal/service"
)

// CreateRegistrations - POST /api/registrations/:reservation
// The first guest is the primary traveler.
func (h *Handlers) CreateRegistrations(c *gin.Context) {
	var req models.CreateRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	records, err := h.registrations.CreateFromGuestList(c.Request.Context(), c.Param("reservation"),
		service.NormalizeGuests(req.Guests), req.Context)
	if err != nil {
		respondError(c, err)
		return
	}
	if records == nil {
		records = []models.RegistrationRecord{}
	}
	c.JSON(http.StatusCreated, gin.H{"records": records})
}

// ProcessRegistrations - POST /api/registrations/:reservation/process
// Runs the pipeline synchronously.
func (h *Handlers) ProcessRegistrations(c *gin.Context) {
	res, err := h.registrations.ProcessReservation(c.Request.Context(), c.Param("reservation"))
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if res.Skipped {
		status = http.StatusAccepted
	}
	c.JSON(status, res)
}

// RegistrationStatus - GET /api/registrations/:reservation/status
func (h *Handlers) RegistrationStatus(c *gin.Context) {
	res, err := h.registrations.Status(c.Request.Context(), c.Param("reservation"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// RetryRegistrations - POST /api/registrations/:reservation/retry
func (h *Handlers) RetryRegistrations(c *gin.Context) {
	res, err := h.registrations.Retry(c.Request.Context(), c.Param("reservation"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, res)
}
