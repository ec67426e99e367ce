package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hostelgate/internal/models"
)

// CreateSession - POST /api/sessions
// Issues a shareable pre-fill link for a reservation.
func (h *Handlers) CreateSession(c *gin.Context) {
	var req models.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	resp, err := h.sessions.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// GetSession - GET /api/sessions/:token
// ?use=1 records the first time the guest opened the link.
func (h *Handlers) GetSession(c *gin.Context) {
	use := c.Query("use")
	resp, err := h.sessions.Get(c.Request.Context(), c.Param("token"), use == "1" || use == "true")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SaveSession - PUT /api/sessions/:token
func (h *Handlers) SaveSession(c *gin.Context) {
	var req models.SaveProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	resp, err := h.sessions.SaveProgress(c.Request.Context(), c.Param("token"), req.Payload)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
