package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hostelgate/internal/models"
)

// ProvisionPins - POST /api/pins
// Creates one PIN on every lock of a room. Partial failures still answer
// 200; the per-lock results say which locks failed.
func (h *Handlers) ProvisionPins(c *gin.Context) {
	var req models.ProvisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	res, err := h.pins.ProvisionForRoom(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ListPins - GET /api/pins
func (h *Handlers) ListPins(c *gin.Context) {
	locks, err := h.pins.ListAllPasscodes(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"locks": locks})
}

// DeletePin - DELETE /api/pins/:lockId/:passcodeId
func (h *Handlers) DeletePin(c *gin.Context) {
	lockID, ok := pathInt64(c, "lockId")
	if !ok {
		return
	}
	passcodeID, ok := pathInt64(c, "passcodeId")
	if !ok {
		return
	}
	res, err := h.pins.DeletePasscode(c.Request.Context(), lockID, passcodeID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
