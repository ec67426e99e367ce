package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// LookupByDocument - GET /api/lookup/document/:number
func (h *Handlers) LookupByDocument(c *gin.Context) {
	res, err := h.lookup.ByDocument(c.Request.Context(), c.Param("number"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// LookupByReservation - GET /api/lookup/reservation/:code
// Local check-ins first, then the booking provider.
func (h *Handlers) LookupByReservation(c *gin.Context) {
	res, err := h.lookup.ByReservation(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// LookupByContact - GET /api/lookup/contact?phone=&email=
func (h *Handlers) LookupByContact(c *gin.Context) {
	res, err := h.lookup.ByContact(c.Request.Context(), c.Query("phone"), c.Query("email"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
