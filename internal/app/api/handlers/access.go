package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pagflow/gatekeeper/internal/app/service/accessgate"
	"github.com/pagflow/gatekeeper/pkg/response"
)

// ApiCheckAccess handles GET /access/:identity. The answer is always 200
// with an explicit decision; deny reasons never leak as HTTP errors so
// callers can distinguish "no" from "broken".
func ApiCheckAccess(gate *accessgate.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := c.Param("identity")
		if identity == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing identity"))
			return
		}
		dec := gate.CheckAccess(c.Request.Context(), identity)
		c.JSON(http.StatusOK, response.OKT(dec))
	}
}

func RegisterAccessRoutes(r gin.IRouter, gate *accessgate.Gate) {
	r.GET("/access/:identity", ApiCheckAccess(gate))
}
