package handlers

import (
	"net/http"
	"github.com/pagflow/gatekeeper/pkg/response"

	"github.com/gin-gonic/gin"
)

// Healthz reports liveness only; it never touches the database.
func Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, response.OKT(map[string]string{"status": "ok"}))
}

func RegisterHealthRoutes(r gin.IRouter) {
	r.GET("/healthz", Healthz)
}
