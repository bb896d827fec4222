package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stackbound/identity-api/config"
	"github.com/stackbound/identity-api/pkg/response"
)

type HealthHandler struct {
	Cfg *config.Config
}

func NewHealthHandler(cfg *config.Config) *HealthHandler {
	return &HealthHandler{Cfg: cfg}
}

// Health GET /api/health
func (h *HealthHandler) Health(c *gin.Context) {
	response.Success(c, http.StatusOK, "server is running", gin.H{
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"environment": h.Cfg.Env,
	})
}
