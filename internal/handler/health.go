package handler

import (
	"context"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"deposit-core/internal/handler/response"
)

// DependencyCheck 返回 nil 表示依赖可用
type DependencyCheck func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]DependencyCheck
}

// NewHealthHandler checks 里放 redis / postgres 之类的可选依赖
func NewHealthHandler(checks map[string]DependencyCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

type HealthResponse struct {
	Status     string            `json:"status"` // UP, DEGRADED
	Service    string            `json:"service"`
	Components map[string]string `json:"components,omitempty"`
}

// Check godoc
// @Summary Check system health
// @Description Service status plus optional dependencies. A failing dependency reports DEGRADED, the service keeps answering.
// @Tags system
// @Produce  json
// @Success 200 {object} response.Response{data=HealthResponse}
// @Router /health [get]
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "UP", Service: "deposit-server"}
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if resp.Components == nil {
			resp.Components = make(map[string]string, len(names))
		}
		if err := h.checks[name](ctx); err != nil {
			resp.Status = "DEGRADED"
			resp.Components[name] = "DOWN: " + err.Error()
			continue
		}
		resp.Components[name] = "UP"
	}
	response.Success(c, resp)
}
