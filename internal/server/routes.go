package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/danmuck/reconctl/internal/operations"
	"github.com/danmuck/reconctl/internal/tools"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ParamInfo struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Required    bool     `json:"required"`
	Default     any      `json:"default,omitempty"`
	Choices     []string `json:"choices,omitempty"`
	Min         *int     `json:"min,omitempty"`
}

type OperationInfo struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Params      []ParamInfo `json:"params"`
}

type rawRequest struct {
	Command string `json:"command" binding:"required"`
}

func (s *Server) registerRoutes() {
	r := s.router
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(s.Started).String(),
		})
	})

	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ready":      true,
			"operations": s.dispatcher.Registry().Len(),
			"raw":        s.raw != nil,
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/operations", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"operations": Describe(s.dispatcher.Registry())})
	})

	r.POST("/operations/:name", func(c *gin.Context) {
		var args map[string]any
		if err := c.ShouldBindJSON(&args); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   operations.KindInvalidParameter,
				"message": "body must be a JSON object of arguments: " + err.Error(),
			})
			return
		}

		res := s.dispatcher.Dispatch(c.Request.Context(), c.Param("name"), args)
		if !res.OK() {
			c.JSON(statusFor(res.Kind()), gin.H{
				"operation": res.Operation,
				"error":     res.Kind(),
				"message":   res.Text(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"operation": res.Operation,
			"status":    "ok",
			"args":      res.Args,
			"output":    res.Stdout,
		})
	})

	if s.raw == nil {
		return
	}
	r.POST("/raw", func(c *gin.Context) {
		var req rawRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   operations.KindInvalidParameter,
				"message": "command is required",
			})
			return
		}
		text, err := s.raw.Run(c.Request.Context(), req.Command)
		if err != nil {
			kind := operations.KindExecutionError
			if errors.Is(err, tools.ErrTimedOut) {
				kind = operations.KindTimedOut
			}
			c.JSON(statusFor(kind), gin.H{"error": kind, "message": text})
			return
		}
		c.JSON(http.StatusOK, gin.H{"output": text})
	})
}

// Describe lists the catalog in name order.
func Describe(registry *operations.Registry) []OperationInfo {
	ops := registry.List()
	out := make([]OperationInfo, 0, len(ops))
	for _, op := range ops {
		params := make([]ParamInfo, 0, len(op.Params))
		for _, p := range op.Params {
			params = append(params, ParamInfo{
				Name:        p.Name,
				Type:        string(p.Type),
				Description: p.Description,
				Required:    p.Required(),
				Default:     p.Default,
				Choices:     p.Choices,
				Min:         p.Min,
			})
		}
		out = append(out, OperationInfo{
			Name:        op.Name,
			Description: op.Description,
			Params:      params,
		})
	}
	return out
}

func statusFor(kind operations.FailureKind) int {
	switch kind {
	case operations.KindUnknownOperation:
		return http.StatusNotFound
	case operations.KindInvalidParameter:
		return http.StatusBadRequest
	case operations.KindTimedOut:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
