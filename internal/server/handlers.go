package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/PentesterFlow/PanelProbe/pkg/prober"
)

// handleValidate runs one probe. Requests missing required fields get a
// 400 carrying the usual failure shape.
func (s *Server) handleValidate(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.config.MaxRequestBytes)

	var req prober.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"details": "invalid request body: " + err.Error(),
			"logs":    []prober.Attempt{},
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.config.ProbeTimeout)
	defer cancel()

	res := s.prober.Probe(ctx, req)
	if req.Validate() != nil {
		c.JSON(http.StatusBadRequest, res)
		return
	}

	s.record(req, res)
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleProviders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": s.prober.Registry().List()})
}

func (s *Server) handleMetrics(c *gin.Context) {
	snap := s.prober.Metrics().Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"summary":  snap.Summary(),
		"snapshot": snap,
	})
}

func (s *Server) handleTraces(c *gin.Context) {
	if s.traces == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "trace store disabled"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
		return
	}

	list, err := s.traces.List(limit)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list traces")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list traces"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"traces": list})
}

func (s *Server) handleTrace(c *gin.Context) {
	if s.traces == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "trace store disabled"})
		return
	}

	rec, err := s.traces.Get(c.Param("id"))
	if err != nil {
		s.logger.WithError(err).Error("Failed to load trace")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load trace"})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "trace not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}
