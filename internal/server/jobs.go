package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/boq-matcher/internal/common"
	"github.com/joseph-ayodele/boq-matcher/internal/services/matching"
)

func (s *Server) getJob(c *gin.Context) {
	id, ok := s.jobID(c)
	if !ok {
		return
	}
	snap, err := s.engine.GetJobStatus(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) jobResults(c *gin.Context) {
	id, ok := s.jobID(c)
	if !ok {
		return
	}
	results, err := s.engine.Results(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_id": id, "results": results})
}

func (s *Server) cancelJob(c *gin.Context) {
	id, ok := s.jobID(c)
	if !ok {
		return
	}
	if !s.engine.CancelJob(c.Request.Context(), id) {
		if _, err := s.engine.GetJobStatus(c.Request.Context(), id); err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusConflict, gin.H{"job_id": id, "cancelled": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_id": id, "cancelled": true})
}

func (s *Server) cancelAll(c *gin.Context) {
	n := s.engine.CancelAllJobs(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"cancelled": n})
}

func (s *Server) queueStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.GetQueueStatus(c.Request.Context()))
}

type matchRequest struct {
	Description    string   `json:"description"`
	Unit           string   `json:"unit"`
	Quantity       float64  `json:"quantity"`
	Strategy       string   `json:"strategy"`
	ContextHeaders []string `json:"context_headers"`
}

func (s *Server) matchSingle(c *gin.Context) {
	var req matchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, common.InvalidInputf("invalid body: %v", err))
		return
	}
	res, err := s.engine.MatchSingle(c.Request.Context(), matching.MatchRequest{
		Description:    strings.TrimSpace(req.Description),
		Unit:           req.Unit,
		Quantity:       req.Quantity,
		Strategy:       req.Strategy,
		ContextHeaders: req.ContextHeaders,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": res, "total_price": res.TotalPrice()})
}
