package aggregator

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rawblock/trade-surveillance-engine/internal/transport"
)

// Service hosts the `aggregate` endpoint behind a gin engine.
type Service struct {
	policy Policy
	onMerge func(requestID string, result Result)
}

// New builds a Service. onMerge, if non-nil, is invoked after a
// successful merge — the dashboard hub and the run-audit log both hang
// off this hook rather than being baked into the handler itself.
func New(policy Policy, onMerge func(requestID string, result Result)) *Service {
	return &Service{policy: policy, onMerge: onMerge}
}

func (s *Service) Register(engine *gin.Engine) {
	engine.POST("/aggregate", s.handleAggregate)
	engine.GET("/health", s.handleHealth)
}

func (s *Service) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "aggregator"})
}

func (s *Service) handleAggregate(c *gin.Context) {
	var req transport.AggregateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		msg := transport.Sanitize("", transport.Classify(transport.KindRequestValidation, err))
		c.JSON(http.StatusBadRequest, transport.AggregateResponse{Status: transport.AggregateValidationFailed, Error: &msg})
		return
	}

	result := Merge(req, s.policy)
	if result.Err != nil {
		msg := transport.Sanitize(req.RequestID, result.Err)
		log.Printf("aggregator: request %s failed validation: %v", req.RequestID, result.Err)
		c.JSON(http.StatusUnprocessableEntity, transport.AggregateResponse{
			Status: transport.AggregateValidationFailed,
			Error:  &msg,
		})
		return
	}

	if s.onMerge != nil {
		s.onMerge(req.RequestID, result)
	}

	c.JSON(http.StatusOK, transport.AggregateResponse{
		Status:         transport.AggregateCompleted,
		MergedCount:    len(result.Findings),
		FailedServices: result.FailedServices,
	})
}
