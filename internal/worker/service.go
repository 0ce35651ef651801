// Package worker implements the detector-hosting HTTP service: the
// `detect` and `health` endpoints, the fingerprint-keyed idempotency
// cache, and the admission/rate-limit/auth middleware stack in front of
// them.
package worker

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rawblock/trade-surveillance-engine/internal/domain"
	"github.com/rawblock/trade-surveillance-engine/internal/fingerprint"
	"github.com/rawblock/trade-surveillance-engine/internal/transport"
)

// Detector is the shape both the layering and wash-trading detectors
// satisfy; a worker process hosts exactly one of them.
type Detector interface {
	Detect(events []domain.TransactionEvent) []domain.SuspiciousSequence
}

// Service is a single-algorithm worker: one Detector behind `detect`,
// fronted by an idempotency cache keyed on (request_id, fingerprint).
type Service struct {
	name     string
	detector Detector
	cache    *idempotencyCache
	maxEvents int
}

// Config configures a Service.
type Config struct {
	ServiceName string
	Detector    Detector
	CacheSize   int
	MaxEvents   int
}

// New builds a Service ready to be registered on a gin.Engine.
func New(cfg Config) *Service {
	maxEvents := cfg.MaxEvents
	if maxEvents <= 0 {
		maxEvents = defaultMaxEvents
	}
	return &Service{
		name:      cfg.ServiceName,
		detector:  cfg.Detector,
		cache:     newIdempotencyCache(cfg.CacheSize),
		maxEvents: maxEvents,
	}
}

// Register wires the `detect` and `health` routes onto the engine. The
// caller is responsible for applying auth/rate-limit/admission
// middleware to whichever route group it registers `detect` under;
// `health` is intentionally registered outside any such group.
func (s *Service) Register(detectGroup gin.IRoutes, engine *gin.Engine) {
	detectGroup.POST("/detect", s.handleDetect)
	engine.GET("/health", s.handleHealth)
}

func (s *Service) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"service":      s.name,
		"cache_entries": s.cache.len(),
	})
}

func (s *Service) handleDetect(c *gin.Context) {
	var req transport.DetectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondFailure(c, http.StatusBadRequest, req.RequestID, transport.Classify(transport.KindRequestValidation, err))
		return
	}

	if len(req.Events) > s.maxEvents {
		s.respondFailure(c, http.StatusBadRequest, req.RequestID,
			transport.Classify(transport.KindRequestValidation, errTooManyEvents(len(req.Events), s.maxEvents)))
		return
	}

	events, skipped, err := decodeEvents(req.Events)
	if err != nil {
		s.respondFailure(c, http.StatusBadRequest, req.RequestID, transport.Classify(transport.KindRequestValidation, err))
		return
	}
	if skipped > 0 {
		log.Printf("worker %s: request %s skipped %d malformed rows", s.name, req.RequestID, skipped)
	}

	actualFingerprint := fingerprint.Compute(events)
	key := cacheKey{requestID: req.RequestID, fingerprint: actualFingerprint}

	if cached, ok := s.cache.get(key); ok {
		c.JSON(http.StatusOK, transport.DetectResponse{
			RequestID:   req.RequestID,
			ServiceName: s.name,
			Status:      transport.StatusSuccess,
			Results:     toWireSequences(cached),
		})
		return
	}

	results := s.detector.Detect(events)
	s.cache.put(key, results)

	c.JSON(http.StatusOK, transport.DetectResponse{
		RequestID:   req.RequestID,
		ServiceName: s.name,
		Status:      transport.StatusSuccess,
		Results:     toWireSequences(results),
	})
}

func (s *Service) respondFailure(c *gin.Context, httpStatus int, requestID string, err *transport.ClassifiedError) {
	msg := transport.Sanitize(requestID, err)
	log.Printf("worker %s: request %s failed: %v", s.name, requestID, err)
	c.JSON(httpStatus, transport.DetectResponse{
		RequestID:   requestID,
		ServiceName: s.name,
		Status:      transport.StatusFailure,
		Error:       &msg,
	})
}

func decodeEvents(wire []transport.EventWire) ([]domain.TransactionEvent, int, error) {
	events := make([]domain.TransactionEvent, 0, len(wire))
	skipped := 0
	for i, w := range wire {
		e, err := transport.FromWireEvent(w, i)
		if err != nil {
			skipped++
			continue
		}
		events = append(events, e)
	}
	return events, skipped, nil
}

func toWireSequences(seqs []domain.SuspiciousSequence) []transport.SequenceWire {
	out := make([]transport.SequenceWire, 0, len(seqs))
	for _, s := range seqs {
		out = append(out, transport.ToWireSequence(s))
	}
	return out
}
