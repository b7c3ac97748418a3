package usecase

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/agentmap/dashboard/internal/domain"
	"github.com/agentmap/dashboard/internal/metrics"
	"go.uber.org/zap"
)

// State is a phase of one classify-then-match orchestration.
type State int

const (
	StateIdle State = iota
	StateClassifying
	StateMatching
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateClassifying:
		return "classifying"
	case StateMatching:
		return "matching"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// StateObserver is notified of every state transition of an orchestration.
type StateObserver func(mseID int64, from, to State)

// OrchestratorConfig holds configuration for the orchestrator
type OrchestratorConfig struct {
	DefaultTopK int
	Timeout     time.Duration
	Bands       domain.BandThresholds
	Observer    StateObserver
}

// scoreTolerance absorbs rounding in the upstream composite before a
// disagreement is reported.
const scoreTolerance = 1e-3

// Orchestrator runs classify then match against the AgentMap API and
// re-derives every score locally.
type Orchestrator struct {
	client   domain.AgentMapClient
	topK     int
	timeout  time.Duration
	bands    domain.BandThresholds
	observer StateObserver
	log      *zap.Logger
}

// NewOrchestrator creates a new orchestrator with dependencies
func NewOrchestrator(client domain.AgentMapClient, config OrchestratorConfig, log *zap.Logger) *Orchestrator {
	topK := config.DefaultTopK
	if topK <= 0 {
		topK = domain.DefaultTopK
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	bands := config.Bands
	if bands.Validate() != nil {
		bands = domain.DefaultBandThresholds
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &Orchestrator{
		client:   client,
		topK:     topK,
		timeout:  timeout,
		bands:    bands,
		observer: config.Observer,
		log:      log,
	}
}

// DefaultTopK returns the match count used when a caller passes none.
func (o *Orchestrator) DefaultTopK() int {
	return o.topK
}

// Bands returns the thresholds used to re-classify composites.
func (o *Orchestrator) Bands() domain.BandThresholds {
	return o.bands
}

// RunRaw validates a user-supplied identifier and then runs the orchestration.
// An invalid identifier fails before any remote call.
func (o *Orchestrator) RunRaw(ctx context.Context, rawID string, topK int) (*domain.MatchResponse, error) {
	id, err := domain.ParseMSEID(rawID)
	if err != nil {
		return nil, err
	}
	return o.Run(ctx, id, topK)
}

// Run classifies the MSE and then requests its top matches. It returns either
// a complete response or a single error, never both.
func (o *Orchestrator) Run(ctx context.Context, mseID int64, topK int) (*domain.MatchResponse, error) {
	if _, err := domain.ValidateMSEID(mseID); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = o.topK
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	metrics.OrchestrationsActive.Inc()
	defer metrics.OrchestrationsActive.Dec()

	state := StateIdle
	transition := func(to State) {
		if o.observer != nil {
			o.observer(mseID, state, to)
		}
		state = to
	}

	fail := func(phase string, err error) (*domain.MatchResponse, error) {
		err = o.normalize(ctx, err)
		transition(StateFailed)

		outcome := string(domain.KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
		metrics.OrchestrationsTotal.WithLabelValues(outcome).Inc()
		metrics.OrchestrationDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

		fields := []zap.Field{
			zap.Int64("mse_id", mseID),
			zap.String("phase", phase),
			zap.String("kind", outcome),
			zap.Error(err),
		}
		if errors.Is(err, domain.ErrCanceled) {
			o.log.Debug("orchestration canceled", fields...)
		} else {
			o.log.Warn("orchestration failed", fields...)
		}
		return nil, err
	}

	transition(StateClassifying)
	if _, err := o.client.Classify(ctx, mseID); err != nil {
		return fail("classify", err)
	}

	transition(StateMatching)
	resp, err := o.client.Match(ctx, mseID, topK)
	if err != nil {
		return fail("match", err)
	}
	if resp == nil {
		return fail("match", domain.Errorf(domain.KindInvalidInput, "empty match response"))
	}

	out := o.rescore(resp, topK)

	transition(StateDone)
	metrics.OrchestrationsTotal.WithLabelValues("done").Inc()
	metrics.OrchestrationDuration.WithLabelValues("done").Observe(time.Since(start).Seconds())

	o.log.Info("orchestration completed",
		zap.Int64("mse_id", mseID),
		zap.Int("matches", len(out.Matches)),
		zap.Bool("has_domain", out.HasDomain()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}

// rescore truncates to topK in upstream order and recomputes composite and
// band for each item. Rank order is never changed.
func (o *Orchestrator) rescore(resp *domain.MatchResponse, topK int) *domain.MatchResponse {
	n := len(resp.Matches)
	if n > topK {
		n = topK
	}

	out := &domain.MatchResponse{
		MSEID:           resp.MSEID,
		MSEName:         resp.MSEName,
		PredictedDomain: resp.PredictedDomain,
		Matches:         make([]domain.MatchItem, 0, n),
	}

	for _, item := range resp.Matches[:n] {
		composite := domain.CompositeScore(item.Factors)
		band := o.bands.Classify(composite)

		if math.Abs(composite-item.CompositeScore) > scoreTolerance || band != item.ConfidenceBand {
			metrics.BandDisagreements.Inc()
			o.log.Warn("upstream score disagrees with local score model",
				zap.Int64("mse_id", resp.MSEID),
				zap.Int64("snp_id", item.SNPID),
				zap.Float64("upstream_composite", item.CompositeScore),
				zap.Float64("local_composite", composite),
				zap.String("upstream_band", string(item.ConfidenceBand)),
				zap.String("local_band", string(band)),
			)
		}

		item.CompositeScore = composite
		item.ConfidenceBand = band
		out.Matches = append(out.Matches, item)
	}
	return out
}

// normalize maps an expired orchestration context onto Timeout and an
// abandoned one onto Canceled, whichever phase observed it.
func (o *Orchestrator) normalize(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) && !errors.Is(err, domain.ErrCanceled) {
		return domain.NewError(domain.KindCanceled, "match request canceled", err)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, domain.ErrTimeout) {
		return domain.NewError(domain.KindTimeout, "match request timed out after "+o.timeout.String(), err)
	}
	if errors.Is(err, context.DeadlineExceeded) && domain.KindOf(err) == "" {
		return domain.NewError(domain.KindTimeout, "match request timed out after "+o.timeout.String(), err)
	}
	return err
}
