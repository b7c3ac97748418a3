package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/agentmap/dashboard/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Matcher runs one orchestration for a user-supplied identifier.
type Matcher interface {
	RunRaw(ctx context.Context, rawID string, topK int) (*domain.MatchResponse, error)
}

// DashboardServiceConfig holds configuration for the dashboard service
type DashboardServiceConfig struct {
	SessionTTL time.Duration
}

type inflight struct {
	requestID string
	cancel    context.CancelFunc
}

// DashboardService keeps one dashboard state per session. A new match request
// cancels the session's in-flight one, and only the latest request may write
// its outcome.
type DashboardService struct {
	matcher Matcher
	store   domain.SessionStore
	ttl     time.Duration
	log     *zap.Logger

	mu       sync.Mutex
	inflight map[string]inflight
}

// NewDashboardService creates a new dashboard service with dependencies
func NewDashboardService(matcher Matcher, store domain.SessionStore, config DashboardServiceConfig, log *zap.Logger) *DashboardService {
	ttl := config.SessionTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &DashboardService{
		matcher:  matcher,
		store:    store,
		ttl:      ttl,
		log:      log,
		inflight: make(map[string]inflight),
	}
}

// NewSessionID returns a fresh random session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// StartMatch clears the session's error, marks it loading and runs a new
// orchestration. The returned state is the one written for this request.
// A request replaced by a newer one returns ErrSuperseded and leaves the
// newer state untouched.
func (s *DashboardService) StartMatch(ctx context.Context, sessionID, rawID string, topK int) (*domain.DashboardState, error) {
	if sessionID == "" {
		return nil, domain.Errorf(domain.KindInvalidInput, "session id is required")
	}

	requestID := uuid.NewString()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Claim the session before cancelling the previous request.
	s.mu.Lock()
	err := s.store.Update(ctx, sessionID, s.ttl, func(cur *domain.DashboardState) *domain.DashboardState {
		if cur == nil {
			cur = &domain.DashboardState{}
		}
		cur.Loading = true
		cur.Error = ""
		cur.ErrorKind = ""
		cur.RequestID = requestID
		cur.UpdatedAt = time.Now()
		return cur
	})
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	prev, hadPrev := s.inflight[sessionID]
	s.inflight[sessionID] = inflight{requestID: requestID, cancel: cancel}
	s.mu.Unlock()

	if hadPrev {
		prev.cancel()
		s.log.Debug("cancelled superseded match request",
			zap.String("session_id", sessionID),
			zap.String("request_id", prev.requestID),
		)
	}

	defer func() {
		s.mu.Lock()
		if cur, ok := s.inflight[sessionID]; ok && cur.requestID == requestID {
			delete(s.inflight, sessionID)
		}
		s.mu.Unlock()
	}()

	resp, runErr := s.matcher.RunRaw(runCtx, rawID, topK)

	var (
		written    *domain.DashboardState
		superseded bool
	)
	err = s.store.Update(context.Background(), sessionID, s.ttl, func(cur *domain.DashboardState) *domain.DashboardState {
		if cur == nil || cur.RequestID != requestID {
			superseded = true
			return cur
		}
		cur.Loading = false
		cur.UpdatedAt = time.Now()
		if runErr != nil {
			cur.Result = nil
			cur.Error = domain.Message(runErr)
			cur.ErrorKind = domain.KindOf(runErr)
		} else {
			cur.Result = resp
		}
		written = cur.Clone()
		return cur
	})
	if err != nil {
		return nil, err
	}

	if superseded {
		s.log.Info("discarded superseded match result",
			zap.String("session_id", sessionID),
			zap.String("request_id", requestID),
		)
		return nil, domain.NewError(domain.KindSuperseded, "match request was superseded by a newer request", runErr)
	}
	if runErr != nil {
		return written, runErr
	}
	return written, nil
}

// State returns the stored state of a session.
func (s *DashboardService) State(ctx context.Context, sessionID string) (*domain.DashboardState, error) {
	return s.store.Get(ctx, sessionID)
}

// View renders the stored state of a session in the requested language.
func (s *DashboardService) View(ctx context.Context, sessionID string, lang Language) (DashboardView, error) {
	state, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return DashboardView{}, err
	}
	return Render(state, lang), nil
}

// Reset cancels any in-flight request and drops the session.
func (s *DashboardService) Reset(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	if cur, ok := s.inflight[sessionID]; ok {
		cur.cancel()
		delete(s.inflight, sessionID)
	}
	s.mu.Unlock()
	return s.store.Delete(ctx, sessionID)
}
