package domain

import (
	"context"
	"time"
)

// AgentMapClient defines the operations consumed from the AgentMap API
type AgentMapClient interface {
	Classify(ctx context.Context, mseID int64) (*ClassifyResult, error)
	Match(ctx context.Context, mseID int64, topK int) (*MatchResponse, error)
	RegisterMSE(ctx context.Context, reg MSERegistration) (*MSE, error)
	ListMSEs(ctx context.Context, query ListMSEsQuery) ([]MSE, error)
	GetMSE(ctx context.Context, id int64) (*MSE, error)
	Health(ctx context.Context) (*RemoteHealth, error)
}

// SessionStore holds dashboard sessions with expiry
type SessionStore interface {
	Get(ctx context.Context, id string) (*DashboardState, error)
	Set(ctx context.Context, id string, state *DashboardState, ttl time.Duration) error
	// Update applies fn to the stored state under the store's lock. fn receives
	// nil when the session does not exist yet.
	Update(ctx context.Context, id string, ttl time.Duration, fn func(*DashboardState) *DashboardState) error
	Delete(ctx context.Context, id string) error
}

// DashboardState is everything a dashboard view renders from.
type DashboardState struct {
	Result    *MatchResponse `json:"result"`
	Error     string         `json:"error,omitempty"`
	ErrorKind ErrorKind      `json:"errorKind,omitempty"`
	Loading   bool           `json:"loading"`
	RequestID string         `json:"requestId,omitempty"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Clone returns a copy safe to hand out of the store.
func (s *DashboardState) Clone() *DashboardState {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
