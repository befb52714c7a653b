package core

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tutorgate-backend-go/internal/models"
)

type turnService struct {
	gatekeeper   Gatekeeper
	quota        QuotaAccountant
	orchestrator TurnOrchestrator
	logger       *zap.Logger
}

// NewTurnService chains admission and dispatch: Gatekeeper, then Quota
// Accountant, then Turn Orchestrator.
func NewTurnService(g Gatekeeper, q QuotaAccountant, o TurnOrchestrator, logger *zap.Logger) TurnService {
	return &turnService{gatekeeper: g, quota: q, orchestrator: o, logger: logger}
}

func (s *turnService) Submit(ctx context.Context, turn *models.Turn) (map[string]*StreamHandle, QuotaDecision, error) {
	profile, err := s.gatekeeper.Authorize(ctx, turn.UserID)
	if err != nil {
		return nil, QuotaDecision{}, err
	}

	// Malformed turns are rejected before they cost anything.
	if err := s.orchestrator.Validate(turn); err != nil {
		return nil, QuotaDecision{}, err
	}

	decision, err := s.quota.Charge(ctx, turn.UserID, profile, s.quota.Today())
	if err != nil {
		return nil, QuotaDecision{}, err
	}
	if !decision.Allowed {
		return nil, decision, ErrQuotaExceeded
	}

	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	handles, err := s.orchestrator.Dispatch(ctx, turn)
	if err != nil {
		return nil, decision, err
	}
	s.logger.Info("turn dispatched",
		zap.String("turnId", turn.ID),
		zap.String("userId", turn.UserID),
		zap.Strings("providers", turn.Providers),
		zap.Int64("usage", decision.Usage))
	return handles, decision, nil
}

func (s *turnService) Quota(ctx context.Context, userID string) (QuotaDecision, error) {
	profile, err := s.gatekeeper.Authorize(ctx, userID)
	if err != nil {
		return QuotaDecision{}, err
	}
	return s.quota.Peek(ctx, userID, profile, s.quota.Today())
}
