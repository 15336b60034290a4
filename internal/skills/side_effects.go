package skills

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/aristath/riskgovernor/internal/dispatch"
	"github.com/aristath/riskgovernor/internal/domain"
	"github.com/aristath/riskgovernor/internal/events"
	"github.com/aristath/riskgovernor/internal/notify"
)

// SideEffects sends escalations to the human channel and the risk-event bus.
// Failures are returned to the caller, which treats them as best-effort.
type SideEffects struct {
	notifier notify.Notifier
	emitter  events.RiskEmitter
	log      zerolog.Logger
}

// Notify delivers an escalation notice.
func (s *SideEffects) Notify(ctx context.Context, c dispatch.Notify) (domain.SideEffectReceipt, error) {
	if s.notifier == nil {
		return domain.SideEffectReceipt{Channel: "none"}, nil
	}
	if err := s.notifier.Notify(ctx, c.Payload); err != nil {
		return domain.SideEffectReceipt{Channel: s.notifier.Channel()}, err
	}
	return domain.SideEffectReceipt{Delivered: true, Channel: s.notifier.Channel()}, nil
}

// EmitRiskEvent publishes an escalation for downstream consumers.
func (s *SideEffects) EmitRiskEvent(ctx context.Context, c dispatch.EmitRiskEvent) (domain.SideEffectReceipt, error) {
	if s.emitter == nil {
		return domain.SideEffectReceipt{Channel: "none"}, nil
	}
	if err := s.emitter.EmitRiskEvent(ctx, c.Payload); err != nil {
		return domain.SideEffectReceipt{Channel: s.emitter.Channel()}, err
	}
	s.log.Debug().Str("case_id", c.Payload.CaseID).Str("channel", s.emitter.Channel()).Msg("Risk event emitted")
	return domain.SideEffectReceipt{Delivered: true, Channel: s.emitter.Channel()}, nil
}
