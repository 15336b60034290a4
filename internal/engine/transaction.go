package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/aristath/riskgovernor/internal/dispatch"
	"github.com/aristath/riskgovernor/internal/domain"
	"github.com/aristath/riskgovernor/internal/memory"
	"github.com/aristath/riskgovernor/internal/modules/cases"
	"github.com/aristath/riskgovernor/internal/modules/decisions"
)

// transaction holds the state of one market event while it is processed.
// Everything it writes goes through tx.
type transaction struct {
	engine *Engine
	tx     *sql.Tx
	budget *dispatch.Budget
	caseID string
	event  domain.MarketEvent
	log    zerolog.Logger

	mem       *memory.Recorder
	outputs   []domain.StageOutput
	actions   []domain.SelectedAction
	citations []domain.MemoryCitation

	regime           *domain.RegimeClassification
	policy           *domain.PersonaPolicy
	viability        *domain.ViabilityBundle
	escalation       *domain.EscalationDecision
	escalatedAgainst *float64
}

func newTransaction(e *Engine, tx *sql.Tx, budget *dispatch.Budget, caseID string, event domain.MarketEvent) *transaction {
	return &transaction{
		engine:    e,
		tx:        tx,
		budget:    budget,
		caseID:    caseID,
		event:     event,
		log:       e.log.With().Str("case_id", caseID).Logger(),
		mem:       memory.NewRecorder(memory.NewStore(tx, e.log).WithClock(e.now)),
		outputs:   []domain.StageOutput{},
		actions:   []domain.SelectedAction{},
		citations: []domain.MemoryCitation{},
	}
}

func invoke[R any](ctx context.Context, t *transaction, name string, call dispatch.Call) (R, error) {
	return dispatch.Invoke[R](ctx, t.engine.dispatcher, t.budget, name, call)
}

func (t *transaction) run(ctx context.Context) (*domain.RunDecision, error) {
	c, err := cases.NewRepository(t.tx, t.log).GetCase(ctx, t.caseID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: case_id not found: %s", domain.ErrNotFound, t.caseID)
	}

	event, err := t.normalizeEvent(c)
	if err != nil {
		return nil, err
	}
	t.event = event

	auditID := memory.NewID("audit")
	decisionID := memory.NewID("dec")
	eventID := memory.NewID("evt")

	if err := cases.NewRepository(t.tx, t.log).InsertEvent(ctx, eventID, c.CaseID, event); err != nil {
		return nil, err
	}

	series, err := invoke[domain.PriceSeries](ctx, t, dispatch.OpFetchMarketData,
		dispatch.FetchMarketData{Asset: c.Asset, Window: PriceWindow})
	if err != nil {
		return nil, err
	}
	indicators, err := invoke[domain.IndicatorSnapshot](ctx, t, dispatch.OpComputeIndicators,
		dispatch.ComputeIndicators{Prices: series.Prices})
	if err != nil {
		return nil, err
	}

	if err := t.decide(ctx, c, indicators); err != nil {
		return nil, err
	}

	guard, err := t.assembleGuard(ctx, c.Asset)
	if err != nil {
		return nil, err
	}

	if t.escalation.Escalate {
		if err := t.sideEffects(ctx, c.Asset); err != nil {
			return nil, err
		}
	}

	if err := t.mem.Set(ctx, domain.AssetScope(c.Asset), domain.KeyLatestDecision, guard); err != nil {
		return nil, err
	}
	vectorID, err := t.mem.AddVector(ctx, domain.AssetScope(c.Asset), incidentText(c.Asset, event, t.regime.Regime, indicators),
		map[string]any{
			"case_id":    c.CaseID,
			"event_type": event.EventType,
			"severity":   event.Severity,
			"regime":     t.regime.Regime,
		})
	if err != nil {
		return nil, err
	}
	t.cite(domain.MemoryCitation{Kind: domain.CitationVector, KeyOrID: vectorID, Note: "incident recorded"})

	ledger := decisions.NewRepository(t.tx, t.log)
	audit := domain.AuditRecord{
		AuditID:   auditID,
		CaseID:    c.CaseID,
		Asset:     c.Asset,
		CreatedAt: t.engine.now(),
		Inputs: domain.AuditInputs{
			Case:       c.Inputs,
			Event:      event,
			Indicators: indicators,
		},
		MemoryReads:     t.mem.Reads(),
		MemoryWrites:    t.mem.Writes(),
		ReasonerOutputs: t.outputs,
		SelectedActions: t.actions,
		Citations:       t.citations,
	}
	if _, err := invoke[string](ctx, t, dispatch.OpPersistAudit, dispatch.PersistAudit{Ledger: ledger, Record: audit}); err != nil {
		return nil, err
	}

	decision := domain.DecisionRecord{
		DecisionID: decisionID,
		CaseID:     c.CaseID,
		Asset:      c.Asset,
		AsOf:       guard.AsOf,
		Guard:      guard,
		AuditID:    auditID,
	}
	if _, err := invoke[string](ctx, t, dispatch.OpPersistDecision, dispatch.PersistDecision{Ledger: ledger, Record: decision}); err != nil {
		return nil, err
	}

	return &domain.RunDecision{
		CaseID:        c.CaseID,
		Asset:         c.Asset,
		EventID:       eventID,
		Guard:         guard,
		Indicators:    indicators,
		Regime:        *t.regime,
		PersonaPolicy: *t.policy,
		Viability:     *t.viability,
		Escalation:    *t.escalation,
		AuditID:       auditID,
		DecisionID:    decisionID,
		Budget:        t.budget.Usage(),
	}, nil
}

// normalizeEvent binds the event to the case's asset and fills defaults.
func (t *transaction) normalizeEvent(c *domain.Case) (domain.MarketEvent, error) {
	event := t.event
	if event.Asset == "" {
		event.Asset = c.Asset
	}
	if event.Asset != c.Asset {
		return event, fmt.Errorf("%w: event asset %s does not match case asset %s", domain.ErrInvalidInput, event.Asset, c.Asset)
	}
	if !event.EventType.Valid() {
		return event, fmt.Errorf("%w: unknown event_type %q", domain.ErrInvalidInput, event.EventType)
	}
	if event.Severity < 0 || event.Severity > 1 {
		return event, fmt.Errorf("%w: severity %v outside [0,1]", domain.ErrInvalidInput, event.Severity)
	}
	if event.Details == nil {
		event.Details = map[string]any{}
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = t.engine.now()
	}
	return event, nil
}

// decide drives the coordinator loop until it finalizes. Each iteration is
// charged as one step, so an unbounded loop ends in a budget failure.
func (t *transaction) decide(ctx context.Context, c *domain.Case, indicators domain.IndicatorSnapshot) error {
	for {
		if err := t.budget.BumpStep(); err != nil {
			return err
		}

		step, err := invoke[domain.StepOutput](ctx, t, dispatch.OpCoordinate, dispatch.CoordinateStep{State: t.state()})
		if err != nil {
			return err
		}
		t.record(dispatch.OpCoordinate, step)
		if step.Finalize {
			break
		}

		for _, name := range step.NextReasoners {
			if err := t.runStage(ctx, name, c, indicators); err != nil {
				return err
			}
		}
	}

	if t.regime == nil || t.policy == nil || t.viability == nil || t.escalation == nil {
		return fmt.Errorf("%w: decision loop finalized without all stage outputs", domain.ErrInvariantViolation)
	}
	return nil
}

func (t *transaction) state() domain.StepInput {
	s := domain.StepInput{
		HaveRegime:          t.regime != nil,
		HavePersonaPolicy:   t.policy != nil,
		HaveViability:       t.viability != nil,
		HaveEscalation:      t.escalation != nil,
		EscalatedConfidence: t.escalatedAgainst,
	}
	if t.viability != nil {
		s.LastConfidence = t.viability.Confidence
	}
	return s
}

func (t *transaction) runStage(ctx context.Context, name string, c *domain.Case, indicators domain.IndicatorSnapshot) error {
	switch name {
	case dispatch.OpClassifyRegime:
		if t.regime != nil {
			return nil
		}
		regime, err := invoke[domain.RegimeClassification](ctx, t, name, dispatch.ClassifyRegime{
			Indicators: indicators,
			EventType:  t.event.EventType,
			Severity:   t.event.Severity,
		})
		if err != nil {
			return err
		}
		t.regime = &regime
		t.record(name, regime)

	case dispatch.OpPersonaRiskPolicy:
		if t.policy != nil {
			return nil
		}
		policy, err := invoke[domain.PersonaPolicy](ctx, t, name, dispatch.DerivePersonaPolicy{
			Persona: c.Inputs.Persona,
			Memory:  t.mem,
		})
		if err != nil {
			return err
		}
		t.policy = &policy
		t.record(name, policy)
		t.cite(policy.Citations...)

	case dispatch.OpStrategyViability:
		if t.viability != nil || t.regime == nil || t.policy == nil {
			return nil
		}
		viability, err := invoke[domain.ViabilityBundle](ctx, t, name, dispatch.DecideViability{
			Asset:      c.Asset,
			Regime:     *t.regime,
			Policy:     *t.policy,
			Indicators: indicators,
			Memory:     t.mem,
		})
		if err != nil {
			return err
		}
		t.viability = &viability
		t.record(name, viability)
		for _, d := range viability.Decisions {
			t.cite(d.Citations...)
		}

	case dispatch.OpEscalationDecision:
		if t.viability == nil {
			return nil
		}
		escalation, err := invoke[domain.EscalationDecision](ctx, t, name, dispatch.DecideEscalation{
			Regime:    *t.regime,
			Policy:    *t.policy,
			Viability: *t.viability,
		})
		if err != nil {
			return err
		}
		against := t.viability.Confidence
		t.escalation = &escalation
		t.escalatedAgainst = &against
		t.record(name, escalation)

	default:
		return fmt.Errorf("%w: coordinator proposed unknown stage %q", domain.ErrInvariantViolation, name)
	}
	return nil
}

// assembleGuard turns the three strategy decisions into guard entries and
// records the action selected for each.
func (t *transaction) assembleGuard(ctx context.Context, asset string) (domain.ExecutionGuard, error) {
	strategies := make(map[domain.StrategyID]domain.GuardEntry, len(t.viability.Decisions))
	for _, d := range t.viability.Decisions {
		if !d.StrategyID.Valid() {
			return domain.ExecutionGuard{}, fmt.Errorf("%w: strategy not allow-listed: %s", domain.ErrInvariantViolation, d.StrategyID)
		}

		entry, err := invoke[domain.GuardEntry](ctx, t, dispatch.OpApplyPolicyConstraints, dispatch.ApplyPolicyConstraints{
			StrategyID:  d.StrategyID,
			Status:      d.Status,
			Constraints: d.Constraints,
		})
		if err != nil {
			return domain.ExecutionGuard{}, err
		}
		strategies[d.StrategyID] = entry

		t.actions = append(t.actions, domain.SelectedAction{
			Action:      SelectAction(d),
			StrategyID:  d.StrategyID,
			Status:      d.Status,
			Constraints: d.Constraints,
			Confidence:  d.Confidence,
		})
	}

	guard := domain.ExecutionGuard{
		Asset:       asset,
		AsOf:        t.engine.now(),
		Strategies:  strategies,
		Escalations: []domain.Escalation{},
	}
	if t.escalation.Escalate {
		guard.Escalations = append(guard.Escalations, domain.Escalation{
			Reason:   t.escalation.Reason,
			Channels: t.escalation.NotifyChannels,
		})
	}
	return guard, nil
}

// SelectAction maps a strategy decision onto the action execution takes.
func SelectAction(d domain.StrategyDecision) domain.Action {
	switch {
	case d.Status == domain.StatusDisabled:
		return domain.ActionDisable
	case d.Constraints.PositionCapPct < 1.0:
		return domain.ActionCapOnly
	default:
		return domain.ActionEnable
	}
}

// sideEffects notifies a human and emits a risk event. Delivery failures are
// logged and counted but never abort the transaction; budget exhaustion does.
func (t *transaction) sideEffects(ctx context.Context, asset string) error {
	receipt, err := invoke[domain.SideEffectReceipt](ctx, t, dispatch.OpNotify, dispatch.Notify{
		Payload: domain.Notification{CaseID: t.caseID, Asset: asset, Reason: t.escalation.Reason},
	})
	if err := t.bestEffort(dispatch.OpNotify, receipt, err); err != nil {
		return err
	}

	receipt, err = invoke[domain.SideEffectReceipt](ctx, t, dispatch.OpEmitRiskEvent, dispatch.EmitRiskEvent{
		Payload: domain.RiskEvent{
			CaseID:    t.caseID,
			Asset:     asset,
			EventType: t.event.EventType,
			Severity:  t.event.Severity,
		},
	})
	return t.bestEffort(dispatch.OpEmitRiskEvent, receipt, err)
}

func (t *transaction) bestEffort(op string, receipt domain.SideEffectReceipt, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, dispatch.ErrBudgetExceeded) {
		return err
	}

	channel := receipt.Channel
	if channel == "" {
		channel = op
	}
	t.engine.metrics.RecordSideEffectFailure(channel)
	t.log.Warn().Err(err).Str("skill", op).Str("channel", channel).Msg("Side effect failed, continuing")
	return nil
}

func (t *transaction) record(name string, output any) {
	t.outputs = append(t.outputs, domain.StageOutput{Name: name, Output: output})
}

// cite appends citations, skipping ones already recorded.
func (t *transaction) cite(citations ...domain.MemoryCitation) {
	for _, c := range citations {
		dup := false
		for _, existing := range t.citations {
			if existing.Kind == c.Kind && existing.KeyOrID == c.KeyOrID {
				dup = true
				break
			}
		}
		if !dup {
			t.citations = append(t.citations, c)
		}
	}
}

// incidentText summarizes the event for later similarity search.
func incidentText(asset string, event domain.MarketEvent, regime domain.Regime, ind domain.IndicatorSnapshot) string {
	return fmt.Sprintf("market_event asset=%s event=%s severity=%s regime=%s vol=%s dd=%s",
		asset, event.EventType, formatFloat(event.Severity), regime,
		formatFloat(ind.Volatility), formatFloat(ind.MaxDrawdown))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
