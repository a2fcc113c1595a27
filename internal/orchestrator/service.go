// Package orchestrator runs the fixed inbound pipeline: dedup, user
// resolution, policy, crisis handling, context assembly, generation,
// disclosure, persistence.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"compass/internal/audit"
	"compass/internal/compliance"
	"compass/internal/contextcache"
	"compass/internal/crisis"
	"compass/internal/domain"
	"compass/internal/generate"
	"compass/internal/idempotency"
	"compass/internal/outbound"
	"compass/internal/user"
	"compass/internal/verification"
	"compass/pkg/sentinel"
)

// DegradedReply is the fixed user-visible text when every provider fails.
// Neutral and non-alarming; internal detail never reaches the user.
const DegradedReply = "I'm having trouble responding right now. Please try again shortly."

// Generator is the response backend. Satisfied by *generate.Chain.
type Generator interface {
	Complete(ctx context.Context, p generate.Prompt) (*generate.Completion, error)
}

// Service wires the pipeline. One instance serves all users; per-user
// serialization happens through the keyed locks.
type Service struct {
	users       user.Store
	recorder    idempotency.Recorder
	gate        *compliance.Gate
	detector    *crisis.Detector
	crisisStore crisis.Store
	assembler   *contextcache.Assembler
	generator   Generator
	verifier    verification.Client
	channel     outbound.Channel
	audit       *audit.Publisher
	locks       *keyedLocks
	logger      *slog.Logger
	metrics     *Metrics
	tracer      trace.Tracer

	maxReplyTokens   int
	replyTemperature float64
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithReplyLimits(maxTokens int, temperature float64) Option {
	return func(s *Service) {
		s.maxReplyTokens = maxTokens
		s.replyTemperature = temperature
	}
}

func NewService(
	users user.Store,
	recorder idempotency.Recorder,
	gate *compliance.Gate,
	detector *crisis.Detector,
	crisisStore crisis.Store,
	assembler *contextcache.Assembler,
	generator Generator,
	verifier verification.Client,
	channel outbound.Channel,
	auditPub *audit.Publisher,
	opts ...Option,
) *Service {
	s := &Service{
		users:            users,
		recorder:         recorder,
		gate:             gate,
		detector:         detector,
		crisisStore:      crisisStore,
		assembler:        assembler,
		generator:        generator,
		verifier:         verifier,
		channel:          channel,
		audit:            auditPub,
		locks:            newKeyedLocks(),
		logger:           slog.Default(),
		tracer:           otel.Tracer("compass/orchestrator"),
		maxReplyTokens:   1000,
		replyTemperature: 0.7,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleInbound runs one event through the pipeline and returns exactly one
// decision. The decision is committed before any outbound delivery starts;
// delivery itself is fire-and-forget and survives caller cancellation.
func (s *Service) HandleInbound(ctx context.Context, ev domain.InboundEvent) (domain.OutboundDecision, error) {
	ctx, span := s.tracer.Start(ctx, "orchestrator.HandleInbound",
		trace.WithAttributes(
			attribute.String("event.id", ev.EventID),
			attribute.String("user.handle", ev.Handle),
		))
	defer span.End()
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.Latency.Observe(time.Since(start).Seconds())
		}
	}()

	now := ev.ReceivedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	// Step 1: dedup. The claim is an atomic check-and-insert; losing it with
	// no prior decision means another delivery of this event is in flight.
	prior, claimed, err := s.recorder.Claim(ctx, ev.EventID)
	if err != nil {
		return s.fatal(ctx, ev, false, "idempotency_claim", fmt.Errorf("idempotency claim: %w", err))
	}
	if prior != nil {
		if s.metrics != nil {
			s.metrics.Replays.Inc()
		}
		s.logger.InfoContext(ctx, "duplicate event, replaying decision",
			"event_id", ev.EventID, "kind", prior.Kind)
		return *prior, nil
	}
	if !claimed {
		return domain.Suppress(domain.SuppressDuplicate), nil
	}

	unlock := s.locks.Lock(ev.Handle)

	// Step 2: user resolution. First contact auto-provisions.
	u, err := s.resolveUser(ctx, ev.Handle, now)
	if err != nil {
		unlock()
		return s.fatal(ctx, ev, true, "user_resolution", err)
	}
	s.gate.TouchSession(u, now)

	// Step 3: opt-out enforcement. Only an exact start keyword is processed;
	// everything else is suppressed with no outbound at all.
	if u.OptIn == domain.OptedOut && !compliance.IsStartKeyword(ev.Text) {
		decision := domain.Suppress(domain.SuppressOptedOut)
		if err := s.users.Save(ctx, u); err != nil {
			unlock()
			return s.fatal(ctx, ev, true, "persistence", fmt.Errorf("save user: %w", err))
		}
		s.commit(ctx, ev, decision)
		unlock()
		return decision, nil
	}

	// Step 4: keyword commands bypass the model entirely.
	if reply := s.gate.ApplyKeyword(u, ev.Text, now); reply != nil {
		if err := s.users.Save(ctx, u); err != nil {
			unlock()
			return s.fatal(ctx, ev, true, "persistence", fmt.Errorf("save user: %w", err))
		}
		kind := audit.KindOptOut
		if reply.Kind == domain.ConsentOptIn {
			kind = audit.KindOptIn
		}
		s.emitAudit(ctx, audit.Event{
			Kind:    kind,
			Handle:  ev.Handle,
			EventID: ev.EventID,
			Reason:  "keyword command",
		})
		decision := domain.Send(reply.Text)
		s.commit(ctx, ev, decision)
		unlock()
		s.deliver(ctx, ev.Handle, decision.Text)
		return decision, nil
	}

	// Step 5: crisis detection on the raw text. Firings are audited even
	// when a later step short-circuits the reply.
	detections := s.detector.Classify(ev.Text)
	for _, d := range detections {
		if s.metrics != nil {
			s.metrics.Crisis.WithLabelValues(string(d.Category), string(d.Severity)).Inc()
		}
		s.emitAudit(ctx, audit.Event{
			Kind:     audit.KindCrisisDetected,
			Severity: auditSeverity(d.Severity),
			Handle:   ev.Handle,
			EventID:  ev.EventID,
			Reason:   string(d.Category),
			Detail:   map[string]string{"terms_version": s.detector.Version()},
		})
	}

	// Step 6: age/verification gate.
	switch result := s.gate.CheckGate(u, ev.Text, detections); result {
	case compliance.GateRequireVerification, compliance.GateMinorContentBlock:
		decision, err := s.gateBlocked(ctx, ev, u, result, detections, now)
		unlock()
		if err != nil {
			return s.fatal(ctx, ev, true, "persistence", err)
		}
		s.deliver(ctx, ev.Handle, decision.Text)
		return decision, nil
	}

	// Step 7: context assembly.
	cc, err := s.assembler.Context(ctx, u)
	if err != nil {
		unlock()
		return s.fatal(ctx, ev, true, "context_assembly", fmt.Errorf("assemble context: %w", err))
	}
	if err := s.users.Save(ctx, u); err != nil {
		unlock()
		return s.fatal(ctx, ev, true, "persistence", fmt.Errorf("save user: %w", err))
	}

	// Step 8: response generation. High-severity crisis replaces the model
	// reply outright, so the provider is never invoked for it. The lock is
	// not held across the provider call.
	var (
		replyText string
		comp      *generate.Completion
		genFailed bool
	)
	if domain.HighSeverity(detections) {
		replyText = crisis.ResourceMessage
		unlock()
	} else {
		prompt := generate.Prompt{
			System:      generate.SystemPrompt(u),
			Turns:       append(append([]domain.ContextTurn(nil), cc.Turns...), domain.ContextTurn{Role: "user", Content: ev.Text}),
			MaxTokens:   s.maxReplyTokens,
			Temperature: s.replyTemperature,
		}
		unlock()

		comp, err = s.generator.Complete(ctx, prompt)
		switch {
		case err == nil:
			replyText = comp.Text
			if comp.FellBack {
				s.emitAudit(ctx, audit.Event{
					Kind:     audit.KindProviderDegraded,
					Severity: audit.SeverityElevated,
					Handle:   ev.Handle,
					EventID:  ev.EventID,
					Reason:   "primary provider failed",
					Detail:   map[string]string{"provider": comp.Provider},
				})
			}
		case errors.Is(err, generate.ErrAllProvidersExhausted):
			replyText = DegradedReply
			genFailed = true
			s.logger.ErrorContext(ctx, "all providers exhausted", "event_id", ev.EventID, "error", err)
			s.emitAudit(ctx, audit.Event{
				Kind:     audit.KindGenerationFailed,
				Severity: audit.SeverityElevated,
				Handle:   ev.Handle,
				EventID:  ev.EventID,
				Reason:   "all providers exhausted",
			})
		default:
			replyText = DegradedReply
			genFailed = true
			s.logger.ErrorContext(ctx, "generation failed", "event_id", ev.EventID, "error", err)
		}
	}

	// Re-acquire and recheck: the user may have opted out while the
	// provider call was in flight.
	unlock = s.locks.Lock(ev.Handle)
	defer unlock()

	u, err = s.users.Load(ctx, ev.Handle)
	if err != nil {
		return s.fatal(ctx, ev, true, "user_resolution", fmt.Errorf("reload user: %w", err))
	}
	if u.OptIn == domain.OptedOut {
		decision := domain.Suppress(domain.SuppressStateChange)
		turn := s.newTurn(ev, now)
		turn.Suppressed = true
		turn.SuppressReason = domain.SuppressStateChange
		turn.CrisisCategories = domain.Categories(detections)
		if err := s.assembler.AppendTurn(ctx, u, turn); err != nil {
			return s.fatal(ctx, ev, true, "persistence", fmt.Errorf("append suppressed turn: %w", err))
		}
		s.appendCrisisEvents(ctx, ev.Handle, turn.ID, detections, now)
		s.commit(ctx, ev, decision)
		return decision, nil
	}

	// Step 9: disclosure injection.
	if need, kind := s.gate.ShouldDisclose(u, now); need {
		text := compliance.PeriodicDisclosure
		if kind == compliance.DisclosureInitial {
			text = compliance.InitialDisclosure
		}
		replyText = text + "\n\n" + replyText
		s.gate.RecordDisclosure(u, now)
		s.emitAudit(ctx, audit.Event{
			Kind:    audit.KindDisclosureSent,
			Handle:  ev.Handle,
			EventID: ev.EventID,
			Reason:  string(kind),
		})
	}

	// Step 10: persistence, then commit, then delivery.
	turn := s.newTurn(ev, now)
	turn.OutboundText = replyText
	turn.CrisisCategories = domain.Categories(detections)
	turn.GenerationFailed = genFailed
	turn.LatencyMS = time.Since(start).Milliseconds()
	if comp != nil {
		turn.Provider = comp.Provider
		turn.Model = comp.Model
	}
	if err := s.assembler.AppendTurn(ctx, u, turn); err != nil {
		return s.fatal(ctx, ev, true, "persistence", fmt.Errorf("append turn: %w", err))
	}
	s.appendCrisisEvents(ctx, ev.Handle, turn.ID, detections, now)
	if err := s.users.Save(ctx, u); err != nil {
		return s.fatal(ctx, ev, true, "persistence", fmt.Errorf("save user: %w", err))
	}

	decision := domain.Send(replyText)
	s.commit(ctx, ev, decision)
	s.deliver(ctx, ev.Handle, replyText)
	return decision, nil
}

// gateBlocked builds the canned reply for a gate short-circuit. Disclosure
// still applies: a brand-new user's first reply carries the initial
// disclosure ahead of the verification prompt.
func (s *Service) gateBlocked(ctx context.Context, ev domain.InboundEvent, u *domain.User, result compliance.GateResult, detections []domain.Detection, now time.Time) (domain.OutboundDecision, error) {
	var replyText string
	switch result {
	case compliance.GateMinorContentBlock:
		replyText = compliance.MinorContentBlock
	default:
		replyText = compliance.VerificationPrompt
		if link, err := s.verifier.Begin(ctx, ev.Handle); err != nil {
			s.logger.WarnContext(ctx, "verification begin failed", "handle", ev.Handle, "error", err)
		} else if link != "" {
			replyText += "\n" + link
		}
	}

	if need, kind := s.gate.ShouldDisclose(u, now); need {
		text := compliance.PeriodicDisclosure
		if kind == compliance.DisclosureInitial {
			text = compliance.InitialDisclosure
		}
		replyText = text + "\n\n" + replyText
		s.gate.RecordDisclosure(u, now)
		s.emitAudit(ctx, audit.Event{
			Kind:    audit.KindDisclosureSent,
			Handle:  ev.Handle,
			EventID: ev.EventID,
			Reason:  string(kind),
		})
	}

	if err := s.users.Save(ctx, u); err != nil {
		return domain.OutboundDecision{}, fmt.Errorf("save user: %w", err)
	}

	if s.metrics != nil {
		s.metrics.GateBlocks.WithLabelValues(string(result)).Inc()
	}
	s.emitAudit(ctx, audit.Event{
		Kind:    audit.KindGateBlocked,
		Handle:  ev.Handle,
		EventID: ev.EventID,
		Reason:  string(result),
	})
	s.appendCrisisEvents(ctx, ev.Handle, "", detections, now)

	decision := domain.Send(replyText)
	s.commit(ctx, ev, decision)
	return decision, nil
}

func (s *Service) resolveUser(ctx context.Context, handle string, now time.Time) (*domain.User, error) {
	u, err := s.users.Load(ctx, handle)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, fmt.Errorf("load user: %w", err)
	}

	u = domain.NewUser(handle, now)
	if err := s.users.Create(ctx, u); err != nil {
		// Lost a create race with another instance; their copy wins.
		if errors.Is(err, sentinel.ErrConflict) {
			return s.users.Load(ctx, handle)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.logger.InfoContext(ctx, "provisioned new user", "handle", handle)
	return u, nil
}

func (s *Service) newTurn(ev domain.InboundEvent, now time.Time) *domain.Turn {
	return &domain.Turn{
		ID:          domain.NewID(),
		Handle:      ev.Handle,
		EventID:     ev.EventID,
		InboundText: ev.Text,
		CreatedAt:   now,
	}
}

// commit stores the decision for replays and counts it. A failed record is
// logged, not fatal: the decision already happened.
func (s *Service) commit(ctx context.Context, ev domain.InboundEvent, decision domain.OutboundDecision) {
	if err := s.recorder.Record(ctx, ev.EventID, decision); err != nil {
		s.logger.WarnContext(ctx, "idempotency record failed", "event_id", ev.EventID, "error", err)
	}
	if s.metrics != nil {
		s.metrics.Decisions.WithLabelValues(string(decision.Kind)).Inc()
		if decision.Kind == domain.DecisionSuppress {
			s.metrics.Suppressions.WithLabelValues(string(decision.Reason)).Inc()
		}
	}
	s.emitAudit(ctx, audit.Event{
		Kind:     audit.KindDecision,
		Handle:   ev.Handle,
		EventID:  ev.EventID,
		Decision: string(decision.Kind),
		Reason:   string(decision.Reason),
	})
}

// fatal handles unrecoverable failures: the claim is released so a
// redelivery can retry, and no outbound is produced. stage names the
// pipeline step that failed for the suppression metric.
func (s *Service) fatal(ctx context.Context, ev domain.InboundEvent, releaseClaim bool, stage string, err error) (domain.OutboundDecision, error) {
	s.logger.ErrorContext(ctx, "inbound handling failed",
		"event_id", ev.EventID, "handle", ev.Handle, "stage", stage, "error", err)
	if releaseClaim {
		if relErr := s.recorder.Release(ctx, ev.EventID); relErr != nil {
			s.logger.WarnContext(ctx, "claim release failed", "event_id", ev.EventID, "error", relErr)
		}
	}
	if s.metrics != nil {
		s.metrics.Suppressions.WithLabelValues(stage).Inc()
	}
	return domain.Suppress(domain.SuppressPersistence), err
}

func (s *Service) appendCrisisEvents(ctx context.Context, handle, turnID string, detections []domain.Detection, now time.Time) {
	for _, d := range detections {
		event := domain.CrisisEvent{
			ID:           domain.NewID(),
			Handle:       handle,
			TurnID:       turnID,
			Category:     d.Category,
			Severity:     d.Severity,
			Confidence:   d.Confidence,
			Terms:        d.Terms,
			TermsVersion: s.detector.Version(),
			CreatedAt:    now,
		}
		if err := s.crisisStore.Append(ctx, event); err != nil {
			s.logger.ErrorContext(ctx, "crisis event append failed",
				"handle", handle, "category", d.Category, "error", err)
		}
	}
}

// deliver dispatches the outbound after the decision is committed. Detached
// from the caller's context so an abandoned webhook cannot cancel delivery.
func (s *Service) deliver(ctx context.Context, handle, text string) {
	sendCtx := context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(sendCtx, 30*time.Second)
		defer cancel()
		if err := s.channel.Send(ctx, handle, text); err != nil {
			s.logger.ErrorContext(ctx, "outbound delivery failed", "handle", handle, "error", err)
		}
	}()
}

func auditSeverity(sev domain.Severity) audit.Severity {
	if sev == domain.SeverityHigh {
		return audit.SeverityHigh
	}
	return audit.SeverityElevated
}

func (s *Service) emitAudit(ctx context.Context, e audit.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Emit(ctx, e); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "kind", e.Kind, "error", err)
	}
}
