// Package conversation runs reservation chats: it loads and saves wizard
// state, enforces one input at a time per conversation, and applies the
// cache writes the wizard asks for.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sportbar2312/reservation-bot/internal/cache"
	"github.com/sportbar2312/reservation-bot/internal/observability/metrics"
	"github.com/sportbar2312/reservation-bot/internal/wizard"
	"github.com/sportbar2312/reservation-bot/pkg/logging"
)

// ErrBusy is returned by Handle when an input arrives while the previous
// one is still being processed. The input is dropped, not queued.
var ErrBusy = errors.New("conversation: busy")

// DefaultTypingDelay is the pause shown as "typing" before each reply.
const DefaultTypingDelay = 800 * time.Millisecond

// Request is one customer input.
type Request struct {
	ConversationID string
	// ClientKey identifies the customer across conversations for the cache.
	ClientKey string
	Event     wizard.Event
}

// Result is what the adapter should render after an input.
type Result struct {
	ConversationID string          `json:"conversation_id"`
	Step           string          `json:"step"`
	Outputs        []wizard.Output `json:"outputs"`
	// CacheErrors holds cache failures that did not stop the conversation.
	CacheErrors []error `json:"-"`
}

// Option customizes a Service.
type Option func(*Service)

func WithTypingDelay(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.typingDelay = d
		}
	}
}

func WithMetrics(m *metrics.WizardMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides time.Now, which anchors "today" for dates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSleep overrides how the typing delay is waited out.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Service) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// Service drives conversations through the wizard.
type Service struct {
	wizard      *wizard.Wizard
	store       StateStore
	cache       *cache.Cache
	metrics     *metrics.WizardMetrics
	logger      *logging.Logger
	typingDelay time.Duration
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewService(w *wizard.Wizard, store StateStore, c *cache.Cache, logger *logging.Logger, opts ...Option) *Service {
	if w == nil {
		panic("conversation: wizard cannot be nil")
	}
	if store == nil {
		panic("conversation: state store cannot be nil")
	}
	if c == nil {
		panic("conversation: cache cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		wizard:      w,
		store:       store,
		cache:       c,
		logger:      logger,
		typingDelay: DefaultTypingDelay,
		now:         time.Now,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TypingDelay reports the pause applied before each reply.
func (s *Service) TypingDelay() time.Duration {
	return s.typingDelay
}

// Start opens a new conversation for clientKey. An empty conversationID is
// replaced by a generated one.
func (s *Service) Start(ctx context.Context, conversationID, clientKey string) (*Result, error) {
	if strings.TrimSpace(conversationID) == "" {
		conversationID = uuid.NewString()
	}
	out := &Result{ConversationID: conversationID}

	name := s.cachedName(ctx, clientKey, out)
	res := s.wizard.Start(name, s.now())
	if err := s.store.Save(ctx, conversationID, res.State); err != nil {
		return nil, err
	}
	out.Step = res.State.Step.String()
	out.Outputs = res.Outputs

	s.logger.Info("conversation started", "conversation_id", conversationID, "returning_customer", name != "")
	return out, nil
}

// Resume re-sends the current question of an existing conversation, or
// starts a new one if it is unknown.
func (s *Service) Resume(ctx context.Context, conversationID, clientKey string) (*Result, error) {
	st, err := s.store.Load(ctx, conversationID)
	if errors.Is(err, ErrUnknownConversation) {
		return s.Start(ctx, conversationID, clientKey)
	}
	if err != nil {
		return nil, err
	}
	return &Result{
		ConversationID: conversationID,
		Step:           st.Step.String(),
		Outputs:        s.wizard.Prompt(st, s.now()),
	}, nil
}

// Snapshot returns the stored state of a conversation.
func (s *Service) Snapshot(ctx context.Context, conversationID string) (wizard.State, error) {
	return s.store.Load(ctx, conversationID)
}

// Handle processes one input. While it runs the conversation is busy and
// any other input for it fails fast with ErrBusy. An accepted input is
// always applied: the typing pause and the turn ignore cancellation of ctx.
func (s *Service) Handle(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.ConversationID) == "" {
		return nil, errors.New("conversation: conversation id required")
	}
	ctx = context.WithoutCancel(ctx)

	acquired, err := s.store.TryAcquire(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}
	if !acquired {
		s.metrics.ObserveDropped()
		s.logger.Debug("input dropped while busy", "conversation_id", req.ConversationID, "kind", req.Event.Kind)
		return nil, ErrBusy
	}
	defer func() {
		if err := s.store.Release(ctx, req.ConversationID); err != nil {
			s.logger.Error("failed to clear busy flag", "conversation_id", req.ConversationID, "error", err)
		}
	}()

	if err := s.sleep(ctx, s.typingDelay); err != nil {
		return nil, err
	}
	started := time.Now()
	out := &Result{ConversationID: req.ConversationID}

	st, err := s.store.Load(ctx, req.ConversationID)
	switch {
	case errors.Is(err, ErrUnknownConversation):
		// A reset starts over by itself; anything else gets the welcome first.
		st = wizard.State{}
		if req.Event.Kind != wizard.EventReset {
			fresh := s.wizard.Start(s.cachedName(ctx, req.ClientKey, out), s.now())
			st = fresh.State
			out.Outputs = append(out.Outputs, fresh.Outputs...)
		}
	case err != nil:
		return nil, err
	}

	ev := req.Event
	if ev.Kind == wizard.EventReset {
		ev.Value = s.cachedName(ctx, req.ClientKey, out)
	}

	res := s.wizard.Transition(st, ev, s.now())
	s.applyEffects(ctx, req, res.Effects, out)

	if err := s.store.Save(ctx, req.ConversationID, res.State); err != nil {
		return nil, err
	}
	out.Step = res.State.Step.String()
	out.Outputs = append(out.Outputs, res.Outputs...)

	outcome := outcomeOf(st, res, ev)
	s.metrics.ObserveMessage(st.Step.String(), outcome, time.Since(started))
	s.logger.Debug("input processed",
		"conversation_id", req.ConversationID,
		"kind", ev.Kind,
		"step", out.Step,
		"outcome", outcome,
	)
	return out, nil
}

func (s *Service) applyEffects(ctx context.Context, req Request, effects []wizard.Effect, out *Result) {
	for _, eff := range effects {
		switch eff.Kind {
		case wizard.EffectSaveName:
			if err := s.cache.SaveName(ctx, req.ClientKey, eff.Name); err != nil {
				s.cacheFailed(out, "save_name", req.ConversationID, err)
			}
		case wizard.EffectRecordBooking:
			if eff.Booking == nil {
				continue
			}
			if eff.Booking.Zone != nil {
				s.metrics.ObserveBooking(eff.Booking.Zone.ID)
			}
			s.logger.Info("booking completed", "conversation_id", req.ConversationID, "step", wizard.StepComplete.String())
			if err := s.cache.RecordBooking(ctx, req.ClientKey, *eff.Booking); err != nil {
				s.cacheFailed(out, "record_booking", req.ConversationID, err)
			}
		}
	}
}

func (s *Service) cachedName(ctx context.Context, clientKey string, out *Result) string {
	name, err := s.cache.LoadName(ctx, clientKey)
	if err != nil {
		s.cacheFailed(out, "load_name", out.ConversationID, err)
		return ""
	}
	return name
}

func (s *Service) cacheFailed(out *Result, op, conversationID string, err error) {
	out.CacheErrors = append(out.CacheErrors, fmt.Errorf("conversation: %s: %w", op, err))
	s.metrics.ObserveCacheError(op)
	s.logger.Warn("cache operation failed", "conversation_id", conversationID, "op", op, "error", err)
}

func outcomeOf(before wizard.State, res wizard.Result, ev wizard.Event) string {
	switch {
	case ev.Kind == wizard.EventReset || res.State.Step != before.Step:
		return "advanced"
	case len(res.Outputs) == 0:
		return "ignored"
	default:
		return "reprompted"
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
