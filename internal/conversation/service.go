// Package conversation runs one customer message through the classifier cascade and the
// order state machine.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/congelados/vendedor/internal/catalog"
	"github.com/congelados/vendedor/internal/event"
	"github.com/congelados/vendedor/internal/intent"
	"github.com/congelados/vendedor/internal/logger"
	"github.com/congelados/vendedor/internal/order"
	"github.com/congelados/vendedor/internal/resolver"
	"github.com/congelados/vendedor/internal/session"
)

const (
	emptyMessageReply = "¡Hola! :wave: ¿En qué puedo ayudarte hoy?"
	errorReply        = "¡Ups! 😅 Tuve un problema. ¿Podrías intentarlo de nuevo?"
	resetReply        = "Conversación reiniciada"
)

// Classifier is the rule-based first stage.
type Classifier interface {
	Classify(text string) (intent.Resolved, bool)
}

// Extractor detects ordered items directly in the text.
type Extractor interface {
	Items(text string) []intent.Item
}

// Resolver asks the language model. It must never fail.
type Resolver interface {
	Resolve(ctx context.Context, text string, sc resolver.Context) intent.Resolved
	CacheSize() int
}

// Recorder receives per-turn measurements.
type Recorder interface {
	ObserveTurn(source, state string, elapsed time.Duration)
	ObserveOrder(total int64)
	ObservePanic()
}

type nopRecorder struct{}

func (nopRecorder) ObserveTurn(string, string, time.Duration) {}
func (nopRecorder) ObserveOrder(int64) {}
func (nopRecorder) ObservePanic() {}

// Reply is the outcome of one turn, before transport formatting.
type Reply struct {
	Text   string        `json:"respuesta"`
	State  string        `json:"estado"`
	Phase  session.Phase `json:"fase"`
	Source intent.Source `json:"-"`
}

// Stats is the introspection snapshot.
type Stats struct {
	ActiveSessions int `json:"usuarios_activos"`
	CacheEntries   int `json:"cache_llm"`
	Products       int `json:"productos"`
}

// Deps are the collaborators of Service. Publisher and Recorder are optional.
type Deps struct {
	Catalog    *catalog.Catalog
	Store      *session.Store
	Classifier Classifier
	Extractor  Extractor
	Resolver   Resolver
	Machine    *order.Machine
	Publisher  event.Publisher
	Recorder   Recorder
}

// Service is safe for concurrent use; turns of one user are serialized by the session store.
type Service struct {
	deps   Deps
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a conversation service.
func NewService(log *slog.Logger, deps Deps) *Service {
	if log == nil {
		log = slog.Default()
	}
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}
	return &Service{
		deps:   deps,
		logger: log.With(slog.String("service", "conversation")),
		now:    time.Now,
	}
}

// Handle answers one customer message. It never returns an error: every failure becomes a
// reply with the "error" state, and the session is kept so the customer can retry.
func (s *Service) Handle(ctx context.Context, userID, text string) Reply {
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{Text: emptyMessageReply, State: order.StateGreeting, Phase: session.PhaseStart}
	}
	ctx = logger.WithUser(logger.WithContext(ctx, s.logger), userID)
	log := logger.FromContext(ctx)
	start := s.now()

	lease, err := s.deps.Store.GetOrCreate(ctx, userID)
	if err != nil {
		// shutdown or a cancelled request, not a failed turn
		log.Warn("session lease failed", slog.Any("error", err))
		return Reply{Text: errorReply, State: order.StateError, Phase: session.PhaseStart}
	}
	defer lease.Release()
	lease.Touch()
	sess := lease.Session()

	res, out, err := s.turn(ctx, sess, text)
	if err != nil {
		log.Error("turn failed", slog.Any("error", err))
		s.deps.Recorder.ObservePanic()
		sess.AddTurn(text, errorReply, s.now())
		return Reply{Text: errorReply, State: order.StateError, Phase: sess.Phase}
	}

	sess.AddTurn(text, out.Reply, s.now())
	if out.Ended {
		lease.Remove()
	}
	if out.Confirmation != nil {
		s.deps.Recorder.ObserveOrder(out.Confirmation.Total)
		s.publish(event.New(event.TypeOrderConfirmed, userID, out.Confirmation))
		log.Info("order confirmed", slog.Int64("total", out.Confirmation.Total), slog.Int("items", len(out.Confirmation.Lines)))
	}
	s.publish(event.New(event.TypeTurn, userID, map[string]string{
		"estado": out.State,
		"fase":   string(out.Phase),
		"fuente": string(res.Source),
	}))

	elapsed := s.now().Sub(start)
	s.deps.Recorder.ObserveTurn(string(res.Source), out.State, elapsed)
	log.Debug("turn handled",
		slog.String("kind", string(res.Kind)),
		slog.String("source", string(res.Source)),
		slog.String("state", out.State),
		slog.Duration("elapsed", elapsed),
	)
	return Reply{Text: out.Reply, State: out.State, Phase: out.Phase, Source: res.Source}
}

// turn classifies text and applies it, converting a panic into an error.
func (s *Service) turn(ctx context.Context, sess *session.Session, text string) (res intent.Resolved, out order.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	res = s.classify(ctx, sess, text)
	out = s.deps.Machine.Apply(sess, res)
	return res, out, nil
}

// classify runs the cascade: rules, then direct extraction, then the language model.
func (s *Service) classify(ctx context.Context, sess *session.Session, text string) intent.Resolved {
	if res, ok := s.deps.Classifier.Classify(text); ok {
		return res
	}
	if items := s.deps.Extractor.Items(text); len(items) > 0 {
		return intent.Resolved{Kind: intent.KindOrder, Items: items, Source: intent.SourceExtraction}
	}
	return s.deps.Resolver.Resolve(ctx, text, resolver.Context{
		CartSummary: s.deps.Machine.CartSummary(sess.Cart),
		History:     sess.HistoryLines(),
	})
}

// Reset deletes the session of userID. Resetting an unknown user is not an error.
func (s *Service) Reset(ctx context.Context, userID string) (string, error) {
	existed, err := s.deps.Store.Remove(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("reset session: %w", err)
	}
	if existed {
		s.publish(event.New(event.TypeSessionReset, userID, nil))
		s.logger.Info("session reset", slog.String("user_id", userID))
	}
	return resetReply, nil
}

// Stats reports live counters.
func (s *Service) Stats() Stats {
	st := Stats{ActiveSessions: s.deps.Store.Len()}
	if s.deps.Resolver != nil {
		st.CacheEntries = s.deps.Resolver.CacheSize()
	}
	if s.deps.Catalog != nil {
		st.Products = s.deps.Catalog.Len()
	}
	return st
}

func (s *Service) publish(ev event.Event) {
	if s.deps.Publisher != nil {
		s.deps.Publisher.Publish(ev)
	}
}
