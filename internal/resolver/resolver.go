// Package resolver classifies messages the deterministic stages could not, by asking a
// language model for a JSON intent and validating it against the catalog.
package resolver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/congelados/vendedor/internal/catalog"
	"github.com/congelados/vendedor/internal/config"
	"github.com/congelados/vendedor/internal/intent"
	"github.com/congelados/vendedor/internal/llm"
)

// FallbackReply is returned whenever the model cannot produce a usable intent.
const FallbackReply = "Lo siento 😅 no logré entender bien. ¿Podrías decirlo de otra forma?"

// Completion outcomes reported to the Recorder.
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeTimeout   = "timeout"
	OutcomeMalformed = "malformed"
	OutcomeDisabled  = "disabled"
)

// Recorder receives resolver measurements.
type Recorder interface {
	ObserveCompletion(outcome string, elapsed time.Duration)
	ObserveCacheHit()
}

type nopRecorder struct{}

func (nopRecorder) ObserveCompletion(string, time.Duration) {}
func (nopRecorder) ObserveCacheHit() {}

// Context is the session state embedded in the prompt.
type Context struct {
	CartSummary string
	History     []string
}

// Options tunes the resolver.
type Options struct {
	Temperature   float64
	MaxTokens     int
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	CacheScope    string
	Recorder      Recorder
}

// OptionsFromConfig maps [llm] settings onto Options.
func OptionsFromConfig(cfg config.LLMConfig) Options {
	return Options{
		Temperature:   cfg.Temperature,
		MaxTokens:     cfg.MaxTokens,
		Timeout:       cfg.Timeout(),
		RatePerSecond: cfg.RatePerSecond,
		Burst:         cfg.Burst,
		CacheScope:    cfg.CacheScope,
	}
}

// Resolver is safe for concurrent use.
type Resolver struct {
	backend  llm.Completer
	catalog  *catalog.Catalog
	logger   *slog.Logger
	opts     Options
	limiter  *rate.Limiter
	group    singleflight.Group
	system   string
	mu       sync.RWMutex
	cache    map[string]intent.Resolved
	recorder Recorder
}

// New builds a resolver over backend.
func New(log *slog.Logger, backend llm.Completer, cat *catalog.Catalog, opts Options) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = config.DefaultLLMTimeoutSeconds * time.Second
	}
	if opts.CacheScope == "" {
		opts.CacheScope = config.CacheScopeText
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}
	rec := opts.Recorder
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Resolver{
		backend:  backend,
		catalog:  cat,
		logger:   log.With(slog.String("service", "resolver")),
		opts:     opts,
		limiter:  limiter,
		system:   systemPrompt(),
		cache:    map[string]intent.Resolved{},
		recorder: rec,
	}
}

// Resolve never fails: any backend or parse problem yields the no_entendido fallback.
func (r *Resolver) Resolve(ctx context.Context, text string, sc Context) intent.Resolved {
	key := r.cacheKey(text, sc)
	if res, ok := r.cached(key); ok {
		return res
	}
	v, _, _ := r.group.Do(key, func() (any, error) {
		if res, ok := r.cached(key); ok {
			return res, nil
		}
		return r.complete(ctx, key, text, sc), nil
	})
	return v.(intent.Resolved)
}

// CacheSize reports the number of cached intents.
func (r *Resolver) CacheSize() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

func (r *Resolver) cached(key string) (intent.Resolved, bool) {
	r.mu.RLock()
	res, ok := r.cache[key]
	r.mu.RUnlock()
	if !ok {
		return intent.Resolved{}, false
	}
	r.recorder.ObserveCacheHit()
	res.Source = intent.SourceCache
	res.Items = append([]intent.Item(nil), res.Items...)
	res.Remove = append([]string(nil), res.Remove...)
	return res, true
}

func (r *Resolver) complete(ctx context.Context, key, text string, sc Context) intent.Resolved {
	// Shared by every caller waiting on key, so it must not die with the first one.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.Timeout)
	defer cancel()

	start := time.Now()
	if err := r.limiter.Wait(callCtx); err != nil {
		r.recorder.ObserveCompletion(OutcomeTimeout, time.Since(start))
		r.logger.Warn("llm rate limit wait failed", slog.Any("error", err))
		return Fallback()
	}
	raw, err := r.backend.Complete(callCtx, llm.Request{
		System:      r.system,
		Prompt:      buildPrompt(r.catalog, text, sc),
		Temperature: r.opts.Temperature,
		MaxTokens:   r.opts.MaxTokens,
		Schema:      intent.Schema(),
	})
	elapsed := time.Since(start)
	if err != nil {
		outcome := OutcomeError
		switch {
		case errors.Is(err, llm.ErrNoBackend):
			outcome = OutcomeDisabled
		case errors.Is(err, context.DeadlineExceeded), errors.Is(callCtx.Err(), context.DeadlineExceeded):
			outcome = OutcomeTimeout
		}
		r.recorder.ObserveCompletion(outcome, elapsed)
		if outcome != OutcomeDisabled {
			r.logger.Warn("llm completion failed", slog.String("outcome", outcome), slog.Any("error", err))
		}
		return Fallback()
	}

	payload, ok := ExtractJSON(raw)
	if !ok {
		r.recorder.ObserveCompletion(OutcomeMalformed, elapsed)
		r.logger.Warn("llm response has no json object", slog.Int("bytes", len(raw)))
		return Fallback()
	}
	res, err := intent.Decode([]byte(payload), r.catalog, r.logger)
	if err != nil {
		r.recorder.ObserveCompletion(OutcomeMalformed, elapsed)
		r.logger.Warn("llm response rejected", slog.Any("error", err))
		return Fallback()
	}
	r.recorder.ObserveCompletion(OutcomeOK, elapsed)

	r.mu.Lock()
	r.cache[key] = res
	r.mu.Unlock()
	r.logger.Debug("llm intent resolved", slog.String("kind", string(res.Kind)), slog.Duration("elapsed", elapsed))
	return res
}

func (r *Resolver) cacheKey(text string, sc Context) string {
	h := sha256.New()
	h.Write([]byte(text))
	if r.opts.CacheScope == config.CacheScopeTextAndCart {
		h.Write([]byte{0})
		h.Write([]byte(sc.CartSummary))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Fallback is the fixed intent used when resolution fails.
func Fallback() intent.Resolved {
	return intent.Resolved{
		Kind:   intent.KindNotUnderstood,
		Reply:  FallbackReply,
		Source: intent.SourceFallback,
	}
}
