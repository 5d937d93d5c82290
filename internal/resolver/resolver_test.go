package resolver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congelados/vendedor/internal/catalog"
	"github.com/congelados/vendedor/internal/config"
	"github.com/congelados/vendedor/internal/intent"
	"github.com/congelados/vendedor/internal/llm"
)

type fakeCompleter struct {
	calls   atomic.Int32
	reply   string
	err     error
	delay   time.Duration
	lastReq atomic.Value
}

func (f *fakeCompleter) Name() string { return "fake" }

func (f *fakeCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.calls.Add(1)
	f.lastReq.Store(req)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

type countingRecorder struct {
	mu       sync.Mutex
	outcomes []string
	hits     int
}

func (c *countingRecorder) ObserveCompletion(outcome string, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes = append(c.outcomes, outcome)
}

func (c *countingRecorder) ObserveCacheHit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hits++
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newResolver(backend llm.Completer, opts Options) *Resolver {
	return New(quiet, backend, catalog.Default(), opts)
}

func TestResolveProseFallsBack(t *testing.T) {
	rec := &countingRecorder{}
	backend := &fakeCompleter{reply: "Claro, con gusto te ayudo con tu pedido."}
	r := newResolver(backend, Options{Recorder: rec})

	got := r.Resolve(context.Background(), "algo raro", Context{})
	assert.Equal(t, intent.KindNotUnderstood, got.Kind)
	assert.Equal(t, FallbackReply, got.Reply)
	assert.Equal(t, intent.SourceFallback, got.Source)
	assert.Equal(t, 0, r.CacheSize())
	assert.Equal(t, []string{OutcomeMalformed}, rec.outcomes)
}

func TestResolveCachesByText(t *testing.T) {
	rec := &countingRecorder{}
	backend := &fakeCompleter{reply: "```json\n{\"intencion\":\"pedido\",\"items\":[{\"producto\":\"pizza\",\"cantidad\":2}],\"respuesta\":\"🍕\"}\n```"}
	r := newResolver(backend, Options{Recorder: rec})
	ctx := context.Background()

	first := r.Resolve(ctx, "me antojé de dos pizzas", Context{CartSummary: "Ninguno."})
	second := r.Resolve(ctx, "me antojé de dos pizzas", Context{CartSummary: "- 3 x Empanadas"})

	assert.EqualValues(t, 1, backend.calls.Load())
	assert.Equal(t, intent.KindOrder, first.Kind)
	assert.Equal(t, intent.SourceLLM, first.Source)
	assert.Equal(t, []intent.Item{{Product: "pizza personal", Quantity: 2}}, first.Items)
	assert.Equal(t, intent.SourceCache, second.Source)
	assert.Equal(t, first.Items, second.Items)
	assert.Equal(t, 1, r.CacheSize())
	assert.Equal(t, 1, rec.hits)
}

func TestResolveCartScopedCache(t *testing.T) {
	backend := &fakeCompleter{reply: `{"intencion":"recomendacion","respuesta":"Prueba los deditos 🧀"}`}
	r := newResolver(backend, Options{CacheScope: config.CacheScopeTextAndCart})
	ctx := context.Background()

	r.Resolve(ctx, "qué me recomiendas", Context{CartSummary: "Ninguno."})
	r.Resolve(ctx, "qué me recomiendas", Context{CartSummary: "- 1 x Pizza personal"})
	r.Resolve(ctx, "qué me recomiendas", Context{CartSummary: "- 1 x Pizza personal"})
	assert.EqualValues(t, 2, backend.calls.Load())
}

func TestResolveTimeout(t *testing.T) {
	rec := &countingRecorder{}
	backend := &fakeCompleter{reply: `{"intencion":"menu"}`, delay: time.Second}
	r := newResolver(backend, Options{Timeout: 20 * time.Millisecond, Recorder: rec})

	start := time.Now()
	got := r.Resolve(context.Background(), "hmm", Context{})
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, intent.KindNotUnderstood, got.Kind)
	assert.Equal(t, []string{OutcomeTimeout}, rec.outcomes)
}

func TestResolveBackendErrors(t *testing.T) {
	r := newResolver(&fakeCompleter{err: errors.New("connection refused")}, Options{})
	got := r.Resolve(context.Background(), "x", Context{})
	assert.Equal(t, FallbackReply, got.Reply)

	rec := &countingRecorder{}
	r = newResolver(llm.Disabled{}, Options{Recorder: rec})
	got = r.Resolve(context.Background(), "x", Context{})
	assert.Equal(t, intent.KindNotUnderstood, got.Kind)
	assert.Equal(t, []string{OutcomeDisabled}, rec.outcomes)

	r = newResolver(&fakeCompleter{reply: `{"intencion":"bailar"}`}, Options{})
	got = r.Resolve(context.Background(), "x", Context{})
	assert.Equal(t, intent.KindNotUnderstood, got.Kind)
	assert.Equal(t, 0, r.CacheSize())
}

func TestResolveDeduplicatesConcurrentCalls(t *testing.T) {
	backend := &fakeCompleter{reply: `{"intencion":"menu","respuesta":"📋"}`, delay: 50 * time.Millisecond}
	r := newResolver(backend, Options{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := r.Resolve(context.Background(), "muéstrame lo que hay", Context{})
			assert.Equal(t, intent.KindMenu, got.Kind)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, backend.calls.Load())
}

func TestPromptCarriesContext(t *testing.T) {
	backend := &fakeCompleter{reply: `{"intencion":"detalles_producto","respuesta":"Son de carne 🥟"}`}
	r := newResolver(backend, Options{Temperature: 0.3, MaxTokens: 300})

	r.Resolve(context.Background(), "¿de qué son las empanadas?", Context{
		CartSummary: "- 2 x Empanadas",
		History:     []string{"Cliente: hola", "Bot: ¡Hola!"},
	})
	req, ok := backend.lastReq.Load().(llm.Request)
	require.True(t, ok)
	assert.Contains(t, req.Prompt, "Pizza personal - $5900 (Deliciosa pizza individual)")
	assert.Contains(t, req.Prompt, "- 2 x Empanadas")
	assert.Contains(t, req.Prompt, "Cliente: hola")
	assert.Contains(t, req.Prompt, "¿de qué son las empanadas?")
	assert.Contains(t, req.Prompt, "máx 100 palabras")
	assert.Contains(t, req.System, `"intencion"`)
	assert.InDelta(t, 0.3, req.Temperature, 1e-9)
	assert.Equal(t, 300, req.MaxTokens)
	assert.NotNil(t, req.Schema)
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: `{"a":1}`, want: `{"a":1}`, ok: true},
		{in: "Claro! aquí va:\n{\"a\":{\"b\":2}} espero ayude {\"c\":3}", want: `{"a":{"b":2}}`, ok: true},
		{in: "```json\n{\"r\":\"usa } y { sin miedo\"}\n```", want: `{"r":"usa } y { sin miedo"}`, ok: true},
		{in: `{"r":"comillas \" y }"}`, want: `{"r":"comillas \" y }"}`, ok: true},
		{in: "sin json", ok: false},
		{in: "{ roto", ok: false},
	}
	for _, tt := range tests {
		got, ok := ExtractJSON(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
