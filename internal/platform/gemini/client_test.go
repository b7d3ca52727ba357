package gemini

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/caderno-api/internal/config"
	"github.com/phrazzld/caderno-api/internal/generation"
	"github.com/phrazzld/caderno-api/internal/platform/memory"
	"github.com/phrazzld/caderno-api/internal/storage"
	"github.com/phrazzld/caderno-api/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

const testAPIKey = "test-api-key-123456"

type reply func(ctx context.Context) (*genai.GenerateContentResponse, error)

// fakeTransport answers calls from a script; the last reply repeats.
type fakeTransport struct {
	mu      sync.Mutex
	calls   []Call
	replies []reply
}

func newFakeTransport(replies ...reply) *fakeTransport {
	return &fakeTransport{replies: replies}
}

func (f *fakeTransport) GenerateContent(ctx context.Context, call Call) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	idx := len(f.calls)
	f.calls = append(f.calls, call)
	if idx >= len(f.replies) {
		idx = len(f.replies) - 1
	}
	next := f.replies[idx]
	f.mu.Unlock()
	return next(ctx)
}

func (f *fakeTransport) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

func textReply(text string) reply {
	return func(context.Context) (*genai.GenerateContentResponse, error) {
		return &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content:      &genai.Content{Parts: []*genai.Part{{Text: text}}},
				FinishReason: genai.FinishReasonStop,
			}},
			UsageMetadata: &genai.GenerateContentResponseUsageMetadata{TotalTokenCount: 42},
		}, nil
	}
}

func statusReply(code int, message string) reply {
	return func(context.Context) (*genai.GenerateContentResponse, error) {
		return nil, newStatusError(code, message)
	}
}

func errReply(err error) reply {
	return func(context.Context) (*genai.GenerateContentResponse, error) {
		return nil, err
	}
}

func blockingReply() reply {
	return func(ctx context.Context) (*genai.GenerateContentResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
}

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
	err    error
}

func (s *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return s.err
}

func (s *recordingSleeper) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

func newStore(t *testing.T, apiKey string) *storage.Store {
	t.Helper()
	s := storage.New(context.Background(), memory.New(0), testutils.DiscardLogger())
	if apiKey != "" {
		require.True(t, s.Set(context.Background(), CredentialKey, apiKey))
	}
	return s
}

type fixture struct {
	client    *Client
	transport *fakeTransport
	sleeper   *recordingSleeper
	logs      *testutils.TestSlogHandler
}

var fixedNow = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

func newFixture(t *testing.T, apiKey string, transport *fakeTransport, opts ...Option) fixture {
	t.Helper()
	logger, logs := testutils.NewTestLogger()
	sleeper := &recordingSleeper{}

	all := append([]Option{
		WithTransport(transport),
		WithSleeper(sleeper.sleep),
		WithClock(func() time.Time { return fixedNow }),
	}, opts...)

	client, err := New(newStore(t, apiKey), logger, all...)
	require.NoError(t, err)

	return fixture{client: client, transport: transport, sleeper: sleeper, logs: logs}
}

func requireCode(t *testing.T, err error, want generation.Code) *generation.Error {
	t.Helper()
	require.Error(t, err)
	var gerr *generation.Error
	require.True(t, errors.As(err, &gerr), "expected *generation.Error, got %T", err)
	require.Equal(t, want, gerr.Code, "error: %v", err)
	return gerr
}

func TestNew(t *testing.T) {
	logger := testutils.DiscardLogger()

	t.Run("nil store", func(t *testing.T) {
		_, err := New(nil, logger)
		assert.Error(t, err)
	})

	t.Run("nil logger", func(t *testing.T) {
		_, err := New(newStore(t, ""), nil)
		assert.Error(t, err)
	})

	t.Run("invalid policy", func(t *testing.T) {
		_, err := New(newStore(t, ""), logger, WithRetryPolicy(generation.RetryPolicy{MaxAttempts: 0}))
		assert.ErrorContains(t, err, "invalid retry policy")
	})

	t.Run("empty model", func(t *testing.T) {
		_, err := New(newStore(t, ""), logger, WithModel(""))
		assert.Error(t, err)
	})

	t.Run("defaults", func(t *testing.T) {
		c, err := New(newStore(t, ""), logger)
		require.NoError(t, err)
		assert.Equal(t, DefaultModel, c.model)
		assert.Equal(t, generation.DefaultRetryPolicy(), c.policy)
		assert.IsType(t, &RESTTransport{}, c.transport)
	})
}

func TestNewFromConfig(t *testing.T) {
	base := config.LLMConfig{
		BaseURL:           DefaultBaseURL,
		ModelName:         "gemini-test",
		Transport:         "rest",
		MaxAttempts:       5,
		InitialRetryDelay: 250 * time.Millisecond,
		Timeout:           10 * time.Second,
		Language:          "English",
	}

	t.Run("rest", func(t *testing.T) {
		c, err := NewFromConfig(base, newStore(t, ""), testutils.DiscardLogger(), nil)
		require.NoError(t, err)
		assert.IsType(t, &RESTTransport{}, c.transport)
		assert.Equal(t, "gemini-test", c.model)
		assert.Equal(t, "English", c.language)
		assert.Equal(t, generation.RetryPolicy{
			MaxAttempts:    5,
			InitialDelay:   250 * time.Millisecond,
			AttemptTimeout: 10 * time.Second,
		}, c.policy)
	})

	t.Run("sdk", func(t *testing.T) {
		cfg := base
		cfg.Transport = "sdk"
		c, err := NewFromConfig(cfg, newStore(t, ""), testutils.DiscardLogger(), nil)
		require.NoError(t, err)
		assert.IsType(t, &SDKTransport{}, c.transport)
	})

	t.Run("unknown transport", func(t *testing.T) {
		cfg := base
		cfg.Transport = "grpc"
		_, err := NewFromConfig(cfg, newStore(t, ""), testutils.DiscardLogger(), nil)
		assert.ErrorContains(t, err, "unknown transport")
	})

	t.Run("missing template file", func(t *testing.T) {
		cfg := base
		cfg.PromptTemplatePath = "does/not/exist.tmpl"
		_, err := NewFromConfig(cfg, newStore(t, ""), testutils.DiscardLogger(), nil)
		assert.ErrorContains(t, err, "failed to read prompt template")
	})
}

func TestGenerate_MissingCredential(t *testing.T) {
	f := newFixture(t, "", newFakeTransport(textReply("never")))

	_, err := f.client.Generate(context.Background(), generation.Request{Prompt: "Era uma vez"})

	requireCode(t, err, generation.CodeCredentialMissing)
	assert.ErrorIs(t, err, generation.ErrCredentialMissing)
	assert.Empty(t, f.transport.Calls(), "no request may be sent without a credential")
}

func TestGenerate_InvalidRequest(t *testing.T) {
	tests := []struct {
		name string
		req  generation.Request
	}{
		{"empty prompt", generation.Request{Prompt: ""}},
		{"invalid utf-8", generation.Request{Prompt: "\xff\xfe"}},
		{"temperature out of range", generation.Request{
			Prompt:  "texto",
			Options: generation.Options{Temperature: 3},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, testAPIKey, newFakeTransport(textReply("never")))

			_, err := f.client.Generate(context.Background(), tt.req)

			requireCode(t, err, generation.CodeInvalidInput)
			assert.Empty(t, f.transport.Calls())
		})
	}
}

func TestGenerate_Success(t *testing.T) {
	f := newFixture(t, testAPIKey, newFakeTransport(textReply(" e viveram felizes.")))

	result, err := f.client.Generate(context.Background(), generation.Request{Prompt: "Era uma vez"})
	require.NoError(t, err)

	assert.Equal(t, " e viveram felizes.", result.Text)
	assert.Equal(t, 42, result.TokensUsed)
	assert.Equal(t, "STOP", result.FinishReason)
	assert.Equal(t, fixedNow, result.CompletedAt)

	calls := f.transport.Calls()
	require.Len(t, calls, 1)
	call := calls[0]
	assert.Equal(t, testAPIKey, call.APIKey)
	assert.Equal(t, DefaultModel, call.Model)

	require.Len(t, call.Body.Contents, 1)
	require.Len(t, call.Body.Contents[0].Parts, 1)
	prompt := call.Body.Contents[0].Parts[0].Text
	assert.Contains(t, prompt, `"Era uma vez"`)
	assert.Contains(t, prompt, "Portuguese")
	assert.Contains(t, prompt, "Do not repeat the original text")

	gc := call.Body.GenerationConfig
	require.NotNil(t, gc)
	assert.Equal(t, float32(0.7), *gc.Temperature)
	assert.Equal(t, float32(40), *gc.TopK)
	assert.Equal(t, float32(0.95), *gc.TopP)
	assert.Equal(t, int32(1024), gc.MaxOutputTokens)

	assert.Empty(t, f.sleeper.Delays())
}

func TestGenerate_CustomOptions(t *testing.T) {
	f := newFixture(t, testAPIKey, newFakeTransport(textReply("ok")))

	_, err := f.client.Generate(context.Background(), generation.Request{
		Prompt:  "texto",
		Options: generation.Options{Temperature: 1.2, MaxOutputTokens: 50},
	})
	require.NoError(t, err)

	gc := f.transport.Calls()[0].Body.GenerationConfig
	assert.Equal(t, float32(1.2), *gc.Temperature)
	assert.Equal(t, int32(50), gc.MaxOutputTokens)
	assert.Equal(t, float32(40), *gc.TopK)
}

func TestGenerate_RetriesServerErrorsThenSucceeds(t *testing.T) {
	transport := newFakeTransport(
		statusReply(500, "internal"),
		statusReply(503, "unavailable"),
		textReply("continuação"),
	)
	f := newFixture(t, testAPIKey, transport)

	result, err := f.client.Generate(context.Background(), generation.Request{Prompt: "texto"})
	require.NoError(t, err)

	assert.Equal(t, "continuação", result.Text)
	assert.Len(t, transport.Calls(), 3)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, f.sleeper.Delays())

	retries := f.logs.Find("generation attempt failed, retrying")
	require.Len(t, retries, 2)
	assert.Equal(t, generation.CodeNetwork, retries[0]["code"])
	assert.EqualValues(t, 1, retries[0]["attempt"])
	assert.EqualValues(t, 1000, retries[0]["delay_ms"])
	assert.EqualValues(t, 2000, retries[1]["delay_ms"])
}

func TestGenerate_RateLimitIsRetried(t *testing.T) {
	transport := newFakeTransport(statusReply(429, "slow down"), textReply("ok"))
	f := newFixture(t, testAPIKey, transport)

	_, err := f.client.Generate(context.Background(), generation.Request{Prompt: "texto"})
	require.NoError(t, err)
	assert.Len(t, transport.Calls(), 2)
}

func TestGenerate_ClientErrorIsTerminal(t *testing.T) {
	for _, code := range []int{400, 401, 403, 404} {
		transport := newFakeTransport(statusReply(code, "API key not valid"), textReply("never"))
		f := newFixture(t, testAPIKey, transport)

		_, err := f.client.Generate(context.Background(), generation.Request{Prompt: "texto"})

		gerr := requireCode(t, err, generation.CodeUpstreamClient)
		assert.Equal(t, "API key not valid", gerr.Message)
		assert.Len(t, transport.Calls(), 1, "status %d must not be retried", code)
		assert.Empty(t, f.sleeper.Delays())

		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, code, statusErr.StatusCode)
	}
}

func TestGenerate_RetriesExhausted(t *testing.T) {
	transport := newFakeTransport(statusReply(500, "internal"))
	f := newFixture(t, testAPIKey, transport)

	_, err := f.client.Generate(context.Background(), generation.Request{Prompt: "texto"})

	gerr := requireCode(t, err, generation.CodeRetriesExhausted)
	assert.ErrorIs(t, err, generation.ErrRetriesExhausted)
	assert.Len(t, transport.Calls(), 3)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, f.sleeper.Delays())

	var last *generation.Error
	require.ErrorAs(t, gerr.Cause, &last)
	assert.Equal(t, generation.CodeNetwork, last.Code)
	assert.Contains(t, last.Message, "HTTP 500")

	failures := f.logs.Find("generation failed")
	require.Len(t, failures, 1)
	assert.Equal(t, generation.CodeRetriesExhausted, failures[0]["code"])
}

func TestGenerate_TimeoutsAreRetriedUntilExhausted(t *testing.T) {
	transport := newFakeTransport(blockingReply())
	f := newFixture(t, testAPIKey, transport, WithRetryPolicy(generation.RetryPolicy{
		MaxAttempts:    3,
		InitialDelay:   time.Second,
		AttemptTimeout: 20 * time.Millisecond,
	}))

	_, err := f.client.Generate(context.Background(), generation.Request{Prompt: "texto"})

	gerr := requireCode(t, err, generation.CodeRetriesExhausted)
	assert.Len(t, transport.Calls(), 3)

	var last *generation.Error
	require.ErrorAs(t, gerr.Cause, &last)
	assert.Equal(t, generation.CodeTimeout, last.Code)
	assert.ErrorIs(t, last, context.DeadlineExceeded)
}

func TestGenerate_NetworkErrorIsRetried(t *testing.T) {
	transport := newFakeTransport(errReply(errors.New("dial tcp: connection refused")), textReply("ok"))
	f := newFixture(t, testAPIKey, transport)

	_, err := f.client.Generate(context.Background(), generation.Request{Prompt: "texto"})
	require.NoError(t, err)
	assert.Len(t, transport.Calls(), 2)
	assert.Equal(t, []time.Duration{time.Second}, f.sleeper.Delays())
}

func TestGenerate_EmptyTextIsTerminal(t *testing.T) {
	tests := []struct {
		name  string
		reply reply
	}{
		{"empty text", textReply("")},
		{"no candidates", func(context.Context) (*genai.GenerateContentResponse, error) {
			return &genai.GenerateContentResponse{}, nil
		}},
		{"malformed body", errReply(errors.Join(ErrMalformedResponse, errors.New("unexpected EOF")))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := newFakeTransport(tt.reply, textReply("never"))
			f := newFixture(t, testAPIKey, transport)

			_, err := f.client.Generate(context.Background(), generation.Request{Prompt: "texto"})

			requireCode(t, err, generation.CodeEmptyGeneration)
			assert.Len(t, transport.Calls(), 1)
		})
	}
}

func TestGenerate_CancelledContextIsTerminal(t *testing.T) {
	transport := newFakeTransport(blockingReply())
	f := newFixture(t, testAPIKey, transport)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.client.Generate(ctx, generation.Request{Prompt: "texto"})

	requireCode(t, err, generation.CodeTimeout)
	assert.Len(t, transport.Calls(), 1)
}

func TestGenerate_CancelledDuringBackoff(t *testing.T) {
	transport := newFakeTransport(statusReply(500, "internal"))
	f := newFixture(t, testAPIKey, transport)
	f.sleeper.err = context.Canceled

	_, err := f.client.Generate(context.Background(), generation.Request{Prompt: "texto"})

	requireCode(t, err, generation.CodeTimeout)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, transport.Calls(), 1)
}

func TestGenerate_ReadsCredentialOnEveryCall(t *testing.T) {
	transport := newFakeTransport(textReply("ok"))
	f := newFixture(t, "first-key-000000", transport)

	_, err := f.client.Generate(context.Background(), generation.Request{Prompt: "texto"})
	require.NoError(t, err)

	require.NoError(t, f.client.SetCredential(context.Background(), "second-key-000000"))
	_, err = f.client.Generate(context.Background(), generation.Request{Prompt: "texto"})
	require.NoError(t, err)

	calls := transport.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "first-key-000000", calls[0].APIKey)
	assert.Equal(t, "second-key-000000", calls[1].APIKey)
}

func TestSetCredential(t *testing.T) {
	f := newFixture(t, "", newFakeTransport(textReply("ok")))
	ctx := context.Background()

	err := f.client.SetCredential(ctx, "   ")
	requireCode(t, err, generation.CodeInvalidInput)
	assert.False(t, f.client.HasCredential(ctx))

	require.NoError(t, f.client.SetCredential(ctx, "  new-key-1234567  "))
	assert.True(t, f.client.HasCredential(ctx))

	key, ok := f.client.store.GetString(ctx, CredentialKey)
	require.True(t, ok)
	assert.Equal(t, "new-key-1234567", key)
}

func TestSeedCredential(t *testing.T) {
	ctx := context.Background()

	t.Run("stores key when none is stored", func(t *testing.T) {
		f := newFixture(t, "", newFakeTransport(textReply("ok")))
		seeded, err := f.client.SeedCredential(ctx, "seed-key-1234567")
		require.NoError(t, err)
		assert.True(t, seeded)
		assert.True(t, f.client.HasCredential(ctx))
	})

	t.Run("keeps stored key", func(t *testing.T) {
		f := newFixture(t, "stored-key-1234567", newFakeTransport(textReply("ok")))
		seeded, err := f.client.SeedCredential(ctx, "seed-key-1234567")
		require.NoError(t, err)
		assert.False(t, seeded)

		key, _ := f.client.store.GetString(ctx, CredentialKey)
		assert.Equal(t, "stored-key-1234567", key)
	})

	t.Run("blank key is ignored", func(t *testing.T) {
		f := newFixture(t, "", newFakeTransport(textReply("ok")))
		seeded, err := f.client.SeedCredential(ctx, "  ")
		require.NoError(t, err)
		assert.False(t, seeded)
		assert.False(t, f.client.HasCredential(ctx))
	})
}

func TestValidateCredential(t *testing.T) {
	ctx := context.Background()

	t.Run("no credential", func(t *testing.T) {
		f := newFixture(t, "", newFakeTransport(textReply("ok")))

		v := f.client.ValidateCredential(ctx)

		assert.Equal(t, generation.Validation{Valid: false, Message: "API key not configured"}, v)
		assert.Empty(t, f.transport.Calls())
	})

	t.Run("accepted", func(t *testing.T) {
		f := newFixture(t, testAPIKey, newFakeTransport(textReply("")))

		v := f.client.ValidateCredential(ctx)

		assert.True(t, v.Valid)
		assert.Equal(t, "API key is valid", v.Message)

		calls := f.transport.Calls()
		require.Len(t, calls, 1)
		assert.Nil(t, calls[0].Body.GenerationConfig)
		assert.Equal(t, "test", calls[0].Body.Contents[0].Parts[0].Text)
	})

	t.Run("rejected", func(t *testing.T) {
		f := newFixture(t, testAPIKey, newFakeTransport(statusReply(400, "API key not valid. Please pass a valid API key.")))

		v := f.client.ValidateCredential(ctx)

		assert.False(t, v.Valid)
		assert.Equal(t, "API key not valid. Please pass a valid API key.", v.Message)
		assert.Len(t, f.transport.Calls(), 1)
	})

	t.Run("exhausted", func(t *testing.T) {
		f := newFixture(t, testAPIKey, newFakeTransport(statusReply(503, "overloaded")))

		v := f.client.ValidateCredential(ctx)

		assert.False(t, v.Valid)
		assert.Equal(t, generation.ErrRetriesExhausted.Error(), v.Message)
		assert.Len(t, f.transport.Calls(), 3)
	})
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), 0))
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
