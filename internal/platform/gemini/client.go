package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"text/template"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/phrazzld/caderno-api/internal/config"
	"github.com/phrazzld/caderno-api/internal/generation"
	"google.golang.org/genai"
)

// CredentialKey is the storage key holding the Gemini API key.
const CredentialKey = "gemini_api_key"

// DefaultModel is the model used when none is configured.
const DefaultModel = "gemini-1.5-flash-latest"

// CredentialStore is the part of the key-value store the client needs.
type CredentialStore interface {
	GetString(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, value any) bool
}

// Client implements generation.Generator against the Gemini API.
type Client struct {
	store     CredentialStore
	transport Transport
	logger    *slog.Logger
	policy    generation.RetryPolicy
	model     string
	language  string
	template  *template.Template
	sleep     func(ctx context.Context, d time.Duration) error
	now       func() time.Time
}

// Ensure Client implements generation.Generator.
var _ generation.Generator = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithTransport sets the transport. The default is a RESTTransport against DefaultBaseURL.
func WithTransport(t Transport) Option {
	return func(c *Client) { c.transport = t }
}

// WithRetryPolicy sets the attempt budget, backoff and per-attempt timeout.
func WithRetryPolicy(p generation.RetryPolicy) Option {
	return func(c *Client) { c.policy = p }
}

// WithModel sets the model name.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithLanguage sets the language passed to the prompt template.
func WithLanguage(language string) Option {
	return func(c *Client) { c.language = language }
}

// WithTemplate replaces the embedded prompt template.
func WithTemplate(tmpl *template.Template) Option {
	return func(c *Client) { c.template = tmpl }
}

// WithSleeper replaces the function used to wait between attempts.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = sleep }
}

// WithClock sets the clock used to stamp results.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a Client that reads its credential from store.
//
// Parameters:
//   - store: The key-value store holding the API key under CredentialKey
//   - logger: A structured logger for attempt decisions
//   - opts: Optional overrides of transport, policy, model and template
//
// Returns:
//   - A ready Client, or an error if a dependency is missing or the
//     retry policy is invalid
func New(store CredentialStore, logger *slog.Logger, opts ...Option) (*Client, error) {
	if store == nil {
		return nil, errors.New("credential store cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	c := &Client{
		store:    store,
		logger:   logger.With("component", "gemini"),
		policy:   generation.DefaultRetryPolicy(),
		model:    DefaultModel,
		language: DefaultLanguage,
		sleep:    sleepContext,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.transport == nil {
		c.transport = NewRESTTransport(DefaultBaseURL, nil)
	}
	if c.template == nil {
		c.template = DefaultTemplate()
	}
	if c.model == "" {
		return nil, errors.New("model name cannot be empty")
	}
	if err := c.policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry policy: %w", err)
	}
	return c, nil
}

// NewFromConfig creates a Client from LLM configuration, choosing the
// transport and loading the prompt template file when one is configured.
func NewFromConfig(cfg config.LLMConfig, store CredentialStore, logger *slog.Logger, httpClient *http.Client) (*Client, error) {
	var transport Transport
	switch cfg.Transport {
	case "sdk":
		transport = NewSDKTransport(cfg.BaseURL, httpClient)
	case "rest", "":
		transport = NewRESTTransport(cfg.BaseURL, httpClient)
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}

	opts := []Option{
		WithTransport(transport),
		WithModel(cfg.ModelName),
		WithRetryPolicy(generation.RetryPolicy{
			MaxAttempts:    cfg.MaxAttempts,
			InitialDelay:   cfg.InitialRetryDelay,
			AttemptTimeout: cfg.Timeout,
		}),
	}
	if cfg.Language != "" {
		opts = append(opts, WithLanguage(cfg.Language))
	}
	if cfg.PromptTemplatePath != "" {
		tmpl, err := LoadTemplate(cfg.PromptTemplatePath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithTemplate(tmpl))
	}
	return New(store, logger, opts...)
}

// SetCredential stores the API key used by later calls.
func (c *Client) SetCredential(ctx context.Context, apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return generation.NewError(generation.CodeInvalidInput, "API key cannot be empty", nil)
	}
	if !c.store.Set(ctx, CredentialKey, apiKey) {
		return errors.New("failed to store API key")
	}
	c.logger.InfoContext(ctx, "API key stored")
	return nil
}

// SeedCredential stores apiKey only when no key is stored yet and reports
// whether it did. A blank apiKey is ignored.
func (c *Client) SeedCredential(ctx context.Context, apiKey string) (bool, error) {
	if strings.TrimSpace(apiKey) == "" || c.HasCredential(ctx) {
		return false, nil
	}
	if err := c.SetCredential(ctx, apiKey); err != nil {
		return false, err
	}
	return true, nil
}

// HasCredential reports whether an API key is stored.
func (c *Client) HasCredential(ctx context.Context) bool {
	_, ok := c.credential(ctx)
	return ok
}

func (c *Client) credential(ctx context.Context) (string, bool) {
	key, ok := c.store.GetString(ctx, CredentialKey)
	if !ok || strings.TrimSpace(key) == "" {
		return "", false
	}
	return key, true
}

// Generate implements generation.Generator.
func (c *Client) Generate(ctx context.Context, req generation.Request) (*generation.Result, error) {
	log := c.logger.With("call_id", ulid.Make().String())

	apiKey, ok := c.credential(ctx)
	if !ok {
		log.WarnContext(ctx, "generation rejected: no API key stored")
		return nil, generation.NewError(generation.CodeCredentialMissing, "", nil)
	}

	if err := req.Validate(); err != nil {
		log.WarnContext(ctx, "generation rejected: invalid request", "error", err)
		return nil, err
	}

	prompt, err := render(c.template, promptData{Text: req.Prompt, Language: c.language})
	if err != nil {
		return nil, generation.NewError(generation.CodeInvalidInput, "failed to build prompt", err)
	}

	call := Call{
		APIKey: apiKey,
		Model:  c.model,
		Body: &RequestBody{
			Contents:         textContents(prompt),
			GenerationConfig: generationConfig(req.Options.WithDefaults()),
		},
	}

	log.DebugContext(ctx, "starting generation",
		"model", c.model,
		"prompt_length", len(req.Prompt))

	resp, gerr := c.execute(ctx, log, call, requireText)
	if gerr != nil {
		return nil, gerr
	}
	return c.toResult(resp), nil
}

// ValidateCredential implements generation.Generator. It sends a minimal
// request through the same attempt loop; any success means the key is valid.
func (c *Client) ValidateCredential(ctx context.Context) generation.Validation {
	apiKey, ok := c.credential(ctx)
	if !ok {
		return generation.Validation{Valid: false, Message: generation.ErrCredentialMissing.Error()}
	}

	call := Call{
		APIKey: apiKey,
		Model:  c.model,
		Body:   &RequestBody{Contents: textContents("test")},
	}

	log := c.logger.With("call_id", ulid.Make().String(), "operation", "validate_credential")
	if _, gerr := c.execute(ctx, log, call, nil); gerr != nil {
		return generation.Validation{Valid: false, Message: gerr.Message}
	}
	return generation.Validation{Valid: true, Message: "API key is valid"}
}

func textContents(text string) []*genai.Content {
	return []*genai.Content{{Parts: []*genai.Part{{Text: text}}}}
}

func generationConfig(o generation.Options) *genai.GenerationConfig {
	return &genai.GenerationConfig{
		Temperature:     genai.Ptr(float32(o.Temperature)),
		TopK:            genai.Ptr(float32(o.TopK)),
		TopP:            genai.Ptr(float32(o.TopP)),
		MaxOutputTokens: int32(o.MaxOutputTokens),
	}
}

// execute runs the attempt loop. check inspects a successful response and
// may turn it into a terminal failure.
func (c *Client) execute(
	ctx context.Context,
	log *slog.Logger,
	call Call,
	check func(*genai.GenerateContentResponse) *generation.Error,
) (*genai.GenerateContentResponse, *generation.Error) {
	state := generation.NewRetryState(c.policy)

	for {
		attempt := state.Attempt() + 1
		resp, outcome := c.attempt(ctx, call, check)
		delay, again := state.Advance(outcome)

		switch {
		case outcome.Verdict == generation.VerdictSuccess:
			log.DebugContext(ctx, "generation attempt succeeded",
				"attempt", attempt,
				"max_attempts", state.MaxAttempts())
			return resp, nil

		case again:
			log.WarnContext(ctx, "generation attempt failed, retrying",
				"attempt", attempt,
				"max_attempts", state.MaxAttempts(),
				"classification", outcome.Verdict.String(),
				"code", outcome.Err.Code,
				"delay_ms", delay.Milliseconds(),
				"error", outcome.Err)
			if err := c.sleep(ctx, delay); err != nil {
				gerr := generation.NewError(generation.CodeTimeout, "request cancelled while waiting to retry", err)
				log.ErrorContext(ctx, "generation failed", "attempt", attempt, "code", gerr.Code, "error", gerr)
				return nil, gerr
			}

		default:
			gerr := state.Err()
			log.ErrorContext(ctx, "generation failed",
				"attempt", attempt,
				"max_attempts", state.MaxAttempts(),
				"classification", outcome.Verdict.String(),
				"code", gerr.Code,
				"error", gerr)
			return nil, gerr
		}
	}
}

// attempt issues one request under the per-attempt timeout and classifies it.
func (c *Client) attempt(
	ctx context.Context,
	call Call,
	check func(*genai.GenerateContentResponse) *generation.Error,
) (*genai.GenerateContentResponse, generation.Outcome) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.policy.AttemptTimeout)
	defer cancel()

	resp, err := c.transport.GenerateContent(attemptCtx, call)
	if err != nil {
		return nil, classify(ctx, attemptCtx, err, c.policy.AttemptTimeout)
	}
	if check != nil {
		if gerr := check(resp); gerr != nil {
			return nil, generation.Terminal(gerr)
		}
	}
	return resp, generation.Success()
}

// classify maps a transport failure onto a retryable or terminal outcome.
func classify(parent, attemptCtx context.Context, err error, timeout time.Duration) generation.Outcome {
	if parent.Err() != nil {
		return generation.Terminal(generation.NewError(generation.CodeTimeout, "request cancelled", parent.Err()))
	}

	var statusErr *StatusError
	switch {
	case errors.As(err, &statusErr):
		if statusErr.Retryable() {
			return generation.Retryable(generation.NewError(generation.CodeNetwork, statusErr.Error(), err))
		}
		return generation.Terminal(generation.NewError(generation.CodeUpstreamClient, statusErr.Message, err))

	case errors.Is(err, ErrMalformedResponse):
		return generation.Terminal(generation.NewError(generation.CodeEmptyGeneration, "response could not be decoded", err))

	case errors.Is(attemptCtx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return generation.Retryable(generation.NewError(generation.CodeTimeout,
			fmt.Sprintf("request timed out after %s", timeout), err))

	default:
		return generation.Retryable(generation.NewError(generation.CodeNetwork, "", err))
	}
}

// requireText rejects a successful response that carries no text.
func requireText(resp *genai.GenerateContentResponse) *generation.Error {
	if responseText(resp) == "" {
		return generation.NewError(generation.CodeEmptyGeneration, "", nil)
	}
	return nil
}

func firstCandidate(resp *genai.GenerateContentResponse) *genai.Candidate {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	return resp.Candidates[0]
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	cand := firstCandidate(resp)
	if cand == nil || cand.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

func (c *Client) toResult(resp *genai.GenerateContentResponse) *generation.Result {
	result := &generation.Result{
		Text:        responseText(resp),
		CompletedAt: c.now(),
	}
	if cand := firstCandidate(resp); cand != nil {
		result.FinishReason = string(cand.FinishReason)
	}
	if resp.UsageMetadata != nil {
		result.TokensUsed = int(resp.UsageMetadata.TotalTokenCount)
	}
	return result
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
