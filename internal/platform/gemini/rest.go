package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/phrazzld/caderno-api/internal/redact"
	"google.golang.org/genai"
)

// DefaultBaseURL is the Gemini API root including its version segment.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 4 << 20

// RESTTransport calls the generateContent endpoint directly over HTTP:
// POST {baseURL}/models/{model}:generateContent?key={apiKey}.
type RESTTransport struct {
	baseURL    string
	httpClient *http.Client
}

// NewRESTTransport creates a RESTTransport. A nil httpClient uses http.DefaultClient.
func NewRESTTransport(baseURL string, httpClient *http.Client) *RESTTransport {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &RESTTransport{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// GenerateContent implements Transport.
func (t *RESTTransport) GenerateContent(ctx context.Context, call Call) (*genai.GenerateContentResponse, error) {
	payload, err := json.Marshal(call.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		t.baseURL, url.PathEscape(call.Model), url.QueryEscape(call.APIKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %s", redact.String(err.Error()))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, redactURLError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newStatusError(resp.StatusCode, errorMessage(body))
	}

	var out genai.GenerateContentResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &out, nil
}

// errorMessage extracts error.message from a JSON error body.
func errorMessage(body []byte) string {
	var envelope struct {
		Error *genai.APIError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Error == nil {
		return ""
	}
	return envelope.Error.Message
}

// redactURLError strips the credential from the URL carried by a *url.Error
// while keeping the underlying cause matchable.
func redactURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &url.Error{
			Op:  urlErr.Op,
			URL: redact.URL(urlErr.URL),
			Err: urlErr.Err,
		}
	}
	return err
}
