package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/phrazzld/caderno-api/internal/redact"
	"google.golang.org/genai"
)

var versionSegment = regexp.MustCompile(`^v\d+[a-z0-9]*$`)

// SDKTransport performs the generateContent call through the genai client.
// A client is built per call because the API key is read from the store on
// every request and may change between calls.
type SDKTransport struct {
	root       string
	apiVersion string
	httpClient *http.Client
}

// NewSDKTransport creates an SDKTransport. baseURL has the same form as for
// RESTTransport; its trailing version segment becomes the SDK API version.
func NewSDKTransport(baseURL string, httpClient *http.Client) *SDKTransport {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	root, version := splitVersion(baseURL)
	return &SDKTransport{
		root:       root,
		apiVersion: version,
		httpClient: httpClient,
	}
}

func splitVersion(baseURL string) (string, string) {
	trimmed := strings.TrimRight(baseURL, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx > 0 && versionSegment.MatchString(trimmed[idx+1:]) {
		return trimmed[:idx+1], trimmed[idx+1:]
	}
	return trimmed + "/", "v1beta"
}

// GenerateContent implements Transport.
func (t *SDKTransport) GenerateContent(ctx context.Context, call Call) (*genai.GenerateContentResponse, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     call.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: t.httpClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    t.root,
			APIVersion: t.apiVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %s", redact.String(err.Error()))
	}

	var config *genai.GenerateContentConfig
	if gc := call.Body.GenerationConfig; gc != nil {
		config = &genai.GenerateContentConfig{
			Temperature:     gc.Temperature,
			TopK:            gc.TopK,
			TopP:            gc.TopP,
			MaxOutputTokens: gc.MaxOutputTokens,
		}
	}

	resp, err := client.Models.GenerateContent(ctx, call.Model, call.Body.Contents, config)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return nil, newStatusError(apiErr.Code, apiErr.Message)
		}
		return nil, redactURLError(err)
	}
	return resp, nil
}
