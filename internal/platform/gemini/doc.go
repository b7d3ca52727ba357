// Package gemini provides an implementation of the generation.Generator interface
// that continues text using Google's Gemini API.
//
// This package is an infrastructure adapter connecting the application to the
// external Gemini service without exposing the details of the service to the
// callers.
//
// Key components:
//
// 1. Client:
//   - Implements the generation.Generator interface
//   - Reads the API key from the credential store on every call
//   - Renders the prompt template and applies default sampling options
//   - Drives a bounded attempt loop with exponential backoff
//   - Classifies every failure as retryable or terminal and normalizes it
//     into a generation.Error
//
// 2. Transports:
//   - RESTTransport posts JSON to the generateContent endpoint, with the key
//     passed as a query parameter
//   - SDKTransport issues the same call through the google.golang.org/genai client
//
// 3. Prompt Management:
//   - An embedded default continuation template
//   - An optional template file configured at startup
//
// The credential never appears in logs or returned errors: transport errors
// have their URLs redacted before they leave this package.
package gemini
