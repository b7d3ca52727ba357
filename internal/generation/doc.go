// Package generation defines the contract between the application and a
// remote text-continuation service: the Generator interface, the request and
// result types, the closed vocabulary of normalized error codes, and the retry
// state machine that drives bounded attempts with exponential backoff.
//
// The package holds no transport code. Implementations such as the Gemini
// client in internal/platform/gemini classify each attempt into an Outcome and
// feed it to a RetryState, which decides whether to stop or how long to wait
// before the next attempt.
package generation
