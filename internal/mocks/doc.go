// Package mocks provides hand-written test doubles for the generation
// interfaces, with call tracking for assertions.
package mocks
