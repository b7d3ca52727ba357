// Package config handles configuration loading, parsing, and validation
// from defaults, an optional YAML file and CADERNO_-prefixed environment
// variables. It provides type-safe access to the server, storage and LLM
// settings while keeping configuration details separate from business logic.
package config
