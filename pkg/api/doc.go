// Package api defines the provider-agnostic conversation model shared by
// all backend adapters: messages with ordered content blocks, token usage
// accounting, and the typed error values surfaced by provider calls.
// Backend wire formats never leak out of their codec packages; adapters
// translate to and from these types.
package api
