// Package provider defines the adapter-facing surface for LLM inference
// backends: the Provider interface with its batch and streaming entry
// points, the request/model configuration types, and the Codec strategy
// that encapsulates a wire-format family. Each adapter implementation
// (e.g. zai) wires a codec to its endpoint, auth, and retry policy,
// keeping backend protocol details invisible to callers.
package provider
