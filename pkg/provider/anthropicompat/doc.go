// Package anthropicompat implements the provider.Codec for backends that
// speak the Anthropic Messages wire format (Anthropic itself, Z.ai, and
// other compatible gateways): request translation, batch response
// decoding, line-framed event-stream decoding, and HTTP error
// classification. Adapters own the endpoint, auth, and retry policy;
// this package owns only the bytes.
package anthropicompat
