// Package zai implements provider.Provider for Z.ai's GLM models,
// speaking the Anthropic-compatible Messages endpoint the platform
// exposes.
package zai
