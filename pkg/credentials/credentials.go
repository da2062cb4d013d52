// Package credentials builds the auth material attached to backend
// requests. Adapters hold a single Method chosen at construction;
// methods are immutable and safe for concurrent use.
package credentials

import "net/http"

// Method applies authentication to an outgoing request.
type Method interface {
	Apply(req *http.Request) error
}

// APIKey sends the key in a fixed header, e.g. x-api-key for
// Anthropic-compatible backends.
type APIKey struct {
	Header string
	Key    string
}

func (m APIKey) Apply(req *http.Request) error {
	header := m.Header
	if header == "" {
		header = "x-api-key"
	}
	req.Header.Set(header, m.Key)
	return nil
}

// Bearer sends the key as an Authorization bearer token.
type Bearer struct {
	Token string
}

func (m Bearer) Apply(req *http.Request) error {
	req.Header.Set("Authorization", "Bearer "+m.Token)
	return nil
}
