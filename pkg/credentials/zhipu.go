package credentials

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// assertionTTL is the lifetime of one signed assertion. Tokens are
// re-signed shortly before expiry rather than per request.
const assertionTTL = 30 * time.Minute

// refreshMargin renews an assertion this long before it expires.
const refreshMargin = 5 * time.Minute

// ZhipuJWT authenticates with a legacy Zhipu "id.secret" API key by
// exchanging it for an HS256-signed assertion, the scheme the open
// platform used before plain API-key headers. The assertion is cached
// and re-signed before expiry.
type ZhipuJWT struct {
	id     string
	secret []byte

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewZhipuJWT splits an "id.secret" key and returns the signing method.
// A key without exactly one dot is malformed.
func NewZhipuJWT(key string) (*ZhipuJWT, error) {
	id, secret, ok := strings.Cut(key, ".")
	if !ok || id == "" || secret == "" || strings.Contains(secret, ".") {
		return nil, fmt.Errorf("malformed Zhipu API key: want \"id.secret\"")
	}
	return &ZhipuJWT{id: id, secret: []byte(secret)}, nil
}

func (m *ZhipuJWT) Apply(req *http.Request) error {
	token, err := m.assertion(time.Now())
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// assertion returns a valid signed token, reusing the cached one while
// it has more than refreshMargin of life left.
func (m *ZhipuJWT) assertion(now time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != "" && now.Before(m.expires.Add(-refreshMargin)) {
		return m.token, nil
	}

	expires := now.Add(assertionTTL)

	// Zhipu expects millisecond timestamps and a sign_type header field.
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"api_key":   m.id,
		"exp":       expires.UnixMilli(),
		"timestamp": now.UnixMilli(),
	})
	token.Header["sign_type"] = "SIGN"

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("signing Zhipu assertion: %w", err)
	}

	m.token = signed
	m.expires = expires
	return signed, nil
}
