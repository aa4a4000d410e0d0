package auth

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Credentials authenticate requests to the backing store.
type Credentials interface {
	Apply(header http.Header) error
}

// Basic is username/password credentials.
type Basic struct {
	Username string
	Password string
}

// Apply sets the Authorization header.
func (b Basic) Apply(header http.Header) error {
	if b.Username == "" {
		return errors.New("auth: empty username")
	}
	req := http.Request{Header: header}
	req.SetBasicAuth(b.Username, b.Password)
	return nil
}

// Claims represents the claims of a service token.
type Claims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// ServiceToken issues HS256 bearer tokens for a fixed subject and reuses
// them until shortly before expiry.
type ServiceToken struct {
	secret  []byte
	subject string
	ttl     time.Duration
	now     func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewServiceToken constructs a token source.
func NewServiceToken(secret []byte, subject string, ttl time.Duration) (*ServiceToken, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: empty secret")
	}
	if subject == "" {
		return nil, errors.New("auth: empty subject")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ServiceToken{secret: secret, subject: subject, ttl: ttl, now: time.Now}, nil
}

// Token returns a valid signed token.
func (s *ServiceToken) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if s.token != "" && now.Add(s.ttl/10).Before(s.expires) {
		return s.token, nil
	}
	expires := now.Add(s.ttl)
	claims := Claims{
		Scope: "sync",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", err
	}
	s.token = signed
	s.expires = expires
	return signed, nil
}

// Apply sets a bearer Authorization header.
func (s *ServiceToken) Apply(header http.Header) error {
	token, err := s.Token()
	if err != nil {
		return err
	}
	header.Set("Authorization", "Bearer "+token)
	return nil
}
