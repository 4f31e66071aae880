package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"memelend/crypto"
)

type contextKey string

const contextKeyIdentity contextKey = "identity"

// Scopes granted through the "scope" claim.
const (
	ScopeAdmin      = "admin"
	ScopeLiquidator = "liquidator"
)

var (
	errMissingToken = errors.New("missing bearer token")
	errBadSubject   = errors.New("token subject is not an address")
)

// Claims is the accepted token shape: the subject is the caller's address
// and scope is a space separated list.
type Claims struct {
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller of a request.
type Identity struct {
	Address crypto.Address
	Scopes  map[string]bool
}

func (id Identity) Has(scope string) bool { return id.Scopes[scope] }

// Authenticator verifies HS256 bearer tokens.
type Authenticator struct {
	secret   []byte
	issuer   string
	audience string
	leeway   time.Duration
}

// NewAuthenticator requires a secret of at least 32 bytes.
func NewAuthenticator(secret []byte, issuer, audience string) (*Authenticator, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("jwt secret must be at least 32 bytes")
	}
	return &Authenticator{
		secret:   append([]byte(nil), secret...),
		issuer:   strings.TrimSpace(issuer),
		audience: strings.TrimSpace(audience),
		leeway:   30 * time.Second,
	}, nil
}

// Verify parses token and returns the caller identity.
func (a *Authenticator) Verify(token string) (Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(a.leeway),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	if a.audience != "" {
		opts = append(opts, jwt.WithAudience(a.audience))
	}
	claims := &Claims{}
	if _, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...); err != nil {
		return Identity{}, err
	}
	addr, err := crypto.ParseAddress(claims.Subject)
	if err != nil {
		return Identity{}, errBadSubject
	}
	scopes := make(map[string]bool)
	for _, s := range strings.Fields(claims.Scope) {
		scopes[s] = true
	}
	return Identity{Address: addr, Scopes: scopes}, nil
}

// Sign issues a token for subject. Used by tooling and tests.
func (a *Authenticator) Sign(subject crypto.Address, ttl time.Duration, scopes ...string) (string, error) {
	now := time.Now()
	claims := Claims{
		Scope: strings.Join(scopes, " "),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.String(),
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if a.audience != "" {
		claims.Audience = jwt.ClaimStrings{a.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func bearerToken(r *http.Request) (string, error) {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(authz, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return "", errMissingToken
	}
	return strings.TrimSpace(token), nil
}

// Authenticate rejects requests without a valid bearer token.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			writeProblem(w, r, http.StatusUnauthorized, "unauthenticated", err.Error(), 0)
			return
		}
		id, err := a.Verify(token)
		if err != nil {
			writeProblem(w, r, http.StatusUnauthorized, "unauthenticated", "invalid bearer token", 0)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKeyIdentity, id)))
	})
}

// RequireScope rejects identities lacking scope.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := identityFrom(r.Context())
			if !ok || !id.Has(scope) {
				writeProblem(w, r, http.StatusForbidden, "forbidden", "scope "+scope+" required", 0)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func identityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKeyIdentity).(Identity)
	return id, ok
}
