package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	jwt "github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a2z-dev007/ecommerce-backend/internal/platform/config"
)

const testIssuer = "https://accounts.google.com"

type oidcFixture struct {
	key      *rsa.PrivateKey
	requests *atomic.Int32
	cache    *JWKSCache
}

func newOIDCFixture(t *testing.T) oidcFixture {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	jwk := jose.JSONWebKey{Key: &key.PublicKey, KeyID: "key1", Algorithm: jwt.SigningMethodRS256.Alg(), Use: "sig"}
	requests := &atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		_ = json.NewEncoder(w).Encode(jose.JSONWebKeySet{Keys: []jose.JSONWebKey{jwk}})
	}))
	t.Cleanup(server.Close)

	return oidcFixture{key: key, requests: requests, cache: NewJWKSCache(server.URL)}
}

func (f oidcFixture) sign(t *testing.T, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(f.key)
	require.NoError(t, err)
	return signed
}

func serviceClaims(aud, email string) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":   testIssuer,
		"aud":   aud,
		"sub":   "svc-123",
		"email": email,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
}

func TestJWKSCache_CachesUntilMaxAge(t *testing.T) {
	f := newOIDCFixture(t)
	ctx := context.Background()

	_, err := f.cache.Key(ctx, "key1")
	require.NoError(t, err)
	_, err = f.cache.Key(ctx, "key1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.requests.Load())

	_, err = f.cache.Key(ctx, "missing")
	assert.ErrorIs(t, err, ErrJWKSKeyNotFound)
	assert.EqualValues(t, 2, f.requests.Load(), "unknown kid forces a refresh")
}

func TestJWKSCache_FetchFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	_, err := NewJWKSCache(server.URL).Key(context.Background(), "key1")
	assert.ErrorIs(t, err, ErrJWKSFetchFailed)
}

func TestParseMaxAge(t *testing.T) {
	assert.Equal(t, 300*time.Second, parseMaxAge("public, max-age=300, must-revalidate"))
	assert.Zero(t, parseMaxAge("no-store"))
	assert.Zero(t, parseMaxAge("max-age=abc"))
}

func TestRequireService(t *testing.T) {
	f := newOIDCFixture(t)
	cfg := config.OIDCConfig{
		Audience:   "https://orders.example.com",
		Audiences:  map[string]string{"carrier": "https://orders.example.com/carrier"},
		Issuers:    []string{testIssuer},
		Principals: map[string]string{"payments": "payments@proj.iam.gserviceaccount.com"},
	}
	validator, err := NewServiceValidator(f.cache, cfg, nil)
	require.NoError(t, err)

	tests := []struct {
		name         string
		collaborator string
		token        func() string
		status       int
		email        string
	}{
		{
			name:         "payments principal",
			collaborator: "payments",
			token: func() string {
				return f.sign(t, "key1", serviceClaims("https://orders.example.com", "payments@proj.iam.gserviceaccount.com"))
			},
			status: http.StatusNoContent,
			email:  "payments@proj.iam.gserviceaccount.com",
		},
		{
			name:         "wrong principal",
			collaborator: "payments",
			token: func() string {
				return f.sign(t, "key1", serviceClaims("https://orders.example.com", "other@proj.iam.gserviceaccount.com"))
			},
			status: http.StatusForbidden,
		},
		{
			name:         "carrier audience override",
			collaborator: "carrier",
			token: func() string {
				return f.sign(t, "key1", serviceClaims("https://orders.example.com/carrier", "carrier@example.com"))
			},
			status: http.StatusNoContent,
			email:  "carrier@example.com",
		},
		{
			name:         "audience mismatch",
			collaborator: "carrier",
			token: func() string {
				return f.sign(t, "key1", serviceClaims("https://orders.example.com", "carrier@example.com"))
			},
			status: http.StatusUnauthorized,
		},
		{
			name:         "issuer mismatch",
			collaborator: "carrier",
			token: func() string {
				claims := serviceClaims("https://orders.example.com/carrier", "carrier@example.com")
				claims["iss"] = "https://evil.example.com"
				return f.sign(t, "key1", claims)
			},
			status: http.StatusUnauthorized,
		},
		{
			name:         "expired",
			collaborator: "carrier",
			token: func() string {
				claims := serviceClaims("https://orders.example.com/carrier", "carrier@example.com")
				claims["exp"] = time.Now().Add(-time.Minute).Unix()
				return f.sign(t, "key1", claims)
			},
			status: http.StatusUnauthorized,
		},
		{
			name:         "unknown key",
			collaborator: "carrier",
			token: func() string {
				return f.sign(t, "rotated", serviceClaims("https://orders.example.com/carrier", "carrier@example.com"))
			},
			status: http.StatusUnauthorized,
		},
		{
			name:         "missing token",
			collaborator: "carrier",
			token:        func() string { return "" },
			status:       http.StatusUnauthorized,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var seen *ServiceIdentity
			handler := validator.RequireService(tc.collaborator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = ServiceIdentityFromContext(r.Context())
				w.WriteHeader(http.StatusNoContent)
			}))

			req := httptest.NewRequest(http.MethodPost, "/internal/orders/o1/tracking", nil)
			if token := tc.token(); token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			if tc.status == http.StatusNoContent {
				require.NotNil(t, seen)
				assert.Equal(t, tc.collaborator, seen.Collaborator)
				assert.Equal(t, tc.email, seen.Email)
				assert.Equal(t, "svc-123", seen.Subject)
			} else {
				assert.Nil(t, seen)
			}
		})
	}
}

func TestRequireService_NoAudience(t *testing.T) {
	validator, err := NewServiceValidator(NewJWKSCache("http://127.0.0.1:0"), config.OIDCConfig{}, nil)
	require.NoError(t, err)

	handler := validator.RequireService("payments")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/internal/orders/o1/payment", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
