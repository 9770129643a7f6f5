package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticResolver accepts exactly one token
type staticResolver struct {
	token   string
	ownerID string
}

func (r staticResolver) ResolveOwner(_ context.Context, token string) (string, error) {
	if token != r.token {
		return "", ErrInvalidToken
	}
	if r.ownerID == "" {
		return "", ErrMissingSubject
	}
	return r.ownerID, nil
}

func TestGetOwnerID(t *testing.T) {
	e := echo.New()

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	assert.Empty(t, GetOwnerID(c))

	SetOwnerID(c, "auth0|12345")
	assert.Equal(t, "auth0|12345", GetOwnerID(c))
}

func TestAuthenticate(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		resolver staticResolver
		status   int
		owner    string
		detail   string
	}{
		{"valid token", "Bearer good", staticResolver{"good", "auth0|alice"}, http.StatusOK, "auth0|alice", ""},
		{"scheme is case insensitive", "bearer good", staticResolver{"good", "auth0|alice"}, http.StatusOK, "auth0|alice", ""},
		{"missing header", "", staticResolver{"good", "auth0|alice"}, http.StatusUnauthorized, "", "missing authorization header"},
		{"wrong scheme", "Basic dXNlcjpwYXNz", staticResolver{"good", "auth0|alice"}, http.StatusUnauthorized, "", "invalid authorization header format"},
		{"no token", "Bearer", staticResolver{"good", "auth0|alice"}, http.StatusUnauthorized, "", "invalid authorization header format"},
		{"blank token", "Bearer   ", staticResolver{"good", "auth0|alice"}, http.StatusUnauthorized, "", "invalid authorization header format"},
		{"rejected token", "Bearer forged", staticResolver{"good", "auth0|alice"}, http.StatusUnauthorized, "", "invalid token"},
		{"no subject", "Bearer good", staticResolver{"good", ""}, http.StatusUnauthorized, "", "token has no subject"},
	}

	e := echo.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/rules", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			var seen string
			handler := Authenticate(tt.resolver)(func(c echo.Context) error {
				seen = GetOwnerID(c)
				return c.NoContent(http.StatusOK)
			})

			require.NoError(t, handler(c))
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.owner, seen)
			if tt.detail != "" {
				assert.Contains(t, rec.Body.String(), tt.detail)
				assert.Contains(t, rec.Body.String(), errorTypeUnauthorized)
			}
		})
	}
}

func TestAuth0Resolver_RejectsMalformedToken(t *testing.T) {
	resolver, err := NewAuth0Resolver("test.auth0.com", "https://api.voicetracker.app")
	require.NoError(t, err)

	ownerID, err := resolver.ResolveOwner(context.Background(), "not-a-jwt")
	assert.Empty(t, ownerID)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
