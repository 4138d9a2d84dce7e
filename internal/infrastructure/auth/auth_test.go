package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskline/queue-api/internal/config"
	"github.com/deskline/queue-api/internal/domain/tenant"
)

func newRouter(v *Validator, seen *tenant.Caller) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(v.Middleware())
	r.GET("/whoami", func(c *gin.Context) {
		caller, ok := CallerFrom(c)
		if ok {
			*seen = caller
		}
		c.Status(http.StatusNoContent)
	})
	return r
}

func signedToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestMiddlewareHeadersWhenDisabled(t *testing.T) {
	v, err := NewValidator(context.Background(), &config.Config{}, zerolog.Nop())
	require.NoError(t, err)
	assert.True(t, v.Ready())

	var seen tenant.Caller
	r := newRouter(v, &seen)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(HeaderOrganizationID, "org-1")
	req.Header.Set(HeaderAgentID, "agent-1")
	req.Header.Set(HeaderTeamID, "team-1")
	req.Header.Set(HeaderAgentRole, "Manager")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, tenant.Caller{
		OrganizationID: "org-1",
		AgentID:        "agent-1",
		TeamID:         "team-1",
		Role:           tenant.RoleManager,
	}, seen)
}

func TestMiddlewareValidatesToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	cfg := &config.Config{AuthEnabled: true, AuthIssuer: "https://issuer.test", AuthAudience: "queue-api"}
	v := NewStaticValidator(cfg, func(*jwt.Token) (interface{}, error) { return &key.PublicKey, nil }, zerolog.Nop())
	assert.True(t, v.Ready())

	valid := jwt.MapClaims{
		"iss":    "https://issuer.test",
		"aud":    "queue-api",
		"sub":    "agent-7",
		"org_id": "org-9",
		"role":   "agent",
		"exp":    time.Now().Add(time.Hour).Unix(),
	}

	t.Run("valid", func(t *testing.T) {
		var seen tenant.Caller
		r := newRouter(v, &seen)
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+signedToken(t, key, valid))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "org-9", seen.OrganizationID)
		assert.Equal(t, "agent-7", seen.AgentID)
		assert.Equal(t, tenant.RoleAgent, seen.Role)
	})

	cases := []struct {
		name   string
		header string
	}{
		{name: "missing", header: ""},
		{name: "not bearer", header: "Basic abc"},
		{name: "garbage", header: "Bearer not-a-token"},
		{name: "wrong issuer", header: "Bearer " + signedToken(t, key, jwt.MapClaims{
			"iss": "https://other", "aud": "queue-api", "org_id": "org-9", "exp": time.Now().Add(time.Hour).Unix(),
		})},
		{name: "expired", header: "Bearer " + signedToken(t, key, jwt.MapClaims{
			"iss": "https://issuer.test", "aud": "queue-api", "org_id": "org-9", "exp": time.Now().Add(-time.Hour).Unix(),
		})},
		{name: "no org", header: "Bearer " + signedToken(t, key, jwt.MapClaims{
			"iss": "https://issuer.test", "aud": "queue-api", "sub": "agent-7", "exp": time.Now().Add(time.Hour).Unix(),
		})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var seen tenant.Caller
			r := newRouter(v, &seen)
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Empty(t, seen.OrganizationID)
		})
	}
}

func TestCallerFromClaimsPrefersAgentID(t *testing.T) {
	caller := callerFromClaims(jwt.MapClaims{
		"sub":      "user-1",
		"agent_id": "agent-1",
		"org_id":   "org-1",
		"team_id":  "team-1",
		"role":     "admin",
	})
	assert.Equal(t, "agent-1", caller.AgentID)
	assert.Equal(t, tenant.RoleAdmin, caller.Role)
	assert.Equal(t, "team-1", caller.TeamID)
}
