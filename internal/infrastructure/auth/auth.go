package auth

import (
	"context"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/deskline/queue-api/internal/config"
	"github.com/deskline/queue-api/internal/domain/tenant"
	"github.com/deskline/queue-api/internal/utils/platformerrors"
)

// Header names used to identify the caller when auth is disabled.
const (
	HeaderOrganizationID = "X-Organization-ID"
	HeaderAgentID        = "X-Agent-ID"
	HeaderAgentRole      = "X-Agent-Role"
	HeaderTeamID         = "X-Team-ID"

	callerKey = "queue_caller"
)

// Validator validates JWTs using JWKS and turns them into callers.
type Validator struct {
	cfg     *config.Config
	log     zerolog.Logger
	jwks    *keyfunc.JWKS
	keyfunc jwt.Keyfunc
}

// NewValidator initializes JWKS fetching when auth is enabled.
func NewValidator(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Validator, error) {
	log = log.With().Str("component", "auth").Logger()
	if !cfg.AuthEnabled {
		log.Warn().Msg("auth disabled, trusting caller headers")
		return &Validator{cfg: cfg, log: log}, nil
	}

	options := keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   time.Hour,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			log.Error().Err(err).Msg("jwks refresh error")
		},
	}

	jwks, err := keyfunc.Get(cfg.AuthJWKSURL, options)
	if err != nil {
		return nil, err
	}

	return &Validator{
		cfg:     cfg,
		log:     log,
		jwks:    jwks,
		keyfunc: jwks.Keyfunc,
	}, nil
}

// NewStaticValidator validates tokens against a fixed key function.
func NewStaticValidator(cfg *config.Config, keyfunc jwt.Keyfunc, log zerolog.Logger) *Validator {
	return &Validator{cfg: cfg, log: log, keyfunc: keyfunc}
}

// Middleware resolves the caller of every request. With auth enabled the
// caller comes from token claims; otherwise from the X-* headers.
func (v *Validator) Middleware() gin.HandlerFunc {
	if v == nil || v.cfg == nil || !v.cfg.AuthEnabled {
		return func(c *gin.Context) {
			SetCaller(c, callerFromHeaders(c))
			c.Next()
		}
	}

	return func(c *gin.Context) {
		tokenString := bearerToken(c.GetHeader("Authorization"))
		if tokenString == "" {
			abortUnauthorized(c, "missing bearer token")
			return
		}

		opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"})}
		if issuer := strings.TrimSpace(v.cfg.AuthIssuer); issuer != "" {
			opts = append(opts, jwt.WithIssuer(issuer))
		}
		if audience := strings.TrimSpace(v.cfg.AuthAudience); audience != "" {
			opts = append(opts, jwt.WithAudience(audience))
		}

		token, err := jwt.Parse(tokenString, v.keyfunc, opts...)
		if err != nil || !token.Valid {
			v.log.Debug().Err(err).Msg("rejected token")
			abortUnauthorized(c, "invalid token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			abortUnauthorized(c, "invalid token claims")
			return
		}

		caller := callerFromClaims(claims)
		if caller.OrganizationID == "" {
			abortUnauthorized(c, "token has no organization")
			return
		}

		c.Set("auth_token", token)
		SetCaller(c, caller)
		c.Next()
	}
}

// Ready indicates if the validator is prepared.
func (v *Validator) Ready() bool {
	if v == nil || v.cfg == nil || !v.cfg.AuthEnabled {
		return true
	}
	return v.keyfunc != nil
}

// SetCaller stores the caller on the request.
func SetCaller(c *gin.Context, caller tenant.Caller) {
	c.Set(callerKey, caller)
}

// CallerFrom returns the caller resolved by the middleware.
func CallerFrom(c *gin.Context) (tenant.Caller, bool) {
	v, ok := c.Get(callerKey)
	if !ok {
		return tenant.Caller{}, false
	}
	caller, ok := v.(tenant.Caller)
	return caller, ok
}

func callerFromHeaders(c *gin.Context) tenant.Caller {
	return tenant.Caller{
		OrganizationID: strings.TrimSpace(c.GetHeader(HeaderOrganizationID)),
		AgentID:        strings.TrimSpace(c.GetHeader(HeaderAgentID)),
		TeamID:         strings.TrimSpace(c.GetHeader(HeaderTeamID)),
		Role:           tenant.ParseRole(c.GetHeader(HeaderAgentRole)),
	}
}

func callerFromClaims(claims jwt.MapClaims) tenant.Caller {
	agentID := stringClaim(claims, "agent_id")
	if agentID == "" {
		agentID = stringClaim(claims, "sub")
	}
	return tenant.Caller{
		OrganizationID: stringClaim(claims, "org_id"),
		AgentID:        agentID,
		TeamID:         stringClaim(claims, "team_id"),
		Role:           tenant.ParseRole(stringClaim(claims, "role")),
	}
}

func stringClaim(claims jwt.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return strings.TrimSpace(s)
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func abortUnauthorized(c *gin.Context, message string) {
	platformerrors.WriteUnauthorized(c, message)
}
