package core

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

const claimContextKey = "auth_claim"

// bearerPrefix is the only accepted Authorization scheme. The comparison is
// exact: lowercase "bearer" or a missing space is a malformed header.
const bearerPrefix = "Bearer "

// OriginRefererMiddleware checks cross-origin requests against the allowed
// origin list and sets CORS headers. Requests without an Origin (or Referer
// to derive one from) are same-origin and pass through.
func OriginRefererMiddleware(cfg Config) gin.HandlerFunc {
	allowed := map[string]struct{}{}
	for _, o := range cfg.AllowedOrigins {
		allowed[strings.ToLower(o)] = struct{}{}
	}

	originAllowed := func(origin string) bool {
		if origin == "" {
			return true
		}
		_, ok := allowed[strings.ToLower(origin)]
		return ok
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			if referer := c.GetHeader("Referer"); referer != "" {
				if u, err := url.Parse(referer); err == nil {
					origin = u.Scheme + "://" + u.Host
				}
			}
		}

		if !originAllowed(origin) {
			respondError(c, http.StatusForbidden, "FORBIDDEN", "origin not allowed")
			c.Abort()
			return
		}
		if origin != "" {
			setCORSHeaders(c, origin)
		}
		if c.Request.Method == http.MethodOptions && origin != "" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		c.Next()
	}
}

func setCORSHeaders(c *gin.Context, origin string) {
	c.Header("Access-Control-Allow-Origin", origin)
	c.Header("Vary", "Origin")
	c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
	c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
}

// RequireAuth is the single enforcement point in front of protected
// endpoints. It extracts the bearer token from the Authorization header, runs
// the bearer strategy, and either attaches the claim to the request context
// or short-circuits: 400 for a malformed header, 401 for anything the token
// or account failed, 500 for store faults.
func RequireAuth(auth *Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := ExtractBearerToken(c.GetHeader("Authorization"))
		if err != nil {
			respondError(c, http.StatusBadRequest, "MALFORMED_HEADER", err.Error())
			c.Abort()
			return
		}

		outcome := auth.Dispatch(c.Request.Context(), StrategyBearer, Credentials{Token: token})
		if outcome.Fault != nil {
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "authentication backend error")
			c.Abort()
			return
		}
		if !outcome.Success {
			respondError(c, http.StatusUnauthorized, failureCode(outcome.Failure), outcome.Failure.Error())
			c.Abort()
			return
		}

		c.Set(claimContextKey, outcome.Claim)
		c.Next()
	}
}

// ExtractBearerToken pulls the token out of a raw Authorization header value.
// The header must be exactly the "Bearer " scheme followed by a non-empty
// token; anything else is ErrMalformedHeader.
func ExtractBearerToken(header string) (string, error) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", ErrMalformedHeader
	}
	token := header[len(bearerPrefix):]
	if strings.TrimSpace(token) == "" {
		return "", ErrMalformedHeader
	}
	return token, nil
}

// CurrentClaim returns the claim attached by RequireAuth.
func CurrentClaim(c *gin.Context) (Claim, bool) {
	v, ok := c.Get(claimContextKey)
	if !ok {
		return Claim{}, false
	}
	claim, ok := v.(Claim)
	return claim, ok
}
