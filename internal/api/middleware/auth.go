package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"supik-server/internal/auth"
)

// RequireAuth resolves the bearer token into an Identity and attaches it to
// the request context. Failures answer in plain text: 403 for anything
// wrong with the token or the account behind it, 500 for server faults.
func RequireAuth(resolver *auth.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := resolver.Resolve(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

// CurrentIdentity returns the identity attached by RequireAuth.
func CurrentIdentity(c *gin.Context) (*auth.Identity, bool) {
	return auth.IdentityFrom(c.Request.Context())
}

// Authed adapts a handler that needs the caller's identity. A route wired
// without RequireAuth fails with 500 instead of running unauthenticated.
func Authed(fn func(*gin.Context, *auth.Identity)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := CurrentIdentity(c)
		if !ok {
			c.String(http.StatusInternalServerError, "Internal Server Error")
			c.Abort()
			return
		}
		fn(c, id)
	}
}

func abortWithError(c *gin.Context, err error) {
	c.String(auth.StatusCode(err), auth.Message(err))
	c.Abort()
}
