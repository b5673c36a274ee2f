package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"supik-server/internal/auth"
)

// RequireCapability allows the request when the caller holds capability at
// level or above. It MUST be used AFTER RequireAuth.
func RequireCapability(capability auth.Capability, level auth.Level) gin.HandlerFunc {
	return Authed(func(c *gin.Context, id *auth.Identity) {
		if res := auth.Check(id, capability, level); !res.Allowed() {
			abortWithError(c, res.Err())
			return
		}
		c.Next()
	})
}

// RequireAdmin restricts a route to admin accounts.
func RequireAdmin() gin.HandlerFunc {
	return Authed(func(c *gin.Context, id *auth.Identity) {
		if !id.Admin {
			abortWithError(c, auth.ErrForbidden)
			return
		}
		c.Next()
	})
}

// RequireRouterAccess checks the router ACL for the router named by the
// route parameter param. An id that cannot name a router is a 404.
func RequireRouterAccess(store auth.Store, param string, level auth.Level) gin.HandlerFunc {
	return Authed(func(c *gin.Context, id *auth.Identity) {
		routerID, err := strconv.ParseUint(c.Param(param), 10, 32)
		if err != nil || routerID == 0 {
			abortWithError(c, auth.ErrResourceNotFound)
			return
		}

		res, err := auth.CheckRouterAccess(c.Request.Context(), store, id, uint(routerID), level)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if !res.Allowed() {
			abortWithError(c, res.Err())
			return
		}
		c.Next()
	})
}
