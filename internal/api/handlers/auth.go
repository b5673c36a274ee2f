package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"supik-server/internal/audit"
	"supik-server/internal/auth"
)

// AuthHandler serves login and the current identity.
type AuthHandler struct {
	authn *auth.Authenticator
	audit *audit.Service
}

func NewAuthHandler(authn *auth.Authenticator, audit *audit.Service) *AuthHandler {
	return &AuthHandler{authn: authn, audit: audit}
}

// Login exchanges a username and password for a bearer token. Failures
// answer in plain text like every other authentication failure.
func (h *AuthHandler) Login(c *gin.Context) {
	var input struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.String(http.StatusBadRequest, "Username and password are required")
		return
	}

	session, err := h.authn.Login(c.Request.Context(), input.Username, input.Password)
	if err != nil {
		c.String(auth.StatusCode(err), auth.Message(err))
		return
	}

	recordAudit(c, h.audit, &auth.Identity{AccountID: session.Account.ID}, audit.ActionLogin, "account", session.Account.ID, gin.H{
		"client_ip": c.ClientIP(),
	})

	c.JSON(http.StatusOK, gin.H{
		"token":      session.Token,
		"expires_at": session.ExpiresAt.UTC().Format(time.RFC3339),
		"account":    session.Account,
	})
}

// Me returns the identity resolved for this request.
func (h *AuthHandler) Me(c *gin.Context, id *auth.Identity) {
	c.JSON(http.StatusOK, gin.H{
		"id":        id.AccountID,
		"username":  id.Username,
		"admin":     id.Admin,
		"group_ids": id.GroupIDs,
	})
}
