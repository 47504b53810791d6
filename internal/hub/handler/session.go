package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/researchmesh/fedsession/internal/hub/db"
	"github.com/researchmesh/fedsession/internal/logx"
	"github.com/researchmesh/fedsession/internal/session"
)

type tokenClaims struct {
	Subject   string `json:"sub"`
	Nonce     string `json:"nonce"`
	Federated bool   `json:"federated"`
}

type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresAt   time.Time   `json:"expires_at"`
	Claims      tokenClaims `json:"claims"`
}

func tokenJSON(tok *db.SessionToken, federated bool) tokenResponse {
	return tokenResponse{
		AccessToken: tok.Token,
		TokenType:   "Bearer",
		ExpiresAt:   tok.ExpiresAt,
		Claims: tokenClaims{
			Subject:   tok.Username,
			Nonce:     tok.Nonce,
			Federated: federated,
		},
	}
}

// HandleAttest handles POST /v1/session/attest.
func HandleAttest(store *db.Store, tokenTTL time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		var att session.Attestation
		if err := c.ShouldBindJSON(&att); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if att.Username == "" || att.Password == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
			return
		}

		user, err := store.VerifyCredentials(att.Username, att.Password)
		if err == db.ErrBadCredentials {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		tok, err := store.IssueToken(user.Username, tokenTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		logx.Infof("session opened: user=%s identified=%v", user.Username, att.Identified)
		c.JSON(http.StatusOK, tokenJSON(tok, user.Federated))
	}
}

// HandleRefresh handles POST /v1/session/refresh. The presented token is
// retired and a replacement issued in its place.
func HandleRefresh(store *db.Store, tokenTTL time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		current := c.MustGet(CtxToken).(*db.SessionToken)

		user, err := store.GetUser(current.Username)
		if err != nil || user == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		next, err := store.IssueToken(current.Username, tokenTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if err := store.BlacklistToken(current.Token); err != nil {
			logx.Warnf("retire refreshed token: %v", err)
		}
		c.JSON(http.StatusOK, tokenJSON(next, user.Federated))
	}
}

// HandleLogout handles POST /v1/session/logout: blacklists the presented
// token and reports the post-logout redirect, if one is configured.
func HandleLogout(store *db.Store, redirectURI string) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if strings.HasPrefix(auth, "Bearer ") {
			if err := store.BlacklistToken(strings.TrimPrefix(auth, "Bearer ")); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
				return
			}
		}
		if redirectURI == "" {
			c.Status(http.StatusNoContent)
			return
		}
		c.JSON(http.StatusOK, session.LogoutResult{RedirectURI: redirectURI})
	}
}
