package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tishajain880/Chronobank/internal/models"
	"github.com/tishajain880/Chronobank/internal/util"
)

const (
	CurrentUserKey = "currentUser"
	SessionIDKey   = "sessionID"
	SessionExpKey  = "sessionExpiresAt"
)

func tokenFrom(c *gin.Context) string {
	// 1) Authorization: Bearer xxx
	if h := c.GetHeader("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}
	// 2) ?token=xxx for downloads
	if t := c.Query("token"); t != "" {
		return t
	}
	// 3) cookie
	if cookie, err := c.Cookie("cb_token"); err == nil {
		return cookie
	}
	return ""
}

// AuthMiddleware validates the JWT and its session, then stores the
// current user and session id on the context.
func AuthMiddleware(jwtSecret string, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := tokenFrom(c)
		if tokenStr == "" {
			util.Error(c, http.StatusUnauthorized, util.CodeAuth, "not logged in")
			c.Abort()
			return
		}

		claims, err := util.ParseToken(jwtSecret, tokenStr)
		if err != nil || claims.SessionID == "" {
			util.Error(c, http.StatusUnauthorized, util.CodeAuth, "session expired, please log in again")
			c.Abort()
			return
		}

		var sess models.Session
		err = db.Preload("User").Where("id = ? AND user_id = ?", claims.SessionID, claims.UserID).First(&sess).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				util.Error(c, http.StatusUnauthorized, util.CodeAuth, "session not found")
			} else {
				util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "load session failed")
			}
			c.Abort()
			return
		}
		if sess.Revoked || time.Now().After(sess.ExpiresAt) {
			util.Error(c, http.StatusUnauthorized, util.CodeAuth, "session expired, please log in again")
			c.Abort()
			return
		}

		c.Set(CurrentUserKey, &sess.User)
		c.Set(SessionIDKey, sess.ID)
		c.Set(SessionExpKey, sess.ExpiresAt)
		c.Next()
	}
}

// CurrentUser returns the user stored by AuthMiddleware.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(CurrentUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}

// SessionID returns the session id stored by AuthMiddleware.
func SessionID(c *gin.Context) string {
	return c.GetString(SessionIDKey)
}

// SessionExpiry returns when the current session expires.
func SessionExpiry(c *gin.Context) time.Time {
	return c.GetTime(SessionExpKey)
}
