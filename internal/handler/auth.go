package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tishajain880/Chronobank/internal/goal"
	"github.com/tishajain880/Chronobank/internal/ledger"
	"github.com/tishajain880/Chronobank/internal/middleware"
	"github.com/tishajain880/Chronobank/internal/models"
	"github.com/tishajain880/Chronobank/internal/timevalue"
	"github.com/tishajain880/Chronobank/internal/util"
)

const (
	bcryptCost       = 12
	maxLoginFailures = 5
	lockoutDuration  = 10 * time.Minute
)

// AuthHandler serves register, login and logout.
type AuthHandler struct {
	DB        *gorm.DB
	Store     *ledger.Store
	Sessions  *goal.Sessions
	JWTSecret string
	Issuer    string
	TokenTTL  time.Duration
	Log       zerolog.Logger
}

func NewAuthHandler(store *ledger.Store, sessions *goal.Sessions, jwtSecret, issuer string, ttlHours int) *AuthHandler {
	if ttlHours <= 0 {
		ttlHours = 24
	}
	return &AuthHandler{
		DB:        store.DB(),
		Store:     store,
		Sessions:  sessions,
		JWTSecret: jwtSecret,
		Issuer:    issuer,
		TokenTTL:  time.Duration(ttlHours) * time.Hour,
		Log:       store.Logger(),
	}
}

// ---------- register ----------

type registerReq struct {
	Username        string `json:"username" binding:"required"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
	DisplayName     string `json:"display_name" binding:"max=64"`
	InitialBalance  string `json:"initial_balance"`
}

// Register creates the user together with a Savings account holding the
// optional initial balance.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid parameters")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if err := util.ValidateUsername(req.Username); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
		return
	}
	if err := util.ValidatePassword(req.Password); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
		return
	}
	if req.Password != req.ConfirmPassword {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "passwords do not match")
		return
	}
	initial := timevalue.Zero
	if strings.TrimSpace(req.InitialBalance) != "" {
		v, err := timevalue.ParseAmount(req.InitialBalance)
		if err != nil {
			util.ErrorFrom(c, err)
			return
		}
		initial = v
	}

	// usernames are unique case-insensitively
	var count int64
	if err := h.DB.Model(&models.User{}).
		Where("LOWER(username) = LOWER(?)", req.Username).
		Count(&count).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "query user failed")
		return
	}
	if count > 0 {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "username already taken")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "hash password failed")
		return
	}

	user := models.User{
		Username:     req.Username,
		PasswordHash: string(hash),
		DisplayName:  req.DisplayName,
	}
	var acc *models.Account
	err = h.Store.Transaction(c.Request.Context(), func(tx *ledger.Tx) error {
		if err := tx.DB().Create(&user).Error; err != nil {
			return err
		}
		var err error
		acc, err = tx.OpenAccount(user.ID, models.AccountSavings, initial)
		return err
	})
	if err != nil {
		util.ErrorFrom(c, err)
		return
	}
	h.Log.Info().Uint("user_id", user.ID).Str("account_number", acc.AccountNumber).Msg("user registered")

	util.Success(c, util.Response{
		"message": "registered",
		"user": gin.H{
			"id":           user.ID,
			"username":     user.Username,
			"display_name": user.DisplayName,
		},
		"account": acc,
	})
}

// ---------- login ----------

type loginReq struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login checks credentials, applies the lockout policy and opens a new
// session.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid parameters")
		return
	}

	req.Username = strings.TrimSpace(req.Username)

	var user models.User
	if err := h.DB.Where("LOWER(username) = LOWER(?)", req.Username).
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.Error(c, http.StatusUnauthorized, util.CodeAuth, "wrong username or password")
		} else {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "query user failed")
		}
		return
	}

	now := time.Now()
	if user.LockedUntil != nil && now.Before(*user.LockedUntil) {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "account locked, try again later")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		fails := user.FailedLoginAttempts + 1
		updates := map[string]interface{}{"failed_login_attempts": fails}
		if fails >= maxLoginFailures {
			updates["locked_until"] = now.Add(lockoutDuration)
			updates["failed_login_attempts"] = 0
		}
		_ = h.DB.Model(&user).Updates(updates).Error
		h.Log.Warn().Uint("user_id", user.ID).Int("attempts", fails).Msg("login failed")
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "wrong username or password")
		return
	}

	sess := models.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: now.Add(h.TokenTTL),
	}
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		// Select so the zero values are written too
		if err := tx.Model(&user).Select("failed_login_attempts", "locked_until", "last_login_ip", "last_login_at").
			Updates(models.User{LastLoginIP: c.ClientIP(), LastLoginAt: &now}).Error; err != nil {
			return err
		}
		return tx.Create(&sess).Error
	})
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "create session failed")
		return
	}

	token, err := util.GenerateToken(h.JWTSecret, h.Issuer, user.ID, sess.ID, h.TokenTTL)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "generate token failed")
		return
	}

	util.Success(c, util.Response{
		"token":      token,
		"expires_at": sess.ExpiresAt,
		"user": gin.H{
			"id":           user.ID,
			"username":     user.Username,
			"display_name": user.DisplayName,
		},
	})
}

// Logout revokes the current session and forgets its undo history.
func (h *AuthHandler) Logout(c *gin.Context) {
	sid := middleware.SessionID(c)
	if err := h.DB.Model(&models.Session{}).Where("id = ?", sid).Update("revoked", true).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "logout failed")
		return
	}
	h.Sessions.Drop(sid)
	util.Success(c, util.Response{"message": "logged out"})
}
