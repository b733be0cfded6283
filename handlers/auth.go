package handlers

import (
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"

	"chatwire/config"
	"chatwire/models"
	"chatwire/services"
	"chatwire/utils"
)

// E.164 format
var mobilePattern = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

type AuthHandler struct {
	otp     *services.OTPService
	auth    *services.AuthService
	limiter *services.RateLimiter
	store   services.Store
	cfg     *config.Config
	logger  *utils.Logger
}

func NewAuthHandler(otp *services.OTPService, auth *services.AuthService, limiter *services.RateLimiter, store services.Store, cfg *config.Config, logger *utils.Logger) *AuthHandler {
	return &AuthHandler{
		otp:     otp,
		auth:    auth,
		limiter: limiter,
		store:   store,
		cfg:     cfg,
		logger:  logger,
	}
}

type sendOTPRequest struct {
	MobileNumber string `json:"mobileNumber" binding:"required"`
}

// SendOTP handles POST /api/auth/send-otp
func (h *AuthHandler) SendOTP(c *gin.Context) {
	var req sendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil || !mobilePattern.MatchString(req.MobileNumber) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Please provide a valid mobile number in E.164 format (e.g., +1234567890)",
		})
		return
	}

	// OTP issuance has an external SMS cost, so a limiter failure denies
	// the request (fail-closed).
	allowed, err := h.limiter.Allow(c.Request.Context(), req.MobileNumber, services.ActionSendOTP, h.cfg.OTPRequestLimit, time.Hour)
	if err != nil {
		h.logger.Error("OTP rate limiter unavailable", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"message": "Service temporarily unavailable. Please try again later.",
		})
		return
	}
	if !allowed {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"success": false,
			"message": "Too many OTP requests. Please try again after an hour.",
		})
		return
	}

	if err := h.otp.Issue(c.Request.Context(), req.MobileNumber); err != nil {
		h.logger.Error("Failed to issue OTP", "mobile", req.MobileNumber, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Failed to send OTP. Please try again.",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "OTP sent successfully to your mobile number",
	})
}

type verifyOTPRequest struct {
	MobileNumber string `json:"mobileNumber" binding:"required"`
	OTP          string `json:"otp" binding:"required"`
}

// VerifyOTP handles POST /api/auth/verify-otp. A first-time mobile number
// gets an account created on successful verification.
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Mobile number and OTP are required",
		})
		return
	}

	result, err := h.otp.Verify(c.Request.Context(), req.MobileNumber, req.OTP)
	if err != nil {
		h.logger.Error("OTP verification failed", "mobile", req.MobileNumber, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Failed to verify OTP",
		})
		return
	}
	if !result.Valid {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"reason":  result.Reason,
			"message": result.Message,
		})
		return
	}

	user, err := h.store.UserByMobile(c.Request.Context(), req.MobileNumber)
	if err != nil {
		if !errors.Is(err, services.ErrNotFound) {
			h.logger.Error("Failed to look up user", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to sign in"})
			return
		}
		user = &models.User{MobileNumber: req.MobileNumber}
		if err := h.store.CreateUser(c.Request.Context(), user); err != nil {
			h.logger.Error("Failed to create user", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to sign in"})
			return
		}
	}

	token, err := h.auth.IssueToken(user.ID)
	if err != nil {
		h.logger.Error("Failed to issue token", "userId", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to sign in"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   token,
		"user":    user,
	})
}
