package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stackbound/identity-api/internal/application"
	"github.com/stackbound/identity-api/internal/domain/entity"
	"github.com/stackbound/identity-api/internal/domain/repository"
	"github.com/stackbound/identity-api/internal/interface/middleware"
	"github.com/stackbound/identity-api/pkg/response"
	"github.com/stackbound/identity-api/pkg/validation"
)

type IdentityHandler struct {
	Svc    *application.Service
	Logger *logrus.Logger
}

func NewIdentityHandler(svc *application.Service, logger *logrus.Logger) *IdentityHandler {
	return &IdentityHandler{Svc: svc, Logger: logger}
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,pwd"`
	Name     string `json:"name" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type updateProfileRequest struct {
	Name string `json:"name"`
}

// authPayload is the register/login response body. User is the public view;
// the password hash has no field here to leak through.
type authPayload struct {
	User      entity.Profile `json:"user"`
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
}

type profilePayload struct {
	User entity.Profile `json:"user"`
}

// fail maps service errors onto external status codes without leaking
// internal detail. Store outages come back retryable.
func (h *IdentityHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, application.ErrDuplicateIdentity):
		response.Fail(c, http.StatusConflict, "email already registered", nil)
	case errors.Is(err, application.ErrInvalidCredentials):
		response.Fail(c, http.StatusUnauthorized, "invalid credentials", nil)
	case errors.Is(err, application.ErrIdentityNotFound):
		response.Fail(c, http.StatusNotFound, "user not found", nil)
	case errors.Is(err, repository.ErrUnavailable):
		if h.Logger != nil {
			h.Logger.WithError(err).Error("identity store unavailable")
		}
		response.Fail(c, http.StatusServiceUnavailable, "service temporarily unavailable, please retry", nil)
	default:
		if h.Logger != nil {
			h.Logger.WithError(err).Error("unexpected error")
		}
		response.Fail(c, http.StatusInternalServerError, "internal server error", nil)
	}
}

// Register POST /api/auth/register
func (h *IdentityHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	u, cred, err := h.Svc.Register(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, "user registered successfully", authPayload{
		User:      u.Profile(),
		Token:     cred.Token,
		ExpiresAt: cred.ExpiresAt,
	})
}

// Login POST /api/auth/login
func (h *IdentityHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	u, cred, err := h.Svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, "login successful", authPayload{
		User:      u.Profile(),
		Token:     cred.Token,
		ExpiresAt: cred.ExpiresAt,
	})
}

// GetProfile GET /api/auth/profile (bearer)
func (h *IdentityHandler) GetProfile(c *gin.Context) {
	uid := c.GetString(middleware.CtxIdentityIDKey)
	u, err := h.Svc.GetProfile(c.Request.Context(), uid)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, "profile", profilePayload{User: u.Profile()})
}

// UpdateProfile PUT /api/auth/profile (bearer)
func (h *IdentityHandler) UpdateProfile(c *gin.Context) {
	uid := c.GetString(middleware.CtxIdentityIDKey)
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	u, err := h.Svc.UpdateProfile(c.Request.Context(), uid, application.UpdateProfileInput{Name: req.Name})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, "profile updated", profilePayload{User: u.Profile()})
}

// Verify GET /api/auth/verify (bearer). Pure token check: the claims were
// already verified by the middleware, no store lookup happens here.
func (h *IdentityHandler) Verify(c *gin.Context) {
	response.Success(c, http.StatusOK, "token is valid", gin.H{
		"user_id": c.GetString(middleware.CtxIdentityIDKey),
		"email":   c.GetString(middleware.CtxEmailKey),
	})
}

// Logout POST /api/auth/logout (bearer). Tokens are not revocable; the
// client discards its copy.
func (h *IdentityHandler) Logout(c *gin.Context) {
	response.Success(c, http.StatusOK, "logged out", gin.H{"logged_out": true})
}
