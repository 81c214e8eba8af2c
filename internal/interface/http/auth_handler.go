package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/swastha-auth/internal/application"
	"github.com/oksasatya/swastha-auth/internal/domain/entity"
	"github.com/oksasatya/swastha-auth/internal/interface/middleware"
	"github.com/oksasatya/swastha-auth/pkg/helpers"
	"github.com/oksasatya/swastha-auth/pkg/response"
	"github.com/oksasatya/swastha-auth/pkg/validation"
)

type AuthHandler struct {
	Svc     *application.AuthService
	Logger  *logrus.Logger
	Cookies *helpers.Manager
}

func NewAuthHandler(svc *application.AuthService, logger *logrus.Logger, cookieDomain string, cookieSecure bool) *AuthHandler {
	return &AuthHandler{Svc: svc, Logger: logger, Cookies: helpers.NewCookie(cookieDomain, cookieSecure)}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetPasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

type resetTokenURI struct {
	Token string `uri:"token" binding:"required,hextoken"`
}

// userData is the public view of an account.
func userData(a *entity.Account) gin.H {
	return gin.H{
		"id":          a.ID,
		"username":    a.Username,
		"email":       a.Email,
		"phoneNumber": a.PhoneNumber,
		"isAdmin":     a.IsAdmin,
		"isDoctor":    a.IsDoctor,
		"isVerified":  a.IsVerified,
		"createdAt":   a.CreatedAt,
		"updatedAt":   a.UpdatedAt,
	}
}

// Register POST /api/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req application.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	acc, err := h.Svc.Register(c.Request.Context(), req, middleware.ClientIP(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, userData(acc), "user registered successfully", nil)
}

// Login POST /api/login
// Empty fields are checked by the service after the rate window so that
// malformed attempts still count.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	res, err := h.Svc.Login(c.Request.Context(), req.Email, req.Password, middleware.ClientIP(c))
	if err != nil {
		writeError(c, err)
		return
	}
	h.Cookies.SetAccess(c, res.Token, res.ExpiresAt)
	response.Success(c, http.StatusOK, gin.H{
		"token":           res.Token,
		"userData":        userData(res.Account),
		"passwordExpired": res.PasswordExpired,
	}, "login successful", map[string]any{"access_expires_at": res.ExpiresAt})
}

// Logout POST /api/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, _ := c.Get(middleware.CtxClaims)
	cl, _ := claims.(*helpers.Claims)
	if err := h.Svc.Logout(c.Request.Context(), cl, middleware.ClientIP(c)); err != nil {
		writeError(c, err)
		return
	}
	h.Cookies.Clear(c)
	response.Success[any](c, http.StatusOK, map[string]any{"logged_out": true}, "logged out", nil)
}

// ChangePassword PUT /api/password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	uid := c.GetString(middleware.CtxUserID)
	if err := h.Svc.ChangePassword(c.Request.Context(), uid, req.OldPassword, req.NewPassword, middleware.ClientIP(c)); err != nil {
		writeError(c, err)
		return
	}
	response.Success[any](c, http.StatusOK, nil, "password changed successfully", nil)
}

// ForgotPassword POST /api/password/forgot
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if err := h.Svc.RequestReset(c.Request.Context(), req.Email, middleware.ClientIP(c)); err != nil {
		writeError(c, err)
		return
	}
	response.Success[any](c, http.StatusOK, nil, "password reset link sent to "+req.Email, nil)
}

// ResetPassword POST /api/password/reset/:token
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var uri resetTokenURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid reset token", validation.ToDetails(err))
		return
	}
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if err := h.Svc.CompleteReset(c.Request.Context(), uri.Token, req.Password, middleware.ClientIP(c)); err != nil {
		writeError(c, err)
		return
	}
	response.Success[any](c, http.StatusOK, nil, "password reset successfully", nil)
}
