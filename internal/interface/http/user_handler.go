package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/swastha-auth/internal/application"
	"github.com/oksasatya/swastha-auth/internal/domain/entity"
	"github.com/oksasatya/swastha-auth/internal/interface/middleware"
	"github.com/oksasatya/swastha-auth/pkg/response"
	"github.com/oksasatya/swastha-auth/pkg/validation"
)

const (
	defaultSearchSize = 20
	maxSearchSize     = 100
)

type UserHandler struct {
	Svc    *application.AuthService
	Logger *logrus.Logger
}

func NewUserHandler(svc *application.AuthService, logger *logrus.Logger) *UserHandler {
	return &UserHandler{Svc: svc, Logger: logger}
}

func (h *UserHandler) GetProfile(c *gin.Context) {
	acc, err := h.Svc.Profile(c.Request.Context(), c.GetString(middleware.CtxUserID))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, userData(acc), "profile", nil)
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req application.ProfileInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	acc, err := h.Svc.UpdateProfile(c.Request.Context(), c.GetString(middleware.CtxUserID), req, middleware.ClientIP(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, userData(acc), "profile updated", nil)
}

// Verify POST /api/users/:id/verify (admin)
func (h *UserHandler) Verify(c *gin.Context) {
	if err := h.Svc.VerifyAccount(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"verified": true}, "account verified", nil)
}

// ListUsers GET /api/users?limit=&offset= (admin)
func (h *UserHandler) ListUsers(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	out, err := h.Svc.ListAccounts(c.Request.Context(), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	users := make([]gin.H, 0, len(out))
	for _, a := range out {
		users = append(users, userData(a))
	}
	response.Success(c, http.StatusOK, users, "users", map[string]any{"count": len(users), "offset": offset})
}

// GetUser GET /api/users/:id (admin)
func (h *UserHandler) GetUser(c *gin.Context) {
	acc, err := h.Svc.Profile(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, userData(acc), "user", nil)
}

// DeleteUser DELETE /api/users/:id (admin)
func (h *UserHandler) DeleteUser(c *gin.Context) {
	err := h.Svc.DeleteAccount(c.Request.Context(), c.GetString(middleware.CtxUserID), c.Param("id"), middleware.ClientIP(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"deleted": true}, "user deleted", nil)
}

// MyAudits GET /api/audits
func (h *UserHandler) MyAudits(c *gin.Context) {
	h.listAudits(c, c.GetString(middleware.CtxUserID))
}

// UserAudits GET /api/users/:id/audits (self or admin)
func (h *UserHandler) UserAudits(c *gin.Context) {
	h.listAudits(c, c.Param("id"))
}

func (h *UserHandler) listAudits(c *gin.Context, accountID string) {
	out, err := h.Svc.ListAudit(c.Request.Context(), accountID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, auditView(out), "audit logs", map[string]any{"count": len(out)})
}

// SearchAudits GET /api/audits/search?q=&user_id=&size= (admin)
func (h *UserHandler) SearchAudits(c *gin.Context) {
	size, err := strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(defaultSearchSize)))
	if err != nil || size < 1 {
		size = defaultSearchSize
	}
	if size > maxSearchSize {
		size = maxSearchSize
	}
	out, err := h.Svc.SearchAudit(c.Request.Context(), c.Query("user_id"), c.Query("q"), size)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, auditView(out), "audit search", map[string]any{"count": len(out)})
}

func auditView(in []entity.AuditEntry) []gin.H {
	out := make([]gin.H, 0, len(in))
	for _, e := range in {
		out = append(out, gin.H{
			"id":        e.ID,
			"userId":    e.AccountID,
			"action":    e.Action,
			"details":   e.Detail,
			"ipAddress": e.IP,
			"createdAt": e.CreatedAt,
		})
	}
	return out
}
