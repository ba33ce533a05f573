package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"course-auth/internal/backup"
	"course-auth/internal/domain"
	"course-auth/internal/guard"
	"course-auth/internal/service"
	"course-auth/internal/storage"
)

// Handler wires HTTP routes to domain services.
type Handler struct {
	accounts service.AccountService
	guard    *guard.Guard
	backups  backup.Manager
	logger   *logrus.Logger
	limits   RateLimit
}

func NewHandler(accounts service.AccountService, authGuard *guard.Guard, backups backup.Manager, logger *logrus.Logger, limits RateLimit) *Handler {
	if backups == nil {
		backups = backup.Disabled{}
	}
	if logger == nil {
		logger = logrus.New()
	}
	registerValidators()
	return &Handler{
		accounts: accounts,
		guard:    authGuard,
		backups:  backups,
		logger:   logger,
		limits:   limits,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestLogger(h.logger))
	router.Use(securityHeaders())
	router.Use(corsMiddleware())
	router.Use(rateLimitMiddleware(h.limits))

	router.NoRoute(func(c *gin.Context) {
		respondFailure(c, http.StatusNotFound, "route not found")
	})
	router.GET("/", func(c *gin.Context) {
		respondMessage(c, http.StatusOK, "course-auth API")
	})

	api := router.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			respondData(c, http.StatusOK, gin.H{"status": "ok"})
		})

		auth := api.Group("/auth")
		auth.POST("/register", h.register)
		auth.POST("/login", h.login)
		auth.GET("/me", h.requireAuth(), h.me)

		account := api.Group("/account", h.requireAuth())
		account.PUT("/password", h.changePassword)
		account.GET("/profile", h.profile)
		account.PUT("/profile", h.updateProfile)

		users := api.Group("/users", h.requireAuth(), h.requireRole(domain.RoleAdmin))
		users.GET("", h.listUsers)

		admin := api.Group("/admin", h.requireAuth(), h.requireRole(domain.RoleAdmin))
		admin.GET("/backups", h.listBackups)
		admin.POST("/backups", h.createBackup)
	}
}

type registerRequest struct {
	Username string `json:"username" binding:"required,min=3,username"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

type updateProfileRequest struct {
	Username *string `json:"username" binding:"omitempty,min=3,username"`
	Email    *string `json:"email" binding:"omitempty,email"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, bindingError(err))
		return
	}

	sess, err := h.accounts.Register(c.Request.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.logger.WithField("account_id", sess.User.ID).Info("account registered")
	respondData(c, http.StatusCreated, sess)
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, bindingError(err))
		return
	}

	sess, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, sess)
}

func (h *Handler) me(c *gin.Context) {
	subject := currentSubject(c)
	respondData(c, http.StatusOK, subject.Public())
}

func (h *Handler) profile(c *gin.Context) {
	account, err := h.accounts.Profile(c.Request.Context(), currentSubject(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, account)
}

func (h *Handler) changePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, bindingError(err))
		return
	}

	subject := currentSubject(c)
	if err := h.accounts.ChangePassword(c.Request.Context(), subject.ID, req.CurrentPassword, req.NewPassword, req.ConfirmPassword); err != nil {
		h.respondError(c, err)
		return
	}

	h.logger.WithField("account_id", subject.ID).Info("password changed")
	respondMessage(c, http.StatusOK, "password changed")
}

func (h *Handler) updateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, bindingError(err))
		return
	}

	updated, err := h.accounts.UpdateProfile(c.Request.Context(), currentSubject(c).ID, service.ProfileUpdate{
		Username: req.Username,
		Email:    req.Email,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, updated)
}

func (h *Handler) listUsers(c *gin.Context) {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		h.respondError(c, err)
		return
	}
	limit, err := queryInt(c, "limit", service.DefaultPageLimit)
	if err != nil {
		h.respondError(c, err)
		return
	}

	result, err := h.accounts.ListAccounts(c.Request.Context(), page, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, result)
}

type BackupResponse struct {
	Key          string  `json:"key"`
	Size         int64   `json:"size"`
	LastModified *string `json:"lastModified,omitempty"`
}

func (h *Handler) listBackups(c *gin.Context) {
	objects, err := h.backups.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := make([]BackupResponse, len(objects))
	for i := range objects {
		resp[i] = objectToResponse(objects[i])
	}
	respondData(c, http.StatusOK, resp)
}

func (h *Handler) createBackup(c *gin.Context) {
	location, err := h.backups.RunOnce(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusCreated, gin.H{"location": location})
}

func objectToResponse(obj storage.ObjectInfo) BackupResponse {
	resp := BackupResponse{
		Key:  obj.Key,
		Size: obj.Size,
	}
	if obj.LastModified != nil && !obj.LastModified.IsZero() {
		v := obj.LastModified.Format(time.RFC3339)
		resp.LastModified = &v
	}
	return resp
}

func queryInt(c *gin.Context, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &service.ValidationError{
			Kind:   service.ErrValidation,
			Fields: []service.FieldError{{Field: name, Message: name + " must be an integer"}},
		}
	}
	return v, nil
}
