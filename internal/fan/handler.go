package fan

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"fanledger/internal/auth"
)

type Handler struct {
	repo      Repository
	jwtSecret string
}

func NewHandler(db *sqlx.DB, jwtSecret string) *Handler {
	return &Handler{
		repo:      NewRepository(db),
		jwtSecret: jwtSecret,
	}
}

// Register godoc
// @Summary      Register new fan
// @Description  Creates a fan account under a creator and returns access & refresh tokens.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      RegisterRequest  true  "Fan registration data"
// @Success      201      {object}  LoginResponse
// @Failure      400      {object}  gin.H
// @Failure      409      {object}  gin.H
// @Failure      500      {object}  gin.H
// @Router       /auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()

	exists, err := h.repo.EmailExists(ctx, req.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if exists {
		c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	f, err := h.repo.Create(ctx, req.CreatorID, req.Name, req.Email, passwordHash, "fan")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create fan"})
		return
	}

	accessToken, refreshToken, err := auth.GenerateTokens(
		f.ID,
		f.CreatorID,
		f.Email,
		f.Role,
		h.jwtSecret,
		h.jwtSecret,
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate tokens"})
		return
	}

	c.JSON(http.StatusCreated, LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Fan:          *f,
	})
}

// Login godoc
// @Summary      Login fan
// @Description  Authenticates a fan by email and password.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      LoginRequest  true  "Fan credentials"
// @Success      200      {object}  LoginResponse
// @Failure      400      {object}  gin.H
// @Failure      401      {object}  gin.H
// @Failure      500      {object}  gin.H
// @Router       /auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	f, err := h.repo.FindByEmail(c.Request.Context(), req.Email)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	if !auth.CheckPassword(f.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	accessToken, refreshToken, err := auth.GenerateTokens(
		f.ID,
		f.CreatorID,
		f.Email,
		f.Role,
		h.jwtSecret,
		h.jwtSecret,
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate tokens"})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Fan:          *f,
	})
}

// GetMe godoc
// @Summary      Get current fan
// @Description  Returns profile of the authenticated fan.
// @Tags         fan
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  Fan
// @Failure      401  {object}  gin.H
// @Failure      404  {object}  gin.H
// @Router       /me [get]
func (h *Handler) GetMe(c *gin.Context) {
	fanID, exists := auth.GetFanID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Fan not authenticated"})
		return
	}

	f, err := h.repo.FindByID(c.Request.Context(), fanID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Fan not found"})
		return
	}

	c.JSON(http.StatusOK, f)
}

// ConfirmAdult godoc
// @Summary      Confirm adult status
// @Description  Marks the authenticated fan as adult-confirmed. Required before wallet top-ups.
// @Tags         fan
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  gin.H
// @Failure      401  {object}  gin.H
// @Router       /me/confirm-adult [post]
func (h *Handler) ConfirmAdult(c *gin.Context) {
	fanID, exists := auth.GetFanID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Fan not authenticated"})
		return
	}

	if err := h.repo.ConfirmAdult(c.Request.Context(), fanID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to confirm adult status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "adult status confirmed"})
}
