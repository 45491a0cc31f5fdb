package controllers

import (
	"net/http"

	"github.com/aits/backend/internal/app/models"
	"github.com/aits/backend/internal/app/models/dto"
	"github.com/aits/backend/internal/app/services"
	"github.com/aits/backend/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// AuthController handles authentication related operations
type AuthController struct {
	authService *services.AuthService
	logger      zerolog.Logger
}

// NewAuthController creates a new AuthController
func NewAuthController(authService *services.AuthService, logger zerolog.Logger) *AuthController {
	return &AuthController{
		authService: authService,
		logger:      logger,
	}
}

func (c *AuthController) register(ctx *gin.Context, role models.Role) {
	var req dto.RegisterRequest
	if !middleware.BindJSON(ctx, &req) {
		c.logger.Warn().Str("role", string(role)).Msg("Invalid registration request payload")
		return
	}

	resp, err := c.authService.Register(ctx.Request.Context(), role, &req)
	if err != nil {
		c.logger.Warn().Err(err).Str("role", string(role)).Str("email", req.Email).Msg("Registration failed")
		middleware.HandleAPIError(ctx, err)
		return
	}

	c.logger.Info().
		Int64("userID", resp.User.ID).
		Str("role", string(role)).
		Str("college", resp.User.College).
		Msg("User registered")

	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(resp))
}

// RegisterStudent handles student sign-up
// @Summary Register a student
// @Description Creates a student account. studentRegNumber, yearOfStudy, fullName and college are required; the registration number becomes the username.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.RegisterRequest true "Student registration"
// @Success 201 {object} dto.APIResponse{data=dto.AuthResponse} "Account created and logged in"
// @Failure 400 {object} dto.ErrorResponse "Missing or invalid fields"
// @Failure 409 {object} dto.ErrorResponse "Email or registration number already used"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /register [post]
func (c *AuthController) RegisterStudent(ctx *gin.Context) {
	c.register(ctx, models.RoleStudent)
}

// RegisterLecturer handles lecturer sign-up
// @Summary Register a lecturer
// @Description Creates a lecturer account. fullName and college are required.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.RegisterRequest true "Lecturer registration"
// @Success 201 {object} dto.APIResponse{data=dto.AuthResponse} "Account created and logged in"
// @Failure 400 {object} dto.ErrorResponse "Missing or invalid fields"
// @Failure 409 {object} dto.ErrorResponse "Email already used"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /lecturer/register [post]
func (c *AuthController) RegisterLecturer(ctx *gin.Context) {
	c.register(ctx, models.RoleLecturer)
}

// SignupRegistrar handles registrar sign-up
// @Summary Register an academic registrar
// @Description Creates a registrar account. firstName, lastName and college are required.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.RegisterRequest true "Registrar registration"
// @Success 201 {object} dto.APIResponse{data=dto.AuthResponse} "Account created and logged in"
// @Failure 400 {object} dto.ErrorResponse "Missing or invalid fields"
// @Failure 409 {object} dto.ErrorResponse "Email already used"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /registrar/signup [post]
func (c *AuthController) SignupRegistrar(ctx *gin.Context) {
	c.register(ctx, models.RoleRegistrar)
}

func (c *AuthController) login(ctx *gin.Context, allowed ...models.Role) {
	var req dto.LoginRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	tokens, err := c.authService.Login(ctx.Request.Context(), &req, allowed...)
	if err != nil {
		c.logger.Warn().Err(err).Str("username", req.Username).Msg("Login failed")
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(tokens))
}

// Login handles user login
// @Summary User login
// @Description Authenticates any role and returns an access/refresh token pair. Students log in with their registration number, everyone else with their email.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Login credentials"
// @Success 200 {object} dto.APIResponse{data=dto.TokenResponse} "Login successful"
// @Failure 400 {object} dto.ErrorResponse "Invalid request format"
// @Failure 401 {object} dto.ErrorResponse "Invalid credentials or account disabled"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /token [post]
// @Router /login [post]
func (c *AuthController) Login(ctx *gin.Context) {
	c.login(ctx)
}

// LecturerLogin handles lecturer-only login
// @Summary Lecturer login
// @Description Same as /login but only lecturer accounts are accepted.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Login credentials"
// @Success 200 {object} dto.APIResponse{data=dto.TokenResponse} "Login successful"
// @Failure 400 {object} dto.ErrorResponse "Invalid request format"
// @Failure 401 {object} dto.ErrorResponse "Invalid credentials"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /lecturer/login [post]
func (c *AuthController) LecturerLogin(ctx *gin.Context) {
	c.login(ctx, models.RoleLecturer)
}

// RefreshToken handles token refresh
// @Summary Refresh access token
// @Description Exchanges a refresh token for a new token pair. The presented refresh token is revoked.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.RefreshTokenRequest true "Refresh token"
// @Success 200 {object} dto.APIResponse{data=dto.TokenResponse} "Token refreshed"
// @Failure 400 {object} dto.ErrorResponse "Invalid request format"
// @Failure 401 {object} dto.ErrorResponse "Unknown, expired or revoked refresh token"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /token/refresh [post]
func (c *AuthController) RefreshToken(ctx *gin.Context) {
	var req dto.RefreshTokenRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	tokens, err := c.authService.RefreshToken(ctx.Request.Context(), req.Refresh)
	if err != nil {
		c.logger.Debug().Err(err).Msg("Refresh token rejected")
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(tokens))
}

// Logout handles user logout
// @Summary Logout
// @Description Revokes the given refresh token, or every refresh token of the user when none is sent.
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.LogoutRequest false "Refresh token to revoke"
// @Success 200 {object} dto.APIResponse "Logged out"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /logout [post]
func (c *AuthController) Logout(ctx *gin.Context) {
	user, ok := requireUser(ctx)
	if !ok {
		return
	}

	var req dto.LogoutRequest
	if ctx.Request.ContentLength > 0 && !middleware.BindJSON(ctx, &req) {
		return
	}

	if err := c.authService.Logout(ctx.Request.Context(), user, req.Refresh); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	c.logger.Info().Int64("userID", user.ID).Bool("allSessions", req.Refresh == "").Msg("User logged out")
	ctx.JSON(http.StatusOK, dto.NewMessageResponse("Logged out"))
}
