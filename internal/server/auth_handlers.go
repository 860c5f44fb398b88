package server

import (
	"snipted/internal/auth"
	"snipted/internal/models"
	"snipted/internal/service"

	"github.com/gofiber/fiber/v2"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles POST /api/v1/auth/register. A successful registration
// immediately establishes a session, so the client does not need a
// follow-up login call.
func (s *Server) Register(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.CreateUser(c.Context(), service.CreateUserInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return models.RespondError(c, err)
	}

	if err := s.setAuthCookies(c, user.Email); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return c.Status(fiber.StatusCreated).JSON(user)
}

// Login handles POST /api/v1/auth/login
func (s *Server) Login(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.Authenticate(c.Context(), req.Email, req.Password)
	if err != nil {
		// Bad credentials and inactive accounts both answer 400; the
		// message never distinguishes an unknown email from a wrong
		// password.
		if appErr, ok := err.(*models.AppError); ok && appErr.Code == models.CodeValidation {
			return models.RespondWithError(c, fiber.StatusBadRequest, err)
		}
		return models.RespondError(c, err)
	}

	if err := s.setAuthCookies(c, user.Email); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return c.JSON(fiber.Map{
		"message": "Login successful",
		"user":    user,
	})
}

// Refresh handles POST /api/v1/auth/refresh. Both tokens are rotated on
// every refresh.
func (s *Server) Refresh(c *fiber.Ctx) error {
	refreshToken := c.Cookies("refresh_token")
	if refreshToken == "" {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Refresh token missing"))
	}

	email, err := s.tokens.Verify(refreshToken)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("Invalid refresh token"))
	}

	user, lookupErr := s.userRepo.GetByEmail(c.Context(), email)
	if lookupErr != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, lookupErr)
	}
	if user == nil || !user.IsActive {
		s.clearAuthCookies(c)
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("User is no longer active"))
	}

	if err := s.setAuthCookies(c, user.Email); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return c.JSON(fiber.Map{"message": "Token refreshed"})
}

// Logout handles POST /api/v1/auth/logout
func (s *Server) Logout(c *fiber.Ctx) error {
	s.clearAuthCookies(c)
	return c.JSON(fiber.Map{"message": "Logged out"})
}

// setAuthCookies issues a fresh access/refresh token pair plus the readable
// CSRF token and writes all three cookies.
func (s *Server) setAuthCookies(c *fiber.Ctx, email string) error {
	accessToken, err := s.tokens.IssueAccess(email)
	if err != nil {
		return err
	}
	refreshToken, err := s.tokens.IssueRefresh(email)
	if err != nil {
		return err
	}
	csrfToken, err := auth.GenerateCSRFToken()
	if err != nil {
		return err
	}

	secure := s.config.CookieSecure()
	sameSite := s.config.CookieSameSite()
	accessMaxAge := int(s.config.AccessTokenTTL().Seconds())
	refreshMaxAge := int(s.config.RefreshTokenTTL().Seconds())

	c.Cookie(&fiber.Cookie{
		Name:     "access_token",
		Value:    accessToken,
		Path:     "/",
		MaxAge:   accessMaxAge,
		HTTPOnly: true,
		Secure:   secure,
		SameSite: sameSite,
	})
	c.Cookie(&fiber.Cookie{
		Name:     "refresh_token",
		Value:    refreshToken,
		Path:     "/",
		MaxAge:   refreshMaxAge,
		HTTPOnly: true,
		Secure:   secure,
		SameSite: sameSite,
	})
	// The CSRF cookie stays readable so the frontend can echo it back in
	// the X-CSRF-Token header.
	c.Cookie(&fiber.Cookie{
		Name:     "csrf_token",
		Value:    csrfToken,
		Path:     "/",
		MaxAge:   refreshMaxAge,
		HTTPOnly: false,
		Secure:   secure,
		SameSite: sameSite,
	})

	return nil
}

// clearAuthCookies expires all session cookies.
func (s *Server) clearAuthCookies(c *fiber.Ctx) {
	secure := s.config.CookieSecure()
	sameSite := s.config.CookieSameSite()

	for _, name := range []string{"access_token", "refresh_token", "csrf_token"} {
		c.Cookie(&fiber.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HTTPOnly: name != "csrf_token",
			Secure:   secure,
			SameSite: sameSite,
		})
	}
}
