package server

import (
	"snipted/internal/models"
	"snipted/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateUser handles POST /api/v1/users. Unlike Register it returns the
// created account without starting a session.
func (s *Server) CreateUser(c *fiber.Ctx) error {
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

	return c.Status(fiber.StatusCreated).JSON(user)
}

// GetUsers handles GET /api/v1/users
func (s *Server) GetUsers(c *fiber.Ctx) error {
	pagination, err := parsePagination(c, 20)
	if err != nil {
		return nil
	}

	users, svcErr := s.userService.ListUsers(c.Context(), pagination.Limit, pagination.Offset)
	if svcErr != nil {
		return models.RespondError(c, svcErr)
	}
	if users == nil {
		users = []models.User{}
	}

	return c.JSON(users)
}

// GetMe handles GET /api/v1/users/me
func (s *Server) GetMe(c *fiber.Ctx) error {
	user, err := s.userService.GetUserByID(c.Context(), currentUserID(c))
	if err != nil {
		return models.RespondError(c, err)
	}
	return c.JSON(user)
}

// GetUserByID handles GET /api/v1/users/:id
func (s *Server) GetUserByID(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	user, svcErr := s.userService.GetUserByID(c.Context(), id)
	if svcErr != nil {
		return models.RespondError(c, svcErr)
	}
	return c.JSON(user)
}

// GetUserSnippets handles GET /api/v1/users/:id/snippets
func (s *Server) GetUserSnippets(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	pagination, err := parsePagination(c, 20)
	if err != nil {
		return nil
	}

	snippets, svcErr := s.snippetService.GetUserSnippets(
		c.Context(), id, pagination.Limit, pagination.Offset, s.optionalUserID(c))
	if svcErr != nil {
		return models.RespondError(c, svcErr)
	}
	if snippets == nil {
		snippets = []*models.Snippet{}
	}

	return c.JSON(snippets)
}
