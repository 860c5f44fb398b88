package server

import (
	"snipted/internal/middleware"
	"snipted/internal/models"
	"snipted/internal/service"

	"github.com/gofiber/fiber/v2"
)

type snippetRequest struct {
	Title       string   `json:"title"`
	CodeContent string   `json:"code_content"`
	Language    string   `json:"language"`
	Tags        []string `json:"tags"`
}

// snippetUpdateRequest uses pointers so an omitted field can be told apart
// from an explicit zero value.
type snippetUpdateRequest struct {
	Title       *string   `json:"title"`
	CodeContent *string   `json:"code_content"`
	Language    *string   `json:"language"`
	Tags        *[]string `json:"tags"`
}

// CreateSnippet handles POST /api/v1/snippets
func (s *Server) CreateSnippet(c *fiber.Ctx) error {
	userID := currentUserID(c)

	var req snippetRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	snippet, err := s.snippetService.CreateSnippet(c.Context(), service.CreateSnippetInput{
		UserID:      userID,
		Title:       req.Title,
		CodeContent: req.CodeContent,
		Language:    req.Language,
		Tags:        req.Tags,
	})
	if err != nil {
		return models.RespondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(snippet)
}

// GetSnippets handles GET /api/v1/snippets. ?tag= and ?q= filters combine
// with AND semantics.
func (s *Server) GetSnippets(c *fiber.Ctx) error {
	pagination, err := parsePagination(c, 20)
	if err != nil {
		return nil
	}

	snippets, svcErr := s.snippetService.ListSnippets(c.Context(), service.ListSnippetsInput{
		Limit:         pagination.Limit,
		Offset:        pagination.Offset,
		CurrentUserID: s.optionalUserID(c),
		Tag:           c.Query("tag"),
		Query:         c.Query("q"),
	})
	if svcErr != nil {
		return models.RespondError(c, svcErr)
	}
	if snippets == nil {
		snippets = []*models.Snippet{}
	}

	return c.JSON(snippets)
}

// SearchSnippets handles GET /api/v1/snippets/search?q=
func (s *Server) SearchSnippets(c *fiber.Ctx) error {
	pagination, err := parsePagination(c, 20)
	if err != nil {
		return nil
	}

	snippets, svcErr := s.snippetService.SearchSnippets(
		c.Context(), c.Query("q"), pagination.Limit, pagination.Offset, s.optionalUserID(c))
	if svcErr != nil {
		return models.RespondError(c, svcErr)
	}
	if snippets == nil {
		snippets = []*models.Snippet{}
	}

	return c.JSON(snippets)
}

// GetSnippet handles GET /api/v1/snippets/:id
func (s *Server) GetSnippet(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	snippet, svcErr := s.snippetService.GetSnippet(c.Context(), id, s.optionalUserID(c))
	if svcErr != nil {
		return models.RespondError(c, svcErr)
	}

	return c.JSON(snippet)
}

// UpdateSnippet handles PUT /api/v1/snippets/:id
func (s *Server) UpdateSnippet(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req snippetUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	snippet, svcErr := s.snippetService.UpdateSnippet(c.Context(), service.UpdateSnippetInput{
		UserID:      currentUserID(c),
		SnippetID:   id,
		Title:       req.Title,
		CodeContent: req.CodeContent,
		Language:    req.Language,
		Tags:        req.Tags,
	})
	if svcErr != nil {
		return models.RespondError(c, svcErr)
	}

	return c.JSON(snippet)
}

// DeleteSnippet handles DELETE /api/v1/snippets/:id
func (s *Server) DeleteSnippet(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if svcErr := s.snippetService.DeleteSnippet(c.Context(), currentUserID(c), id); svcErr != nil {
		return models.RespondError(c, svcErr)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ToggleLike handles POST /api/v1/snippets/:id/like
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	liked, svcErr := s.snippetService.ToggleLike(c.Context(), currentUserID(c), id)
	if svcErr != nil {
		return models.RespondError(c, svcErr)
	}

	state := "unliked"
	if liked {
		state = "liked"
	}
	middleware.LikeToggles.WithLabelValues(state).Inc()

	return c.JSON(fiber.Map{"is_liked": liked})
}

// GetTags handles GET /api/v1/tags
func (s *Server) GetTags(c *fiber.Ctx) error {
	tags, err := s.tagRepo.List(c.Context())
	if err != nil {
		return models.RespondError(c, err)
	}
	if tags == nil {
		tags = []models.Tag{}
	}
	return c.JSON(tags)
}
