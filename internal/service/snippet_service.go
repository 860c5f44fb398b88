// Package service contains the application's business logic layer.
package service

import (
	"context"
	"fmt"
	"strings"

	"snipted/internal/models"
	"snipted/internal/repository"
)

const (
	maxTitleLen    = 200
	maxCodeLen     = 50000
	maxLanguageLen = 50
	maxTagsPerSnip = 10
	maxTagNameLen  = 30

	defaultLanguage = "text"
)

type SnippetService struct {
	snippetRepo repository.SnippetRepository
	tagRepo     repository.TagRepository
}

type CreateSnippetInput struct {
	UserID      uint
	Title       string
	CodeContent string
	Language    string
	Tags        []string
}

// UpdateSnippetInput carries a partial update. Nil fields were absent from
// the request and leave the stored value untouched; a nil Tags keeps the
// current tag set while an empty slice clears it.
type UpdateSnippetInput struct {
	UserID      uint
	SnippetID   uint
	Title       *string
	CodeContent *string
	Language    *string
	Tags        *[]string
}

type ListSnippetsInput struct {
	Limit         int
	Offset        int
	CurrentUserID uint
	Tag           string
	Query         string
}

func NewSnippetService(snippetRepo repository.SnippetRepository, tagRepo repository.TagRepository) *SnippetService {
	return &SnippetService{
		snippetRepo: snippetRepo,
		tagRepo:     tagRepo,
	}
}

func (s *SnippetService) CreateSnippet(ctx context.Context, in CreateSnippetInput) (*models.Snippet, error) {
	if err := validateSnippetFields(in.Title, in.CodeContent, in.Language); err != nil {
		return nil, err
	}

	tagNames, err := NormalizeTags(in.Tags)
	if err != nil {
		return nil, err
	}
	tags, err := s.resolveTags(ctx, tagNames)
	if err != nil {
		return nil, err
	}

	language := strings.TrimSpace(in.Language)
	if language == "" {
		language = defaultLanguage
	}

	snippet := &models.Snippet{
		Title:       strings.TrimSpace(in.Title),
		CodeContent: in.CodeContent,
		Language:    language,
		UserID:      in.UserID,
		Tags:        tags,
	}
	if err := s.snippetRepo.Create(ctx, snippet); err != nil {
		return nil, err
	}

	return s.snippetRepo.GetByID(ctx, snippet.ID, in.UserID)
}

func (s *SnippetService) GetSnippet(ctx context.Context, id uint, currentUserID uint) (*models.Snippet, error) {
	return s.snippetRepo.GetByID(ctx, id, currentUserID)
}

func (s *SnippetService) ListSnippets(ctx context.Context, in ListSnippetsInput) ([]*models.Snippet, error) {
	tag := strings.ToLower(strings.TrimSpace(in.Tag))
	query := strings.TrimSpace(in.Query)
	return s.snippetRepo.List(ctx, in.Limit, in.Offset, in.CurrentUserID, tag, query)
}

func (s *SnippetService) GetUserSnippets(ctx context.Context, userID uint, limit, offset int, currentUserID uint) ([]*models.Snippet, error) {
	return s.snippetRepo.GetByUserID(ctx, userID, limit, offset, currentUserID)
}

func (s *SnippetService) SearchSnippets(ctx context.Context, query string, limit, offset int, currentUserID uint) ([]*models.Snippet, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.NewValidationError("Search query is required")
	}
	return s.snippetRepo.Search(ctx, query, limit, offset, currentUserID)
}

func (s *SnippetService) UpdateSnippet(ctx context.Context, in UpdateSnippetInput) (*models.Snippet, error) {
	snippet, err := s.snippetRepo.GetByID(ctx, in.SnippetID, in.UserID)
	if err != nil {
		return nil, err
	}
	if snippet.UserID != in.UserID {
		return nil, models.NewForbiddenError("You can only update your own snippets")
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if err := validateTitle(title); err != nil {
			return nil, err
		}
		snippet.Title = title
	}
	if in.CodeContent != nil {
		if err := validateCodeContent(*in.CodeContent); err != nil {
			return nil, err
		}
		snippet.CodeContent = *in.CodeContent
	}
	if in.Language != nil {
		language := strings.TrimSpace(*in.Language)
		if err := validateLanguage(language); err != nil {
			return nil, err
		}
		if language == "" {
			language = defaultLanguage
		}
		snippet.Language = language
	}

	var tags []models.Tag
	if in.Tags != nil {
		tagNames, err := NormalizeTags(*in.Tags)
		if err != nil {
			return nil, err
		}
		tags, err = s.resolveTags(ctx, tagNames)
		if err != nil {
			return nil, err
		}
	}

	if err := s.snippetRepo.Update(ctx, snippet, tags); err != nil {
		return nil, err
	}

	return s.snippetRepo.GetByID(ctx, snippet.ID, in.UserID)
}

func (s *SnippetService) DeleteSnippet(ctx context.Context, userID, snippetID uint) error {
	snippet, err := s.snippetRepo.GetByID(ctx, snippetID, userID)
	if err != nil {
		return err
	}
	if snippet.UserID != userID {
		return models.NewForbiddenError("You can only delete your own snippets")
	}
	return s.snippetRepo.Delete(ctx, snippetID)
}

// ToggleLike flips the caller's like on a snippet. Liking your own snippet
// is allowed; the reputation adjustment applies to the owner either way.
func (s *SnippetService) ToggleLike(ctx context.Context, userID, snippetID uint) (bool, error) {
	return s.snippetRepo.ToggleLike(ctx, userID, snippetID)
}

func validateSnippetFields(title, codeContent, language string) error {
	if err := validateTitle(strings.TrimSpace(title)); err != nil {
		return err
	}
	if err := validateCodeContent(codeContent); err != nil {
		return err
	}
	return validateLanguage(language)
}

func validateTitle(title string) error {
	if title == "" {
		return models.NewValidationError("Title is required")
	}
	if len(title) > maxTitleLen {
		return models.NewValidationError(fmt.Sprintf("Title too long (max %d characters)", maxTitleLen))
	}
	return nil
}

func validateCodeContent(codeContent string) error {
	if codeContent == "" {
		return models.NewValidationError("Code content is required")
	}
	if len(codeContent) > maxCodeLen {
		return models.NewValidationError(fmt.Sprintf("Code content too long (max %d characters)", maxCodeLen))
	}
	return nil
}

func validateLanguage(language string) error {
	if len(language) > maxLanguageLen {
		return models.NewValidationError(fmt.Sprintf("Language too long (max %d characters)", maxLanguageLen))
	}
	return nil
}

// NormalizeTags trims and lower-cases tag names, drops entries that are
// empty after trimming, and removes duplicates while preserving order.
func NormalizeTags(raw []string) ([]string, error) {
	if len(raw) > maxTagsPerSnip {
		return nil, models.NewValidationError(fmt.Sprintf("Too many tags (max %d)", maxTagsPerSnip))
	}

	seen := make(map[string]struct{}, len(raw))
	names := make([]string, 0, len(raw))
	for _, t := range raw {
		name := strings.ToLower(strings.TrimSpace(t))
		if name == "" {
			continue
		}
		if len(name) > maxTagNameLen {
			return nil, models.NewValidationError(fmt.Sprintf("Tag %q too long (max %d characters)", name, maxTagNameLen))
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names, nil
}

func (s *SnippetService) resolveTags(ctx context.Context, names []string) ([]models.Tag, error) {
	tags := make([]models.Tag, 0, len(names))
	for _, name := range names {
		tag, err := s.tagRepo.FindOrCreate(ctx, name)
		if err != nil {
			return nil, err
		}
		tags = append(tags, *tag)
	}
	return tags, nil
}
