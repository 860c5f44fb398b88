package repository

import (
	"context"
	"errors"
	"strings"

	"snipted/internal/cache"
	"snipted/internal/models"

	"gorm.io/gorm"
)

// SnippetRepository defines the interface for snippet data operations
type SnippetRepository interface {
	Create(ctx context.Context, snippet *models.Snippet) error
	GetByID(ctx context.Context, id uint, currentUserID uint) (*models.Snippet, error)
	GetByUserID(ctx context.Context, userID uint, limit, offset int, currentUserID uint) ([]*models.Snippet, error)
	List(ctx context.Context, limit, offset int, currentUserID uint, tagName, query string) ([]*models.Snippet, error)
	Search(ctx context.Context, query string, limit, offset int, currentUserID uint) ([]*models.Snippet, error)
	Update(ctx context.Context, snippet *models.Snippet, tags []models.Tag) error
	Delete(ctx context.Context, id uint) error
	ToggleLike(ctx context.Context, userID, snippetID uint) (bool, error)
}

// snippetRepository implements SnippetRepository
type snippetRepository struct {
	db *gorm.DB
}

// NewSnippetRepository creates a new snippet repository
func NewSnippetRepository(db *gorm.DB) SnippetRepository {
	return &snippetRepository{db: db}
}

func (r *snippetRepository) Create(ctx context.Context, snippet *models.Snippet) error {
	if err := r.db.WithContext(ctx).Create(snippet).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *snippetRepository) GetByID(ctx context.Context, id uint, currentUserID uint) (*models.Snippet, error) {
	var snippet models.Snippet
	key := cache.SnippetKey(id)

	fetch := func() error {
		if err := r.applySnippetDetails(r.db.WithContext(ctx), currentUserID).
			Preload("User").
			Preload("Tags").
			First(&snippet, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Snippet", id)
			}
			return models.NewInternalError(err)
		}
		return nil
	}

	var err error
	if currentUserID == 0 {
		// Anonymous reads share one cache entry; liked is always false for them.
		err = cache.Aside(ctx, key, &snippet, cache.SnippetTTL, fetch)
	} else {
		err = fetch()
	}

	if err != nil {
		return nil, err
	}
	return &snippet, nil
}

func (r *snippetRepository) GetByUserID(ctx context.Context, userID uint, limit, offset int, currentUserID uint) ([]*models.Snippet, error) {
	var snippets []*models.Snippet
	err := r.applySnippetDetails(r.db.WithContext(ctx), currentUserID).
		Preload("User").
		Preload("Tags").
		Where("snippets.user_id = ?", userID).
		Order("snippets.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&snippets).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return snippets, nil
}

// List returns snippets newest-first. tagName and query filters combine with
// AND semantics; either may be empty.
func (r *snippetRepository) List(ctx context.Context, limit, offset int, currentUserID uint, tagName, query string) ([]*models.Snippet, error) {
	var snippets []*models.Snippet
	q := r.applySnippetDetails(r.db.WithContext(ctx), currentUserID).
		Preload("User").
		Preload("Tags")

	if tagName != "" {
		q = q.
			Joins("JOIN snippet_tags ON snippet_tags.snippet_id = snippets.id").
			Joins("JOIN tags ON tags.id = snippet_tags.tag_id").
			Where("tags.name = ?", tagName)
	}
	if query != "" {
		like := "%" + strings.ToLower(query) + "%"
		q = q.Where("LOWER(snippets.title) LIKE ? OR LOWER(snippets.code_content) LIKE ?", like, like)
	}

	err := q.
		Order("snippets.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&snippets).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return snippets, nil
}

func (r *snippetRepository) Search(ctx context.Context, query string, limit, offset int, currentUserID uint) ([]*models.Snippet, error) {
	var snippets []*models.Snippet
	like := "%" + strings.ToLower(query) + "%"
	err := r.applySnippetDetails(r.db.WithContext(ctx), currentUserID).
		Preload("User").
		Preload("Tags").
		Where("LOWER(snippets.title) LIKE ? OR LOWER(snippets.code_content) LIKE ?", like, like).
		Order("snippets.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&snippets).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return snippets, nil
}

// applySnippetDetails adds subqueries to fetch the like count and liked status in a single query.
func (r *snippetRepository) applySnippetDetails(db *gorm.DB, currentUserID uint) *gorm.DB {
	selectQuery := "snippets.*, " +
		"(SELECT COUNT(*) FROM likes WHERE likes.snippet_id = snippets.id) as like_count"

	if currentUserID != 0 {
		return db.Select(selectQuery+", EXISTS(SELECT 1 FROM likes WHERE likes.snippet_id = snippets.id AND likes.user_id = ?) as liked", currentUserID)
	}

	return db.Select(selectQuery + ", false as liked")
}

// Update persists the snippet's scalar columns. A nil tags slice leaves the
// tag associations alone; an empty non-nil slice removes them all.
func (r *snippetRepository) Update(ctx context.Context, snippet *models.Snippet, tags []models.Tag) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(snippet).Select("title", "code_content", "language", "updated_at").Updates(snippet).Error; err != nil {
			return err
		}
		if tags == nil {
			return nil
		}
		return tx.Model(snippet).Association("Tags").Replace(tags)
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateSnippet(ctx, snippet.ID)
	return nil
}

func (r *snippetRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`DELETE FROM snippet_tags WHERE snippet_id = ?`, id).Error; err != nil {
			return err
		}
		if err := tx.Where("snippet_id = ?", id).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Snippet{}, id).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateSnippet(ctx, id)
	return nil
}

// ToggleLike flips the like state of userID on snippetID and adjusts the
// snippet owner's reputation inside the same transaction. Returns the new
// liked state.
func (r *snippetRepository) ToggleLike(ctx context.Context, userID, snippetID uint) (bool, error) {
	var liked bool
	var ownerID uint

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var snippet models.Snippet
		if err := tx.Select("id", "user_id").First(&snippet, snippetID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Snippet", snippetID)
			}
			return err
		}
		ownerID = snippet.UserID

		var existing models.Like
		err := tx.Where("user_id = ? AND snippet_id = ?", userID, snippetID).First(&existing).Error
		switch {
		case err == nil:
			if err := tx.Delete(&existing).Error; err != nil {
				return err
			}
			liked = false
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(&models.Like{UserID: userID, SnippetID: snippetID}).Error; err != nil {
				return err
			}
			liked = true
		default:
			return err
		}

		var owner models.User
		if err := tx.First(&owner, ownerID).Error; err != nil {
			return err
		}
		if liked {
			owner.Reputation++
		} else {
			owner.Reputation--
		}
		// Reputation never goes negative, even if likes are removed
		// after a manual reputation reset.
		if owner.Reputation < 0 {
			owner.Reputation = 0
		}
		return tx.Model(&models.User{}).Where("id = ?", ownerID).Update("reputation", owner.Reputation).Error
	})

	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return false, appErr
		}
		return false, models.NewInternalError(err)
	}

	cache.InvalidateSnippet(ctx, snippetID)
	cache.InvalidateUser(ctx, ownerID)
	return liked, nil
}
