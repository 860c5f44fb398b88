package repository

import (
	"context"
	"errors"

	"snipted/internal/models"

	"gorm.io/gorm"
)

// TagRepository defines persistence operations for tags.
type TagRepository interface {
	FindByName(ctx context.Context, name string) (*models.Tag, error)
	FindOrCreate(ctx context.Context, name string) (*models.Tag, error)
	List(ctx context.Context) ([]models.Tag, error)
}

type tagRepository struct {
	db *gorm.DB
}

// NewTagRepository returns a new TagRepository implementation.
func NewTagRepository(db *gorm.DB) TagRepository {
	return &tagRepository{db: db}
}

func (r *tagRepository) FindByName(ctx context.Context, name string) (*models.Tag, error) {
	var tag models.Tag
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&tag).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &tag, nil
}

// FindOrCreate returns the tag with the given name, creating it if missing.
// ON CONFLICT DO NOTHING makes concurrent creation of the same name safe;
// the follow-up lookup picks up whichever insert won.
func (r *tagRepository) FindOrCreate(ctx context.Context, name string) (*models.Tag, error) {
	if err := r.db.WithContext(ctx).Exec(
		`INSERT INTO tags (name) VALUES (?) ON CONFLICT (name) DO NOTHING`,
		name,
	).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	var tag models.Tag
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&tag).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return &tag, nil
}

func (r *tagRepository) List(ctx context.Context) ([]models.Tag, error) {
	var tags []models.Tag
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&tags).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return tags, nil
}
