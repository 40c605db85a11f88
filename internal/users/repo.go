package users

import (
	"context"

	"gorm.io/gorm"

	"github.com/bookinga/bookinga-backend/internal/repo"
	"github.com/bookinga/bookinga-backend/pkg/db/models"
)

// Repository exposes user-related persistence operations.
type Repository struct {
	base repo.Base
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(db)}
}

// FindByID loads a user by id.
func (r *Repository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.base.DB(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByIDs loads every user whose id is in ids. Unknown ids are skipped.
func (r *Repository) FindByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []models.User
	if err := r.base.DB(ctx).Where("id IN ?", ids).Order("id").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// Upsert inserts the user or refreshes its profile fields.
func (r *Repository) Upsert(ctx context.Context, user *models.User) error {
	return r.base.DB(ctx).
		Where("id = ?", user.ID).
		Assign(models.User{DisplayName: user.DisplayName, Phone: user.Phone, Email: user.Email, Role: user.Role}).
		FirstOrCreate(user).Error
}
