package notifications

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bookinga/bookinga-backend/internal/repo"
	"github.com/bookinga/bookinga-backend/pkg/db/models"
)

// TokenRepository manages each user's registered device tokens.
type TokenRepository struct {
	base repo.Base
}

// NewTokenRepository binds the repository to db.
func NewTokenRepository(db *gorm.DB) *TokenRepository {
	return &TokenRepository{base: repo.NewBase(db)}
}

// Upsert registers token for its user, refreshing the platform when it already exists.
func (r *TokenRepository) Upsert(ctx context.Context, token *models.DeviceToken) error {
	return r.base.DB(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "token"}},
			DoUpdates: clause.AssignmentColumns([]string{"platform", "updated_at"}),
		}).
		Create(token).Error
}

// ListByUser returns the user's tokens, oldest first.
func (r *TokenRepository) ListByUser(ctx context.Context, userID string) ([]models.DeviceToken, error) {
	var tokens []models.DeviceToken
	if err := r.base.DB(ctx).
		Where("user_id = ?", userID).
		Order("created_at, token").
		Find(&tokens).Error; err != nil {
		return nil, err
	}
	return tokens, nil
}

// Delete removes exactly one (user, token) pair and reports whether it existed.
func (r *TokenRepository) Delete(ctx context.Context, userID, token string) (bool, error) {
	res := r.base.DB(ctx).
		Where("user_id = ? AND token = ?", userID, token).
		Delete(&models.DeviceToken{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
