package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-live/livestream-service/internal/domain"
	"github.com/weiawesome/wes-io-live/livestream-service/pkg/log"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// GormChatRepository implements ChatRepository using GORM.
type GormChatRepository struct {
	db *gorm.DB
}

// NewGormChatRepository creates a new GORM-based chat repository.
func NewGormChatRepository(db *gorm.DB) *GormChatRepository {
	return &GormChatRepository{db: db}
}

// CreateComment stores a text comment.
func (r *GormChatRepository) CreateComment(ctx context.Context, roomID string, userID int64, message string) (*domain.ChatMessage, error) {
	l := log.Ctx(log.WithRoom(ctx, roomID, ""))

	model := &domain.ChatMessageModel{
		RoomID:       roomID,
		SenderUserID: userID,
		SenderLabel:  fmt.Sprintf("user-%d", userID),
		Message:      message,
		Type:         string(domain.ChatMessageText),
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		l.Error().Err(err).Msg("failed to create chat message in db")
		return nil, err
	}

	msg := model.ToDomain()
	return &msg, nil
}

// ShareProduct stores the mention and the showcase chat entry together.
func (r *GormChatRepository) ShareProduct(ctx context.Context, roomID string, sellerID int64, product domain.Product) (*domain.ChatMessage, error) {
	l := log.Ctx(log.WithRoom(ctx, roomID, ""))

	snapshot, err := json.Marshal(product)
	if err != nil {
		return nil, err
	}

	productID := product.ID
	model := &domain.ChatMessageModel{
		RoomID:       roomID,
		SenderUserID: sellerID,
		SenderLabel:  fmt.Sprintf("owner-%d", sellerID),
		Message:      fmt.Sprintf("Now showcasing: %s", product.Title),
		Type:         string(domain.ChatMessageProduct),
		ProductID:    &productID,
		ProductData:  string(snapshot),
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		mention := &domain.ProductMentionModel{
			RoomID:    roomID,
			SellerID:  sellerID,
			ProductID: product.ID,
		}
		if err := tx.Create(mention).Error; err != nil {
			return err
		}
		return tx.Create(model).Error
	})
	if err != nil {
		l.Error().Err(err).Int64("product_id", product.ID).Msg("failed to record product share")
		return nil, err
	}

	msg := model.ToDomain()
	return &msg, nil
}

// ListByRoom returns the most recent messages of a room, oldest first.
func (r *GormChatRepository) ListByRoom(ctx context.Context, roomID string, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	var models []domain.ChatMessageModel
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	out := make([]domain.ChatMessage, len(models))
	for i := range models {
		out[len(models)-1-i] = models[i].ToDomain()
	}
	return out, nil
}
