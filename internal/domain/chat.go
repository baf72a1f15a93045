package domain

import (
	"time"
)

// ChatMessageType distinguishes plain comments from product showcases.
type ChatMessageType string

const (
	ChatMessageText    ChatMessageType = "TEXT"
	ChatMessageProduct ChatMessageType = "PRODUCT"
)

// Product is the catalogue entry an owner showcases during a stream.
// It is supplied by the client and stored as an opaque snapshot.
type Product struct {
	ID          int64   `json:"id" binding:"required,min=1"`
	Title       string  `json:"title" binding:"required"`
	Price       float64 `json:"price"`
	ImageURL    string  `json:"image_url"`
	Description string  `json:"description,omitempty"`
}

// ChatMessageModel is the GORM model for live_chat_messages.
type ChatMessageModel struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement"`
	RoomID       string    `gorm:"type:varchar(40);index:idx_chat_room_created,priority:1;not null"`
	SenderUserID int64     `gorm:"index;not null"`
	SenderLabel  string    `gorm:"type:varchar(64);not null"`
	Message      string    `gorm:"type:text;not null"`
	Type         string    `gorm:"type:varchar(16);not null;default:'TEXT'"`
	ProductID    *int64    `gorm:"index"`
	ProductData  string    `gorm:"type:text"`
	CreatedAt    time.Time `gorm:"index:idx_chat_room_created,priority:2;autoCreateTime"`
}

// TableName specifies the table name for ChatMessageModel.
func (ChatMessageModel) TableName() string {
	return "live_chat_messages"
}

// ProductMentionModel is the GORM model for live_product_mentions.
type ProductMentionModel struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	RoomID    string    `gorm:"type:varchar(40);index;not null"`
	SellerID  int64     `gorm:"index;not null"`
	ProductID int64     `gorm:"index;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for ProductMentionModel.
func (ProductMentionModel) TableName() string {
	return "live_product_mentions"
}

// ChatMessage is a chat entry as returned by the history endpoint.
type ChatMessage struct {
	ID           uint64          `json:"id"`
	RoomID       string          `json:"room_id"`
	SenderUserID int64           `json:"sender_user_id"`
	SenderLabel  string          `json:"sender_label"`
	Message      string          `json:"message"`
	Type         ChatMessageType `json:"type"`
	ProductID    *int64          `json:"product_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ToDomain converts ChatMessageModel to ChatMessage.
func (m *ChatMessageModel) ToDomain() ChatMessage {
	return ChatMessage{
		ID:           m.ID,
		RoomID:       m.RoomID,
		SenderUserID: m.SenderUserID,
		SenderLabel:  m.SenderLabel,
		Message:      m.Message,
		Type:         ChatMessageType(m.Type),
		ProductID:    m.ProductID,
		CreatedAt:    m.CreatedAt,
	}
}

// ListMessagesRequest represents a chat history query.
type ListMessagesRequest struct {
	Limit int `form:"limit"`
}
