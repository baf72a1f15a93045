package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-live/livestream-service/internal/domain"
	"github.com/weiawesome/wes-io-live/livestream-service/pkg/database"
)

func setupChat(t *testing.T) *GormChatRepository {
	t.Helper()
	db, err := database.New(&database.Config{
		Driver:       "sqlite",
		FilePath:     ":memory:",
		MaxOpenConns: 1,
		LogLevel:     "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })

	require.NoError(t, database.AutoMigrate(db, &domain.ChatMessageModel{}, &domain.ProductMentionModel{}))
	return NewGormChatRepository(db)
}

func TestChatRepositoryComments(t *testing.T) {
	repo := setupChat(t)
	ctx := context.Background()

	first, err := repo.CreateComment(ctx, "r1", 22, "hello")
	require.NoError(t, err)
	assert.NotZero(t, first.ID)
	assert.Equal(t, "user-22", first.SenderLabel)
	assert.Equal(t, domain.ChatMessageText, first.Type)

	_, err = repo.CreateComment(ctx, "r1", 23, "hi")
	require.NoError(t, err)
	_, err = repo.CreateComment(ctx, "r2", 23, "elsewhere")
	require.NoError(t, err)

	msgs, err := repo.ListByRoom(ctx, "r1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Message)
	assert.Equal(t, "hi", msgs[1].Message)

	msgs, err = repo.ListByRoom(ctx, "r1", 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Message)
}

func TestChatRepositoryShareProduct(t *testing.T) {
	repo := setupChat(t)
	ctx := context.Background()

	msg, err := repo.ShareProduct(ctx, "r1", 10, domain.Product{ID: 7, Title: "Kettle", Price: 19.5})
	require.NoError(t, err)
	assert.Equal(t, domain.ChatMessageProduct, msg.Type)
	require.NotNil(t, msg.ProductID)
	assert.Equal(t, int64(7), *msg.ProductID)
	assert.Equal(t, "Now showcasing: Kettle", msg.Message)

	var mentions int64
	require.NoError(t, repo.db.Model(&domain.ProductMentionModel{}).Where("room_id = ?", "r1").Count(&mentions).Error)
	assert.EqualValues(t, 1, mentions)

	var stored domain.ChatMessageModel
	require.NoError(t, repo.db.First(&stored, msg.ID).Error)
	assert.JSONEq(t, `{"id":7,"title":"Kettle","price":19.5,"image_url":""}`, stored.ProductData)
}
