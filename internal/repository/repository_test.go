package repository

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"docguard/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, AutoMigrate(db))
	return db
}

func TestDocumentRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewDocumentRepository(db)

	older := &model.Document{Title: "a.pdf", FilePath: "/tmp/a", CreatedAt: time.Now().Add(-time.Hour)}
	newer := &model.Document{Title: "b.pdf", FilePath: "/tmp/b"}
	require.NoError(t, repo.Create(older))
	require.NoError(t, repo.Create(newer))

	list, err := repo.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b.pdf", list[0].Title)

	got, err := repo.GetByID(older.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a.pdf", got.Title)

	require.NoError(t, repo.Delete(older.ID))
	got, err = repo.GetByID(older.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestChunkRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewChunkRepository(db)

	require.NoError(t, repo.CreateBatch([]model.DocumentChunk{
		{DocumentID: 1, ChunkIndex: 1, Content: "second"},
		{DocumentID: 1, ChunkIndex: 0, Content: "first"},
		{DocumentID: 2, ChunkIndex: 0, Content: "other"},
	}))
	require.NoError(t, repo.CreateBatch(nil))

	chunks, err := repo.ListByDocumentID(1)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "first", chunks[0].Content)
	assert.Equal(t, "second", chunks[1].Content)

	ids, err := repo.ListDocumentIDs()
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 2}, ids)

	require.NoError(t, repo.DeleteByDocumentID(1))
	chunks, err = repo.ListByDocumentID(1)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChatRepositories(t *testing.T) {
	db := newTestDB(t)
	sessions := NewChatSessionRepository(db)
	messages := NewChatMessageRepository(db)

	first := &model.ChatSession{DocumentID: 7, CreatedAt: time.Now().Add(-time.Minute)}
	second := &model.ChatSession{DocumentID: 7}
	require.NoError(t, sessions.Create(first))
	require.NoError(t, sessions.Create(second))

	got, err := sessions.GetByIDAndDocumentID(first.ID, 8)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = sessions.GetByIDAndDocumentID(first.ID, 7)
	require.NoError(t, err)
	require.NotNil(t, got)

	list, err := sessions.ListByDocumentID(7)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)

	require.NoError(t, messages.Create(&model.ChatMessage{SessionID: first.ID, Question: "q1", Answer: "a1"}))
	require.NoError(t, messages.Create(&model.ChatMessage{SessionID: first.ID, Question: "q2", Answer: "a2"}))
	require.NoError(t, messages.Create(&model.ChatMessage{SessionID: second.ID, Question: "q3", Answer: "a3"}))

	grouped, err := messages.ListBySessionIDs([]uint{first.ID, second.ID})
	require.NoError(t, err)
	require.Len(t, grouped[first.ID], 2)
	assert.Equal(t, "q1", grouped[first.ID][0].Question)
	assert.Len(t, grouped[second.ID], 1)

	ids, err := sessions.ListIDsByDocumentID(7)
	require.NoError(t, err)
	require.NoError(t, messages.DeleteBySessionIDs(ids))
	require.NoError(t, sessions.DeleteByDocumentID(7))

	list, err = sessions.ListByDocumentID(7)
	require.NoError(t, err)
	assert.Empty(t, list)
	msgs, err := messages.ListBySessionID(first.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
