package dbmongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestJournalStore_InsertEntry(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("success", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		store := newJournalStore(mt.Coll)

		err := store.InsertEntry(context.Background(), JournalEntry{UserID: "user-1", Content: "Asked about chess club"})
		require.NoError(mt, err)
	})

	mt.Run("missing user", func(mt *mtest.T) {
		store := newJournalStore(mt.Coll)
		err := store.InsertEntry(context.Background(), JournalEntry{Content: "x"})
		assert.EqualError(mt, err, "journal entry needs a user ID")
	})

	mt.Run("write error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))
		store := newJournalStore(mt.Coll)

		err := store.InsertEntry(context.Background(), JournalEntry{UserID: "user-1"})
		require.Error(mt, err)
		assert.Contains(mt, err.Error(), "insert journal entry")
	})
}

func TestWithDefaults(t *testing.T) {
	now := time.Date(2025, 4, 2, 15, 0, 0, 0, time.UTC)

	filled := withDefaults(JournalEntry{UserID: "user-1"}, now)
	assert.Equal(t, EntryTypeNote, filled.EntryType)
	assert.Equal(t, DefaultEntryTitle, filled.Title)
	assert.Equal(t, now, filled.CreatedAt)

	kept := withDefaults(JournalEntry{UserID: "user-1", EntryType: "checkin", Title: "Week 3", CreatedAt: now.Add(-time.Hour)}, now)
	assert.Equal(t, "checkin", kept.EntryType)
	assert.Equal(t, "Week 3", kept.Title)
	assert.Equal(t, now.Add(-time.Hour), kept.CreatedAt)
}

func TestJournalStore_Recent(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("decodes entries", func(mt *mtest.T) {
		created := time.Date(2025, 4, 2, 15, 0, 0, 0, time.UTC)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{
				{Key: "user_id", Value: "user-1"},
				{Key: "entry_type", Value: "note"},
				{Key: "title", Value: "Chat with Link"},
				{Key: "content", Value: "Found a study group"},
				{Key: "created_at", Value: created},
			},
		))
		store := newJournalStore(mt.Coll)

		entries, err := store.Recent(context.Background(), "user-1", 0)
		require.NoError(mt, err)
		require.Len(mt, entries, 1)
		assert.Equal(mt, "Found a study group", entries[0].Content)
		assert.True(mt, entries[0].CreatedAt.Equal(created))
	})
}
