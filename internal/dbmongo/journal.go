package dbmongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	EntryTypeNote     = "note"
	DefaultEntryTitle = "Chat with Link"
)

// JournalEntry is one line in a user's Link journal.
type JournalEntry struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	UserID       string             `bson:"user_id"`
	UniversityID string             `bson:"university_id,omitempty"`
	EntryType    string             `bson:"entry_type"`
	Title        string             `bson:"title"`
	Content      string             `bson:"content"`
	CreatedAt    time.Time          `bson:"created_at"`
}

type JournalStore struct {
	coll *mongo.Collection
}

func NewJournalStore(mc *MongoClient, collection string) *JournalStore {
	return newJournalStore(mc.Database.Collection(collection))
}

func newJournalStore(coll *mongo.Collection) *JournalStore {
	return &JournalStore{coll: coll}
}

// InsertEntry fills in the type, title and timestamp when they are empty.
func (s *JournalStore) InsertEntry(ctx context.Context, entry JournalEntry) error {
	if entry.UserID == "" {
		return errors.New("journal entry needs a user ID")
	}
	entry = withDefaults(entry, time.Now().UTC())

	if _, err := s.coll.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

func withDefaults(entry JournalEntry, now time.Time) JournalEntry {
	if entry.EntryType == "" {
		entry.EntryType = EntryTypeNote
	}
	if entry.Title == "" {
		entry.Title = DefaultEntryTitle
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	return entry
}

// Recent returns the user's entries from the last days, newest first.
func (s *JournalStore) Recent(ctx context.Context, userID string, days int) ([]JournalEntry, error) {
	if days <= 0 {
		days = 7
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	filter := bson.M{
		"user_id":    userID,
		"created_at": bson.M{"$gte": since},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find journal entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []JournalEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("decode journal entries: %w", err)
	}
	return entries, nil
}
