// Package submissions keeps the audit log of draft submissions.
package submissions

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Entry is one submit attempt.
type Entry struct {
	DraftID     string    `bson:"draftId" json:"draftId"`
	Mode        string    `bson:"mode" json:"mode"`
	RecordID    string    `bson:"recordId,omitempty" json:"recordId,omitempty"`
	Title       string    `bson:"title" json:"title"`
	Owner       string    `bson:"owner,omitempty" json:"owner,omitempty"`
	Status      string    `bson:"status" json:"status"`
	Error       string    `bson:"error,omitempty" json:"error,omitempty"`
	ArchiveKey  string    `bson:"archiveKey,omitempty" json:"archiveKey,omitempty"`
	SubmittedAt time.Time `bson:"submittedAt" json:"submittedAt"`
}

// Store records entries and lists the latest ones.
type Store interface {
	Record(ctx context.Context, e Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	// Get returns nil, nil when draftID has no entry.
	Get(ctx context.Context, draftID string) (*Entry, error)
}

// MongoStore persists entries in a collection. Record upserts by draftId so a
// failed attempt followed by a successful one leaves the final outcome.
type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(col *mongo.Collection) *MongoStore {
	return &MongoStore{col: col}
}

func (s *MongoStore) Record(ctx context.Context, e Entry) error {
	if e.DraftID == "" {
		return errors.New("submission entry without draft id")
	}
	opts := options.Update().SetUpsert(true)
	if _, err := s.col.UpdateOne(ctx, bson.M{"draftId": e.DraftID}, bson.M{"$set": e}, opts); err != nil {
		return fmt.Errorf("save submission: %w", err)
	}
	return nil
}

func (s *MongoStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "submittedAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []Entry{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) Get(ctx context.Context, draftID string) (*Entry, error) {
	var e Entry
	if err := s.col.FindOne(ctx, bson.M{"draftId": draftID}).Decode(&e); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// MemoryStore keeps the most recent entries in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	max     int
	entries map[string]Entry
}

// NewMemoryStore keeps at most max entries (<= 0 means 500).
func NewMemoryStore(max int) *MemoryStore {
	if max <= 0 {
		max = 500
	}
	return &MemoryStore{max: max, entries: map[string]Entry{}}
}

func (s *MemoryStore) Record(_ context.Context, e Entry) error {
	if e.DraftID == "" {
		return errors.New("submission entry without draft id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.DraftID] = e
	if len(s.entries) > s.max {
		oldest := ""
		for id, x := range s.entries {
			if oldest == "" || x.SubmittedAt.Before(s.entries[oldest].SubmittedAt) {
				oldest = id
			}
		}
		delete(s.entries, oldest)
	}
	return nil
}

func (s *MemoryStore) Recent(_ context.Context, limit int) ([]Entry, error) {
	s.mu.RLock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, draftID string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[draftID]
	if !ok {
		return nil, nil
	}
	return &e, nil
}
