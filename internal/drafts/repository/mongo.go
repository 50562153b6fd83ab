package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tradexpert/whatsnew-admin/internal/drafts"
	"github.com/tradexpert/whatsnew-admin/internal/whatsnew"
	"github.com/tradexpert/whatsnew-admin/pkg/logger"
)

// record is the stored shape of a draft. Documents are kept as their JSON
// wire form so that arbitrary server-owned fields survive unchanged.
type record struct {
	ID        string    `bson:"_id"`
	Mode      string    `bson:"mode"`
	RecordID  string    `bson:"recordId,omitempty"`
	Owner     string    `bson:"owner,omitempty"`
	Document  string    `bson:"document"`
	History   []string  `bson:"history"`
	Version   int64     `bson:"version"`
	InFlight  bool      `bson:"inFlight"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
	ExpiresAt time.Time `bson:"expiresAt"`
}

func toRecord(d *drafts.Draft) (*record, error) {
	doc, err := json.Marshal(d.Document)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	hist := make([]string, 0, len(d.History))
	for _, h := range d.History {
		b, err := json.Marshal(h)
		if err != nil {
			return nil, fmt.Errorf("encode history: %w", err)
		}
		hist = append(hist, string(b))
	}
	return &record{
		ID: d.ID, Mode: string(d.Mode), RecordID: d.RecordID, Owner: d.Owner,
		Document: string(doc), History: hist, Version: d.Version, InFlight: d.InFlight,
		CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt, ExpiresAt: d.ExpiresAt,
	}, nil
}

func (r *record) toDraft() (*drafts.Draft, error) {
	d := &drafts.Draft{
		ID: r.ID, Mode: drafts.Mode(r.Mode), RecordID: r.RecordID, Owner: r.Owner,
		Version: r.Version, InFlight: r.InFlight,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt, ExpiresAt: r.ExpiresAt,
	}
	if err := json.Unmarshal([]byte(r.Document), &d.Document); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	for _, h := range r.History {
		var doc whatsnew.Document
		if err := json.Unmarshal([]byte(h), &doc); err != nil {
			return nil, fmt.Errorf("decode history: %w", err)
		}
		d.History = append(d.History, doc)
	}
	return d, nil
}

// MongoRepo implements Repository on a MongoDB collection. A TTL index on
// expiresAt lets the server purge abandoned drafts.
type MongoRepo struct {
	col *mongo.Collection
}

func NewMongoRepo(ctx context.Context, col *mongo.Collection) *MongoRepo {
	idx := mongo.IndexModel{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)}
	if _, err := col.Indexes().CreateOne(ctx, idx); err != nil {
		logger.Warnf("drafts: could not create TTL index: %v", err)
	}
	return &MongoRepo{col: col}
}

func (m *MongoRepo) Create(ctx context.Context, d *drafts.Draft) error {
	rec, err := toRecord(d)
	if err != nil {
		return err
	}
	_, err = m.col.InsertOne(ctx, rec)
	return err
}

func (m *MongoRepo) Get(ctx context.Context, id string) (*drafts.Draft, error) {
	var rec record
	if err := m.col.FindOne(ctx, bson.M{"_id": id}).Decode(&rec); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, drafts.ErrNotFound
		}
		return nil, err
	}
	d, err := rec.toDraft()
	if err != nil {
		return nil, err
	}
	// the TTL monitor runs about once a minute
	if d.Expired(time.Now()) {
		return nil, drafts.ErrNotFound
	}
	return d, nil
}

func (m *MongoRepo) Update(ctx context.Context, d *drafts.Draft, prev int64) error {
	rec, err := toRecord(d)
	if err != nil {
		return err
	}
	set := bson.M{
		"document":  rec.Document,
		"history":   rec.History,
		"version":   rec.Version,
		"updatedAt": rec.UpdatedAt,
		"expiresAt": rec.ExpiresAt,
	}
	res, err := m.col.UpdateOne(ctx, bson.M{"_id": d.ID, "version": prev, "inFlight": false}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 1 {
		return nil
	}
	cur, err := m.Get(ctx, d.ID)
	if err != nil {
		return err
	}
	if cur.InFlight {
		return drafts.ErrInFlight
	}
	return drafts.ErrConflict
}

func (m *MongoRepo) Delete(ctx context.Context, id string) error {
	res, err := m.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return drafts.ErrNotFound
	}
	return nil
}

func (m *MongoRepo) ClaimSubmit(ctx context.Context, id string) (*drafts.Draft, error) {
	var rec record
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := m.col.FindOneAndUpdate(ctx, bson.M{"_id": id, "inFlight": false}, bson.M{"$set": bson.M{"inFlight": true}}, opts).Decode(&rec)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}
		if _, gerr := m.Get(ctx, id); gerr != nil {
			return nil, gerr
		}
		return nil, drafts.ErrInFlight
	}
	return rec.toDraft()
}

func (m *MongoRepo) ReleaseSubmit(ctx context.Context, id string) error {
	_, err := m.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"inFlight": false}})
	return err
}
