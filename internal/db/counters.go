package db

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const countersCollection = "counters"

type counterDoc struct {
	Name  string `bson:"_id"`
	Value int64  `bson:"value"`
}

// Counters hands out monotonically increasing numeric IDs per sequence name,
// backed by an atomic $inc on a counters collection.
type Counters struct {
	collection *mongo.Collection
}

func NewCounters(db *mongo.Database) *Counters {
	return &Counters{collection: db.Collection(countersCollection)}
}

// Next returns the next value of the named sequence, creating it at 1.
func (c *Counters) Next(ctx context.Context, name string) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc counterDoc
	err := c.collection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"value": int64(1)}},
		opts,
	).Decode(&doc)
	if err != nil {
		return 0, err
	}
	return doc.Value, nil
}
