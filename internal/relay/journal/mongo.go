package journal

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	attemptsCollection   = "delivery_attempts"
	deadLetterCollection = "dead_letters"
)

// MongoJournal stores delivery history in MongoDB.
type MongoJournal struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoJournal connects to MongoDB and prepares the journal
// collections.
func NewMongoJournal(ctx context.Context, uri, dbName string) (*MongoJournal, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	j := &MongoJournal{
		client: client,
		db:     client.Database(dbName),
	}
	j.ensureIndexes(ctx)
	return j, nil
}

func (j *MongoJournal) ensureIndexes(ctx context.Context) {
	attempts := j.db.Collection(attemptsCollection)
	attempts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "report_id", Value: 1}, {Key: "subscription_id", Value: 1}}},
		{Keys: bson.D{{Key: "at", Value: -1}}},
	})

	letters := j.db.Collection(deadLetterCollection)
	letters.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "report_id", Value: 1}, {Key: "subscription_id", Value: 1}},
	})
}

// RecordAttempt implements Journal.
func (j *MongoJournal) RecordAttempt(ctx context.Context, attempt *Attempt) error {
	if attempt.At.IsZero() {
		attempt.At = time.Now()
	}
	_, err := j.db.Collection(attemptsCollection).InsertOne(ctx, attempt)
	return err
}

// RecordDeadLetter implements Journal.
func (j *MongoJournal) RecordDeadLetter(ctx context.Context, letter *DeadLetter) error {
	if letter.At.IsZero() {
		letter.At = time.Now()
	}
	_, err := j.db.Collection(deadLetterCollection).InsertOne(ctx, letter)
	return err
}

// Close disconnects from MongoDB.
func (j *MongoJournal) Close(ctx context.Context) error {
	return j.client.Disconnect(ctx)
}
