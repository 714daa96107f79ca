package db

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"podcast-brain/pkg/domain"
)

// DefaultTranscriptCollection is the Mongo collection holding archived transcripts.
const DefaultTranscriptCollection = "podcast_transcripts"

// MongoArchive stores transcription results in MongoDB so podcasts can be
// re-indexed without transcribing again.
type MongoArchive struct {
	mongoClient *mongo.Client
	database    *mongo.Database
	collection  *mongo.Collection
}

// NewMongoArchive creates a new archive client
func NewMongoArchive(connectionString, databaseName, collectionName string) *MongoArchive {
	if collectionName == "" {
		collectionName = DefaultTranscriptCollection
	}

	clientOptions := options.Client().ApplyURI(connectionString)
	mongoClient, err := mongo.Connect(context.Background(), clientOptions)
	if err != nil {
		// Return client with nil - error will be caught during Connect()
		return &MongoArchive{}
	}

	database := mongoClient.Database(databaseName)
	collection := database.Collection(collectionName)

	return &MongoArchive{
		mongoClient: mongoClient,
		database:    database,
		collection:  collection,
	}
}

// Connect verifies the connection to MongoDB
func (c *MongoArchive) Connect(ctx context.Context) error {
	if c.mongoClient == nil {
		return fmt.Errorf("mongo client not initialized")
	}
	return c.mongoClient.Ping(ctx, nil)
}

// Close closes the MongoDB connection
func (c *MongoArchive) Close(ctx context.Context) error {
	if c.mongoClient == nil {
		return nil
	}
	return c.mongoClient.Disconnect(ctx)
}

// SaveTranscript upserts a transcript keyed by podcast ID.
func (c *MongoArchive) SaveTranscript(ctx context.Context, t *domain.PodcastTranscript) error {
	if c.collection == nil {
		return fmt.Errorf("collection not initialized")
	}
	if t.PodcastID == "" {
		return fmt.Errorf("%w: transcript has no podcast id", domain.ErrValidation)
	}

	filter := bson.M{"podcast_id": t.PodcastID}
	update := bson.M{"$set": t}
	opts := options.Update().SetUpsert(true)

	if _, err := c.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return persistErr("save transcript", err)
	}
	return nil
}

// GetTranscript returns the archived transcript for podcastID.
func (c *MongoArchive) GetTranscript(ctx context.Context, podcastID string) (*domain.PodcastTranscript, error) {
	if c.collection == nil {
		return nil, fmt.Errorf("collection not initialized")
	}

	var t domain.PodcastTranscript
	err := c.collection.FindOne(ctx, bson.M{"podcast_id": podcastID}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("transcript %s: %w", podcastID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, persistErr("get transcript", err)
	}
	return &t, nil
}

// ListTranscripts returns every archived transcript owned by userID, or
// all of them when userID is empty.
func (c *MongoArchive) ListTranscripts(ctx context.Context, userID string) ([]domain.PodcastTranscript, error) {
	if c.collection == nil {
		return nil, fmt.Errorf("collection not initialized")
	}

	filter := bson.M{}
	if userID != "" {
		filter["user_id"] = userID
	}

	cursor, err := c.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "transcribed_at", Value: 1}}))
	if err != nil {
		return nil, persistErr("list transcripts", err)
	}
	defer cursor.Close(ctx)

	var out []domain.PodcastTranscript
	for cursor.Next(ctx) {
		var t domain.PodcastTranscript
		if err := cursor.Decode(&t); err != nil {
			continue // Skip invalid documents
		}
		out = append(out, t)
	}
	if err := cursor.Err(); err != nil {
		return nil, persistErr("cursor", err)
	}
	return out, nil
}

// ExistingPodcastIDs returns the set of podcast IDs with an archived transcript.
func (c *MongoArchive) ExistingPodcastIDs(ctx context.Context) (map[string]bool, error) {
	if c.collection == nil {
		return nil, fmt.Errorf("collection not initialized")
	}

	// Query to get only the podcast_id field from all documents
	cursor, err := c.collection.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"podcast_id": 1, "_id": 0}))
	if err != nil {
		return nil, persistErr("query podcast ids", err)
	}
	defer cursor.Close(ctx)

	ids := make(map[string]bool)
	for cursor.Next(ctx) {
		var result struct {
			PodcastID string `bson:"podcast_id"`
		}
		if err := cursor.Decode(&result); err != nil {
			continue
		}
		if result.PodcastID != "" {
			ids[result.PodcastID] = true
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, persistErr("cursor", err)
	}
	return ids, nil
}
