package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongoStore(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoStore{
		client: client,
		db:     client.Database(dbName),
	}, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) users() *mongo.Collection         { return s.db.Collection("users") }
func (s *MongoStore) vehicles() *mongo.Collection      { return s.db.Collection("vehicles") }
func (s *MongoStore) conversations() *mongo.Collection { return s.db.Collection("conversations") }

// User methods

func (s *MongoStore) CreateUser(ctx context.Context, user *User) (string, error) {
	user.ID = primitive.NilObjectID
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	res, err := s.users().InsertOne(ctx, user)
	if err != nil {
		return "", fmt.Errorf("failed to insert user: %w", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	user.ID = oid
	return oid.Hex(), nil
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := s.users().FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to query user by email: %w", err)
	}
	return &user, nil
}

func (s *MongoStore) GetUserByID(ctx context.Context, id string) (*User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil // Malformed id can never match a stored user
	}

	var user User
	err = s.users().FindOne(ctx, bson.M{"_id": oid}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query user by id: %w", err)
	}
	return &user, nil
}

// Vehicle methods

func (s *MongoStore) CreateVehicle(ctx context.Context, vehicle *Vehicle) (string, error) {
	vehicle.ID = primitive.NilObjectID
	now := time.Now()
	vehicle.CreatedAt = now
	vehicle.UpdatedAt = now
	if vehicle.Issues == nil {
		vehicle.Issues = []VehicleIssue{}
	}

	res, err := s.vehicles().InsertOne(ctx, vehicle)
	if err != nil {
		return "", fmt.Errorf("failed to insert vehicle: %w", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	vehicle.ID = oid
	return oid.Hex(), nil
}

func (s *MongoStore) GetVehicle(ctx context.Context, id string) (*Vehicle, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}

	var vehicle Vehicle
	err = s.vehicles().FindOne(ctx, bson.M{"_id": oid}).Decode(&vehicle)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query vehicle: %w", err)
	}
	return &vehicle, nil
}

func (s *MongoStore) GetVehiclesByUser(ctx context.Context, userID string) ([]Vehicle, error) {
	cursor, err := s.vehicles().Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to query vehicles: %w", err)
	}
	defer cursor.Close(ctx)

	var vehicles []Vehicle
	if err := cursor.All(ctx, &vehicles); err != nil {
		return nil, fmt.Errorf("failed to decode vehicles: %w", err)
	}
	return vehicles, nil
}

// AppendIssue assigns the issue a fresh id and atomically pushes it onto the
// vehicle's issue list. Returns "" when the vehicle no longer exists.
func (s *MongoStore) AppendIssue(ctx context.Context, vehicleID string, issue *VehicleIssue) (string, error) {
	oid, err := primitive.ObjectIDFromHex(vehicleID)
	if err != nil {
		return "", nil
	}

	issue.ID = primitive.NewObjectID().Hex()
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = time.Now()
	}
	if issue.DiagnosticCodes == nil {
		issue.DiagnosticCodes = []string{}
	}

	res, err := s.vehicles().UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{
			"$push": bson.M{"issues": issue},
			"$set":  bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to push issue: %w", err)
	}
	if res.ModifiedCount != 1 {
		return "", nil // Vehicle vanished between lookup and update
	}
	return issue.ID, nil
}

// ResolveIssue marks an embedded issue resolved with the given resolution
// text. Returns false when no matching vehicle/issue pair exists.
func (s *MongoStore) ResolveIssue(ctx context.Context, vehicleID, issueID, resolution string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(vehicleID)
	if err != nil {
		return false, nil
	}

	res, err := s.vehicles().UpdateOne(ctx,
		bson.M{"_id": oid, "issues.id": issueID},
		bson.M{"$set": bson.M{
			"issues.$.resolved":   true,
			"issues.$.resolution": resolution,
			"updated_at":          time.Now(),
		}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to resolve issue: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

// Conversation methods

func (s *MongoStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	now := time.Now()
	conv.CreatedAt = now
	conv.UpdatedAt = now
	if conv.Summaries == nil {
		conv.Summaries = map[string]string{}
	}
	if conv.Messages == nil {
		conv.Messages = []ChatMessage{}
	}

	if _, err := s.conversations().InsertOne(ctx, conv); err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}
	return nil
}

func (s *MongoStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var conv Conversation
	err := s.conversations().FindOne(ctx, bson.M{"_id": id}).Decode(&conv)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query conversation: %w", err)
	}
	return &conv, nil
}

func (s *MongoStore) AppendMessages(ctx context.Context, id string, messages ...ChatMessage) error {
	res, err := s.conversations().UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$push": bson.M{"messages": bson.M{"$each": messages}},
			"$set":  bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to push messages: %w", err)
	}
	if res.ModifiedCount != 1 {
		return fmt.Errorf("conversation %s not found", id)
	}
	return nil
}

// UpdateConversationDocuments merges the new per-file summaries into the
// conversation and bumps its chunk count. The summaries field is replaced
// wholesale: filenames contain dots, which Mongo would interpret as nesting
// if they appeared in an update path.
func (s *MongoStore) UpdateConversationDocuments(ctx context.Context, id string, chunkCount int, summaries map[string]string) error {
	conv, err := s.GetConversation(ctx, id)
	if err != nil {
		return err
	}
	if conv == nil {
		return fmt.Errorf("conversation %s not found", id)
	}

	res, err := s.conversations().UpdateOne(ctx, bson.M{"_id": id},
		conversationDocumentsUpdate(chunkCount, mergeSummaries(conv.Summaries, summaries)))
	if err != nil {
		return fmt.Errorf("failed to update conversation documents: %w", err)
	}
	if res.ModifiedCount != 1 {
		return fmt.Errorf("conversation %s not found", id)
	}
	return nil
}

func mergeSummaries(existing, updates map[string]string) map[string]string {
	merged := make(map[string]string, len(existing)+len(updates))
	for file, summary := range existing {
		merged[file] = summary
	}
	for file, summary := range updates {
		merged[file] = summary
	}
	return merged
}

// conversationDocumentsUpdate sets the summaries field as a whole document.
// Filenames must never appear inside an update path.
func conversationDocumentsUpdate(chunkCount int, summaries map[string]string) bson.M {
	return bson.M{
		"$inc": bson.M{"chunk_count": chunkCount},
		"$set": bson.M{
			"summaries":  summaries,
			"updated_at": time.Now(),
		},
	}
}
