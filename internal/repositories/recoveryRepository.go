package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"memberport/internal/models"
)

// RecoveryRepository persists password recovery records. A record is
// "pending" while verified_at and used_at are unset; at most one pending
// record per member exists because Replace clears the rest first.
type RecoveryRepository interface {
	// Replace deletes every pending record for the member and inserts rec.
	Replace(ctx context.Context, userID primitive.ObjectID, rec *models.RecoveryRecord) (*models.RecoveryRecord, error)

	// FindActivePending returns the newest unexpired pending record, or nil.
	FindActivePending(ctx context.Context, userID primitive.ObjectID) (*models.RecoveryRecord, error)

	// FindActiveVerified returns the newest verified record whose reset
	// token is still inside its window and has not been used, or nil.
	FindActiveVerified(ctx context.Context, userID primitive.ObjectID) (*models.RecoveryRecord, error)

	IncrementAttempts(ctx context.Context, recordID primitive.ObjectID) error

	// MarkVerified stamps verified_at and stores the reset token hash and
	// window. It only matches a record that is still pending, so two
	// concurrent verifications cannot both succeed.
	MarkVerified(ctx context.Context, recordID primitive.ObjectID, tokenHash string, tokenExpires time.Time) (bool, error)

	// MarkUsed stamps used_at. It only matches a record not yet used.
	MarkUsed(ctx context.Context, recordID primitive.ObjectID) (bool, error)

	// DeleteOthers removes every record of the member except keepID.
	DeleteOthers(ctx context.Context, userID primitive.ObjectID, keepID primitive.ObjectID) error

	// DeleteExpired sweeps records that are dead by time or terminal.
	DeleteExpired(ctx context.Context) (int64, error)
}

type recoveryRepository struct {
	collection *mongo.Collection
}

func NewRecoveryRepository(db *mongo.Database) RecoveryRepository {
	return &recoveryRepository{collection: db.Collection("password_reset_otps")}
}

func (r *recoveryRepository) Replace(ctx context.Context, userID primitive.ObjectID, rec *models.RecoveryRecord) (*models.RecoveryRecord, error) {
	filter := bson.M{"user_id": userID, "verified_at": nil, "used_at": nil}
	if _, err := r.collection.DeleteMany(ctx, filter); err != nil {
		return nil, err
	}

	rec.ID = primitive.NewObjectID()
	rec.UserID = userID
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt
	_, err := r.collection.InsertOne(ctx, rec)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *recoveryRepository) FindActivePending(ctx context.Context, userID primitive.ObjectID) (*models.RecoveryRecord, error) {
	filter := bson.M{
		"user_id":     userID,
		"verified_at": nil,
		"used_at":     nil,
		"expires_at":  bson.M{"$gt": time.Now()},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var rec models.RecoveryRecord
	err := r.collection.FindOne(ctx, filter, opts).Decode(&rec)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (r *recoveryRepository) FindActiveVerified(ctx context.Context, userID primitive.ObjectID) (*models.RecoveryRecord, error) {
	filter := bson.M{
		"user_id":             userID,
		"verified_at":         bson.M{"$ne": nil},
		"used_at":             nil,
		"reset_token_expires": bson.M{"$gt": time.Now()},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var rec models.RecoveryRecord
	err := r.collection.FindOne(ctx, filter, opts).Decode(&rec)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (r *recoveryRepository) IncrementAttempts(ctx context.Context, recordID primitive.ObjectID) error {
	filter := bson.M{"_id": recordID}
	update := bson.M{
		"$inc": bson.M{"attempts": 1},
		"$set": bson.M{"updated_at": time.Now()},
	}
	_, err := r.collection.UpdateOne(ctx, filter, update)
	return err
}

func (r *recoveryRepository) MarkVerified(ctx context.Context, recordID primitive.ObjectID, tokenHash string, tokenExpires time.Time) (bool, error) {
	now := time.Now()
	filter := bson.M{"_id": recordID, "verified_at": nil, "used_at": nil}
	update := bson.M{"$set": bson.M{
		"verified_at":         now,
		"reset_token_hash":    tokenHash,
		"reset_token_expires": tokenExpires,
		"updated_at":          now,
	}}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return result.ModifiedCount > 0, nil
}

func (r *recoveryRepository) MarkUsed(ctx context.Context, recordID primitive.ObjectID) (bool, error) {
	now := time.Now()
	filter := bson.M{"_id": recordID, "used_at": nil}
	update := bson.M{"$set": bson.M{"used_at": now, "updated_at": now}}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return result.ModifiedCount > 0, nil
}

func (r *recoveryRepository) DeleteOthers(ctx context.Context, userID primitive.ObjectID, keepID primitive.ObjectID) error {
	filter := bson.M{"user_id": userID, "_id": bson.M{"$ne": keepID}}
	_, err := r.collection.DeleteMany(ctx, filter)
	return err
}

func (r *recoveryRepository) DeleteExpired(ctx context.Context) (int64, error) {
	now := time.Now()
	filter := bson.M{"$or": bson.A{
		bson.M{"verified_at": nil, "expires_at": bson.M{"$lt": now}},
		bson.M{"verified_at": bson.M{"$ne": nil}, "used_at": nil, "reset_token_expires": bson.M{"$lt": now}},
		bson.M{"used_at": bson.M{"$ne": nil}},
	}}
	result, err := r.collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}
