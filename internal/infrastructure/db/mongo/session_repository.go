package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kodbank/banking-api/internal/core/domain"
)

const sessionsCollection = "user_tokens"

// SessionRepository implements ports.SessionRepository using MongoDB.
type SessionRepository struct {
	coll *mongo.Collection
}

func NewSessionRepository(db *mongo.Database) *SessionRepository {
	return &SessionRepository{coll: db.Collection(sessionsCollection)}
}

type mongoSession struct {
	ID        string    `bson:"_id"`
	Token     string    `bson:"token"`
	UserID    string    `bson:"uid"`
	ExpiresAt time.Time `bson:"expiry"`
	CreatedAt time.Time `bson:"created_at"`
}

func (r *SessionRepository) Create(ctx context.Context, s *domain.Session) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.coll.InsertOne(ctx, mongoSession{
		ID:        s.ID,
		Token:     s.Token,
		UserID:    s.UserID,
		ExpiresAt: s.ExpiresAt.UTC(),
		CreatedAt: s.CreatedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *SessionRepository) FindByID(ctx context.Context, id string) (*domain.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var ms mongoSession
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&ms); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("find session: %w", err)
	}

	return &domain.Session{
		ID:        ms.ID,
		Token:     ms.Token,
		UserID:    ms.UserID,
		ExpiresAt: ms.ExpiresAt.UTC(),
		CreatedAt: ms.CreatedAt.UTC(),
	}, nil
}

// DeleteExpired removes records whose expiry passed. The TTL index normally
// drops records past the retention window on its own; they are matched here
// too because the TTL monitor only runs about once a minute.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time, retention time.Duration) (int64, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"expiry": bson.M{"$lte": now.UTC()}},
		bson.M{"created_at": bson.M{"$lt": now.Add(-retention).UTC()}},
	}}

	res, err := r.coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.DeletedCount, nil
}

const (
	ttlIndexName = "ttl_created_at"

	// indexOptionsConflict is returned when an index exists under the same
	// name with different options.
	indexOptionsConflict = 85
)

// EnsureIndexes creates lookup indexes and the TTL index that expunges
// records retention after creation. An existing TTL index with another
// expiry is updated in place.
func (r *SessionRepository) EnsureIndexes(ctx context.Context, retention time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "uid", Value: 1}}},
		{Keys: bson.D{{Key: "expiry", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create session indexes: %w", err)
	}

	seconds := int32(retention.Seconds())
	_, err = r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "created_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(seconds).SetName(ttlIndexName),
	})
	var se mongo.ServerError
	if errors.As(err, &se) && se.HasErrorCode(indexOptionsConflict) {
		err = r.coll.Database().RunCommand(ctx, bson.D{
			{Key: "collMod", Value: r.coll.Name()},
			{Key: "index", Value: bson.D{
				{Key: "name", Value: ttlIndexName},
				{Key: "expireAfterSeconds", Value: seconds},
			}},
		}).Err()
	}
	if err != nil {
		return fmt.Errorf("ensure session ttl index: %w", err)
	}
	return nil
}
