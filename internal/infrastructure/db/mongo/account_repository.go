package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/advcontrato/account-service/internal/core/domain"
	"github.com/advcontrato/account-service/internal/core/ports"
	"github.com/advcontrato/account-service/internal/pkg/metrics"
)

// DefaultAccountsCollection is the collection holding account documents.
const DefaultAccountsCollection = "users"

const (
	emailIndexName = "uniq_email"
	keyIndexName   = "uniq_key"
)

var _ ports.AccountRepository = (*AccountRepository)(nil)

// AccountRepository implements ports.AccountRepository using MongoDB.
type AccountRepository struct {
	coll *mongo.Collection
}

// NewAccountRepository binds the repository to the named collection, falling
// back to DefaultAccountsCollection when name is empty.
func NewAccountRepository(db *mongo.Database, name string) *AccountRepository {
	if name == "" {
		name = DefaultAccountsCollection
	}
	return &AccountRepository{coll: db.Collection(name)}
}

type accountDocument struct {
	ID            string     `bson:"_id"`
	Email         string     `bson:"email"`
	Key           string     `bson:"key"`
	Activated     bool       `bson:"activated"`
	KeyExpiration *time.Time `bson:"key_expiration,omitempty"`
	CreatedAt     int64      `bson:"created_at"`
	UpdatedAt     int64      `bson:"updated_at"`
}

func toDocument(a *domain.Account) accountDocument {
	doc := accountDocument{
		ID:        a.ID,
		Email:     a.Email,
		Key:       a.Key,
		Activated: a.Activated,
		CreatedAt: a.CreatedAt.Unix(),
		UpdatedAt: a.UpdatedAt.Unix(),
	}
	if !a.KeyExpiration.IsZero() {
		exp := a.KeyExpiration.UTC()
		doc.KeyExpiration = &exp
	}
	return doc
}

func (d accountDocument) toDomain() *domain.Account {
	a := &domain.Account{
		ID:        d.ID,
		Email:     d.Email,
		Key:       d.Key,
		Activated: d.Activated,
		CreatedAt: unixToTime(d.CreatedAt),
		UpdatedAt: unixToTime(d.UpdatedAt),
	}
	if d.KeyExpiration != nil {
		a.KeyExpiration = d.KeyExpiration.UTC()
	}
	return a
}

// Create inserts a new account document.
func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	defer observe("create", time.Now())

	if _, err := r.coll.InsertOne(ctx, toDocument(account)); err != nil {
		if dup := duplicateError(err); dup != nil {
			return dup
		}
		return storeError("insert account", err)
	}
	return nil
}

func (r *AccountRepository) FindByKey(ctx context.Context, key string) (*domain.Account, error) {
	defer observe("find_by_key", time.Now())
	return r.findOne(ctx, bson.M{"key": key})
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	defer observe("find_by_email", time.Now())
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *AccountRepository) FindByCredentials(ctx context.Context, email, key string) (*domain.Account, error) {
	defer observe("find_by_credentials", time.Now())
	return r.findOne(ctx, bson.M{"email": email, "key": key})
}

// FindAll returns every account in natural store order.
func (r *AccountRepository) FindAll(ctx context.Context) ([]*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	defer observe("find_all", time.Now())

	cur, err := r.coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, storeError("list accounts", err)
	}
	defer cur.Close(ctx)

	var docs []accountDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, storeError("decode accounts", err)
	}

	accounts := make([]*domain.Account, 0, len(docs))
	for _, d := range docs {
		accounts = append(accounts, d.toDomain())
	}
	return accounts, nil
}

// Activate sets activated=true only on a still-unactivated document, so
// concurrent activations of the same account cannot both succeed.
func (r *AccountRepository) Activate(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	defer observe("activate", time.Now())

	filter := bson.M{"_id": id, "activated": false}
	update := bson.M{"$set": bson.M{"activated": true, "updated_at": time.Now().UTC().Unix()}}

	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, storeError("activate account", err)
	}
	return res.ModifiedCount == 1, nil
}

// ResetKey stores key, clears activated and drops key_expiration.
func (r *AccountRepository) ResetKey(ctx context.Context, id, key string) error {
	defer observe("reset_key", time.Now())

	changed := bson.M{"$or": bson.A{
		bson.M{"key": bson.M{"$ne": key}},
		bson.M{"activated": true},
		bson.M{"key_expiration": bson.M{"$exists": true}},
	}}
	update := bson.M{
		"$set":   bson.M{"key": key, "activated": false, "updated_at": time.Now().UTC().Unix()},
		"$unset": bson.M{"key_expiration": ""},
	}
	return r.updateByID(ctx, id, changed, update, "reset key")
}

func (r *AccountRepository) Deactivate(ctx context.Context, id string) error {
	defer observe("deactivate", time.Now())

	update := bson.M{"$set": bson.M{"activated": false, "updated_at": time.Now().UTC().Unix()}}
	return r.updateByID(ctx, id, bson.M{"activated": true}, update, "deactivate account")
}

func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	defer observe("delete", time.Now())

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return storeError("delete account", err)
	}
	if res.DeletedCount != 1 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// EnsureIndexes creates the unique indexes that make email and key
// uniqueness authoritative.
func (r *AccountRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName(emailIndexName).SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "key", Value: 1}},
			Options: options.Index().SetName(keyIndexName).SetUnique(true),
		},
	}

	if _, err := r.coll.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("create account indexes: %w", err)
	}
	return nil
}

func (r *AccountRepository) findOne(ctx context.Context, filter bson.M) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc accountDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, storeError("find account", err)
	}
	return doc.toDomain(), nil
}

// updateByID applies update to the document with the given id, but only
// while changed also matches, so updated_at moves only on a real change. When
// nothing matched, a lookup on the id tells ErrAccountNotFound apart from
// ErrAccountUnchanged.
func (r *AccountRepository) updateByID(ctx context.Context, id string, changed, update bson.M, op string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"_id": id}
	for k, v := range changed {
		filter[k] = v
	}

	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		if dup := duplicateError(err); dup != nil {
			return dup
		}
		return storeError(op, err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	err = r.coll.FindOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	switch {
	case err == nil:
		return domain.ErrAccountUnchanged
	case errors.Is(err, mongo.ErrNoDocuments):
		return domain.ErrAccountNotFound
	default:
		return storeError(op, err)
	}
}

// duplicateError maps a unique-index violation to the matching domain error,
// or returns nil when err is not a duplicate key error.
func duplicateError(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, emailIndexName), strings.Contains(msg, "email_1"):
		return domain.ErrDuplicateEmail
	default:
		return domain.ErrDuplicateKey
	}
}

func storeError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}

func observe(op string, start time.Time) {
	metrics.StoreOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func unixToTime(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}
