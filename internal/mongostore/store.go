// Package mongostore is the MongoDB storage backend. Collections mirror the
// inventory, reports, requests and accounts documents of the hosted
// deployment.
package mongostore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/doublejdg/stockroom/internal/model"
)

// Collection names.
const (
	colAccounts = "accounts"
	colItems    = "inventory"
	colReports  = "reports"
	colRequests = "requests"
	colAudit    = "audit_logs"
	colSettings = "settings"
	colRevoked  = "revoked_tokens"
)

// Store is a MongoDB-backed repository.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Open connects to uri, selects database name and ensures indexes.
func Open(ctx context.Context, uri, name string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	s := &Store{client: client, db: client.Database(name)}
	if err := s.ensureIndexes(ctx); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

// Close disconnects from the server.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Drop deletes the whole database. Used by tests.
func (s *Store) Drop(ctx context.Context) error {
	return s.db.Drop(ctx)
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		colAccounts: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "role", Value: 1}}},
		},
		colReports: {
			{Keys: bson.D{{Key: "timestamp", Value: -1}}},
		},
		colRequests: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "timestamp", Value: -1}}},
			{Keys: bson.D{{Key: "requestorUsername", Value: 1}, {Key: "timestamp", Value: -1}}},
		},
		colAudit: {
			{Keys: bson.D{{Key: "timestamp", Value: -1}}},
		},
		colRevoked: {
			{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		},
	}
	for col, models := range indexes {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("creating %s indexes: %w", col, err)
		}
	}
	return nil
}

// Accounts

func (s *Store) CreateAccount(ctx context.Context, a model.Account) (*model.Account, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Collection(colAccounts).InsertOne(ctx, accountDoc{
		ID:           a.ID,
		Username:     a.Username,
		PasswordHash: a.PasswordHash,
		Name:         a.Name,
		Role:         a.Role,
		Position:     a.Position,
		ImageURI:     a.ImageURI,
		PushToken:    a.PushToken,
		CreatedAt:    a.CreatedAt,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, model.ErrDuplicateUsername
		}
		return nil, fmt.Errorf("creating account: %w", err)
	}
	return &a, nil
}

func (s *Store) GetAccountByUsername(ctx context.Context, username string) (*model.Account, error) {
	var doc accountDoc
	err := s.db.Collection(colAccounts).FindOne(ctx, bson.M{"username": username},
		options.FindOne().SetProjection(bson.M{"image": 0})).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting account by username: %w", err)
	}
	a := doc.model()
	return &a, nil
}

func (s *Store) ListAccounts(ctx context.Context, role string) ([]model.Account, error) {
	filter := bson.M{}
	if role != "" {
		filter["role"] = role
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "username", Value: 1}}).
		SetProjection(bson.M{"image": 0})

	cursor, err := s.db.Collection(colAccounts).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	var docs []accountDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding accounts: %w", err)
	}

	accounts := make([]model.Account, 0, len(docs))
	for _, d := range docs {
		accounts = append(accounts, d.model())
	}
	return accounts, nil
}

func (s *Store) UpdateAccountRole(ctx context.Context, username, role string) error {
	return s.updateAccount(ctx, "updating account role", username, bson.M{"$set": bson.M{"role": role}})
}

func (s *Store) UpdateAccountPassword(ctx context.Context, username, passwordHash string) error {
	return s.updateAccount(ctx, "updating account password", username, bson.M{"$set": bson.M{"password": passwordHash}})
}

func (s *Store) UpdatePushToken(ctx context.Context, username, token string) error {
	update := bson.M{"$set": bson.M{"pushToken": token}}
	if token == "" {
		update = bson.M{"$unset": bson.M{"pushToken": ""}}
	}
	return s.updateAccount(ctx, "updating push token", username, update)
}

func (s *Store) SetAccountImage(ctx context.Context, username, uri string, data []byte, mime string) error {
	set := bson.M{"imageUri": uri}
	unset := bson.M{}
	if data != nil {
		set["image"] = data
		set["imageMime"] = mime
	} else {
		unset["image"] = ""
		unset["imageMime"] = ""
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return s.updateAccount(ctx, "setting account image", username, update)
}

func (s *Store) GetAccountImage(ctx context.Context, username string) ([]byte, string, error) {
	var doc struct {
		Image     []byte `bson:"image"`
		ImageMIME string `bson:"imageMime"`
	}
	err := s.db.Collection(colAccounts).FindOne(ctx, bson.M{"username": username},
		options.FindOne().SetProjection(bson.M{"image": 1, "imageMime": 1})).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting account image: %w", err)
	}
	return doc.Image, doc.ImageMIME, nil
}

func (s *Store) updateAccount(ctx context.Context, op, username string, update bson.M) error {
	result, err := s.db.Collection(colAccounts).UpdateOne(ctx, bson.M{"username": username}, update)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if result.MatchedCount == 0 {
		return model.ErrAccountNotFound
	}
	return nil
}

// Items

func (s *Store) CreateItem(ctx context.Context, item model.Item) (*model.Item, error) {
	if item.Quantity < 0 {
		return nil, fmt.Errorf("quantity must not be negative")
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	if item.Date == "" {
		item.Date = item.CreatedAt.Format(model.DateLayout)
	}
	if item.Unit == "" {
		item.Unit = model.DefaultUnit
	}
	if item.Prices == nil {
		item.Prices = model.Prices{}
	}
	item.Category = model.NormalizeCategory(item.Category)

	doc, err := newItemDoc(item)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.Collection(colItems).InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}
	return &item, nil
}

func (s *Store) GetItem(ctx context.Context, id string) (*model.Item, error) {
	var doc itemDoc
	err := s.db.Collection(colItems).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	item, err := doc.model()
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListItems(ctx context.Context) ([]model.Item, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}, {Key: "createdAt", Value: 1}}).
		SetCollation(&options.Collation{Locale: "en", Strength: 2})

	cursor, err := s.db.Collection(colItems).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	var docs []itemDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding items: %w", err)
	}

	items := make([]model.Item, 0, len(docs))
	for _, d := range docs {
		item, err := d.model()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// AdjustItemQuantity applies delta in a single conditional update that only
// matches while the result stays non-negative.
func (s *Store) AdjustItemQuantity(ctx context.Context, id string, delta int) (*model.Item, error) {
	filter := bson.M{"_id": id, "quantity": bson.M{"$gte": -delta}}
	update := bson.M{
		"$inc": bson.M{"quantity": delta},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc itemDoc
	err := s.db.Collection(colItems).FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		n, err := s.db.Collection(colItems).CountDocuments(ctx, bson.M{"_id": id})
		if err != nil {
			return nil, fmt.Errorf("checking item: %w", err)
		}
		if n == 0 {
			return nil, model.ErrItemNotFound
		}
		return nil, model.ErrInsufficientStock
	}
	if err != nil {
		return nil, fmt.Errorf("adjusting quantity: %w", err)
	}

	item, err := doc.model()
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Reports

func (s *Store) AppendReport(ctx context.Context, r model.Report) (*model.Report, error) {
	if r.Quantity <= 0 {
		return nil, fmt.Errorf("report quantity must be positive")
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.Date == "" {
		r.Date = r.CreatedAt.Format(model.DateLayout)
	}

	doc, err := newReportDoc(r)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.Collection(colReports).InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("appending report: %w", err)
	}
	return &r, nil
}

func (s *Store) ListReports(ctx context.Context) ([]model.Report, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})

	cursor, err := s.db.Collection(colReports).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	var docs []reportDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding reports: %w", err)
	}

	reports := make([]model.Report, 0, len(docs))
	for _, d := range docs {
		r, err := d.model()
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, nil
}

// Requests

func (s *Store) CreateRequest(ctx context.Context, r model.Request) (*model.Request, error) {
	if r.Quantity <= 0 {
		return nil, model.ErrInvalidQuantity
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	r.UpdatedAt = r.CreatedAt
	r.Status = model.StatusPending

	if _, err := s.db.Collection(colRequests).InsertOne(ctx, newRequestDoc(r)); err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	return &r, nil
}

func (s *Store) GetRequest(ctx context.Context, id string) (*model.Request, error) {
	var doc requestDoc
	err := s.db.Collection(colRequests).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting request: %w", err)
	}
	r := doc.model()
	return &r, nil
}

func (s *Store) ListRequests(ctx context.Context, filter model.RequestFilter) ([]model.Request, error) {
	query := bson.M{}
	if len(filter.Statuses) > 0 {
		query["status"] = bson.M{"$in": filter.Statuses}
	}
	if filter.RequestorUsername != "" {
		query["requestorUsername"] = filter.RequestorUsername
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})

	cursor, err := s.db.Collection(colRequests).Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("listing requests: %w", err)
	}
	var docs []requestDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding requests: %w", err)
	}

	requests := make([]model.Request, 0, len(docs))
	for _, d := range docs {
		requests = append(requests, d.model())
	}
	return requests, nil
}

// TransitionRequest is a compare-and-swap on the request status.
func (s *Store) TransitionRequest(ctx context.Context, id, from, to, decidedBy string) (*model.Request, error) {
	if !model.CanTransition(from, to) {
		return nil, model.ErrInvalidTransition
	}

	set := bson.M{"status": to, "updatedAt": time.Now().UTC()}
	if decidedBy != "" {
		set["decidedBy"] = decidedBy
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc requestDoc
	err := s.db.Collection(colRequests).FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": from}, bson.M{"$set": set}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		existing, err := s.GetRequest(ctx, id)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, model.ErrRequestNotFound
		}
		return nil, model.ErrInvalidTransition
	}
	if err != nil {
		return nil, fmt.Errorf("transitioning request: %w", err)
	}
	r := doc.model()
	return &r, nil
}

// Audit log

func (s *Store) AppendAudit(ctx context.Context, entry model.AuditLog) (*model.AuditLog, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if _, err := s.db.Collection(colAudit).InsertOne(ctx, auditDoc(entry)); err != nil {
		return nil, fmt.Errorf("appending audit log: %w", err)
	}
	return &entry, nil
}

func (s *Store) ListAudit(ctx context.Context, limit int) ([]model.AuditLog, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.db.Collection(colAudit).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("listing audit logs: %w", err)
	}
	var docs []auditDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding audit logs: %w", err)
	}

	entries := make([]model.AuditLog, 0, len(docs))
	for _, d := range docs {
		entries = append(entries, model.AuditLog(d))
	}
	return entries, nil
}

// Settings and tokens

// JWTSecret returns the signing secret, generating and storing one on
// first use. The upsert only inserts, so concurrent starts agree.
func (s *Store) JWTSecret(ctx context.Context) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}

	settings := s.db.Collection(colSettings)
	_, err := settings.UpdateOne(ctx,
		bson.M{"_id": "jwt_secret"},
		bson.M{"$setOnInsert": bson.M{"value": hex.EncodeToString(buf)}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return "", fmt.Errorf("storing jwt_secret: %w", err)
	}

	var doc struct {
		Value string `bson:"value"`
	}
	if err := settings.FindOne(ctx, bson.M{"_id": "jwt_secret"}).Decode(&doc); err != nil {
		return "", fmt.Errorf("querying jwt_secret: %w", err)
	}
	return doc.Value, nil
}

// RevokeToken adds a token's JTI to the revocation list. Entries expire
// through a TTL index.
func (s *Store) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	_, err := s.db.Collection(colRevoked).UpdateOne(ctx,
		bson.M{"_id": jti},
		bson.M{"$setOnInsert": bson.M{"expiresAt": expiresAt}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	return nil
}

// IsTokenRevoked checks if a token's JTI has been revoked.
func (s *Store) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.db.Collection(colRevoked).CountDocuments(ctx, bson.M{"_id": jti})
	if err != nil {
		return false, fmt.Errorf("checking token revocation: %w", err)
	}
	return n > 0, nil
}
