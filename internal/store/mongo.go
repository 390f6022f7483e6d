package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	DefaultMongoURI        = "mongodb://127.0.0.1:27017"
	DefaultMongoDatabase   = "remote_desktop_monitor"
	DefaultMongoCollection = "scan_reports"

	maxSequenceRetries = 3
)

// MongoStore uses the sequence id as the document _id, so the unique index on
// _id rejects a second writer that raced for the same id.
type MongoStore struct {
	uri        string
	database   string
	collection string

	client *mongo.Client
	coll   *mongo.Collection

	mu   sync.Mutex
	next uint64
}

type findingDocument struct {
	Source    string    `bson:"source"`
	Matched   bool      `bson:"matched"`
	Items     []string  `bson:"items,omitempty"`
	Severity  string    `bson:"severity"`
	Detail    string    `bson:"detail"`
	Timestamp time.Time `bson:"timestamp"`
}

type reportDocument struct {
	Sequence    uint64                  `bson:"_id"`
	Identity    models.EndpointIdentity `bson:"identity"`
	Status      string                  `bson:"status"`
	Severity    string                  `bson:"severity"`
	Findings    []findingDocument       `bson:"findings"`
	SubmittedAt time.Time               `bson:"submittedAt"`
	ReceivedAt  time.Time               `bson:"receivedAt"`
}

func NewMongoStore(uri, database, collection string) *MongoStore {
	if uri == "" {
		uri = DefaultMongoURI
	}
	if database == "" {
		database = DefaultMongoDatabase
	}
	if collection == "" {
		collection = DefaultMongoCollection
	}
	return &MongoStore{
		uri:        uri,
		database:   database,
		collection: collection,
	}
}

func (s *MongoStore) Connect(ctx context.Context) error {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(s.uri))
	if err != nil {
		return fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return fmt.Errorf("mongo ping: %w", err)
	}

	coll := client.Database(s.database).Collection(s.collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "identity.id", Value: 1}, {Key: "_id", Value: -1}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return fmt.Errorf("mongo index: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.client = client
	s.coll = coll
	return s.loadNextLocked(ctx)
}

func (s *MongoStore) loadNextLocked(ctx context.Context) error {
	var last reportDocument
	err := s.coll.FindOne(ctx, bson.D{}, options.FindOne().SetSort(bson.D{{Key: "_id", Value: -1}})).Decode(&last)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		s.next = 1
	case err != nil:
		return fmt.Errorf("mongo load sequence: %w", err)
	default:
		s.next = last.Sequence + 1
	}
	return nil
}

func (s *MongoStore) Append(ctx context.Context, report models.ClientReport, receivedAt time.Time) (models.StoredReport, error) {
	if err := validateForAppend(report); err != nil {
		return models.StoredReport{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.coll == nil {
		return models.StoredReport{}, ErrNotConnected
	}

	for attempt := 0; attempt < maxSequenceRetries; attempt++ {
		stored := models.StoredReport{Sequence: s.next, Report: report, ReceivedAt: receivedAt}

		_, err := s.coll.InsertOne(ctx, toDocument(stored))
		if mongo.IsDuplicateKeyError(err) {
			if lerr := s.loadNextLocked(ctx); lerr != nil {
				return models.StoredReport{}, lerr
			}
			continue
		}
		if err != nil {
			return models.StoredReport{}, fmt.Errorf("mongo insert: %w", err)
		}

		s.next++
		return stored, nil
	}

	return models.StoredReport{}, fmt.Errorf("mongo insert: sequence contention after %d attempts", maxSequenceRetries)
}

func (s *MongoStore) HistoryFor(ctx context.Context, identityID string, limit int) ([]models.StoredReport, error) {
	return s.find(ctx, bson.D{{Key: "identity.id", Value: identityID}}, limit)
}

func (s *MongoStore) All(ctx context.Context, limit int) ([]models.StoredReport, error) {
	return s.find(ctx, bson.D{}, limit)
}

func (s *MongoStore) find(ctx context.Context, filter bson.D, limit int) ([]models.StoredReport, error) {
	coll, err := s.collectionOrErr()
	if err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo find: %w", err)
	}

	var docs []reportDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo decode: %w", err)
	}
	return fromDocuments(docs)
}

func (s *MongoStore) LatestPerIdentity(ctx context.Context) ([]models.StoredReport, error) {
	coll, err := s.collectionOrErr()
	if err != nil {
		return nil, err
	}

	pipeline := mongo.Pipeline{
		{{Key: "$sort", Value: bson.D{{Key: "identity.id", Value: 1}, {Key: "submittedAt", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$identity.id"}, {Key: "doc", Value: bson.D{{Key: "$first", Value: "$$ROOT"}}}}}},
		{{Key: "$replaceRoot", Value: bson.D{{Key: "newRoot", Value: "$doc"}}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: -1}}}},
	}

	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("mongo aggregate: %w", err)
	}

	var docs []reportDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo decode: %w", err)
	}
	return fromDocuments(docs)
}

func (s *MongoStore) HealthCheck(ctx context.Context) error {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()

	if client == nil {
		return ErrNotConnected
	}
	return client.Ping(ctx, readpref.Primary())
}

func (s *MongoStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.client.Disconnect(ctx)
	s.client = nil
	s.coll = nil
	return err
}

func (s *MongoStore) collectionOrErr() (*mongo.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.coll == nil {
		return nil, ErrNotConnected
	}
	return s.coll, nil
}

func toDocument(stored models.StoredReport) reportDocument {
	r := stored.Report
	doc := reportDocument{
		Sequence:    stored.Sequence,
		Status:      string(r.Status),
		Severity:    r.Severity.String(),
		Findings:    make([]findingDocument, 0, len(r.Findings)),
		SubmittedAt: r.SubmittedAt,
		ReceivedAt:  stored.ReceivedAt,
	}
	if r.Identity != nil {
		doc.Identity = *r.Identity
	}
	for _, f := range r.Findings {
		doc.Findings = append(doc.Findings, findingDocument{
			Source:    string(f.Source),
			Matched:   f.Matched,
			Items:     f.Items,
			Severity:  f.Severity.String(),
			Detail:    f.Detail,
			Timestamp: f.Timestamp,
		})
	}
	return doc
}

func fromDocuments(docs []reportDocument) ([]models.StoredReport, error) {
	out := make([]models.StoredReport, 0, len(docs))
	for _, doc := range docs {
		stored, err := fromDocument(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, stored)
	}
	return out, nil
}

func fromDocument(doc reportDocument) (models.StoredReport, error) {
	severity, err := models.ParseSeverity(doc.Severity)
	if err != nil {
		return models.StoredReport{}, fmt.Errorf("report %d: %w", doc.Sequence, err)
	}

	identity := doc.Identity
	report := models.ClientReport{
		Identity:    &identity,
		Status:      models.ReportStatus(doc.Status),
		Severity:    severity,
		Findings:    make([]models.DetectionFinding, 0, len(doc.Findings)),
		SubmittedAt: doc.SubmittedAt,
	}

	for _, f := range doc.Findings {
		fs, err := models.ParseSeverity(f.Severity)
		if err != nil {
			return models.StoredReport{}, fmt.Errorf("report %d finding: %w", doc.Sequence, err)
		}
		report.Findings = append(report.Findings, models.DetectionFinding{
			Source:    models.SourceKind(f.Source),
			Matched:   f.Matched,
			Items:     f.Items,
			Severity:  fs,
			Detail:    f.Detail,
			Timestamp: f.Timestamp,
		})
	}

	return models.StoredReport{Sequence: doc.Sequence, Report: report, ReceivedAt: doc.ReceivedAt}, nil
}
