package reportsink

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/gaborage/go-bricks-lazyload/config"
	"github.com/gaborage/go-bricks-lazyload/lazyload"
	"github.com/gaborage/go-bricks-lazyload/logger"
)

const mongoConnectTimeout = 10 * time.Second

type inserter interface {
	InsertOne(ctx context.Context, document any, opts ...options.Lister[options.InsertOneOptions]) (*mongo.InsertOneResult, error)
}

// MongoSink stores each report as one document.
type MongoSink struct {
	coll    inserter
	service string
	now     func() time.Time
	client  *mongo.Client
}

var _ lazyload.Sink = (*MongoSink)(nil)

// NewMongoSink writes into coll.
func NewMongoSink(coll inserter, service string) *MongoSink {
	return &MongoSink{coll: coll, service: service, now: time.Now}
}

// ConnectMongo connects to cfg.URI and verifies the primary is reachable.
// The returned sink owns the client; call Close on shutdown.
func ConnectMongo(ctx context.Context, cfg *config.MongoSinkConfig, service string, log logger.Logger) (*MongoSink, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		if closeErr := client.Disconnect(ctx); closeErr != nil {
			log.Error().Err(closeErr).Msg("Failed to disconnect MongoDB client after ping failure")
		}
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	log.Info().
		Str("database", cfg.Database).
		Str("collection", cfg.Collection).
		Msg("MongoDB report sink connected")

	s := NewMongoSink(client.Database(cfg.Database).Collection(cfg.Collection), service)
	s.client = client
	return s, nil
}

// Publish inserts report.
func (s *MongoSink) Publish(ctx context.Context, report lazyload.Report) error {
	doc := NewDocument(s.service, report, s.now())
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to store report %s: %w", doc.ID, err)
	}
	return nil
}

// Close disconnects the client opened by ConnectMongo.
func (s *MongoSink) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}
