package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// MongoConfig holds the catalog database settings.
type MongoConfig struct {
	URL            string
	Database       string
	ConnectTimeout time.Duration
}

// Mongo owns the client for the catalog database.
type Mongo struct {
	client   *mongo.Client
	database string
	logger   *zap.Logger

	mu     sync.Mutex
	closed bool
}

// NewMongo connects and pings the primary.
func NewMongo(ctx context.Context, cfg MongoConfig, logger *zap.Logger) (*Mongo, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("mongo url is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("mongo database is required")
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	connCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connCtx, options.Client().ApplyURI(cfg.URL).SetTimeout(cfg.ConnectTimeout))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	logger.Info("mongo connection established", zap.String("database", cfg.Database))
	return &Mongo{client: client, database: cfg.Database, logger: logger}, nil
}

// Database returns the configured catalog database.
func (m *Mongo) Database() *mongo.Database {
	return m.client.Database(m.database)
}

func (m *Mongo) HealthCheck(ctx context.Context) error {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return fmt.Errorf("mongo client is closed")
	}
	hcCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return m.client.Ping(hcCtx, readpref.Primary())
}

func (m *Mongo) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.logger.Info("closing mongo client")
	if err := m.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongo: %w", err)
	}
	return nil
}
