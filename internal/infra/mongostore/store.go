// Package mongostore implements domain.Store on MongoDB.
// Counters are updated with $inc and aggregation-pipeline updates so
// concurrent writers never lose increments, even across processes.
package mongostore

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/piucane/piucane/internal/domain"
)

const (
	colProfiles      = "profiles"
	colMissions      = "mission_progress"
	colRewards       = "rewards"
	colDDA           = "dda_states"
	colBadges        = "badges"
	colNotifications = "notifications"
	colCounters      = "counters"
)

// Config selects the MongoDB deployment and database.
type Config struct {
	URI      string
	Database string // empty: taken from the URI path, else "piucane"
	Timeout  time.Duration
}

// Store is a MongoDB-backed domain.Store.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ domain.Store = (*Store)(nil)

// Open connects, pings and ensures indexes.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(cctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	name := cfg.Database
	if name == "" {
		name = databaseFromURI(cfg.URI)
	}
	s := &Store{client: client, db: client.Database(name)}
	if err := s.ensureIndexes(cctx); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}
	log.Printf("[mongo] using database %s", name)
	return s, nil
}

// databaseFromURI returns the path component of uri, or "piucane".
func databaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return "piucane"
	}
	if name := strings.TrimPrefix(u.Path, "/"); name != "" {
		return name
	}
	return "piucane"
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		colMissions: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "last_active_at", Value: -1}}},
		},
		colRewards: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "earned_at", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "expires_at", Value: 1}}},
		},
		colNotifications: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "seq", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}
	for col, models := range indexes {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("%s: %w", col, err)
		}
	}
	return nil
}

// Ping checks connectivity to the primary.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Drop deletes the whole database. Used by tests.
func (s *Store) Drop(ctx context.Context) error {
	return s.db.Drop(ctx)
}

func (s *Store) col(name string) *mongo.Collection {
	return s.db.Collection(name)
}
