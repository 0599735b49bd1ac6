package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog/log"
)

const createProfilesTable = `
CREATE TABLE IF NOT EXISTS user_profiles (
	user_id    TEXT PRIMARY KEY,
	profile    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore keeps one JSONB profile document per user id.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects using the BLUEPRINT_DB_* environment
// variables and ensures the profiles table exists.
func NewPostgresStore(ctx context.Context) (*PostgresStore, error) {
	var (
		database = os.Getenv("BLUEPRINT_DB_DATABASE")
		password = os.Getenv("BLUEPRINT_DB_PASSWORD")
		username = os.Getenv("BLUEPRINT_DB_USERNAME")
		port     = os.Getenv("BLUEPRINT_DB_PORT")
		host     = os.Getenv("BLUEPRINT_DB_HOST")
		schema   = os.Getenv("BLUEPRINT_DB_SCHEMA")
	)

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		username, password, host, port, database, schema)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if _, err := pool.Exec(ctx, createProfilesTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure user_profiles table: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// GetContext loads the stored profile row, falling back to a fresh
// default profile when the row is missing or undecodable.
func (s *PostgresStore) GetContext(ctx context.Context, userID string) *UserProfile {
	key := SanitizeUserID(userID)

	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT profile FROM user_profiles WHERE user_id = $1`, key).Scan(&raw)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			log.Error().Err(err).Str("user_id", key).Msg("Failed to load user profile, using default")
		}
		return DefaultProfile(userID)
	}

	var profile UserProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		log.Error().Err(err).Str("user_id", key).Msg("Corrupt user profile row, using default")
		return DefaultProfile(userID)
	}
	return &profile
}

// SaveInteraction appends one interaction, truncates the history and
// upserts the profile document.
func (s *PostgresStore) SaveInteraction(ctx context.Context, userID, query, response string, metadata map[string]any) error {
	profile := s.GetContext(ctx, userID)
	if metadata == nil {
		metadata = map[string]any{}
	}

	profile.History = append(profile.History, Interaction{
		Timestamp: time.Now().UTC(),
		Query:     query,
		Response:  response,
		Metadata:  metadata,
	})
	if len(profile.History) > HistoryLimit {
		profile.History = profile.History[len(profile.History)-HistoryLimit:]
	}
	profile.UpdatedAt = time.Now().UTC()

	return s.persist(ctx, userID, profile)
}

// UpdateProfile merges partial updates and upserts the result.
func (s *PostgresStore) UpdateProfile(ctx context.Context, userID string, updates ProfileUpdate) error {
	profile := s.GetContext(ctx, userID)
	profile.Apply(updates)
	return s.persist(ctx, userID, profile)
}

func (s *PostgresStore) persist(ctx context.Context, userID string, profile *UserProfile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("marshal user profile: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO user_profiles (user_id, profile, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id)
		DO UPDATE SET profile = EXCLUDED.profile, updated_at = now()`,
		SanitizeUserID(userID), raw)
	if err != nil {
		return fmt.Errorf("upsert user profile: %w", err)
	}
	return nil
}

// Health checks the connection and reports pool statistics.
func (s *PostgresStore) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := map[string]string{"backend": "postgres"}

	if err := s.pool.Ping(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	poolStats := s.pool.Stat()
	stats["status"] = "up"
	stats["total_conns"] = strconv.Itoa(int(poolStats.TotalConns()))
	stats["idle_conns"] = strconv.Itoa(int(poolStats.IdleConns()))
	stats["acquired_conns"] = strconv.Itoa(int(poolStats.AcquiredConns()))
	stats["max_conns"] = strconv.Itoa(int(poolStats.MaxConns()))
	stats["acquire_count"] = strconv.FormatInt(poolStats.AcquireCount(), 10)

	if poolStats.AcquiredConns() > (poolStats.MaxConns() * 8 / 10) { // 80% capacity
		stats["message"] = "The profile store connection pool is experiencing heavy load."
	}
	return stats
}

// Close closes the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
