package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
)

// profileCacheSize bounds how many parsed profiles stay in memory.
const profileCacheSize = 256

// FileStore keeps one JSON document per user under a data directory.
// An LRU cache in front of the disk skips re-parsing hot profiles.
type FileStore struct {
	dir   string
	cache *lru.Cache[string, *UserProfile]
}

// NewFileStore creates the data directory if needed and returns a
// ready store.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create memory dir: %w", err)
	}
	cache, err := lru.New[string, *UserProfile](profileCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create profile cache: %w", err)
	}
	return &FileStore{dir: dir, cache: cache}, nil
}

func (s *FileStore) userFile(userID string) string {
	return filepath.Join(s.dir, "user_"+SanitizeUserID(userID)+".json")
}

// GetContext loads the user's profile from cache or disk, falling back
// to a fresh default profile on any miss or read failure.
func (s *FileStore) GetContext(_ context.Context, userID string) *UserProfile {
	key := SanitizeUserID(userID)
	if cached, ok := s.cache.Get(key); ok {
		return cached.Clone()
	}

	path := s.userFile(userID)
	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Error().Err(err).Str("user_id", key).Msg("Failed to read user profile, using default")
		}
		return DefaultProfile(userID)
	}

	var profile UserProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		log.Error().Err(err).Str("user_id", key).Msg("Corrupt user profile on disk, using default")
		return DefaultProfile(userID)
	}

	s.cache.Add(key, profile.Clone())
	return &profile
}

// SaveInteraction appends one interaction and writes the profile back
// synchronously. History is truncated to the most recent HistoryLimit
// entries before the write.
func (s *FileStore) SaveInteraction(ctx context.Context, userID, query, response string, metadata map[string]any) error {
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

	return s.persist(userID, profile)
}

// UpdateProfile merges partial updates and writes the result back.
func (s *FileStore) UpdateProfile(ctx context.Context, userID string, updates ProfileUpdate) error {
	profile := s.GetContext(ctx, userID)
	profile.Apply(updates)
	return s.persist(userID, profile)
}

func (s *FileStore) persist(userID string, profile *UserProfile) error {
	raw, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal user profile: %w", err)
	}
	if err := os.WriteFile(s.userFile(userID), raw, 0o644); err != nil {
		return fmt.Errorf("write user profile: %w", err)
	}
	s.cache.Add(SanitizeUserID(userID), profile.Clone())
	return nil
}

// Health reports the backend status and how many profiles are stored.
func (s *FileStore) Health() map[string]string {
	stats := map[string]string{
		"status":  "up",
		"backend": "file",
		"dir":     s.dir,
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("memory dir unreadable: %v", err)
		return stats
	}

	profiles := 0
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
			profiles++
		}
	}
	stats["profiles"] = strconv.Itoa(profiles)
	stats["cached"] = strconv.Itoa(s.cache.Len())
	return stats
}

// Close purges the cache. The file backend holds no open handles.
func (s *FileStore) Close() {
	s.cache.Purge()
}
