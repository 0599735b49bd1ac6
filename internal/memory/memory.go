/*
Package memory persists per-user coaching profiles and a rolling
conversation history. Storage is pluggable: a JSON-file backend is the
default, with a Postgres backend selectable through MEMORY_BACKEND.
*/
package memory

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"time"
)

// HistoryLimit caps the number of interactions kept per user. Older
// entries are dropped from the front when the cap is exceeded.
const HistoryLimit = 50

// Interaction is one completed user turn. Immutable once appended.
type Interaction struct {
	Timestamp time.Time      `json:"timestamp"`
	Query     string         `json:"query"`
	Response  string         `json:"response"`
	Metadata  map[string]any `json:"metadata"`
}

// Preferences holds the workout-related settings a user can tune.
type Preferences struct {
	WorkoutDuration  int    `json:"workout_duration"`
	WorkoutFrequency int    `json:"workout_frequency"`
	Equipment        string `json:"equipment"`
}

// UserProfile is the persistence unit, one per user identifier.
type UserProfile struct {
	UserID       string        `json:"user_id"`
	FitnessLevel string        `json:"fitness_level"`
	Goals        []string      `json:"goals"`
	Restrictions []string      `json:"restrictions"`
	Preferences  Preferences   `json:"preferences"`
	History      []Interaction `json:"history"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// DefaultProfile returns the profile a user conceptually starts with.
// Lookups of unknown users yield this, never an error.
func DefaultProfile(userID string) *UserProfile {
	return &UserProfile{
		UserID:       userID,
		FitnessLevel: "beginner",
		Goals:        []string{},
		Restrictions: []string{},
		Preferences: Preferences{
			WorkoutDuration:  30,
			WorkoutFrequency: 3,
			Equipment:        "bodyweight",
		},
		History:   []Interaction{},
		CreatedAt: time.Now().UTC(),
	}
}

// Clone returns an independent copy so callers can read the profile
// without sharing slices with the store's cache.
func (p *UserProfile) Clone() *UserProfile {
	cp := *p
	cp.Goals = append([]string(nil), p.Goals...)
	cp.Restrictions = append([]string(nil), p.Restrictions...)
	cp.History = append([]Interaction(nil), p.History...)
	return &cp
}

// ProfileUpdate carries a partial profile change. Nil fields are left
// untouched by Apply.
type ProfileUpdate struct {
	FitnessLevel *string            `json:"fitness_level,omitempty"`
	Goals        []string           `json:"goals,omitempty"`
	Restrictions []string           `json:"restrictions,omitempty"`
	Preferences  *PreferencesUpdate `json:"preferences,omitempty"`
}

// PreferencesUpdate mirrors Preferences with optional fields.
type PreferencesUpdate struct {
	WorkoutDuration  *int    `json:"workout_duration,omitempty"`
	WorkoutFrequency *int    `json:"workout_frequency,omitempty"`
	Equipment        *string `json:"equipment,omitempty"`
}

// Apply merges the update into the profile and stamps UpdatedAt.
func (p *UserProfile) Apply(u ProfileUpdate) {
	if u.FitnessLevel != nil {
		p.FitnessLevel = *u.FitnessLevel
	}
	if u.Goals != nil {
		p.Goals = u.Goals
	}
	if u.Restrictions != nil {
		p.Restrictions = u.Restrictions
	}
	if u.Preferences != nil {
		if u.Preferences.WorkoutDuration != nil {
			p.Preferences.WorkoutDuration = *u.Preferences.WorkoutDuration
		}
		if u.Preferences.WorkoutFrequency != nil {
			p.Preferences.WorkoutFrequency = *u.Preferences.WorkoutFrequency
		}
		if u.Preferences.Equipment != nil {
			p.Preferences.Equipment = *u.Preferences.Equipment
		}
	}
	p.UpdatedAt = time.Now().UTC()
}

// Store is the persistence boundary used by the coaching pipeline.
type Store interface {
	// GetContext loads the user's profile, returning a fresh default
	// when nothing is stored. It never fails from the caller's view.
	GetContext(ctx context.Context, userID string) *UserProfile

	// SaveInteraction appends one interaction, truncates history to
	// the HistoryLimit most recent entries and persists synchronously.
	SaveInteraction(ctx context.Context, userID, query, response string, metadata map[string]any) error

	// UpdateProfile merges partial updates into the stored profile.
	UpdateProfile(ctx context.Context, userID string, updates ProfileUpdate) error

	// Health returns a map of backend health information.
	Health() map[string]string

	// Close releases any backend resources.
	Close()
}

var unsafeIDChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// SanitizeUserID reduces a user identifier to a filesystem- and
// key-safe form so one user can never address another user's record.
func SanitizeUserID(userID string) string {
	cleaned := unsafeIDChars.ReplaceAllString(userID, "_")
	if cleaned == "" || cleaned == "." || cleaned == ".." {
		return "anonymous"
	}
	return cleaned
}

// NewFromEnv builds the store selected by MEMORY_BACKEND. The file
// backend is the default; "postgres" switches to the pgx-backed store.
func NewFromEnv(ctx context.Context) (Store, error) {
	switch backend := os.Getenv("MEMORY_BACKEND"); backend {
	case "", "file":
		dir := os.Getenv("MEMORY_DIR")
		if dir == "" {
			dir = "data"
		}
		return NewFileStore(dir)
	case "postgres":
		return NewPostgresStore(ctx)
	default:
		return nil, fmt.Errorf("unknown memory backend %q", backend)
	}
}
