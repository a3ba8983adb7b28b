// Package favorites keeps each user's favorite clinical guidelines in a
// pluggable key-value store, so the conversation core never touches the
// storage backend directly.
package favorites

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by a KV when the key is absent.
var ErrNotFound = errors.New("favorites: not found")

// KV is the minimal storage contract. Implementations decide durability;
// the service treats the store as opaque.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Guideline is one saved clinical guideline reference.
type Guideline struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Organization string    `json:"organization"`
	Category     string    `json:"category"`
	AddedAt      time.Time `json:"addedAt"`
}

// Service manages a user's favorite guidelines as a single JSON list
// per user.
type Service struct {
	kv  KV
	now func() time.Time
}

// NewService creates a favorites service backed by the given KV.
func NewService(kv KV) *Service {
	if kv == nil {
		panic("favorites: kv store required")
	}
	return &Service{kv: kv, now: time.Now}
}

func favoritesKey(userID string) string {
	return fmt.Sprintf("favorites:%s", userID)
}

// List returns the user's favorites, empty when none are saved.
func (s *Service) List(ctx context.Context, userID string) ([]Guideline, error) {
	data, err := s.kv.Get(ctx, favoritesKey(userID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var list []Guideline
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("favorites: failed to decode list: %w", err)
	}
	return list, nil
}

// Add saves a guideline to the user's favorites and returns it with ID
// and AddedAt filled in. Adding a guideline whose ID is already present
// is a no-op and returns the stored copy.
func (s *Service) Add(ctx context.Context, userID string, g Guideline) (Guideline, error) {
	list, err := s.List(ctx, userID)
	if err != nil {
		return Guideline{}, err
	}
	if g.ID != "" {
		for _, have := range list {
			if have.ID == g.ID {
				return have, nil
			}
		}
	} else {
		g.ID = uuid.NewString()
	}
	if g.AddedAt.IsZero() {
		g.AddedAt = s.now()
	}
	if err := s.save(ctx, userID, append(list, g)); err != nil {
		return Guideline{}, err
	}
	return g, nil
}

// Remove drops a guideline from the user's favorites. Removing the last
// one deletes the key entirely.
func (s *Service) Remove(ctx context.Context, userID, guidelineID string) error {
	list, err := s.List(ctx, userID)
	if err != nil {
		return err
	}
	kept := list[:0]
	for _, g := range list {
		if g.ID != guidelineID {
			kept = append(kept, g)
		}
	}
	if len(kept) == 0 {
		return s.kv.Delete(ctx, favoritesKey(userID))
	}
	return s.save(ctx, userID, kept)
}

// IsFavorite reports whether the guideline is in the user's favorites.
func (s *Service) IsFavorite(ctx context.Context, userID, guidelineID string) (bool, error) {
	list, err := s.List(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, g := range list {
		if g.ID == guidelineID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) save(ctx context.Context, userID string, list []Guideline) error {
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("favorites: failed to encode list: %w", err)
	}
	return s.kv.Set(ctx, favoritesKey(userID), data)
}
