package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/ports"
)

// ProfileCache keeps the last known patient profile under the "profile" key.
type ProfileCache struct {
	mu    sync.Mutex
	store ports.BlobStore
}

func NewProfileCache(store ports.BlobStore) *ProfileCache {
	return &ProfileCache{store: store}
}

// Load returns the cached profile, empty when none was saved.
func (c *ProfileCache) Load(ctx context.Context) (map[string]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(ctx)
}

// Update merges patch into the cached profile. Nil values remove a field.
func (c *ProfileCache) Update(ctx context.Context, patch map[string]any) (map[string]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	profile, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	for k, v := range patch {
		if v == nil {
			delete(profile, k)
			continue
		}
		profile[k] = v
	}

	data, err := json.Marshal(profile)
	if err != nil {
		return nil, fmt.Errorf("failed to encode profile: %w", err)
	}
	if err := c.store.Put(ctx, domain.StoreKeyProfile, data); err != nil {
		return nil, fmt.Errorf("failed to persist profile: %w", err)
	}
	return maps.Clone(profile), nil
}

// Remember merges the non-null fields of a submitted profile.
func (c *ProfileCache) Remember(ctx context.Context, p domain.Profile) (map[string]any, error) {
	patch := map[string]any{}
	set := func(k string, v any) { patch[k] = v }
	if p.FullName != nil {
		set(domain.KeyFullName, *p.FullName)
	}
	if p.Age != nil {
		set(domain.KeyAge, *p.Age)
	}
	if p.Gender != nil {
		set(domain.KeyGender, *p.Gender)
	}
	if p.Conditions != nil {
		set(domain.KeyConditions, *p.Conditions)
	}
	if p.Allergies != nil {
		set(domain.KeyAllergies, *p.Allergies)
	}
	if p.Medications != nil {
		set(domain.KeyMedications, *p.Medications)
	}
	return c.Update(ctx, patch)
}

func (c *ProfileCache) load(ctx context.Context) (map[string]any, error) {
	data, err := c.store.Get(ctx, domain.StoreKeyProfile)
	if errors.Is(err, domain.ErrNotFound) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	profile := map[string]any{}
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	if profile == nil {
		profile = map[string]any{}
	}
	return profile, nil
}
