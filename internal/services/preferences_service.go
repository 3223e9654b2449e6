// Package services holds thin orchestration layers between handlers and the
// storage interfaces.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/atticlabs/attic/internal/storage"
	"github.com/atticlabs/attic/pkg/types"
)

// Preference defaults applied when an owner has never saved preferences.
const (
	DefaultTimezone   = "UTC"
	DefaultDigestHour = 9
)

// PreferencesService manages per-owner preferences with defaults and partial
// updates. A preferences row is never required to exist.
type PreferencesService struct {
	store storage.PreferencesStore
}

// NewPreferencesService creates a new PreferencesService.
func NewPreferencesService(store storage.PreferencesStore) *PreferencesService {
	return &PreferencesService{store: store}
}

// Get returns the owner's preferences, falling back to defaults when none
// were ever saved.
func (s *PreferencesService) Get(ctx context.Context, ownerID string) (*types.OwnerPreferences, error) {
	prefs, err := s.store.GetPreferences(ctx, ownerID)
	if errors.Is(err, storage.ErrNotFound) {
		return &types.OwnerPreferences{
			OwnerID:    ownerID,
			Timezone:   DefaultTimezone,
			DigestHour: DefaultDigestHour,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}
	if prefs.Timezone == "" {
		prefs.Timezone = DefaultTimezone
	}
	return prefs, nil
}

// PreferencesUpdate carries a partial preferences change. Nil fields are left
// untouched.
type PreferencesUpdate struct {
	Timezone    *string `json:"timezone,omitempty"`
	WebhookURL  *string `json:"webhook_url,omitempty"`
	DigestHour  *int    `json:"digest_hour,omitempty"`
	DisplayName *string `json:"display_name,omitempty"`
}

// Update applies a partial update over the stored (or default) preferences
// and persists the result.
func (s *PreferencesService) Update(ctx context.Context, ownerID string, update PreferencesUpdate) (*types.OwnerPreferences, error) {
	prefs, err := s.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	if update.Timezone != nil {
		prefs.Timezone = *update.Timezone
	}
	if update.WebhookURL != nil {
		prefs.WebhookURL = *update.WebhookURL
	}
	if update.DigestHour != nil {
		prefs.DigestHour = *update.DigestHour
	}
	if update.DisplayName != nil {
		prefs.DisplayName = *update.DisplayName
	}

	if err := s.store.SavePreferences(ctx, prefs); err != nil {
		return nil, err
	}
	return prefs, nil
}
