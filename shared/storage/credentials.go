package storage

import (
	"fmt"

	"viral-finder/internal/models"
)

const (
	youTubeKeyName = "youtube_api_key"
	geminiKeyName  = "gemini_api_key"
)

// CredentialStore persists the session's API key pair under fixed names.
type CredentialStore struct {
	kv KeyValueStore
}

func NewCredentialStore(kv KeyValueStore) *CredentialStore {
	return &CredentialStore{kv: kv}
}

func (c *CredentialStore) Load() (models.CredentialPair, error) {
	var creds models.CredentialPair

	youtubeKey, _, err := c.kv.Get(youTubeKeyName)
	if err != nil {
		return creds, fmt.Errorf("failed to load YouTube key: %w", err)
	}
	geminiKey, _, err := c.kv.Get(geminiKeyName)
	if err != nil {
		return creds, fmt.Errorf("failed to load Gemini key: %w", err)
	}

	creds.YouTubeAPIKey = youtubeKey
	creds.GeminiAPIKey = geminiKey
	return creds, nil
}

func (c *CredentialStore) SaveYouTubeKey(key string) error {
	return c.kv.Set(youTubeKeyName, key)
}

func (c *CredentialStore) SaveGeminiKey(key string) error {
	return c.kv.Set(geminiKeyName, key)
}
