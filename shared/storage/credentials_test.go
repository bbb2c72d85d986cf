package storage

import (
	"errors"
	"testing"

	"viral-finder/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()

	kv, err := Open("file", dir)
	require.NoError(t, err)
	creds := NewCredentialStore(kv)

	loaded, err := creds.Load()
	require.NoError(t, err)
	assert.Equal(t, models.CredentialPair{}, loaded)

	require.NoError(t, creds.SaveYouTubeKey("yt-123"))
	require.NoError(t, creds.SaveGeminiKey("gm-456"))

	kv2, err := Open("file", dir)
	require.NoError(t, err)
	reloaded, err := NewCredentialStore(kv2).Load()
	require.NoError(t, err)

	assert.Equal(t, models.CredentialPair{YouTubeAPIKey: "yt-123", GeminiAPIKey: "gm-456"}, reloaded)
}

type failingStore struct{}

func (failingStore) Get(string) (string, bool, error) { return "", false, errors.New("disk on fire") }
func (failingStore) Set(string, string) error { return errors.New("disk on fire") }
func (failingStore) Close() error { return nil }

func TestCredentialStoreErrors(t *testing.T) {
	creds := NewCredentialStore(failingStore{})

	_, err := creds.Load()
	assert.ErrorContains(t, err, "disk on fire")
	assert.Error(t, creds.SaveYouTubeKey("x"))
}
