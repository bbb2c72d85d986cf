package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// VideoTracker remembers which videos already went out in a watch digest so the
// next run does not report them again.
type VideoTracker struct {
	filePath    string
	reportedIDs map[string]time.Time
	mu          sync.RWMutex
	maxAge      time.Duration
	now         func() time.Time
}

// TrackedVideo represents a video that has been reported
type TrackedVideo struct {
	VideoID    string    `json:"video_id"`
	ReportedAt time.Time `json:"reported_at"`
}

func NewVideoTracker(dataDir string, maxAge time.Duration) (*VideoTracker, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	tracker := &VideoTracker{
		filePath:    filepath.Join(dataDir, "reported_videos.json"),
		reportedIDs: make(map[string]time.Time),
		maxAge:      maxAge,
		now:         time.Now,
	}

	if err := tracker.load(); err != nil {
		return nil, fmt.Errorf("failed to load video tracker data: %w", err)
	}

	tracker.cleanup()

	return tracker, nil
}

// IsReported reports whether videoID went out within maxAge.
func (vt *VideoTracker) IsReported(videoID string) bool {
	vt.mu.RLock()
	defer vt.mu.RUnlock()

	reportedAt, exists := vt.reportedIDs[videoID]
	if !exists {
		return false
	}
	return vt.now().Sub(reportedAt) < vt.maxAge
}

// MarkReported records all ids with the current time and persists the set.
func (vt *VideoTracker) MarkReported(videoIDs []string) error {
	vt.mu.Lock()
	defer vt.mu.Unlock()

	now := vt.now()
	for _, videoID := range videoIDs {
		vt.reportedIDs[videoID] = now
	}
	vt.cleanup()
	return vt.save()
}

func (vt *VideoTracker) Count() int {
	vt.mu.RLock()
	defer vt.mu.RUnlock()
	return len(vt.reportedIDs)
}

func (vt *VideoTracker) cleanup() {
	cutoff := vt.now().Add(-vt.maxAge)

	for videoID, reportedAt := range vt.reportedIDs {
		if reportedAt.Before(cutoff) {
			delete(vt.reportedIDs, videoID)
		}
	}
}

func (vt *VideoTracker) load() error {
	file, err := os.Open(vt.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open tracker file: %w", err)
	}
	defer file.Close()

	var trackedVideos []TrackedVideo
	if err := json.NewDecoder(file).Decode(&trackedVideos); err != nil {
		return fmt.Errorf("failed to decode tracker data: %w", err)
	}

	for _, tv := range trackedVideos {
		vt.reportedIDs[tv.VideoID] = tv.ReportedAt
	}

	return nil
}

func (vt *VideoTracker) save() error {
	trackedVideos := make([]TrackedVideo, 0, len(vt.reportedIDs))
	for videoID, reportedAt := range vt.reportedIDs {
		trackedVideos = append(trackedVideos, TrackedVideo{
			VideoID:    videoID,
			ReportedAt: reportedAt,
		})
	}

	file, err := os.Create(vt.filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(trackedVideos)
}
