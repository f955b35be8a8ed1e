package ml

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// AttributionTracker accumulates the attributions the service has served,
// giving a live view of which columns drive production scores.
type AttributionTracker struct {
	mu       sync.RWMutex
	stats    map[string]*AttributionStats
	savePath string
}

// AttributionStats contains running statistics for a single column.
type AttributionStats struct {
	Name        string    `json:"name"`
	MeanAbs     float64   `json:"mean_abs"`
	MeanSigned  float64   `json:"mean_signed"`
	MaxAbs      float64   `json:"max_abs"`
	Count       int64     `json:"count"`
	LastUpdated time.Time `json:"last_updated"`
}

// NewAttributionTracker creates a tracker. savePath may be empty, in which
// case Save and Load do nothing.
func NewAttributionTracker(savePath string) *AttributionTracker {
	return &AttributionTracker{
		stats:    make(map[string]*AttributionStats),
		savePath: savePath,
	}
}

// Observe folds one explanation into the running means.
func (at *AttributionTracker) Observe(explanation map[string]float64) {
	at.mu.Lock()
	defer at.mu.Unlock()

	now := time.Now()
	for name, v := range explanation {
		if math.IsNaN(v) {
			continue
		}
		s, ok := at.stats[name]
		if !ok {
			s = &AttributionStats{Name: name}
			at.stats[name] = s
		}
		s.Count++
		n := float64(s.Count)
		abs := math.Abs(v)
		s.MeanAbs += (abs - s.MeanAbs) / n
		s.MeanSigned += (v - s.MeanSigned) / n
		s.MaxAbs = math.Max(s.MaxAbs, abs)
		s.LastUpdated = now
	}
}

// Top returns the n columns with the largest mean absolute attribution.
// Ties break by name.
func (at *AttributionTracker) Top(n int) []AttributionStats {
	at.mu.RLock()
	out := make([]AttributionStats, 0, len(at.stats))
	for _, s := range at.stats {
		out = append(out, *s)
	}
	at.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].MeanAbs != out[j].MeanAbs {
			return out[i].MeanAbs > out[j].MeanAbs
		}
		return out[i].Name < out[j].Name
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Save writes the statistics to the save path.
func (at *AttributionTracker) Save() error {
	if at.savePath == "" {
		return nil
	}

	at.mu.RLock()
	data, err := json.MarshalIndent(at.stats, "", "  ")
	columns := len(at.stats)
	at.mu.RUnlock()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(at.savePath), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(at.savePath, data, 0o644); err != nil {
		return err
	}
	log.Debug().Str("path", at.savePath).Int("columns", columns).Msg("Served attributions saved")
	return nil
}

// Load restores statistics written by Save. A missing file is not an error.
func (at *AttributionTracker) Load() error {
	if at.savePath == "" {
		return nil
	}
	data, err := os.ReadFile(at.savePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	stats := make(map[string]*AttributionStats)
	if err := json.Unmarshal(data, &stats); err != nil {
		return err
	}

	at.mu.Lock()
	at.stats = stats
	at.mu.Unlock()
	return nil
}
