package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"replypilot/internal/models"
)

// influencerSource mirrors the human-edited YAML file.
type influencerSource struct {
	Influencers []models.Influencer `yaml:"influencers"`
}

// derivedCache is the versioned JSON envelope of the derived file. Only
// the derived file is ever mutated by the system; the YAML source stays
// untouched.
type derivedCache struct {
	Version     int                 `json:"version"`
	RebuiltAt   time.Time           `json:"rebuilt_at"`
	Influencers []models.Influencer `json:"influencers"`
}

const derivedCacheVersion = 1

// LoadInfluencers returns the current influencer set. The derived cache
// is rebuilt from the source only when the source file is newer than the
// cache (or the cache is absent), so edits made directly to the derived
// file survive until the next source change.
func LoadInfluencers(sourcePath, derivedPath string) ([]models.Influencer, error) {
	srcInfo, err := os.Stat(sourcePath)
	if err != nil {
		return nil, &ParseError{Path: sourcePath, Reason: fmt.Sprintf("influencer source unavailable: %v", err)}
	}

	derivedInfo, err := os.Stat(derivedPath)
	if err == nil && !srcInfo.ModTime().After(derivedInfo.ModTime()) {
		set, err := readDerived(derivedPath)
		if err == nil {
			return set, nil
		}
		// Unreadable cache falls through to a rebuild.
	}

	return rebuildDerived(sourcePath, derivedPath)
}

// UpdateLastChecked stamps one influencer in the derived cache. The
// source file is never touched.
func UpdateLastChecked(derivedPath, username string, at time.Time) error {
	set, err := readDerived(derivedPath)
	if err != nil {
		return fmt.Errorf("failed to read influencer cache: %w", err)
	}

	found := false
	for i := range set {
		if set[i].Username == username {
			t := at
			set[i].LastChecked = &t
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("influencer %q not in cache", username)
	}

	return writeDerived(derivedPath, set)
}

func rebuildDerived(sourcePath, derivedPath string) ([]models.Influencer, error) {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, &ParseError{Path: sourcePath, Reason: err.Error()}
	}

	var src influencerSource
	if err := yaml.Unmarshal(data, &src); err != nil {
		return nil, &ParseError{Path: sourcePath, Reason: err.Error()}
	}
	if len(src.Influencers) == 0 {
		return nil, &ParseError{Path: sourcePath, Reason: "no influencers defined"}
	}

	seen := make(map[string]bool, len(src.Influencers))
	now := time.Now().UTC()
	for i := range src.Influencers {
		inf := &src.Influencers[i]
		if inf.Username == "" {
			return nil, &ParseError{Path: sourcePath, Reason: fmt.Sprintf("influencer #%d has no username", i+1)}
		}
		if seen[inf.Username] {
			return nil, &ParseError{Path: sourcePath, Reason: fmt.Sprintf("duplicate username %q", inf.Username)}
		}
		seen[inf.Username] = true

		if inf.Priority == "" {
			inf.Priority = models.PriorityMedium
		}
		if inf.CheckInterval == 0 {
			inf.CheckInterval = 15
		}
		if inf.AddedAt == nil {
			t := now
			inf.AddedAt = &t
		}
	}

	// Carry per-account state across the rebuild so a config edit does
	// not force an immediate re-poll of every account.
	if prev, err := readDerived(derivedPath); err == nil {
		prevByName := make(map[string]models.Influencer, len(prev))
		for _, p := range prev {
			prevByName[p.Username] = p
		}
		for i := range src.Influencers {
			if p, ok := prevByName[src.Influencers[i].Username]; ok {
				src.Influencers[i].LastChecked = p.LastChecked
				if p.AddedAt != nil {
					src.Influencers[i].AddedAt = p.AddedAt
				}
			}
		}
	}

	if err := writeDerived(derivedPath, src.Influencers); err != nil {
		return nil, err
	}

	return src.Influencers, nil
}

func readDerived(path string) ([]models.Influencer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cache derivedCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, fmt.Errorf("failed to decode influencer cache: %w", err)
	}

	return cache.Influencers, nil
}

func writeDerived(path string, set []models.Influencer) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	cache := derivedCache{
		Version:     derivedCacheVersion,
		RebuiltAt:   time.Now().UTC(),
		Influencers: set,
	}

	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode influencer cache: %w", err)
	}

	// Write-then-rename keeps the cache readable if the process dies
	// mid-write.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write influencer cache: %w", err)
	}
	return os.Rename(tmp, path)
}
