package data

import (
	"fmt"
	"os"

	"github.com/doomsday/server/internal/world"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// BoundsEntry is the inclusive box of a region as written in regions.yaml.
type BoundsEntry struct {
	MinX int32 `yaml:"min_x"`
	MaxX int32 `yaml:"max_x"`
	MinY int32 `yaml:"min_y"`
	MaxY int32 `yaml:"max_y"`
	MinZ int32 `yaml:"min_z"`
	MaxZ int32 `yaml:"max_z"`
}

func (b BoundsEntry) Bounds() world.Bounds {
	return world.Bounds{
		MinX: b.MinX, MaxX: b.MaxX,
		MinY: b.MinY, MaxY: b.MaxY,
		MinZ: b.MinZ, MaxZ: b.MaxZ,
	}
}

// DisasterEntry is one disaster definition inside a region.
type DisasterEntry struct {
	ID          string  `yaml:"id"`
	Type        string  `yaml:"type"`         // effect tag; defaults to ID
	Enabled     *bool   `yaml:"enabled"`      // defaults to true
	MinInterval int     `yaml:"min_interval"` // ticks
	MaxInterval int     `yaml:"max_interval"` // ticks
	Duration    int     `yaml:"duration"`     // ticks
	Probability float64 `yaml:"probability"`  // 0.0-1.0
	Message     string  `yaml:"message"`      // fallback start announcement
}

// IsEnabled reports the effective enabled flag.
func (d DisasterEntry) IsEnabled() bool {
	return d.Enabled == nil || *d.Enabled
}

// EffectType returns the effect tag, falling back to the disaster ID.
func (d DisasterEntry) EffectType() string {
	if d.Type != "" {
		return d.Type
	}
	return d.ID
}

func (d DisasterEntry) validate() error {
	switch {
	case d.ID == "":
		return fmt.Errorf("missing id")
	case d.MinInterval < 0 || d.MaxInterval < 0:
		return fmt.Errorf("negative interval")
	case d.MinInterval > d.MaxInterval:
		return fmt.Errorf("min_interval %d > max_interval %d", d.MinInterval, d.MaxInterval)
	case d.Duration <= 0:
		return fmt.Errorf("duration must be positive, got %d", d.Duration)
	case d.Probability < 0 || d.Probability > 1:
		return fmt.Errorf("probability %v outside [0,1]", d.Probability)
	}
	return nil
}

// RegionEntry is one region (nation) with its disaster definitions.
type RegionEntry struct {
	ID        string          `yaml:"id"`
	Name      string          `yaml:"name"`
	Bounds    *BoundsEntry    `yaml:"bounds"`
	Disasters []DisasterEntry `yaml:"disasters"`
}

// DisplayName returns Name, or ID when no name is configured.
func (r RegionEntry) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.ID
}

type regionListFile struct {
	Regions []RegionEntry `yaml:"regions"`
}

// RegionTable holds the validated region definitions in file order.
type RegionTable struct {
	regions []RegionEntry
}

// Regions returns the validated entries.
func (t *RegionTable) Regions() []RegionEntry {
	return t.regions
}

// Count returns the number of regions loaded.
func (t *RegionTable) Count() int {
	return len(t.regions)
}

// DisasterCount returns the number of disasters across all regions.
func (t *RegionTable) DisasterCount() int {
	n := 0
	for _, r := range t.regions {
		n += len(r.Disasters)
	}
	return n
}

// LoadRegionTable loads regions.yaml. Unreadable or unparsable files are an
// error; malformed regions and disasters are logged and skipped.
func LoadRegionTable(path string, log *zap.Logger) (*RegionTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read region list %s: %w", path, err)
	}
	return ParseRegionTable(raw, log)
}

// ParseRegionTable is LoadRegionTable over an in-memory document.
func ParseRegionTable(raw []byte, log *zap.Logger) (*RegionTable, error) {
	var file regionListFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse region list: %w", err)
	}

	t := &RegionTable{regions: make([]RegionEntry, 0, len(file.Regions))}
	seen := make(map[string]bool, len(file.Regions))
	for i, r := range file.Regions {
		switch {
		case r.ID == "":
			log.Warn("skipping region without id", zap.Int("index", i))
			continue
		case seen[r.ID]:
			log.Warn("skipping duplicate region", zap.String("region", r.ID))
			continue
		case r.Bounds == nil:
			log.Warn("skipping region without bounds", zap.String("region", r.ID))
			continue
		case !r.Bounds.Bounds().Valid():
			log.Warn("skipping region with inverted bounds", zap.String("region", r.ID))
			continue
		case !r.Bounds.Bounds().Fits():
			log.Warn("skipping region wider than the block grid", zap.String("region", r.ID))
			continue
		}
		seen[r.ID] = true

		disasters := make([]DisasterEntry, 0, len(r.Disasters))
		ids := make(map[string]bool, len(r.Disasters))
		for _, d := range r.Disasters {
			if err := d.validate(); err != nil {
				log.Warn("skipping malformed disaster",
					zap.String("region", r.ID),
					zap.String("disaster", d.ID),
					zap.Error(err),
				)
				continue
			}
			if ids[d.ID] {
				log.Warn("skipping duplicate disaster",
					zap.String("region", r.ID),
					zap.String("disaster", d.ID),
				)
				continue
			}
			ids[d.ID] = true
			disasters = append(disasters, d)
		}
		r.Disasters = disasters
		t.regions = append(t.regions, r)
	}
	return t, nil
}

// RegionFile re-reads a regions.yaml on every LoadRegions call, so a reload
// picks up edits made while the server runs.
type RegionFile struct {
	Path string
	Log  *zap.Logger
}

func (f RegionFile) LoadRegions() ([]RegionEntry, error) {
	t, err := LoadRegionTable(f.Path, f.Log)
	if err != nil {
		return nil, err
	}
	return t.Regions(), nil
}
