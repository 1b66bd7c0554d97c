package data

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const regionsDoc = `
regions:
  - id: north
    name: The North
    bounds: { min_x: 0, max_x: 31, min_y: 0, max_y: 63, min_z: 0, max_z: 31 }
    disasters:
      - id: blizzard
        min_interval: 100
        max_interval: 200
        duration: 50
        probability: 0.5
      - id: quake
        type: earthquake
        enabled: false
        min_interval: 10
        max_interval: 10
        duration: 5
        probability: 1
      - id: broken
        min_interval: 300
        max_interval: 100
        duration: 5
        probability: 0.1
      - id: blizzard
        min_interval: 1
        max_interval: 2
        duration: 3
        probability: 0.1
      - id: odds
        min_interval: 1
        max_interval: 2
        duration: 3
        probability: 1.5
  - id: north
    bounds: { min_x: 0, max_x: 1, min_y: 0, max_y: 1, min_z: 0, max_z: 1 }
  - id: nowhere
  - id: flipped
    bounds: { min_x: 10, max_x: 0, min_y: 0, max_y: 1, min_z: 0, max_z: 1 }
  - id: south
    bounds: { min_x: 0, max_x: 31, min_y: 0, max_y: 63, min_z: 64, max_z: 95 }
`

func TestParseRegionTable_SkipsMalformedEntries(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	table, err := ParseRegionTable([]byte(regionsDoc), zap.New(core))
	require.NoError(t, err)

	require.Equal(t, 2, table.Count())
	north := table.Regions()[0]
	assert.Equal(t, "north", north.ID)
	assert.Equal(t, "The North", north.DisplayName())
	require.Len(t, north.Disasters, 2)
	assert.Equal(t, "blizzard", north.Disasters[0].ID)
	assert.Equal(t, "quake", north.Disasters[1].ID)
	assert.Equal(t, "south", table.Regions()[1].DisplayName())
	assert.Equal(t, 2, table.DisasterCount())

	// broken, duplicate blizzard, odds, duplicate north, nowhere, flipped
	assert.Equal(t, 6, logs.Len())
}

func TestDisasterEntry_Defaults(t *testing.T) {
	table, err := ParseRegionTable([]byte(regionsDoc), zap.NewNop())
	require.NoError(t, err)

	blizzard := table.Regions()[0].Disasters[0]
	quake := table.Regions()[0].Disasters[1]

	assert.True(t, blizzard.IsEnabled())
	assert.Equal(t, "blizzard", blizzard.EffectType())
	assert.False(t, quake.IsEnabled())
	assert.Equal(t, "earthquake", quake.EffectType())
}

func TestParseRegionTable_BadYAMLIsAnError(t *testing.T) {
	_, err := ParseRegionTable([]byte("regions: [ {"), zap.NewNop())
	assert.Error(t, err)
}

func TestRegionFile_RereadsOnEveryLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regions.yaml")
	src := RegionFile{Path: path, Log: zap.NewNop()}

	_, err := src.LoadRegions()
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(regionsDoc), 0o644))
	entries, err := src.LoadRegions()
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestParseRegionTable_SkipsRegionWiderThanGrid(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	doc := `
regions:
  - id: everything
    bounds: { min_x: -2147483648, max_x: 2147483647, min_y: 0, max_y: 1, min_z: 0, max_z: 1 }
  - id: widest
    bounds: { min_x: -1073741824, max_x: 1073741822, min_y: 0, max_y: 1, min_z: 0, max_z: 1 }
`
	table, err := ParseRegionTable([]byte(doc), zap.New(core))
	require.NoError(t, err)

	require.Equal(t, 1, table.Count())
	assert.Equal(t, "widest", table.Regions()[0].ID)
	assert.Equal(t, 1, logs.FilterMessage("skipping region wider than the block grid").Len())
}
