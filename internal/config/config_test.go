package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matryer/is"

	"github.com/menta2k/mapcrop/pkg/coords"
)

func TestDefaultIsValid(t *testing.T) {
	is := is.New(t)

	cfg := Default()
	is.NoErr(cfg.Validate())

	p, err := cfg.Policy()
	is.NoErr(err)
	is.Equal(p.AxisOrder, coords.AxisAuto)
	is.Equal(p.VerticalOrigin, coords.OriginTop)
	is.Equal(p.Unit, coords.UnitPixel)
	is.Equal(cfg.Extraction.Margin, 50)
	is.Equal(cfg.Output.Quality, 95)
}

func TestSaveAndLoad(t *testing.T) {
	is := is.New(t)
	path := filepath.Join(t.TempDir(), "nested", "mapcrop.json")

	cfg := Default()
	cfg.Resolution.VerticalOrigin = "bottom"
	cfg.Resolution.MirrorX = true
	cfg.Extraction.Margin = 12
	is.NoErr(cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	is.NoErr(err)
	is.Equal(loaded, cfg)

	p, err := loaded.Policy()
	is.NoErr(err)
	is.Equal(p.VerticalOrigin, coords.OriginBottom)
	is.True(p.MirrorX)
}

func TestLoadYAMLWithPartialKeys(t *testing.T) {
	is := is.New(t)
	path := filepath.Join(t.TempDir(), "mapcrop.yaml")
	is.NoErr(os.WriteFile(path, []byte("extraction:\n  margin: 20\noutput:\n  format: png\n"), 0644))

	cfg, err := LoadFromFile(path)
	is.NoErr(err)
	is.Equal(cfg.Extraction.Margin, 20)
	is.Equal(cfg.Output.Format, "png")
	is.Equal(cfg.Output.Quality, 95)
	is.Equal(cfg.Resolution.IDField, "Inventarnummer")
}

func TestEnvironmentOverride(t *testing.T) {
	is := is.New(t)
	t.Setenv("MAPCROP_EXTRACTION_MARGIN", "7")
	t.Setenv("MAPCROP_RESOLUTION_AXIS_ORDER", "xy")

	path := filepath.Join(t.TempDir(), "mapcrop.json")
	is.NoErr(Default().SaveToFile(path))

	cfg, err := LoadFromFile(path)
	is.NoErr(err)
	is.Equal(cfg.Extraction.Margin, 7)
	is.Equal(cfg.Resolution.AxisOrder, "xy")
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Expected error for an explicit missing file")
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	is := is.New(t)

	cfg := Default()
	cfg.Resolution.AxisOrder = "diagonal"
	cfg.Extraction.Margin = -1
	cfg.Extraction.Workers = 0
	cfg.Output.Format = "gif"
	cfg.Output.Quality = 0

	err := cfg.Validate()
	is.True(err != nil)
	for _, key := range []string{"resolution", "extraction.margin", "extraction.workers", "output.format", "output.quality"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("expected %q in %v", key, err)
		}
	}
}

func TestGeographicUnitNeedsGeoreference(t *testing.T) {
	is := is.New(t)

	cfg := Default()
	cfg.Resolution.Unit = "degrees"
	is.True(cfg.Validate() != nil)

	cfg.Georeference = BoundsConfig{MinLat: 47, MinLng: 16, MaxLat: 49, MaxLng: 18}
	is.NoErr(cfg.Validate())
}

func TestGetConfigPath(t *testing.T) {
	if !strings.HasSuffix(GetConfigPath(), "mapcrop.json") {
		t.Errorf("unexpected config path %s", GetConfigPath())
	}
}
