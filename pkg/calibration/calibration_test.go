package calibration

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matryer/is"

	"github.com/menta2k/mapcrop/pkg/annotations"
	"github.com/menta2k/mapcrop/pkg/coords"
	"github.com/menta2k/mapcrop/pkg/types"
)

func TestIoU(t *testing.T) {
	tests := []struct {
		name string
		a, b types.BoundingBox
		want float64
	}{
		{"identical", types.BoundingBox{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}, types.BoundingBox{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}, 1},
		{"disjoint", types.BoundingBox{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}, types.BoundingBox{MinX: 20, MinY: 20, MaxX: 30, MaxY: 30}, 0},
		{"touching", types.BoundingBox{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}, types.BoundingBox{MinX: 10, MinY: 0, MaxX: 20, MaxY: 10}, 0},
		{"half overlap", types.BoundingBox{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}, types.BoundingBox{MinX: 5, MinY: 0, MaxX: 15, MaxY: 10}, 50.0 / 150.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IoU(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("IoU = %f, expected %f", got, tt.want)
			}
		})
	}
}

func TestPolicies(t *testing.T) {
	is := is.New(t)

	base := coords.DefaultPolicy()
	policies := Policies(base)
	is.Equal(len(policies), 12)
	is.Equal(policies[0], base)

	seen := map[string]bool{}
	for _, p := range policies {
		seen[p.String()] = true
	}
	is.Equal(len(seen), 12)
}

func TestRankFindsBottomOrigin(t *testing.T) {
	is := is.New(t)

	// shapes recorded with y measured from the bottom of a 1000x800 image
	entries, err := annotations.Decode(strings.NewReader(`[
		{"Inventarnummer": "a", "type": "rectangle", "bounds": [[700, 100], [750, 200]]},
		{"Inventarnummer": "b", "type": "rectangle", "bounds": [[100, 400], [300, 450]]},
		{"Inventarnummer": "c", "type": "polygon", "latlngs": [[500, 600], [520, 650], [560, 610]]},
		{"Inventarnummer": "no-ref", "type": "rectangle", "bounds": [[1, 1], [2, 2]]}
	]`), "")
	is.NoErr(err)

	refs := References{
		"a": {MinX: 100, MinY: 50, MaxX: 200, MaxY: 100},
		"b": {MinX: 400, MinY: 500, MaxX: 450, MaxY: 700},
		"c": {MinX: 600, MinY: 240, MaxX: 650, MaxY: 300},
	}

	candidates, err := Rank(entries, refs, 1000, 800, coords.DefaultPolicy())
	is.NoErr(err)
	is.Equal(len(candidates), 12)

	best := candidates[0]
	is.Equal(best.Policy.AxisOrder, coords.AxisAuto)
	is.Equal(best.Policy.VerticalOrigin, coords.OriginBottom)
	is.Equal(best.Policy.MirrorX, false)
	is.Equal(best.Matched, 3)
	is.True(math.Abs(best.MeanIoU-1) < 1e-9)
	is.True(candidates[len(candidates)-1].MeanIoU < best.MeanIoU)
}

func TestRankNoMatches(t *testing.T) {
	entries, _ := annotations.Decode(strings.NewReader(`[{"Inventarnummer": "x", "type": "rectangle", "bounds": [[1, 1], [2, 2]]}]`), "")
	if _, err := Rank(entries, References{"y": {MaxX: 1, MaxY: 1}}, 10, 10, coords.DefaultPolicy()); err == nil {
		t.Error("Expected error when no entry has a reference")
	}
}

func TestLoadReferences(t *testing.T) {
	is := is.New(t)
	dir := t.TempDir()

	path := filepath.Join(dir, "refs.json")
	is.NoErr(os.WriteFile(path, []byte(`{"CAR-S-2041": [5428, 7716, 5500, 7800]}`), 0644))

	refs, err := LoadReferences(path)
	is.NoErr(err)
	is.Equal(refs["CAR-S-2041"], types.BoundingBox{MinX: 5428, MinY: 7716, MaxX: 5500, MaxY: 7800})

	bad := filepath.Join(dir, "bad.json")
	is.NoErr(os.WriteFile(bad, []byte(`{"x": [10, 10, 5, 20]}`), 0644))
	_, err = LoadReferences(bad)
	is.True(err != nil)
}
