// Package calibration picks a coordinate policy by comparing resolved shapes
// against boxes that are known to be correct for a given map image.
package calibration

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/samber/lo"

	"github.com/menta2k/mapcrop/pkg/annotations"
	"github.com/menta2k/mapcrop/pkg/coords"
	"github.com/menta2k/mapcrop/pkg/shapes"
	"github.com/menta2k/mapcrop/pkg/types"
)

// References maps an annotation id to its known pixel box
type References map[string]types.BoundingBox

// LoadReferences reads a JSON object of id -> [minX, minY, maxX, maxY]
func LoadReferences(path string) (References, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read references: %w", err)
	}

	var raw map[string][4]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse references: %w", err)
	}

	refs := make(References, len(raw))
	for id, b := range raw {
		box := types.BoundingBox{MinX: b[0], MinY: b[1], MaxX: b[2], MaxY: b[3]}
		if !box.IsValid() || box.Width() <= 0 || box.Height() <= 0 {
			return nil, fmt.Errorf("reference %q has an empty box %v", id, b)
		}
		refs[id] = box
	}
	return refs, nil
}

// Candidate is one policy and how well it reproduced the references
type Candidate struct {
	Policy  coords.Policy      `json:"-"`
	Label   string             `json:"policy"`
	MeanIoU float64            `json:"meanIoU"`
	Matched int                `json:"matched"`
	Scores  map[string]float64 `json:"scores"`
}

// Policies enumerates axis order, vertical origin and mirroring on top of
// base, which supplies the unit, georeference and window.
func Policies(base coords.Policy) []coords.Policy {
	var out []coords.Policy
	for _, axis := range []coords.AxisOrder{coords.AxisAuto, coords.AxisYX, coords.AxisXY} {
		for _, origin := range []coords.VerticalOrigin{coords.OriginTop, coords.OriginBottom} {
			for _, mirror := range []bool{false, true} {
				p := base
				p.AxisOrder = axis
				p.VerticalOrigin = origin
				p.MirrorX = mirror
				out = append(out, p)
			}
		}
	}
	return out
}

// Rank scores every policy from Policies(base) and returns them best first.
// Entries without a reference are ignored and shapes that cannot be resolved
// score zero. Ties keep enumeration order.
func Rank(entries []annotations.Entry, refs References, width, height int, base coords.Policy) ([]Candidate, error) {
	matched := lo.Filter(entries, func(e annotations.Entry, _ int) bool {
		_, ok := refs[e.ID]
		return ok
	})
	if len(matched) == 0 {
		return nil, fmt.Errorf("no annotation matches any of the %d references", len(refs))
	}

	var candidates []Candidate
	for _, policy := range Policies(base) {
		if err := policy.Validate(); err != nil {
			return nil, fmt.Errorf("invalid base policy: %w", err)
		}

		resolve := coords.Resolver(width, height, policy)
		c := Candidate{
			Policy:  policy,
			Label:   policy.String(),
			Matched: len(matched),
			Scores:  make(map[string]float64, len(matched)),
		}

		var total float64
		for _, e := range matched {
			score := 0.0
			if shape, err := e.Shape(); err == nil {
				if box, err := shapes.BoundingBox(shape, resolve); err == nil {
					score = IoU(box, refs[e.ID])
				}
			}
			c.Scores[e.ID] = score
			total += score
		}
		c.MeanIoU = total / float64(len(matched))
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].MeanIoU > candidates[j].MeanIoU
	})
	return candidates, nil
}

// IoU returns the intersection over union of two boxes
func IoU(a, b types.BoundingBox) float64 {
	iw := math.Min(a.MaxX, b.MaxX) - math.Max(a.MinX, b.MinX)
	ih := math.Min(a.MaxY, b.MaxY) - math.Max(a.MinY, b.MinY)
	if iw <= 0 || ih <= 0 {
		return 0
	}
	inter := iw * ih
	union := a.Width()*a.Height() + b.Width()*b.Height() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
