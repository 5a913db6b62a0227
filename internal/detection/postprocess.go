package detection

import (
	"math"
	"sort"
)

// toBoxes filters scored components and maps them to original image
// coordinates. mapW and mapH are the probability map size; scale maps map
// pixels to original pixels and origin is the original image's Min point.
func (d *Detector) toBoxes(components []component, mapW, mapH int, scale float64, origin Point, origW, origH int) []Box {
	cfg := d.cfg
	boxes := make([]Box, 0, len(components))

	for _, c := range components {
		if c.score < cfg.BoxThreshold {
			continue
		}
		if minInt(c.bounds.Width(), c.bounds.Height()) < cfg.MinBoxSize {
			continue
		}

		b := Bounds{
			X1: maxInt(c.bounds.X1-cfg.BorderSize, 0),
			Y1: maxInt(c.bounds.Y1-cfg.BorderSize, 0),
			X2: minInt(c.bounds.X2+cfg.BorderSize, mapW),
			Y2: minInt(c.bounds.Y2+cfg.BorderSize, mapH),
		}

		b = Bounds{
			X1: minInt(int(math.Floor(float64(b.X1)*scale)), origW),
			Y1: minInt(int(math.Floor(float64(b.Y1)*scale)), origH),
			X2: minInt(int(math.Ceil(float64(b.X2)*scale)), origW),
			Y2: minInt(int(math.Ceil(float64(b.Y2)*scale)), origH),
		}
		if b.Area() == 0 {
			continue
		}
		b.X1 += origin.X
		b.X2 += origin.X
		b.Y1 += origin.Y
		b.Y2 += origin.Y

		boxes = append(boxes, Box{Bounds: b, Score: clampUnit(c.score)})
	}
	return boxes
}

// nms drops every box whose IoU with a higher scoring kept box exceeds
// threshold. Ties in score are broken by position so the result does not
// depend on input order.
func nms(boxes []Box, threshold float64) []Box {
	if len(boxes) < 2 {
		return boxes
	}
	order := make([]Box, len(boxes))
	copy(order, boxes)
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].Score != order[j].Score {
			return order[i].Score > order[j].Score
		}
		return lessPosition(order[i].Bounds, order[j].Bounds)
	})

	kept := make([]Box, 0, len(order))
	for _, b := range order {
		suppressed := false
		for _, k := range kept {
			if IoU(b.Bounds, k.Bounds) > threshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, b)
		}
	}
	return kept
}

// mergeBoxes joins boxes that sit on the same text line: their horizontal
// ranges overlap or lie within threshold pixels of each other, and the
// vertical gap between them is at most 40% of the smaller height. Merging
// repeats until no pair qualifies, so chains of neighbours collapse into one
// box. The merged score is the higher of the two.
func mergeBoxes(boxes []Box, threshold int) []Box {
	merged := make([]Box, len(boxes))
	copy(merged, boxes)

	for changed := true; changed; {
		changed = false
		for i := 0; i < len(merged) && !changed; i++ {
			for j := i + 1; j < len(merged); j++ {
				if !sameLine(merged[i].Bounds, merged[j].Bounds, threshold) {
					continue
				}
				merged[i].Bounds = mergeBounds(merged[i].Bounds, merged[j].Bounds)
				merged[i].Score = math.Max(merged[i].Score, merged[j].Score)
				merged = append(merged[:j], merged[j+1:]...)
				changed = true
				break
			}
		}
	}
	return merged
}

func sameLine(a, b Bounds, threshold int) bool {
	if regionsOverlap(a, b) {
		return true
	}
	if a.X1 > b.X2+threshold || b.X1 > a.X2+threshold {
		return false
	}
	gap := maxInt(a.Y1, b.Y1) - minInt(a.Y2, b.Y2)
	if gap < 0 {
		gap = 0
	}
	return float64(gap) <= 0.4*float64(minInt(a.Height(), b.Height()))
}

// sortBoxes orders boxes top to bottom, then left to right.
func sortBoxes(boxes []Box) {
	sort.SliceStable(boxes, func(i, j int) bool {
		return lessPosition(boxes[i].Bounds, boxes[j].Bounds)
	})
}

func lessPosition(a, b Bounds) bool {
	if a.Y1 != b.Y1 {
		return a.Y1 < b.Y1
	}
	return a.X1 < b.X1
}

func clampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
