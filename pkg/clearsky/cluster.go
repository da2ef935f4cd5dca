package clearsky

import (
	"image"
	"math"
	"sort"
)

// Candidates returns every position whose score is >= threshold, in
// row-major scan order.
func Candidates(scores *ScoreMap, threshold float64) []image.Point {
	if scores == nil {
		return nil
	}
	var out []image.Point
	for y := 0; y < scores.Height; y++ {
		row := scores.Scores[y*scores.Width : (y+1)*scores.Width]
		for x, v := range row {
			if float64(v) >= threshold {
				out = append(out, image.Pt(x, y))
			}
		}
	}
	return out
}

// Cluster reduces the score map to distinct stars with a running distance
// filter over the scan-order candidates.
//
// The first candidate is always accepted. Every later candidate is accepted
// when it lies farther than distanceThreshold from the candidate visited
// just before it, whether that one was accepted or not. Candidates of two
// stars that interleave in scan order are therefore counted more than once,
// and stars closer than distanceThreshold in consecutive rows collapse into
// one.
func Cluster(scores *ScoreMap, detectionThreshold, distanceThreshold float64, templateSize image.Point) []Detection {
	var detections []Detection
	var prev image.Point
	first := true
	for _, pt := range Candidates(scores, detectionThreshold) {
		if first || distance(pt, prev) > distanceThreshold {
			detections = append(detections, newDetection(scores, pt, templateSize))
		}
		prev = pt
		first = false
	}
	return detections
}

// ClusterNMS is greedy non-maximum suppression: candidates are visited by
// descending score (scan order breaks ties) and kept when they are farther
// than distanceThreshold from every star kept so far.
func ClusterNMS(scores *ScoreMap, detectionThreshold, distanceThreshold float64, templateSize image.Point) []Detection {
	candidates := Candidates(scores, detectionThreshold)
	sort.SliceStable(candidates, func(i, j int) bool {
		return scores.At(candidates[i].X, candidates[i].Y) > scores.At(candidates[j].X, candidates[j].Y)
	})

	var detections []Detection
	for _, pt := range candidates {
		suppressed := false
		for _, d := range detections {
			if distance(pt, d.Position) <= distanceThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			detections = append(detections, newDetection(scores, pt, templateSize))
		}
	}
	return detections
}

func newDetection(scores *ScoreMap, pt, templateSize image.Point) Detection {
	return Detection{
		Position: pt,
		Box:      image.Rect(pt.X, pt.Y, pt.X+templateSize.X, pt.Y+templateSize.Y),
		Score:    scores.At(pt.X, pt.Y),
	}
}

func distance(a, b image.Point) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return math.Sqrt(dx*dx + dy*dy)
}
