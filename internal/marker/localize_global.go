package marker

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

const (
	// maxGlobalPeaks bounds the non-maximum-suppression scan.
	maxGlobalPeaks = 20
	// topPeaksForQuad bounds the combinatorial quad selection to
	// C(12,4) = 495 combinations.
	topPeaksForQuad = 12
	// suppressFraction of the marker extent is zeroed around every
	// accepted peak so the same blob cannot match twice.
	suppressFraction = 0.9
)

// collectPeaks repeatedly takes the maximum of the response matrix,
// records it, and zeroes a suppression window around it, until the
// response drops below the threshold or the peak budget is exhausted.
// The response matrix is consumed: the caller must pass a scratch copy.
func collectPeaks(res gocv.Mat, w, h int, threshold float64) []Candidate {
	suppressX := int(float64(w) * suppressFraction)
	if suppressX < 1 {
		suppressX = 1
	}
	suppressY := int(float64(h) * suppressFraction)
	if suppressY < 1 {
		suppressY = 1
	}

	var peaks []Candidate
	for len(peaks) < maxGlobalPeaks {
		_, maxVal, _, maxLoc := gocv.MinMaxLoc(res)
		if float64(maxVal) < threshold {
			break
		}

		peaks = append(peaks, Candidate{
			Score:  float64(maxVal),
			Loc:    maxLoc,
			Width:  w,
			Height: h,
		})

		x0 := maxLoc.X - suppressX
		if x0 < 0 {
			x0 = 0
		}
		y0 := maxLoc.Y - suppressY
		if y0 < 0 {
			y0 = 0
		}
		x1 := maxLoc.X + suppressX
		if x1 > res.Cols()-1 {
			x1 = res.Cols() - 1
		}
		y1 := maxLoc.Y + suppressY
		if y1 > res.Rows()-1 {
			y1 = res.Rows() - 1
		}

		gocv.Rectangle(&res, image.Rect(x0, y0, x1+1, y1+1), color.RGBA{}, -1)
	}

	return peaks
}

// bestQuad enumerates every combination of four candidates from the
// highest-scoring peaks and keeps the one whose centers span the largest
// bounding-box area, breaking area ties by the higher summed score. True
// corner markers are maximally separated, so clustered false positives
// near a single real marker lose to any spread-out combination.
func bestQuad(peaks []Candidate) ([]Candidate, bool) {
	top := peaks
	if len(top) > topPeaksForQuad {
		top = top[:topPeaksForQuad]
	}
	if len(top) < 4 {
		return nil, false
	}

	var best []Candidate
	bestArea := -1.0
	bestScore := 0.0

	for i := 0; i < len(top)-3; i++ {
		for j := i + 1; j < len(top)-2; j++ {
			for k := j + 1; k < len(top)-1; k++ {
				for l := k + 1; l < len(top); l++ {
					combo := []Candidate{top[i], top[j], top[k], top[l]}

					area, score := comboSpread(combo)
					if area > bestArea || (area == bestArea && score > bestScore) {
						best = combo
						bestArea = area
						bestScore = score
					}
				}
			}
		}
	}

	return best, best != nil
}

func comboSpread(combo []Candidate) (area, score float64) {
	first := combo[0].Center()
	minX, maxX := first.X, first.X
	minY, maxY := first.Y, first.Y

	for _, c := range combo {
		center := c.Center()
		if center.X < minX {
			minX = center.X
		}
		if center.X > maxX {
			maxX = center.X
		}
		if center.Y < minY {
			minY = center.Y
		}
		if center.Y > maxY {
			maxY = center.Y
		}
		score += c.Score
	}

	return float64(maxX-minX) * float64(maxY-minY), score
}

// localizeGlobal finds the four markers without positional assumptions:
// peak picking with non-maximum suppression over the full response
// matrix, then exhaustive best-quad selection.
func (d *Detector) localizeGlobal(ctx context.Context, working, optimal gocv.Mat, scale float64) (*Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := matchTemplate(working, optimal)
	defer res.Close()

	peaks := collectPeaks(res, optimal.Cols(), optimal.Rows(), d.opts.MinMatchingThreshold)
	if len(peaks) < 4 {
		return nil, fmt.Errorf("%w: found %d of 4 required, threshold %.3f",
			ErrNotEnoughCandidates, len(peaks), d.opts.MinMatchingThreshold)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	quad, ok := bestQuad(peaks)
	if !ok {
		return nil, fmt.Errorf("%w: no spanning combination among %d peaks",
			ErrNotEnoughCandidates, len(peaks))
	}

	return newDetection(quad, scale, SearchGlobal), nil
}
