package marker

import (
	"context"
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"
)

// Quadrant division factors. Exact bisection of the sheet; the factors
// exist so nonstandard layouts can partition differently.
const (
	quadrantHeightDivision = 2
	quadrantWidthDivision  = 2
)

// localizeQuadrants assumes one marker per image quadrant and takes each
// quadrant's single best correlation peak. A quadrant whose best score is
// below the threshold, or drifts from the whole-image best by at least the
// configured variation, fails the sheet - unless the detector runs in auto
// mode, in which case the entire image is handed over to global search.
func (d *Detector) localizeQuadrants(ctx context.Context, working, optimal gocv.Mat, scale float64, allMax float64) (*Detection, error) {
	h1, w1 := working.Rows(), working.Cols()
	midH := h1 / quadrantHeightDivision
	midW := w1 / quadrantWidthDivision

	origins := [4]image.Point{{X: 0, Y: 0}, {X: midW, Y: 0}, {X: 0, Y: midH}, {X: midW, Y: midH}}
	bounds := [4]image.Rectangle{
		image.Rect(0, 0, midW, midH),
		image.Rect(midW, 0, w1, midH),
		image.Rect(0, midH, midW, h1),
		image.Rect(midW, midH, w1, h1),
	}

	w, h := optimal.Cols(), optimal.Rows()
	cands := make([]Candidate, 0, 4)
	scores := make([]float64, 0, 4)
	sum := 0.0

	for k := range bounds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		maxT, maxLoc := d.quadrantPeak(working, optimal, bounds[k])
		scores = append(scores, maxT)

		if maxT < d.opts.MinMatchingThreshold || math.Abs(allMax-maxT) >= d.opts.MaxMatchingVariation {
			if d.mode == SearchAuto {
				d.logger.Debug(component, "quadrant search failed, falling back to global", map[string]interface{}{
					"quadrant":  k + 1,
					"score":     maxT,
					"image_max": allMax,
				})
				return d.localizeGlobal(ctx, working, optimal, scale)
			}

			return nil, fmt.Errorf(
				"%w %d: score %.3f, threshold %.3f, max variation %.3f, image best %.3f",
				ErrMarkerNotInQuadrant, k+1,
				maxT, d.opts.MinMatchingThreshold, d.opts.MaxMatchingVariation, allMax)
		}

		cands = append(cands, Candidate{
			Score:  maxT,
			Loc:    maxLoc.Add(origins[k]),
			Width:  w,
			Height: h,
		})
		sum += maxT
	}

	d.logger.Debug(component, "quadrant match scores", map[string]interface{}{
		"q1": scores[0], "q2": scores[1], "q3": scores[2], "q4": scores[3],
		"scale": scale,
	})

	return newDetection(cands, scale, SearchQuadrants), nil
}

// quadrantPeak returns the best correlation score and location inside one
// quadrant, in quadrant-local coordinates. A marker that does not fit the
// quadrant scores zero, which the caller treats as a failed quadrant.
func (d *Detector) quadrantPeak(working, optimal gocv.Mat, b image.Rectangle) (float64, image.Point) {
	quad := working.Region(b)
	defer quad.Close()

	if !fitsWithin(quad, optimal) {
		return 0, image.Point{}
	}

	res := matchTemplate(quad, optimal)
	defer res.Close()

	_, maxVal, _, maxLoc := gocv.MinMaxLoc(res)
	return float64(maxVal), maxLoc
}
