package imgproc

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"
)

// OrderPoints sorts four arbitrary points into top-left, top-right,
// bottom-right, bottom-left. The top-left corner has the smallest
// coordinate sum, the bottom-right the largest; the top-right has the
// smallest y-x difference, the bottom-left the largest. Insertion order
// carries no meaning because candidates arrive in score or scan order.
func OrderPoints(pts []gocv.Point2f) [4]gocv.Point2f {
	var ordered [4]gocv.Point2f

	minSum, maxSum := math.Inf(1), math.Inf(-1)
	minDiff, maxDiff := math.Inf(1), math.Inf(-1)

	for _, p := range pts {
		sum := float64(p.X) + float64(p.Y)
		diff := float64(p.Y) - float64(p.X)

		if sum < minSum {
			minSum = sum
			ordered[0] = p
		}
		if sum > maxSum {
			maxSum = sum
			ordered[2] = p
		}
		if diff < minDiff {
			minDiff = diff
			ordered[1] = p
		}
		if diff > maxDiff {
			maxDiff = diff
			ordered[3] = p
		}
	}

	return ordered
}

func edgeLength(a, b gocv.Point2f) float64 {
	return math.Hypot(float64(a.X)-float64(b.X), float64(a.Y)-float64(b.Y))
}

// quadArea computes the shoelace area of an ordered quadrilateral.
func quadArea(q [4]gocv.Point2f) float64 {
	area := 0.0
	for i := 0; i < 4; i++ {
		j := (i + 1) % 4
		area += float64(q[i].X)*float64(q[j].Y) - float64(q[j].X)*float64(q[i].Y)
	}
	return math.Abs(area) / 2
}

// FourPointTransform warps the quadrilateral spanned by four arbitrary
// points onto an axis-aligned rectangle. The destination size preserves
// the true geometry: width is the longer of the top and bottom edges,
// height the longer of the left and right edges.
func FourPointTransform(src gocv.Mat, pts []gocv.Point2f) (gocv.Mat, error) {
	if len(pts) != 4 {
		return gocv.Mat{}, fmt.Errorf("four point transform needs 4 points, got %d", len(pts))
	}

	ordered := OrderPoints(pts)
	tl, tr, br, bl := ordered[0], ordered[1], ordered[2], ordered[3]

	if quadArea(ordered) <= 0 {
		return gocv.Mat{}, fmt.Errorf("points are degenerate: zero-area quadrilateral")
	}

	maxWidth := int(math.Max(edgeLength(br, bl), edgeLength(tr, tl)))
	maxHeight := int(math.Max(edgeLength(tr, br), edgeLength(tl, bl)))
	if maxWidth < 1 || maxHeight < 1 {
		return gocv.Mat{}, fmt.Errorf("degenerate destination size %dx%d", maxWidth, maxHeight)
	}

	srcVec := gocv.NewPoint2fVectorFromPoints([]gocv.Point2f{tl, tr, br, bl})
	defer srcVec.Close()

	dstVec := gocv.NewPoint2fVectorFromPoints([]gocv.Point2f{
		{X: 0, Y: 0},
		{X: float32(maxWidth - 1), Y: 0},
		{X: float32(maxWidth - 1), Y: float32(maxHeight - 1)},
		{X: 0, Y: float32(maxHeight - 1)},
	})
	defer dstVec.Close()

	transform := gocv.GetPerspectiveTransform2f(srcVec, dstVec)
	defer transform.Close()

	dst := gocv.NewMat()
	gocv.WarpPerspective(src, &dst, transform, image.Pt(maxWidth, maxHeight))
	return dst, nil
}
