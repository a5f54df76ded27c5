package marker

import (
	"image"
	"math"
	"testing"

	"gocv.io/x/gocv"
)

func newResponseMat(rows, cols int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), rows, cols, gocv.MatTypeCV32F)
}

func TestCollectPeaksSuppressesNeighbors(t *testing.T) {
	res := newResponseMat(100, 100)
	defer res.Close()

	res.SetFloatAt(10, 10, 0.9)
	res.SetFloatAt(12, 12, 0.85) // inside the suppression window of the first peak
	res.SetFloatAt(10, 80, 0.8)
	res.SetFloatAt(80, 10, 0.7)
	res.SetFloatAt(80, 80, 0.6)
	res.SetFloatAt(50, 50, 0.4) // below threshold

	peaks := collectPeaks(res, 20, 20, 0.5)

	if len(peaks) != 4 {
		t.Fatalf("got %d peaks, want 4", len(peaks))
	}

	want := []struct {
		loc   image.Point
		score float64
	}{
		{image.Pt(10, 10), 0.9},
		{image.Pt(80, 10), 0.8},
		{image.Pt(10, 80), 0.7},
		{image.Pt(80, 80), 0.6},
	}
	for i, w := range want {
		if peaks[i].Loc != w.loc {
			t.Errorf("peak %d at %v, want %v", i, peaks[i].Loc, w.loc)
		}
		if math.Abs(peaks[i].Score-w.score) > 1e-3 {
			t.Errorf("peak %d score %v, want %v", i, peaks[i].Score, w.score)
		}
	}

	// Scores must come out in descending order.
	for i := 1; i < len(peaks); i++ {
		if peaks[i].Score > peaks[i-1].Score {
			t.Errorf("peaks not descending at %d: %v > %v", i, peaks[i].Score, peaks[i-1].Score)
		}
	}
}

func TestCollectPeaksRespectsBudget(t *testing.T) {
	res := newResponseMat(200, 200)
	defer res.Close()

	// Far more well-separated peaks than the budget allows.
	for r := 5; r < 200; r += 15 {
		for c := 5; c < 200; c += 15 {
			res.SetFloatAt(r, c, 0.9)
		}
	}

	peaks := collectPeaks(res, 10, 10, 0.5)
	if len(peaks) != maxGlobalPeaks {
		t.Errorf("got %d peaks, want budget of %d", len(peaks), maxGlobalPeaks)
	}
}

func TestCollectPeaksClampsWindowAtBorders(t *testing.T) {
	res := newResponseMat(50, 50)
	defer res.Close()

	res.SetFloatAt(0, 0, 0.9)
	res.SetFloatAt(49, 49, 0.8)

	peaks := collectPeaks(res, 20, 20, 0.5)
	if len(peaks) != 2 {
		t.Fatalf("got %d peaks, want 2", len(peaks))
	}
}

func cand(x, y int, score float64) Candidate {
	return Candidate{Score: score, Loc: image.Pt(x, y), Width: 10, Height: 10}
}

func TestBestQuadPrefersLargestSpread(t *testing.T) {
	// Four true corners plus a high-scoring false positive near one of
	// them. Spread beats score.
	peaks := []Candidate{
		cand(10, 10, 0.99),
		cand(0, 0, 0.5),
		cand(100, 0, 0.5),
		cand(0, 100, 0.5),
		cand(100, 100, 0.5),
	}

	quad, ok := bestQuad(peaks)
	if !ok {
		t.Fatal("bestQuad found nothing")
	}

	for _, c := range quad {
		if c.Loc == image.Pt(10, 10) {
			t.Error("clustered false positive should lose to the spread-out corners")
		}
	}
}

func TestBestQuadBreaksAreaTiesByScore(t *testing.T) {
	// Two candidates share a corner position, so two combinations span the
	// same area; the higher summed score must win.
	peaks := []Candidate{
		cand(0, 0, 0.5),
		cand(0, 0, 0.9),
		cand(100, 0, 0.5),
		cand(0, 100, 0.5),
		cand(100, 100, 0.5),
	}

	quad, ok := bestQuad(peaks)
	if !ok {
		t.Fatal("bestQuad found nothing")
	}

	hasStrong := false
	for _, c := range quad {
		if c.Score == 0.9 {
			hasStrong = true
		}
	}
	if !hasStrong {
		t.Error("tie on area should be broken by the higher summed score")
	}
}

func TestBestQuadNeedsFourCandidates(t *testing.T) {
	peaks := []Candidate{cand(0, 0, 0.9), cand(100, 0, 0.8), cand(0, 100, 0.7)}
	if _, ok := bestQuad(peaks); ok {
		t.Error("bestQuad should fail with fewer than four candidates")
	}
}
