package anomaly

import (
	"math"
	"testing"
)

// ─── Label encoding ───────────────────────────────────────────────────────────

func TestLabelEncode_SortedClassIndices(t *testing.T) {
	encoded := labelEncode([]string{"CARD", "APP", "USSD", "APP"})

	want := []float64{1, 0, 2, 0}
	for i := range want {
		if encoded[i] != want[i] {
			t.Fatalf("encoded = %v, want %v", encoded, want)
		}
	}
}

func TestLabelEncode_StableAcrossInputOrder(t *testing.T) {
	a := labelEncode([]string{"x", "y", "z"})
	b := labelEncode([]string{"z", "y", "x"})

	if a[0] != b[2] || a[1] != b[1] || a[2] != b[0] {
		t.Fatalf("encoding depends on input order: %v vs %v", a, b)
	}
}

// ─── Robust scaling ───────────────────────────────────────────────────────────

func TestRobustScale_CentersOnMedian(t *testing.T) {
	scaled := robustScale([]float64{1, 2, 3, 4, 5})

	// Median 3, IQR 2: the middle value maps to zero.
	if scaled[2] != 0 {
		t.Errorf("median scaled to %f, want 0", scaled[2])
	}
	if scaled[0] != -1 || scaled[4] != 1 {
		t.Errorf("scaled = %v, want endpoints at -1 and 1", scaled)
	}
}

func TestRobustScale_ConstantColumn(t *testing.T) {
	scaled := robustScale([]float64{7, 7, 7, 7})

	for i, v := range scaled {
		if v != 0 {
			t.Fatalf("constant column scaled[%d] = %f, want 0", i, v)
		}
	}
}

func TestRobustScale_OutlierDoesNotDominate(t *testing.T) {
	values := []float64{1, 2, 3, 4, 1000}
	scaled := robustScale(values)

	// The bulk of the data stays in a small range; only the outlier is far.
	for i := 0; i < 4; i++ {
		if math.Abs(scaled[i]) > 2 {
			t.Errorf("inlier %f scaled to %f", values[i], scaled[i])
		}
	}
	if scaled[4] < 100 {
		t.Errorf("outlier scaled to %f, want far from the bulk", scaled[4])
	}
}

func TestQuantile_Interpolates(t *testing.T) {
	values := []float64{10, 20, 30, 40}

	cases := []struct {
		q    float64
		want float64
	}{
		{0, 10},
		{1, 40},
		{.5, 25},
		{.25, 17.5},
	}
	for _, c := range cases {
		if got := quantile(values, c.q); math.Abs(got-c.want) > 1e-9 {
			t.Errorf("quantile(%f) = %f, want %f", c.q, got, c.want)
		}
	}
}

// ─── Forest ───────────────────────────────────────────────────────────────────

func testSamples() [][]float64 {
	samples := make([][]float64, 0, 21)
	for i := 0; i < 20; i++ {
		samples = append(samples, []float64{float64(i % 5), float64(i % 3)})
	}
	// One far-out row.
	samples = append(samples, []float64{100, 100})
	return samples
}

func TestFitForest_Deterministic(t *testing.T) {
	samples := testSamples()

	a := fitForest(samples)
	b := fitForest(samples)
	for _, x := range samples {
		if a.anomalyScore(x) != b.anomalyScore(x) {
			t.Fatalf("forest scores differ across identical fits for %v", x)
		}
	}
}

func TestAnomalyScore_Bounded(t *testing.T) {
	forest := fitForest(testSamples())

	for _, x := range testSamples() {
		s := forest.anomalyScore(x)
		if s <= 0 || s > 1 {
			t.Fatalf("anomaly score %f outside (0, 1]", s)
		}
	}
}

func TestAnomalyScore_OutlierScoresHighest(t *testing.T) {
	samples := testSamples()
	forest := fitForest(samples)

	outlier := forest.anomalyScore(samples[len(samples)-1])
	for _, x := range samples[:len(samples)-1] {
		if forest.anomalyScore(x) >= outlier {
			t.Fatalf("inlier %v scored %f, outlier only %f", x, forest.anomalyScore(x), outlier)
		}
	}
}

func TestDecisionFunction_NegativeForOutlier(t *testing.T) {
	samples := testSamples()
	forest := fitForest(samples)

	if d := forest.decisionFunction(samples[len(samples)-1]); d >= 0 {
		t.Errorf("outlier decision = %f, want negative", d)
	}
}

func TestAvgPathLength_SmallSizes(t *testing.T) {
	if avgPathLength(0) != 0 || avgPathLength(1) != 0 {
		t.Error("paths of size <= 1 must contribute 0")
	}
	if avgPathLength(2) != 1 {
		t.Errorf("c(2) = %f, want 1", avgPathLength(2))
	}
	if c := avgPathLength(256); c < 9 || c > 12 {
		t.Errorf("c(256) = %f, want near 10.2", c)
	}
}
