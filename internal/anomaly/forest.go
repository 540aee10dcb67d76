package anomaly

import (
	"math"
	"math/rand"
)

// Isolation forest defaults: tree count and subsample ceiling.
const (
	forestTrees     = 100
	forestSubsample = 256
)

// forestSeed fixes the forest's random source so the same batch always
// scores the same way.
const forestSeed = 42

// eulerGamma is the Euler-Mascheroni constant, used in the average
// unsuccessful-search path length.
const eulerGamma = 0.5772156649

// treeNode is one node of an isolation tree. Leaves carry the number of
// samples they isolate.
type treeNode struct {
	feature     int
	split       float64
	left, right *treeNode
	size        int
}

func (n *treeNode) leaf() bool {
	return n.left == nil
}

// isolationForest scores how easily rows separate from the rest of a batch.
// Shorter average isolation paths mean more anomalous.
type isolationForest struct {
	trees     []*treeNode
	subsample int
}

// fitForest grows the forest over samples, a row-major matrix. Each tree
// sees its own random subsample of at most forestSubsample rows.
func fitForest(samples [][]float64) *isolationForest {
	rng := rand.New(rand.NewSource(forestSeed))
	psi := len(samples)
	if psi > forestSubsample {
		psi = forestSubsample
	}
	depthLimit := int(math.Ceil(math.Log2(float64(psi))))
	if depthLimit < 1 {
		depthLimit = 1
	}

	f := &isolationForest{subsample: psi}
	for t := 0; t < forestTrees; t++ {
		indices := rng.Perm(len(samples))[:psi]
		f.trees = append(f.trees, growTree(rng, samples, indices, 0, depthLimit))
	}
	return f
}

func growTree(rng *rand.Rand, samples [][]float64, indices []int, depth, limit int) *treeNode {
	if depth >= limit || len(indices) <= 1 {
		return &treeNode{size: len(indices)}
	}

	feature := rng.Intn(len(samples[0]))
	low, high := math.Inf(1), math.Inf(-1)
	for _, i := range indices {
		v := samples[i][feature]
		if v < low {
			low = v
		}
		if v > high {
			high = v
		}
	}
	if low == high {
		return &treeNode{size: len(indices)}
	}

	split := low + rng.Float64()*(high-low)
	var left, right []int
	for _, i := range indices {
		if samples[i][feature] < split {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return &treeNode{
		feature: feature,
		split:   split,
		left:    growTree(rng, samples, left, depth+1, limit),
		right:   growTree(rng, samples, right, depth+1, limit),
	}
}

// pathLength walks x down the tree; unsplit leaves contribute the expected
// remaining depth for their size.
func pathLength(node *treeNode, x []float64) float64 {
	depth := 0.0
	for !node.leaf() {
		if x[node.feature] < node.split {
			node = node.left
		} else {
			node = node.right
		}
		depth++
	}
	return depth + avgPathLength(node.size)
}

// avgPathLength is c(n), the average path length of an unsuccessful binary
// search over n samples.
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	if n == 2 {
		return 1
	}
	h := math.Log(float64(n-1)) + eulerGamma
	return 2*h - 2*float64(n-1)/float64(n)
}

// anomalyScore returns s(x) in (0, 1]: 0.5 is batch-typical, values toward
// 1 isolate quickly.
func (f *isolationForest) anomalyScore(x []float64) float64 {
	var total float64
	for _, tree := range f.trees {
		total += pathLength(tree, x)
	}
	mean := total / float64(len(f.trees))
	return math.Pow(2, -mean/avgPathLength(f.subsample))
}

// decisionFunction mirrors the usual sklearn convention: negative values
// are anomalous, the boundary sits at an anomaly score of 0.5.
func (f *isolationForest) decisionFunction(x []float64) float64 {
	return 0.5 - f.anomalyScore(x)
}
