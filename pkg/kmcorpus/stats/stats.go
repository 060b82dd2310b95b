// Package stats implements the statistical core of KM/SKiM scoring: the
// 2x2 contingency table, a one-sided ("greater") Fisher's exact test, a
// chi-square test used as its fast approximation at large sample sizes,
// the sort ratio used to break ties between equally significant
// relationships, and the combined prediction score surfaced to callers.
package stats

import "math"

// ContingencyTable counts documents along two binary dimensions — does
// the document mention keyword A, does it mention keyword B — the same
// 2x2 layout KM's original scoring function built per candidate.
//
//	          B present   B absent
//	A present    A            B
//	A absent     C            D
type ContingencyTable struct {
	A, B, C, D int64
}

// N returns the total document count the table was built from.
func (t ContingencyTable) N() int64 {
	return t.A + t.B + t.C + t.D
}

// NewContingencyTable builds a table from the raw set sizes: docsAB is
// the number of documents containing both terms, docsA and docsB are the
// total documents containing each term respectively, and total is the
// corpus (or year-censored subset) size.
func NewContingencyTable(docsAB, docsA, docsB, total int64) ContingencyTable {
	a := docsAB
	b := docsA - docsAB
	c := docsB - docsAB
	d := total - docsA - docsB + docsAB
	if b < 0 {
		b = 0
	}
	if c < 0 {
		c = 0
	}
	if d < 0 {
		d = 0
	}
	return ContingencyTable{A: a, B: b, C: c, D: d}
}

// FisherExactGreater computes the one-sided p-value for the alternative
// hypothesis that A and B co-occur more often than chance — i.e. that
// the true odds ratio is greater than 1 — via direct summation over the
// hypergeometric distribution's upper tail. This is exact (no normal or
// chi-square approximation) and matches the "greater" alternative of a
// standard 2x2 Fisher's exact test.
func FisherExactGreater(t ContingencyTable) float64 {
	n := t.N()
	if n == 0 {
		return 1.0
	}

	rowSum := t.A + t.B // total docs with A
	colSum := t.A + t.C // total docs with B
	other := n - rowSum // total docs without A

	maxX := rowSum
	if colSum < maxX {
		maxX = colSum
	}

	logDenom := logChoose(n, colSum)

	var sum float64
	for x := t.A; x <= maxX; x++ {
		k := colSum - x
		if k < 0 || k > other {
			continue
		}
		logP := logChoose(rowSum, x) + logChoose(other, k) - logDenom
		sum += math.Exp(logP)
	}

	if sum > 1 {
		sum = 1
	}
	if sum < 0 {
		sum = 0
	}
	return sum
}

func logChoose(n, k int64) float64 {
	if k < 0 || k > n {
		return math.Inf(-1)
	}
	ln1, _ := math.Lgamma(float64(n) + 1)
	ln2, _ := math.Lgamma(float64(k) + 1)
	ln3, _ := math.Lgamma(float64(n-k) + 1)
	return ln1 - ln2 - ln3
}

// ChiSquare computes the one-sided p-value for the same "A and B
// co-occur more than chance" hypothesis using Pearson's chi-square
// statistic (no Yates continuity correction) and the chi-square
// distribution's upper tail for one degree of freedom. Used as a cheap
// approximation to FisherExactGreater at large document counts where
// the exact hypergeometric summation becomes a much larger loop.
func ChiSquare(t ContingencyTable) float64 {
	n := float64(t.N())
	if n == 0 {
		return 1.0
	}
	a, b, c, d := float64(t.A), float64(t.B), float64(t.C), float64(t.D)

	rowA := a + b
	rowC := c + d
	colA := a + c
	colB := b + d
	if rowA == 0 || rowC == 0 || colA == 0 || colB == 0 {
		return 1.0
	}

	diff := a*d - b*c
	if diff <= 0 {
		// Observed association is in the wrong direction (or none) for
		// the "greater" alternative; not significant by construction.
		return 1.0
	}

	chi2 := n * diff * diff / (rowA * rowC * colA * colB)
	return chiSquareUpperTail1DF(chi2)
}

// chiSquareUpperTail1DF returns P(X > x) for X ~ chi-square(1), using
// the identity that sqrt(X) is half-normal distributed.
func chiSquareUpperTail1DF(x float64) float64 {
	if x < 0 {
		return 1.0
	}
	return math.Erfc(math.Sqrt(x / 2.0))
}

// SortRatio is the fraction of B-containing documents that also contain
// A (t[0][0] / (t[0][0] + t[1][0]) over the table laid out on
// ContingencyTable). It breaks ties between relationships with
// identical (often vanishingly small) p-values by preferring the
// stronger conditional hit rate.
func SortRatio(t ContingencyTable) float64 {
	denom := t.A + t.C
	if denom == 0 {
		return 0
	}
	return float64(t.A) / float64(denom)
}

// maxNegLog10PValue is -log10 of the smallest representable positive
// float64 (~4.94e-324); it bounds how far a vanishing p-value can push
// the prediction score's first component before saturating.
const maxNegLog10PValue = 323.0

// ratioMultiplier scales SortRatio, which lives in [0, 1], up before it
// is normalized against the same bound as the p-value component — a raw
// ratio difference of e.g. 0.001 would otherwise never move the score.
const ratioMultiplier = 2500.0

// PredictionScore combines a p-value and a sort ratio into a single
// score in [0, 2]: the first unit comes from how extreme the p-value is
// (saturating at maxNegLog10PValue), the second from how close the sort
// ratio is to 1, via -log10(1-ratio) scaled by ratioMultiplier and
// saturating at the same bound. Relationships are typically ranked by
// this score after filtering to those below a p-value cutoff.
func PredictionScore(pvalue, sortRatio float64) float64 {
	negLog := maxNegLog10PValue
	if pvalue > 0 {
		negLog = -math.Log10(pvalue)
		if negLog > maxNegLog10PValue {
			negLog = maxNegLog10PValue
		}
	}
	pvalueComponent := negLog / maxNegLog10PValue

	negLogRatio := maxNegLog10PValue
	if sortRatio != 1 {
		negLogRatio = -math.Log10(1-sortRatio) * ratioMultiplier
		if negLogRatio > maxNegLog10PValue {
			negLogRatio = maxNegLog10PValue
		}
	}
	ratioComponent := negLogRatio / maxNegLog10PValue

	return pvalueComponent + ratioComponent
}
