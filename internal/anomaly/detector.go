// Package anomaly scores engineered transaction features for fraud with
// grouped isolation forests: five detectors over curated column subsets,
// then a combined verdict over everything including the group outputs.
//
// Scores are batch-relative. The same transaction can score differently
// depending on what else is in the batch; there is no persisted model or
// reference distribution.
package anomaly

import (
	"errors"
	"fmt"

	"okapi/banksim-api/internal/domain"
	"okapi/banksim-api/internal/feature"
)

// ErrBatchTooSmall is returned for batches with fewer than two rows, which
// cannot be meaningfully scored against themselves.
var ErrBatchTooSmall = errors.New("anomaly: batch too small to score")

// ErrTransactionNotFound is returned by ScoreOne when the candidate row
// cannot be located in the scored batch.
var ErrTransactionNotFound = errors.New("anomaly: transaction not found in batch")

// GroupScore is one detector's output for one row: whether the row tripped
// the flag and its normalized score in [0, 1], 1 being most anomalous.
type GroupScore struct {
	Flag  bool    `json:"flag"`
	Score float64 `json:"score"`
}

// Verdict is the full scoring outcome for one transaction.
type Verdict struct {
	UnusualAmount   GroupScore `json:"unusual_amount"`
	UnusualBalance  GroupScore `json:"unusual_balance"`
	UnusualLocation GroupScore `json:"unusual_location"`
	UnusualTime     GroupScore `json:"unusual_time"`
	UnusualDevice   GroupScore `json:"unusual_device"`
	Fraud           bool       `json:"fraud"`
	FraudScore      float64    `json:"fraud_score"`
}

// Result pairs each feature row with its verdict, index-aligned.
type Result struct {
	Rows     []feature.Row `json:"rows"`
	Verdicts []Verdict     `json:"verdicts"`
}

// Column subsets each group detector is restricted to.
var (
	amountColumns = []string{
		"large_amount", "large_amount_drain", "large_amount_pump",
		"holder_amount_bound_frequency",
		"holder_large_amount_drain_occurrence", "holder_large_amount_pump_occurrence",
		"amount_avg_30d",
	}
	balanceColumns = []string{
		"balance_jump_rate", "balance_jump_rate_absolute", "drained_balance", "pumped_balance",
		"holder_balance_jump_bound_frequency", "holder_balance_jump_rate_bound_frequency",
		"holder_drained_balance_occurrence", "holder_pumped_balance_occurrence",
		"balance_avg_30d",
	}
	locationColumns = []string{
		"distance_from_home_km", "far_distance",
		"holder_far_distance_occurrence",
		"distance_from_home_km_avg_30d",
	}
	timeColumns = []string{
		"holder_hour_bound_frequency", "hour_bound_frequency_avg_30d",
	}
	deviceColumns = []string{
		"holder_device_count_frequency", "holder_device_has_history",
		"is_opening_device", "device_frequency_avg_30d",
	}
)

// DetectFraud runs the whole pipeline: derive features causally, then score
// the batch. Pure with respect to its inputs.
func DetectFraud(transactions []domain.Transaction, accounts []domain.AccountRow) (*Result, error) {
	rows, err := feature.Extract(transactions, accounts)
	if err != nil {
		return nil, err
	}
	verdicts, err := Check(feature.NewFrame(rows))
	if err != nil {
		return nil, err
	}
	return &Result{Rows: rows, Verdicts: verdicts}, nil
}

// ScoreOne scores a candidate transaction against its history and returns
// that transaction's row and verdict. The batch is history plus candidate,
// so the verdict reflects how the candidate stands out from what came
// before it.
func ScoreOne(tx domain.Transaction, history []domain.Transaction, accounts []domain.AccountRow) (feature.Row, Verdict, error) {
	batch := make([]domain.Transaction, 0, len(history)+1)
	batch = append(batch, history...)
	batch = append(batch, tx)

	result, err := DetectFraud(batch, accounts)
	if err != nil {
		return feature.Row{}, Verdict{}, err
	}
	for i, row := range result.Rows {
		if row.Reference == tx.Reference && row.Type == tx.Type && row.Time.Equal(tx.Time) {
			return row, result.Verdicts[i], nil
		}
	}
	return feature.Row{}, Verdict{}, ErrTransactionNotFound
}

// Check scores an already-built feature frame: label-encode the categorical
// columns, robust-scale everything, run the five group detectors and fold
// their outputs into the combined fraud model.
func Check(frame *feature.Frame) ([]Verdict, error) {
	if frame.Len() < 2 {
		return nil, fmt.Errorf("%w: %d rows", ErrBatchTooSmall, frame.Len())
	}

	t := scaledTable(frame)
	verdicts := make([]Verdict, frame.Len())

	groups := []struct {
		name    string
		columns []string
		slot    func(*Verdict) *GroupScore
	}{
		{"unusual_amount", amountColumns, func(v *Verdict) *GroupScore { return &v.UnusualAmount }},
		{"unusual_balance", balanceColumns, func(v *Verdict) *GroupScore { return &v.UnusualBalance }},
		{"unusual_location", locationColumns, func(v *Verdict) *GroupScore { return &v.UnusualLocation }},
		{"unusual_time", timeColumns, func(v *Verdict) *GroupScore { return &v.UnusualTime }},
		{"unusual_device", deviceColumns, func(v *Verdict) *GroupScore { return &v.UnusualDevice }},
	}

	for _, group := range groups {
		flags, scores, err := t.run(group.columns)
		if err != nil {
			return nil, err
		}
		for i := range verdicts {
			*group.slot(&verdicts[i]) = GroupScore{Flag: flags[i], Score: scores[i]}
		}
		// The combined model sees the group outputs unscaled, the way the
		// rest of the columns were before scaling saw them.
		t.add(group.name+"_score", scores)
		t.add(group.name+"_flag", boolColumn(flags))
	}

	flags, scores, err := t.run(t.names)
	if err != nil {
		return nil, err
	}
	for i := range verdicts {
		verdicts[i].Fraud = flags[i]
		verdicts[i].FraudScore = scores[i]
	}
	return verdicts, nil
}

// table is the numeric working set the detectors run over: encoded, scaled
// columns plus the group outputs appended as they are produced.
type table struct {
	names []string
	cols  map[string][]float64
	rows  int
}

// scaledTable encodes and scales every frame column.
func scaledTable(frame *feature.Frame) *table {
	t := &table{cols: make(map[string][]float64), rows: frame.Len()}
	for _, name := range frame.Names() {
		if col, ok := frame.Numeric(name); ok {
			t.add(name, robustScale(col))
			continue
		}
		if col, ok := frame.Categorical(name); ok {
			t.add(name, robustScale(labelEncode(col)))
		}
	}
	return t
}

func (t *table) add(name string, col []float64) {
	t.names = append(t.names, name)
	t.cols[name] = col
}

// run fits an isolation forest over the named columns and returns per-row
// flags and normalized scores.
func (t *table) run(columns []string) ([]bool, []float64, error) {
	samples := make([][]float64, t.rows)
	for i := range samples {
		samples[i] = make([]float64, len(columns))
	}
	for j, name := range columns {
		col, ok := t.cols[name]
		if !ok {
			return nil, nil, fmt.Errorf("anomaly: missing column %q", name)
		}
		for i := range col {
			samples[i][j] = col[i]
		}
	}

	forest := fitForest(samples)
	flags := make([]bool, t.rows)
	decisions := make([]float64, t.rows)
	for i, x := range samples {
		d := forest.decisionFunction(x)
		flags[i] = d < 0
		decisions[i] = d
	}

	return flags, normalize(decisions), nil
}

// normalize rescales decision values so the most anomalous row scores 1 and
// the least scores 0. A flat batch scores 0 everywhere.
func normalize(decisions []float64) []float64 {
	min, max := decisions[0], decisions[0]
	for _, d := range decisions {
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
	}

	scores := make([]float64, len(decisions))
	if max == min {
		return scores
	}
	for i, d := range decisions {
		scores[i] = (max - d) / (max - min)
	}
	return scores
}

func boolColumn(flags []bool) []float64 {
	col := make([]float64, len(flags))
	for i, f := range flags {
		if f {
			col[i] = 1
		}
	}
	return col
}
