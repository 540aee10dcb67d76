package anomaly_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"okapi/banksim-api/internal/anomaly"
	"okapi/banksim-api/internal/domain"
	"okapi/banksim-api/internal/feature"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

var detectorBase = time.Date(2023, 1, 2, 10, 0, 0, 0, time.UTC)

func detectorAccounts() []domain.AccountRow {
	return []domain.AccountRow{
		{Account: domain.Account{
			AccountNo: "ACC_0000000001", BankName: "Alpha Bank", BVN: "USER_a",
			KYC: 2, OpeningDevice: "MOBILE_a",
		}},
		{Account: domain.Account{
			AccountNo: "ACC_0000000002", BankName: "Alpha Bank", BVN: "USER_b",
			KYC: 2, OpeningDevice: "MOBILE_b",
		}},
	}
}

// steadyBatch is a run of small, regular transfers from the same holder,
// device and location.
func steadyBatch(n int) []domain.Transaction {
	txs := make([]domain.Transaction, 0, n)
	balance := 10_000.0
	for i := 0; i < n; i++ {
		balance -= 100
		txs = append(txs, domain.Transaction{
			Amount:      100,
			Balance:     balance,
			Time:        detectorBase.Add(time.Duration(i) * time.Hour),
			Holder:      "ACC_0000000001",
			HolderBank:  "Alpha Bank",
			Related:     "ACC_0000000002",
			RelatedBank: "Alpha Bank",
			Location:    domain.Location{Latitude: 9.30, Longitude: 3.90},
			Status:      domain.StatusSuccess,
			Type:        domain.TypeDebit,
			Category:    domain.CategoryTransfer,
			Channel:     domain.ChannelApp,
			Device:      "MOBILE_a",
			Reference:   fmt.Sprintf("steady-%d", i),
		})
	}
	return txs
}

// drainTx moves nearly everything out from an unfamiliar device far from
// the holder's usual locations.
func drainTx(balance float64, at time.Time) domain.Transaction {
	return domain.Transaction{
		Amount:      balance * .99,
		Balance:     balance * .01,
		Time:        at,
		Holder:      "ACC_0000000001",
		HolderBank:  "Alpha Bank",
		Related:     "ACC_0000000002",
		RelatedBank: "Alpha Bank",
		Location:    domain.Location{Latitude: 52.52, Longitude: 13.40},
		Status:      domain.StatusSuccess,
		Type:        domain.TypeDebit,
		Category:    domain.CategoryTransfer,
		Channel:     domain.ChannelUSSD,
		Device:      "MOBILE_stolen",
		Reference:   "drain-1",
	}
}

// ─── Batch scoring ────────────────────────────────────────────────────────────

func TestDetectFraud_RejectsTinyBatches(t *testing.T) {
	accounts := detectorAccounts()

	_, err := anomaly.DetectFraud(steadyBatch(1), accounts)
	if !errors.Is(err, anomaly.ErrBatchTooSmall) {
		t.Fatalf("1-row batch error = %v, want ErrBatchTooSmall", err)
	}
	_, err = anomaly.DetectFraud(nil, accounts)
	if !errors.Is(err, anomaly.ErrBatchTooSmall) {
		t.Fatalf("empty batch error = %v, want ErrBatchTooSmall", err)
	}
}

func TestDetectFraud_ScoresWholeBatch(t *testing.T) {
	batch := steadyBatch(20)
	result, err := anomaly.DetectFraud(batch, detectorAccounts())
	if err != nil {
		t.Fatalf("detect: %v", err)
	}

	if len(result.Rows) != len(batch) || len(result.Verdicts) != len(batch) {
		t.Fatalf("got %d rows / %d verdicts for %d transactions",
			len(result.Rows), len(result.Verdicts), len(batch))
	}
	for i, v := range result.Verdicts {
		if v.FraudScore < 0 || v.FraudScore > 1 {
			t.Errorf("verdict %d fraud score %f outside [0, 1]", i, v.FraudScore)
		}
		for _, g := range []anomaly.GroupScore{
			v.UnusualAmount, v.UnusualBalance, v.UnusualLocation, v.UnusualTime, v.UnusualDevice,
		} {
			if g.Score < 0 || g.Score > 1 {
				t.Errorf("verdict %d group score %f outside [0, 1]", i, g.Score)
			}
		}
	}
}

func TestDetectFraud_Deterministic(t *testing.T) {
	batch := steadyBatch(15)
	accounts := detectorAccounts()

	a, err := anomaly.DetectFraud(batch, accounts)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	b, err := anomaly.DetectFraud(batch, accounts)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}

	for i := range a.Verdicts {
		if a.Verdicts[i] != b.Verdicts[i] {
			t.Fatalf("verdict %d differs across identical batches", i)
		}
	}
}

func TestDetectFraud_DrainStandsOut(t *testing.T) {
	batch := steadyBatch(30)
	last := batch[len(batch)-1]
	batch = append(batch, drainTx(last.Balance, last.Time.Add(time.Hour)))

	result, err := anomaly.DetectFraud(batch, detectorAccounts())
	if err != nil {
		t.Fatalf("detect: %v", err)
	}

	drain := result.Verdicts[len(result.Verdicts)-1]
	var maxOther float64
	for _, v := range result.Verdicts[:len(result.Verdicts)-1] {
		if v.FraudScore > maxOther {
			maxOther = v.FraudScore
		}
	}
	if drain.FraudScore < maxOther {
		t.Errorf("drain scored %f, below the steady maximum %f", drain.FraudScore, maxOther)
	}
	if drain.UnusualLocation.Score < 0.5 {
		t.Errorf("a transaction 5000 km away scored %f for location", drain.UnusualLocation.Score)
	}
}

// ─── Single-transaction scoring ───────────────────────────────────────────────

func TestScoreOne_ReturnsCandidateRow(t *testing.T) {
	history := steadyBatch(20)
	last := history[len(history)-1]
	candidate := drainTx(last.Balance, last.Time.Add(time.Hour))

	row, verdict, err := anomaly.ScoreOne(candidate, history, detectorAccounts())
	if err != nil {
		t.Fatalf("score one: %v", err)
	}
	if row.Reference != candidate.Reference {
		t.Fatalf("returned row %q, want the candidate", row.Reference)
	}
	if verdict.FraudScore < 0 || verdict.FraudScore > 1 {
		t.Errorf("fraud score %f outside [0, 1]", verdict.FraudScore)
	}
}

func TestScoreOne_TooLittleHistory(t *testing.T) {
	candidate := steadyBatch(1)[0]

	_, _, err := anomaly.ScoreOne(candidate, nil, detectorAccounts())
	if !errors.Is(err, anomaly.ErrBatchTooSmall) {
		t.Fatalf("error = %v, want ErrBatchTooSmall", err)
	}
}

// ─── Frame-level guards ───────────────────────────────────────────────────────

func TestCheck_TwoRowBatchScoresZero(t *testing.T) {
	// With two rows every split isolates both at the same depth, so the
	// decisions tie and normalization gives zeros instead of dividing by a
	// zero spread.
	a := steadyBatch(1)[0]
	b := a
	b.Reference = "steady-copy"

	rows, err := feature.Extract([]domain.Transaction{a, b}, detectorAccounts())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	verdicts, err := anomaly.Check(feature.NewFrame(rows))
	if err != nil {
		t.Fatalf("check: %v", err)
	}

	for i, v := range verdicts {
		if v.FraudScore != 0 {
			t.Errorf("verdict %d fraud score = %f, want 0 for a flat batch", i, v.FraudScore)
		}
	}
}
