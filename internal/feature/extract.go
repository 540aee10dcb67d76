package feature

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"okapi/banksim-api/internal/domain"
	"okapi/banksim-api/internal/geo"
)

// ErrUnknownAccount is returned when a transaction's holder cannot be
// resolved against the accounts table.
var ErrUnknownAccount = errors.New("feature: unknown holder account")

type acctKey struct {
	accountNo string
	bankName  string
}

// trailEntry is one past transaction's contribution to a holder's rolling
// windows, in WindowAverages field order.
type trailEntry struct {
	time   time.Time
	values [10]float64
}

// holderTrail is the accumulated past of one holder account: the running
// location centroid, the raw value history the bound frequencies scan, and
// the windowed dynamics history.
type holderTrail struct {
	latSum, lonSum float64
	visits         int

	hours    []float64
	balances []float64
	amounts  []float64
	jumps    []float64
	rates    []float64
	ratesAbs []float64

	window []trailEntry
}

type pairKey struct {
	feature string
	target  string
	value   string
}

type occKey struct {
	counter string
	target  string
}

// Extractor folds transactions in time order, deriving each row's features
// from the state accumulated so far and then absorbing the row. Rows must be
// pushed oldest first.
type Extractor struct {
	accounts map[acctKey]domain.AccountRow

	trails      map[string]*holderTrail
	pairCounts  map[pairKey]int
	occurrences map[occKey]int
}

// NewExtractor creates an extractor with empty history over the given
// accounts table.
func NewExtractor(accounts []domain.AccountRow) *Extractor {
	index := make(map[acctKey]domain.AccountRow, len(accounts))
	for _, acct := range accounts {
		index[acctKey{acct.AccountNo, acct.BankName}] = acct
	}
	return &Extractor{
		accounts:    index,
		trails:      make(map[string]*holderTrail),
		pairCounts:  make(map[pairKey]int),
		occurrences: make(map[occKey]int),
	}
}

// Extract derives the feature table for a whole batch. Transactions are
// sorted by time first; the input slice is not modified. Rows that share a
// timestamp are derived against the state before any of them, so only
// strictly earlier transactions ever contribute to a row.
func Extract(transactions []domain.Transaction, accounts []domain.AccountRow) ([]Row, error) {
	sorted := make([]domain.Transaction, len(transactions))
	copy(sorted, transactions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})

	x := NewExtractor(accounts)
	rows := make([]Row, 0, len(sorted))
	for i := 0; i < len(sorted); {
		j := i + 1
		for j < len(sorted) && sorted[j].Time.Equal(sorted[i].Time) {
			j++
		}

		group := make([]pending, 0, j-i)
		for _, tx := range sorted[i:j] {
			p, err := x.derive(tx)
			if err != nil {
				return nil, err
			}
			group = append(group, p)
			rows = append(rows, p.row)
		}
		for _, p := range group {
			x.absorb(p)
		}
		i = j
	}
	return rows, nil
}

// ExtractOne derives a single transaction's features against its causal
// history: only rows strictly before the transaction's time contribute, so
// the result is unchanged by anything that happens later.
func ExtractOne(tx domain.Transaction, history []domain.Transaction, accounts []domain.AccountRow) (Row, error) {
	past := make([]domain.Transaction, 0, len(history))
	for _, h := range history {
		if h.Time.Before(tx.Time) {
			past = append(past, h)
		}
	}
	sort.SliceStable(past, func(i, j int) bool {
		return past[i].Time.Before(past[j].Time)
	})

	x := NewExtractor(accounts)
	for _, h := range past {
		if _, err := x.Push(h); err != nil {
			return Row{}, err
		}
	}
	return x.Push(tx)
}

// pending is a derived row waiting to be folded into the state.
type pending struct {
	tx         domain.Transaction
	row        Row
	trail      *holderTrail
	entry      trailEntry
	isReversal bool
}

// Push derives the feature row for tx from the extractor's current state,
// then folds tx into that state.
func (x *Extractor) Push(tx domain.Transaction) (Row, error) {
	p, err := x.derive(tx)
	if err != nil {
		return Row{}, err
	}
	x.absorb(p)
	return p.row, nil
}

// derive computes the feature row for tx without folding it in, so rows that
// share a timestamp can all be derived from the same past.
func (x *Extractor) derive(tx domain.Transaction) (pending, error) {
	holderAcct, ok := x.accounts[acctKey{tx.Holder, tx.HolderBank}]
	if !ok {
		return pending{}, fmt.Errorf("%w: %s at %s", ErrUnknownAccount, tx.Holder, tx.HolderBank)
	}

	row := Row{Transaction: tx}

	// Account linkage. A counterparty with no account row keeps its bank
	// name as the BVN stand-in.
	row.HolderBVN = holderAcct.BVN
	row.KYC = holderAcct.KYC
	row.Merchant = holderAcct.Merchant
	row.RelatedBVN = tx.RelatedBank
	if related, ok := x.accounts[acctKey{tx.Related, tx.RelatedBank}]; ok {
		row.RelatedBVN = related.BVN
	}
	row.SubAccount = row.HolderBVN == row.RelatedBVN
	row.IsOpeningDevice = tx.Device == holderAcct.OpeningDevice

	// Time.
	row.Hour = tx.Time.Hour()
	row.WeekDay = tx.Time.Weekday().String()
	row.Month = tx.Time.Month().String()
	row.Date = tx.Time.Format("2006-01-02")
	row.MonthDay = tx.Time.Day()

	// Money.
	row.LargeAmount = domain.TransactionLimits[row.KYC] < tx.Amount
	row.BalanceJump = tx.Amount
	if tx.Type == domain.TypeDebit {
		row.BalanceJump = -tx.Amount
	}
	row.PreviousBalance = tx.Balance - row.BalanceJump
	row.BalanceJumpRate = row.BalanceJump / math.Max(row.PreviousBalance, 1)
	row.BalanceJumpRateAbsolute = math.Abs(row.BalanceJumpRate)
	row.DrainedBalance = row.BalanceJumpRate < -balanceJumpExtreme
	row.PumpedBalance = row.BalanceJumpRate > balanceJumpExtreme
	row.LargeAmountDrain = row.LargeAmount && row.DrainedBalance
	row.LargeAmountPump = row.LargeAmount && row.PumpedBalance

	// Location. Account numbers repeat across banks, so every per-holder
	// key carries the bank.
	holderKey := tx.Holder + "|" + tx.HolderBank
	relatedKey := tx.Related + "|" + tx.RelatedBank
	trail := x.trails[holderKey]
	if trail == nil {
		trail = &holderTrail{}
		x.trails[holderKey] = trail
	}
	row.CentralLatitude, row.CentralLongitude = tx.Latitude, tx.Longitude
	if trail.visits > 0 {
		row.CentralLatitude = trail.latSum / float64(trail.visits)
		row.CentralLongitude = trail.lonSum / float64(trail.visits)
	}
	row.DistanceFromHome = geo.Distance(
		domain.Location{Latitude: row.CentralLatitude, Longitude: row.CentralLongitude},
		tx.Location,
	)
	row.FarDistance = row.DistanceFromHome >= farDistanceKm

	// Frequency counts, before the current row is absorbed.
	row.HolderRelatedFrequency = x.pairCounts[pairKey{"holder/related", holderKey, tx.Related}]
	row.HolderDeviceFrequency = x.pairCounts[pairKey{"holder/device", holderKey, tx.Device}]
	row.HolderChannelFrequency = x.pairCounts[pairKey{"holder/channel", holderKey, tx.Channel}]
	row.HolderBVNRelatedFrequency = x.pairCounts[pairKey{"bvn/related_bvn", row.HolderBVN, row.RelatedBVN}]
	row.HolderBVNDeviceFrequency = x.pairCounts[pairKey{"bvn/device", row.HolderBVN, tx.Device}]
	row.HolderBVNChannelFrequency = x.pairCounts[pairKey{"bvn/channel", row.HolderBVN, tx.Channel}]
	row.HolderDeviceHasHistory = row.HolderDeviceFrequency > 0

	// Bound-membership frequencies over the holder's past values.
	row.HourBoundFrequency = countWithin(trail.hours, float64(row.Hour)-1, float64(row.Hour)+1)
	row.BalanceBoundFrequency = countWithin(trail.balances, tx.Balance*.5, tx.Balance*1.5)
	row.AmountBoundFrequency = countWithin(trail.amounts, tx.Amount*.5, tx.Amount*1.5)
	row.BalanceJumpBoundFrequency = countWithin(trail.jumps, row.BalanceJump*.5, row.BalanceJump*1.5)
	row.BalanceJumpRateBoundFrequency = countWithin(trail.rates, row.BalanceJumpRate-.2, row.BalanceJumpRate+.2)
	row.BalanceJumpRateAbsoluteBoundFrequency = countWithin(trail.ratesAbs, row.BalanceJumpRateAbsolute-.2, row.BalanceJumpRateAbsolute+.2)

	// Occurrence counts. A row that does not itself carry the flag reports
	// zero rather than the running count.
	isReversal := tx.Category == domain.CategoryReversal
	row.HolderReportedOccurrence = x.occurrence("holder/reported", holderKey, tx.Reported)
	row.HolderReversalOccurrence = x.occurrence("holder/reversal", holderKey, isReversal)
	row.HolderDrainedOccurrence = x.occurrence("holder/drained", holderKey, row.DrainedBalance)
	row.HolderPumpedOccurrence = x.occurrence("holder/pumped", holderKey, row.PumpedBalance)
	row.HolderLargeDrainOccurrence = x.occurrence("holder/large_drain", holderKey, row.LargeAmountDrain)
	row.HolderLargePumpOccurrence = x.occurrence("holder/large_pump", holderKey, row.LargeAmountPump)
	row.HolderFarDistanceOccurrence = x.occurrence("holder/far", holderKey, row.FarDistance)
	row.HolderBVNReportedOccurrence = x.occurrence("bvn/reported", row.HolderBVN, tx.Reported)
	row.HolderBVNReversalOccurrence = x.occurrence("bvn/reversal", row.HolderBVN, isReversal)
	row.HolderBVNFarDistanceOccurrence = x.occurrence("bvn/far", row.HolderBVN, row.FarDistance)
	row.RelatedReportedOccurrence = x.occurrence("related/reported", relatedKey, tx.Reported)
	row.RelatedReversalOccurrence = x.occurrence("related/reversal", relatedKey, isReversal)
	row.RelatedBVNReportedOccurrence = x.occurrence("related_bvn/reported", row.RelatedBVN, tx.Reported)
	row.RelatedBVNReversalOccurrence = x.occurrence("related_bvn/reversal", row.RelatedBVN, isReversal)

	// Rolling averages over the holder's windowed past, current row
	// included, so an isolated transaction averages to itself.
	entry := trailEntry{
		time: tx.Time,
		values: [10]float64{
			tx.Amount,
			tx.Balance,
			row.BalanceJump,
			row.BalanceJumpRate,
			row.DistanceFromHome,
			float64(row.HolderDeviceFrequency),
			float64(row.HourBoundFrequency),
			float64(row.HolderRelatedFrequency),
			float64(row.HolderReversalOccurrence),
			float64(row.HolderReportedOccurrence),
		},
	}
	for _, days := range Windows {
		*row.averages(days) = windowAverages(trail.window, entry, days)
	}

	return pending{tx: tx, row: row, trail: trail, entry: entry, isReversal: isReversal}, nil
}

// occurrence reports the running count for a flag counter when the current
// row carries the flag, and bumps it afterwards via absorb.
func (x *Extractor) occurrence(counter, target string, holds bool) int {
	if !holds {
		return 0
	}
	return x.occurrences[occKey{counter, target}]
}

// absorb folds a derived row into the accumulated state.
func (x *Extractor) absorb(p pending) {
	tx, row, trail := p.tx, p.row, p.trail

	trail.latSum += tx.Latitude
	trail.lonSum += tx.Longitude
	trail.visits++

	trail.hours = append(trail.hours, float64(row.Hour))
	trail.balances = append(trail.balances, tx.Balance)
	trail.amounts = append(trail.amounts, tx.Amount)
	trail.jumps = append(trail.jumps, row.BalanceJump)
	trail.rates = append(trail.rates, row.BalanceJumpRate)
	trail.ratesAbs = append(trail.ratesAbs, row.BalanceJumpRateAbsolute)
	trail.window = append(trail.window, p.entry)

	holderKey := tx.Holder + "|" + tx.HolderBank
	relatedKey := tx.Related + "|" + tx.RelatedBank
	x.pairCounts[pairKey{"holder/related", holderKey, tx.Related}]++
	x.pairCounts[pairKey{"holder/device", holderKey, tx.Device}]++
	x.pairCounts[pairKey{"holder/channel", holderKey, tx.Channel}]++
	x.pairCounts[pairKey{"bvn/related_bvn", row.HolderBVN, row.RelatedBVN}]++
	x.pairCounts[pairKey{"bvn/device", row.HolderBVN, tx.Device}]++
	x.pairCounts[pairKey{"bvn/channel", row.HolderBVN, tx.Channel}]++

	x.bump("holder/reported", holderKey, tx.Reported)
	x.bump("holder/reversal", holderKey, p.isReversal)
	x.bump("holder/drained", holderKey, row.DrainedBalance)
	x.bump("holder/pumped", holderKey, row.PumpedBalance)
	x.bump("holder/large_drain", holderKey, row.LargeAmountDrain)
	x.bump("holder/large_pump", holderKey, row.LargeAmountPump)
	x.bump("holder/far", holderKey, row.FarDistance)
	x.bump("bvn/reported", row.HolderBVN, tx.Reported)
	x.bump("bvn/reversal", row.HolderBVN, p.isReversal)
	x.bump("bvn/far", row.HolderBVN, row.FarDistance)
	x.bump("related/reported", relatedKey, tx.Reported)
	x.bump("related/reversal", relatedKey, p.isReversal)
	x.bump("related_bvn/reported", row.RelatedBVN, tx.Reported)
	x.bump("related_bvn/reversal", row.RelatedBVN, p.isReversal)
}

func (x *Extractor) bump(counter, target string, holds bool) {
	if holds {
		x.occurrences[occKey{counter, target}]++
	}
}

// countWithin counts values v with low <= v <= high.
func countWithin(values []float64, low, high float64) int {
	count := 0
	for _, v := range values {
		if low <= v && v <= high {
			count++
		}
	}
	return count
}

// windowAverages computes the mean of each tracked dynamic over the entries
// within days of current's time, the current entry included.
func windowAverages(past []trailEntry, current trailEntry, days int) WindowAverages {
	cutoff := current.time.Add(-time.Duration(days) * 24 * time.Hour)

	var sums [10]float64
	n := 0
	for _, e := range past {
		if e.time.Before(cutoff) {
			continue
		}
		for i, v := range e.values {
			sums[i] += v
		}
		n++
	}
	for i, v := range current.values {
		sums[i] += v
	}
	n++

	f := float64(n)
	return WindowAverages{
		Amount:             sums[0] / f,
		Balance:            sums[1] / f,
		BalanceJump:        sums[2] / f,
		BalanceJumpRate:    sums[3] / f,
		DistanceFromHome:   sums[4] / f,
		DeviceFrequency:    sums[5] / f,
		HourBoundFrequency: sums[6] / f,
		RelatedFrequency:   sums[7] / f,
		ReversalOccurrence: sums[8] / f,
		ReportedOccurrence: sums[9] / f,
	}
}
