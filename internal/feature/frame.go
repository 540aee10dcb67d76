package feature

import "fmt"

// windowFeatureNames label the tracked dynamics, in WindowAverages field
// order, used to name the rolling-average columns.
var windowFeatureNames = [10]string{
	"amount",
	"balance",
	"balance_jump",
	"balance_jump_rate",
	"distance_from_home_km",
	"device_frequency",
	"hour_bound_frequency",
	"related_frequency",
	"reversal_occurrence",
	"reported_occurrence",
}

func (w WindowAverages) values() [10]float64 {
	return [10]float64{
		w.Amount,
		w.Balance,
		w.BalanceJump,
		w.BalanceJumpRate,
		w.DistanceFromHome,
		w.DeviceFrequency,
		w.HourBoundFrequency,
		w.RelatedFrequency,
		w.ReversalOccurrence,
		w.ReportedOccurrence,
	}
}

// Frame is a columnar view of a feature table, the shape the anomaly
// detector consumes. Each column is either numeric or categorical; the
// column order is fixed by the schema, so a frame built from the same rows
// is always laid out the same way.
type Frame struct {
	names       []string
	numeric     map[string][]float64
	categorical map[string][]string
	rows        int
}

var categoricalColumns = []struct {
	name  string
	value func(*Row) string
}{
	{"time", func(r *Row) string { return r.Time.Format("2006-01-02 15:04:05") }},
	{"type", func(r *Row) string { return r.Type }},
	{"category", func(r *Row) string { return r.Category }},
	{"channel", func(r *Row) string { return r.Channel }},
	{"status", func(r *Row) string { return r.Status }},
	{"device", func(r *Row) string { return r.Device }},
	{"reference", func(r *Row) string { return r.Reference }},
	{"holder", func(r *Row) string { return r.Holder }},
	{"holder_bank", func(r *Row) string { return r.HolderBank }},
	{"related", func(r *Row) string { return r.Related }},
	{"related_bank", func(r *Row) string { return r.RelatedBank }},
	{"holder_bvn", func(r *Row) string { return r.HolderBVN }},
	{"related_bvn", func(r *Row) string { return r.RelatedBVN }},
	{"week_day", func(r *Row) string { return r.WeekDay }},
	{"month", func(r *Row) string { return r.Month }},
	{"date", func(r *Row) string { return r.Date }},
}

var numericColumns = []struct {
	name  string
	value func(*Row) float64
}{
	{"amount", func(r *Row) float64 { return r.Amount }},
	{"balance", func(r *Row) float64 { return r.Balance }},
	{"latitude", func(r *Row) float64 { return r.Latitude }},
	{"longitude", func(r *Row) float64 { return r.Longitude }},
	{"reported", func(r *Row) float64 { return b2f(r.Reported) }},
	{"kyc", func(r *Row) float64 { return float64(r.KYC) }},
	{"merchant", func(r *Row) float64 { return b2f(r.Merchant) }},
	{"sub_account", func(r *Row) float64 { return b2f(r.SubAccount) }},
	{"is_opening_device", func(r *Row) float64 { return b2f(r.IsOpeningDevice) }},
	{"hour", func(r *Row) float64 { return float64(r.Hour) }},
	{"month_day", func(r *Row) float64 { return float64(r.MonthDay) }},
	{"large_amount", func(r *Row) float64 { return b2f(r.LargeAmount) }},
	{"balance_jump", func(r *Row) float64 { return r.BalanceJump }},
	{"previous_balance", func(r *Row) float64 { return r.PreviousBalance }},
	{"balance_jump_rate", func(r *Row) float64 { return r.BalanceJumpRate }},
	{"balance_jump_rate_absolute", func(r *Row) float64 { return r.BalanceJumpRateAbsolute }},
	{"drained_balance", func(r *Row) float64 { return b2f(r.DrainedBalance) }},
	{"pumped_balance", func(r *Row) float64 { return b2f(r.PumpedBalance) }},
	{"large_amount_drain", func(r *Row) float64 { return b2f(r.LargeAmountDrain) }},
	{"large_amount_pump", func(r *Row) float64 { return b2f(r.LargeAmountPump) }},
	{"central_latitude", func(r *Row) float64 { return r.CentralLatitude }},
	{"central_longitude", func(r *Row) float64 { return r.CentralLongitude }},
	{"distance_from_home_km", func(r *Row) float64 { return r.DistanceFromHome }},
	{"far_distance", func(r *Row) float64 { return b2f(r.FarDistance) }},
	{"holder_related_count_frequency", func(r *Row) float64 { return float64(r.HolderRelatedFrequency) }},
	{"holder_device_count_frequency", func(r *Row) float64 { return float64(r.HolderDeviceFrequency) }},
	{"holder_channel_count_frequency", func(r *Row) float64 { return float64(r.HolderChannelFrequency) }},
	{"holder_bvn_related_bvn_count_frequency", func(r *Row) float64 { return float64(r.HolderBVNRelatedFrequency) }},
	{"holder_bvn_device_count_frequency", func(r *Row) float64 { return float64(r.HolderBVNDeviceFrequency) }},
	{"holder_bvn_channel_count_frequency", func(r *Row) float64 { return float64(r.HolderBVNChannelFrequency) }},
	{"holder_device_has_history", func(r *Row) float64 { return b2f(r.HolderDeviceHasHistory) }},
	{"holder_hour_bound_frequency", func(r *Row) float64 { return float64(r.HourBoundFrequency) }},
	{"holder_balance_bound_frequency", func(r *Row) float64 { return float64(r.BalanceBoundFrequency) }},
	{"holder_amount_bound_frequency", func(r *Row) float64 { return float64(r.AmountBoundFrequency) }},
	{"holder_balance_jump_bound_frequency", func(r *Row) float64 { return float64(r.BalanceJumpBoundFrequency) }},
	{"holder_balance_jump_rate_bound_frequency", func(r *Row) float64 { return float64(r.BalanceJumpRateBoundFrequency) }},
	{"holder_balance_jump_rate_absolute_bound_frequency", func(r *Row) float64 { return float64(r.BalanceJumpRateAbsoluteBoundFrequency) }},
	{"holder_reported_occurrence", func(r *Row) float64 { return float64(r.HolderReportedOccurrence) }},
	{"holder_reversal_occurrence", func(r *Row) float64 { return float64(r.HolderReversalOccurrence) }},
	{"holder_drained_balance_occurrence", func(r *Row) float64 { return float64(r.HolderDrainedOccurrence) }},
	{"holder_pumped_balance_occurrence", func(r *Row) float64 { return float64(r.HolderPumpedOccurrence) }},
	{"holder_large_amount_drain_occurrence", func(r *Row) float64 { return float64(r.HolderLargeDrainOccurrence) }},
	{"holder_large_amount_pump_occurrence", func(r *Row) float64 { return float64(r.HolderLargePumpOccurrence) }},
	{"holder_far_distance_occurrence", func(r *Row) float64 { return float64(r.HolderFarDistanceOccurrence) }},
	{"holder_bvn_reported_occurrence", func(r *Row) float64 { return float64(r.HolderBVNReportedOccurrence) }},
	{"holder_bvn_reversal_occurrence", func(r *Row) float64 { return float64(r.HolderBVNReversalOccurrence) }},
	{"holder_bvn_far_distance_occurrence", func(r *Row) float64 { return float64(r.HolderBVNFarDistanceOccurrence) }},
	{"related_reported_occurrence", func(r *Row) float64 { return float64(r.RelatedReportedOccurrence) }},
	{"related_reversal_occurrence", func(r *Row) float64 { return float64(r.RelatedReversalOccurrence) }},
	{"related_bvn_reported_occurrence", func(r *Row) float64 { return float64(r.RelatedBVNReportedOccurrence) }},
	{"related_bvn_reversal_occurrence", func(r *Row) float64 { return float64(r.RelatedBVNReversalOccurrence) }},
}

// NewFrame flattens feature rows into columns: the categorical raw fields
// first, then the numeric features, then the rolling averages per window.
func NewFrame(rows []Row) *Frame {
	f := &Frame{
		numeric:     make(map[string][]float64),
		categorical: make(map[string][]string),
		rows:        len(rows),
	}

	for _, col := range categoricalColumns {
		values := make([]string, len(rows))
		for i := range rows {
			values[i] = col.value(&rows[i])
		}
		f.names = append(f.names, col.name)
		f.categorical[col.name] = values
	}

	for _, col := range numericColumns {
		values := make([]float64, len(rows))
		for i := range rows {
			values[i] = col.value(&rows[i])
		}
		f.names = append(f.names, col.name)
		f.numeric[col.name] = values
	}

	for _, days := range Windows {
		for fi, feat := range windowFeatureNames {
			name := fmt.Sprintf("%s_avg_%dd", feat, days)
			values := make([]float64, len(rows))
			for i := range rows {
				values[i] = rows[i].averages(days).values()[fi]
			}
			f.names = append(f.names, name)
			f.numeric[name] = values
		}
	}
	return f
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return f.rows
}

// Names returns the column names in schema order. The returned slice is
// shared; callers must not modify it.
func (f *Frame) Names() []string {
	return f.names
}

// Numeric returns a numeric column by name.
func (f *Frame) Numeric(name string) ([]float64, bool) {
	col, ok := f.numeric[name]
	return col, ok
}

// Categorical returns a categorical column by name.
func (f *Frame) Categorical(name string) ([]string, bool) {
	col, ok := f.categorical[name]
	return col, ok
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
