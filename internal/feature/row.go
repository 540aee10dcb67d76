// Package feature derives the wide per-transaction feature table the fraud
// detector consumes. Every derivation is causal: a row's features are
// computed from the transactions strictly before it in time, never from the
// rest of the batch.
package feature

import "okapi/banksim-api/internal/domain"

// farDistanceKm is the distance from a holder's centre beyond which a
// transaction counts as far from home.
const farDistanceKm = 100

// balanceJumpExtreme is the relative balance jump beyond which a balance
// counts as drained (negative) or pumped (positive).
const balanceJumpExtreme = .9

// Windows are the rolling-average spans, in days.
var Windows = []int{1, 7, 30, 120}

// WindowAverages holds the rolling means of the tracked dynamics for one
// holder over one window. A holder's first transaction averages to its own
// values.
type WindowAverages struct {
	Amount             float64 `json:"amount"`
	Balance            float64 `json:"balance"`
	BalanceJump        float64 `json:"balance_jump"`
	BalanceJumpRate    float64 `json:"balance_jump_rate"`
	DistanceFromHome   float64 `json:"distance_from_home_km"`
	DeviceFrequency    float64 `json:"device_frequency"`
	HourBoundFrequency float64 `json:"hour_bound_frequency"`
	RelatedFrequency   float64 `json:"related_frequency"`
	ReversalOccurrence float64 `json:"reversal_occurrence"`
	ReportedOccurrence float64 `json:"reported_occurrence"`
}

// Row is the engineered feature set for a single transaction: the raw ledger
// entry plus account linkage, time, money, location, frequency, bound and
// occurrence features, and rolling averages over each window.
type Row struct {
	domain.Transaction

	// Account linkage.
	HolderBVN       string `json:"holder_bvn"`
	KYC             int    `json:"kyc"`
	Merchant        bool   `json:"merchant"`
	RelatedBVN      string `json:"related_bvn"`
	SubAccount      bool   `json:"sub_account"`
	IsOpeningDevice bool   `json:"is_opening_device"`

	// Time.
	Hour     int    `json:"hour"`
	WeekDay  string `json:"week_day"`
	Month    string `json:"month"`
	Date     string `json:"date"`
	MonthDay int    `json:"month_day"`

	// Money.
	LargeAmount             bool    `json:"large_amount"`
	BalanceJump             float64 `json:"balance_jump"`
	PreviousBalance         float64 `json:"previous_balance"`
	BalanceJumpRate         float64 `json:"balance_jump_rate"`
	BalanceJumpRateAbsolute float64 `json:"balance_jump_rate_absolute"`
	DrainedBalance          bool    `json:"drained_balance"`
	PumpedBalance           bool    `json:"pumped_balance"`
	LargeAmountDrain        bool    `json:"large_amount_drain"`
	LargeAmountPump         bool    `json:"large_amount_pump"`

	// Location. The centre is the mean location of the holder's prior
	// transactions, or this one's location when there are none.
	CentralLatitude  float64 `json:"central_latitude"`
	CentralLongitude float64 `json:"central_longitude"`
	DistanceFromHome float64 `json:"distance_from_home_km"`
	FarDistance      bool    `json:"far_distance"`

	// Frequency: prior transactions sharing the (target, feature) pair.
	HolderRelatedFrequency    int  `json:"holder_related_count_frequency"`
	HolderDeviceFrequency     int  `json:"holder_device_count_frequency"`
	HolderChannelFrequency    int  `json:"holder_channel_count_frequency"`
	HolderBVNRelatedFrequency int  `json:"holder_bvn_related_bvn_count_frequency"`
	HolderBVNDeviceFrequency  int  `json:"holder_bvn_device_count_frequency"`
	HolderBVNChannelFrequency int  `json:"holder_bvn_channel_count_frequency"`
	HolderDeviceHasHistory    bool `json:"holder_device_has_history"`

	// Bound membership: prior holder transactions whose value falls inside a
	// window derived from this row's own value.
	HourBoundFrequency                    int `json:"holder_hour_bound_frequency"`
	BalanceBoundFrequency                 int `json:"holder_balance_bound_frequency"`
	AmountBoundFrequency                  int `json:"holder_amount_bound_frequency"`
	BalanceJumpBoundFrequency             int `json:"holder_balance_jump_bound_frequency"`
	BalanceJumpRateBoundFrequency         int `json:"holder_balance_jump_rate_bound_frequency"`
	BalanceJumpRateAbsoluteBoundFrequency int `json:"holder_balance_jump_rate_absolute_bound_frequency"`

	// Occurrence: prior rows for the same target where a flag held. Zero
	// when the flag does not hold on this row.
	HolderReportedOccurrence       int `json:"holder_reported_occurrence"`
	HolderReversalOccurrence       int `json:"holder_reversal_occurrence"`
	HolderDrainedOccurrence        int `json:"holder_drained_balance_occurrence"`
	HolderPumpedOccurrence         int `json:"holder_pumped_balance_occurrence"`
	HolderLargeDrainOccurrence     int `json:"holder_large_amount_drain_occurrence"`
	HolderLargePumpOccurrence      int `json:"holder_large_amount_pump_occurrence"`
	HolderFarDistanceOccurrence    int `json:"holder_far_distance_occurrence"`
	HolderBVNReportedOccurrence    int `json:"holder_bvn_reported_occurrence"`
	HolderBVNReversalOccurrence    int `json:"holder_bvn_reversal_occurrence"`
	HolderBVNFarDistanceOccurrence int `json:"holder_bvn_far_distance_occurrence"`
	RelatedReportedOccurrence      int `json:"related_reported_occurrence"`
	RelatedReversalOccurrence      int `json:"related_reversal_occurrence"`
	RelatedBVNReportedOccurrence   int `json:"related_bvn_reported_occurrence"`
	RelatedBVNReversalOccurrence   int `json:"related_bvn_reversal_occurrence"`

	// Rolling averages per window, grouped by holder.
	Avg1D   WindowAverages `json:"avg_1d"`
	Avg7D   WindowAverages `json:"avg_7d"`
	Avg30D  WindowAverages `json:"avg_30d"`
	Avg120D WindowAverages `json:"avg_120d"`
}

// averages returns the window slot for the given span.
func (r *Row) averages(days int) *WindowAverages {
	switch days {
	case 1:
		return &r.Avg1D
	case 7:
		return &r.Avg7D
	case 30:
		return &r.Avg30D
	default:
		return &r.Avg120D
	}
}
