// Package domain contains all core types used across the application.
// Keeping the simulation and analytics types in one place makes the
// transaction semantics easy to reason about.
package domain

import "time"

// ─── Constants ───────────────────────────────────────────────────────────────

// Transaction statuses.
const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// Transaction directions.
const (
	TypeDebit  = "DEBIT"
	TypeCredit = "CREDIT"
)

// Transaction categories.
const (
	CategoryOpening    = "OPENING"
	CategoryWithdrawal = "WITHDRAWAL"
	CategoryDeposit    = "DEPOSIT"
	CategoryReversal   = "REVERSAL"
	CategoryPayment    = "PAYMENT"
	CategoryBill       = "BILL"
	CategoryTransfer   = "TRANSFER"
	CategoryLoan       = "LOAN"
)

// Transaction channels.
const (
	ChannelApp  = "APP"
	ChannelCard = "CARD"
	ChannelUSSD = "USSD"
)

// Event types an individual can initiate.
const (
	EventATMWithdrawal  = "ATM_WITHDRAWAL"
	EventATMDeposit     = "ATM_DEPOSIT"
	EventATMPayment     = "ATM_PAYMENT"
	EventPOSWithdrawal  = "POS_WITHDRAWAL"
	EventPOSPayment     = "POS_PAYMENT"
	EventMobileTransfer = "MOBILE_TRANSFER"
	EventTakeLoan       = "TAKE_LOAN"
)

// EventTypes lists every event type in catalog order. Behaviour weight
// vectors are indexed in this order.
var EventTypes = []string{
	EventATMWithdrawal,
	EventATMDeposit,
	EventATMPayment,
	EventPOSWithdrawal,
	EventPOSPayment,
	EventMobileTransfer,
	EventTakeLoan,
}

// TransactionLimits maps a KYC tier to the amount above which a single
// transaction is considered large for that tier.
var TransactionLimits = map[int]float64{
	1: 50_000,
	2: 100_000,
	3: 500_000,
	4: 1_000_000,
}

// ─── Core simulation types ────────────────────────────────────────────────────

// Location is a pure value: a point on the globe. Individuals, devices and
// transactions all carry one.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Profile is the immutable identity of a simulated person. UserID doubles as
// the BVN analogue: it links accounts across banks back to the same person.
type Profile struct {
	UserID    string   `json:"user_id"`
	Devices   []string `json:"devices"`
	Name      string   `json:"name"`
	Gender    string   `json:"gender"`
	Email     string   `json:"email"`
	Birthdate string   `json:"birthdate"`
	Location
}

// Account is a bank account. Balance is the only field that mutates after
// creation, and only through Bank.Debit / Bank.Credit.
type Account struct {
	AccountNo     string  `json:"account_no"`
	AccountName   string  `json:"account_name"`
	Balance       float64 `json:"balance"`
	KYC           int     `json:"kyc"`
	BVN           string  `json:"bvn"`
	BankName      string  `json:"bank_name"`
	Merchant      bool    `json:"merchant"`
	OpeningDevice string  `json:"opening_device"`
}

// BankDevice is an ATM owned by a bank. Immutable after creation.
type BankDevice struct {
	DeviceID string `json:"device_id"`
	BankName string `json:"bank_name"`
	Location
}

// Transaction is a single ledger entry. Append-only; never mutated once
// recorded. Balance is the holder's resulting balance after this entry.
type Transaction struct {
	Amount      float64   `json:"amount"`
	Balance     float64   `json:"balance"`
	Time        time.Time `json:"time"`
	Holder      string    `json:"holder"`
	HolderBank  string    `json:"holder_bank"`
	Related     string    `json:"related"`
	RelatedBank string    `json:"related_bank"`
	Location
	Status    string `json:"status"`
	Type      string `json:"type"`
	Category  string `json:"category"`
	Channel   string `json:"channel"`
	Device    string `json:"device"`
	Reference string `json:"reference"`
	Reported  bool   `json:"reported"`
}

// AccountRow is an Account enriched with its owner's profile fields, joined
// on bvn = user_id. This is the shape persisted to accounts.csv.
type AccountRow struct {
	Account
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Devices   []string `json:"devices"`
	Name      string   `json:"name"`
	Gender    string   `json:"gender"`
	Email     string   `json:"email"`
	Birthdate string   `json:"birthdate"`
}

// Tables bundles the four flat tables a completed simulation exports.
type Tables struct {
	Transactions []Transaction `json:"transactions"`
	BankDevices  []BankDevice  `json:"bank_devices"`
	Profiles     []Profile     `json:"profiles"`
	Accounts     []AccountRow  `json:"accounts"`
}
