package sim

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"

	"okapi/banksim-api/internal/domain"
	"okapi/banksim-api/internal/simclock"
)

// kycWeights is the default distribution over KYC tiers 1..3.
var kycWeights = []float64{.7, .19, .109}

// Bank owns a set of accounts and ATM devices and provides the only legal
// path for balance mutation. Each account has its own lock, so operations on
// different accounts proceed independently while operations on the same
// account serialise.
type Bank struct {
	Name        string
	Fraudulence float64

	clock     *simclock.Clock
	rng       *Rand
	locations []domain.Location

	mu           sync.Mutex // guards the maps and slices below
	accounts     map[string]*domain.Account
	accountOrder []string
	devices      []domain.BankDevice
	transactions []domain.Transaction
	locks        map[string]*sync.Mutex
}

// NewBank creates an empty bank wired to the simulation's clock, random
// source and location pool.
func NewBank(name string, clock *simclock.Clock, rng *Rand, locations []domain.Location, fraudulence float64) *Bank {
	return &Bank{
		Name:        name,
		Fraudulence: fraudulence,
		clock:       clock,
		rng:         rng,
		locations:   locations,
		accounts:    make(map[string]*domain.Account),
		locks:       make(map[string]*sync.Mutex),
	}
}

// Setup provisions the bank with ATM devices and one account per user.
func (b *Bank) Setup(numDevices int, users []domain.Profile) {
	for i := 0; i < numDevices; i++ {
		b.generateDevice()
	}
	for _, user := range users {
		b.OpenAccount(user, 0)
	}
}

// generateDevice places a new ATM at a random pool location.
func (b *Bank) generateDevice() domain.BankDevice {
	device := domain.BankDevice{
		DeviceID: "ATM_" + b.Name + "_" + uuid.NewString(),
		BankName: b.Name,
		Location: randomLocation(b.rng, b.locations, nil),
	}

	b.mu.Lock()
	b.devices = append(b.devices, device)
	b.mu.Unlock()
	return device
}

// OpenAccount opens a new account for a user. A kyc of 0 draws a tier from
// the default distribution. The opening balance is a tier-scaled random
// amount, recorded as an OPENING credit at account creation.
func (b *Bank) OpenAccount(user domain.Profile, kyc int) domain.Account {
	if kyc == 0 {
		kyc = 1 + b.rng.Weighted(kycWeights)
	}

	// Most accounts are opened from home; some from a nearby branch area.
	location := user.Location
	if b.rng.Float64() <= .3 {
		location = randomLocation(b.rng, b.locations, &user.Location)
	}

	openingBalance := generateAmount(b.rng, kyc, 0)
	device := pick(b.rng, user.Devices)

	b.mu.Lock()
	accountNo := fmt.Sprintf("ACC_%010d", len(b.accounts)+1)
	account := &domain.Account{
		AccountNo:     accountNo,
		AccountName:   user.Name,
		Balance:       openingBalance,
		KYC:           kyc,
		BVN:           user.UserID,
		BankName:      b.Name,
		Merchant:      b.rng.Float64() > 0.9,
		OpeningDevice: device,
	}
	b.accounts[accountNo] = account
	b.accountOrder = append(b.accountOrder, accountNo)
	b.mu.Unlock()

	b.append(domain.Transaction{
		Amount:      openingBalance,
		Balance:     openingBalance,
		Time:        b.clock.Advance(5),
		Holder:      accountNo,
		HolderBank:  b.Name,
		Related:     b.Name,
		RelatedBank: b.Name,
		Location:    location,
		Status:      domain.StatusSuccess,
		Type:        domain.TypeCredit,
		Category:    domain.CategoryOpening,
		Channel:     domain.ChannelApp,
		Device:      device,
		Reference:   uuid.NewString(),
		Reported:    false,
	})

	return *account
}

// LegRequest describes one debit or credit leg of a transaction.
type LegRequest struct {
	AccountNo   string
	Related     string
	RelatedBank string
	Amount      float64
	DeviceID    string
	Location    domain.Location
	Category    string
	Channel     string
	Reference   string
}

// Debit attempts to take money out of an account. Reversals always succeed;
// other debits succeed with 70% probability, and an insufficient balance
// forces FAILED with the stored balance untouched. The transaction record is
// appended and returned regardless of status; failure is data, not an error.
func (b *Bank) Debit(req LegRequest) (domain.Transaction, error) {
	lock, account, err := b.lockFor(req.AccountNo)
	if err != nil {
		return domain.Transaction{}, err
	}

	lock.Lock()
	defer lock.Unlock()

	status := domain.StatusSuccess
	if req.Category != domain.CategoryReversal && b.rng.Float64() >= 0.7 {
		status = domain.StatusFailed
	}

	balance := account.Balance
	if status == domain.StatusSuccess {
		balance = round2(account.Balance - req.Amount)
	}

	if balance < 0 {
		status = domain.StatusFailed
		balance = account.Balance
	}

	reported := status == domain.StatusSuccess && b.rng.Float64() < b.Fraudulence

	tx := domain.Transaction{
		Amount:      req.Amount,
		Balance:     balance,
		Time:        b.clock.Advance(60),
		Holder:      req.AccountNo,
		HolderBank:  account.BankName,
		Related:     req.Related,
		RelatedBank: req.RelatedBank,
		Location:    req.Location,
		Status:      status,
		Type:        domain.TypeDebit,
		Category:    req.Category,
		Channel:     req.Channel,
		Device:      req.DeviceID,
		Reference:   req.Reference,
		Reported:    reported,
	}
	b.commit(account, balance, tx)
	return tx, nil
}

// Credit puts money into an account. Credits always succeed.
func (b *Bank) Credit(req LegRequest) (domain.Transaction, error) {
	lock, account, err := b.lockFor(req.AccountNo)
	if err != nil {
		return domain.Transaction{}, err
	}

	lock.Lock()
	defer lock.Unlock()

	balance := math.Round(account.Balance + req.Amount)

	tx := domain.Transaction{
		Amount:      req.Amount,
		Balance:     balance,
		Time:        b.clock.Advance(60),
		Holder:      req.AccountNo,
		HolderBank:  account.BankName,
		Related:     req.Related,
		RelatedBank: req.RelatedBank,
		Location:    req.Location,
		Status:      domain.StatusSuccess,
		Type:        domain.TypeCredit,
		Category:    req.Category,
		Channel:     req.Channel,
		Device:      req.DeviceID,
		Reference:   req.Reference,
		Reported:    b.rng.Float64() < b.Fraudulence,
	}
	b.commit(account, balance, tx)
	return tx, nil
}

// ErrInsufficientFunds reports a posting whose amount exceeds the balance.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Post applies one ledger leg on behalf of an external caller. Unlike Debit
// there is no random decline: a debit either clears or returns
// ErrInsufficientFunds, and nothing is recorded on failure.
func (b *Bank) Post(legType string, req LegRequest) (domain.Transaction, error) {
	lock, account, err := b.lockFor(req.AccountNo)
	if err != nil {
		return domain.Transaction{}, err
	}

	lock.Lock()
	defer lock.Unlock()

	var balance float64
	if legType == domain.TypeDebit {
		balance = round2(account.Balance - req.Amount)
		if balance < 0 {
			return domain.Transaction{}, fmt.Errorf("bank %s: account %s: %w", b.Name, req.AccountNo, ErrInsufficientFunds)
		}
	} else {
		balance = math.Round(account.Balance + req.Amount)
	}

	tx := domain.Transaction{
		Amount:      req.Amount,
		Balance:     balance,
		Time:        b.clock.Advance(60),
		Holder:      req.AccountNo,
		HolderBank:  account.BankName,
		Related:     req.Related,
		RelatedBank: req.RelatedBank,
		Location:    req.Location,
		Status:      domain.StatusSuccess,
		Type:        legType,
		Category:    req.Category,
		Channel:     req.Channel,
		Device:      req.DeviceID,
		Reference:   req.Reference,
	}
	b.commit(account, balance, tx)
	return tx, nil
}

// lockFor resolves an account and its lock, creating the lock lazily.
func (b *Bank) lockFor(accountNo string) (*sync.Mutex, *domain.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	account, ok := b.accounts[accountNo]
	if !ok {
		return nil, nil, fmt.Errorf("bank %s: unknown account %s", b.Name, accountNo)
	}
	lock, ok := b.locks[accountNo]
	if !ok {
		lock = &sync.Mutex{}
		b.locks[accountNo] = lock
	}
	return lock, account, nil
}

// append records a transaction.
func (b *Bank) append(tx domain.Transaction) {
	b.mu.Lock()
	b.transactions = append(b.transactions, tx)
	b.mu.Unlock()
}

// commit stores the account's new balance and records the transaction in one
// critical section. Balance writes must happen under b.mu as well as the
// account lock, or the snapshot copies would race them.
func (b *Bank) commit(account *domain.Account, balance float64, tx domain.Transaction) {
	b.mu.Lock()
	account.Balance = balance
	b.transactions = append(b.transactions, tx)
	b.mu.Unlock()
}

// ─── Snapshots ────────────────────────────────────────────────────────────────

// Accounts returns a copy of the bank's accounts in creation order. The copy
// is a point-in-time snapshot: balances may move before the caller acts on it.
func (b *Bank) Accounts() []domain.Account {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]domain.Account, 0, len(b.accountOrder))
	for _, no := range b.accountOrder {
		out = append(out, *b.accounts[no])
	}
	return out
}

// Account returns a copy of one account.
func (b *Bank) Account(accountNo string) (domain.Account, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	account, ok := b.accounts[accountNo]
	if !ok {
		return domain.Account{}, false
	}
	return *account, true
}

// Devices returns a copy of the bank's ATM devices.
func (b *Bank) Devices() []domain.BankDevice {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.BankDevice(nil), b.devices...)
}

// Transactions returns a copy of the bank's transaction log.
func (b *Bank) Transactions() []domain.Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Transaction(nil), b.transactions...)
}
