package sim

import (
	"sync"

	"okapi/banksim-api/internal/domain"
)

// Holder identifies the account initiating an event, with the owner's home
// location attached for geo-biased picks.
type Holder struct {
	AccountNo string
	BVN       string
	BankName  string
	Balance   float64
	domain.Location
}

// Options carries the abnormalities an event can be asked to exhibit.
type Options struct {
	// Reverse requests a compensating reversal pair after a successful
	// primary leg.
	Reverse bool
}

// HandlerFunc executes one transaction-type event against the banks.
type HandlerFunc func(holder Holder, amount float64, reference string, opts Options)

// Events is the catalog of transaction-type handlers. Each handler encodes
// the shape of one real-world transaction as one or two Bank debit/credit
// pairs, plus reversal legs when requested.
type Events struct {
	banks     map[string]*Bank
	bankOrder []string
	locations []domain.Location
	rng       *Rand

	mu              sync.RWMutex
	individuals     map[string]*Individual
	individualOrder []string

	handlers map[string]HandlerFunc
}

// NewEvents wires an event catalog over the given banks and individuals.
// The catalog owns the population afterwards; the Simulator grows it
// through AddIndividual while batches run.
func NewEvents(banks map[string]*Bank, bankOrder []string, individuals []*Individual, locations []domain.Location, rng *Rand) *Events {
	e := &Events{
		banks:       banks,
		bankOrder:   bankOrder,
		individuals: make(map[string]*Individual, len(individuals)),
		locations:   locations,
		rng:         rng,
	}
	for _, ind := range individuals {
		e.individuals[ind.Profile.UserID] = ind
		e.individualOrder = append(e.individualOrder, ind.Profile.UserID)
	}
	e.handlers = map[string]HandlerFunc{
		domain.EventATMWithdrawal:  e.ATMWithdrawal,
		domain.EventATMDeposit:     e.ATMDeposit,
		domain.EventATMPayment:     e.ATMPayment,
		domain.EventPOSWithdrawal:  e.POSWithdrawal,
		domain.EventPOSPayment:     e.POSPayment,
		domain.EventMobileTransfer: e.MobileTransfer,
		domain.EventTakeLoan:       e.TakeLoan,
	}
	return e
}

// Spin selects an event handler weighted by the individual's behaviour
// vector.
func (e *Events) Spin(individual *Individual) HandlerFunc {
	weights := make([]float64, len(domain.EventTypes))
	for i, event := range domain.EventTypes {
		weights[i] = float64(individual.Behaviour[event])
	}
	return e.handlers[domain.EventTypes[e.rng.Weighted(weights)]]
}

// ─── Aggregated snapshots ─────────────────────────────────────────────────────

func (e *Events) allDevices() []domain.BankDevice {
	var devices []domain.BankDevice
	for _, name := range e.bankOrder {
		devices = append(devices, e.banks[name].Devices()...)
	}
	return devices
}

func (e *Events) allAccounts() []domain.Account {
	var accounts []domain.Account
	for _, name := range e.bankOrder {
		accounts = append(accounts, e.banks[name].Accounts()...)
	}
	return accounts
}

func (e *Events) allProfiles() map[string]domain.Profile {
	e.mu.RLock()
	defer e.mu.RUnlock()
	profiles := make(map[string]domain.Profile, len(e.individuals))
	for id, ind := range e.individuals {
		profiles[id] = ind.Profile
	}
	return profiles
}

// Individual looks up an individual by user id.
func (e *Events) Individual(id string) (*Individual, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ind, ok := e.individuals[id]
	return ind, ok
}

// AddIndividual registers a newcomer so subsequent events can involve them.
func (e *Events) AddIndividual(ind *Individual) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.individuals[ind.Profile.UserID]; ok {
		return
	}
	e.individuals[ind.Profile.UserID] = ind
	e.individualOrder = append(e.individualOrder, ind.Profile.UserID)
}

// Profiles returns every individual's profile in arrival order.
func (e *Events) Profiles() []domain.Profile {
	e.mu.RLock()
	defer e.mu.RUnlock()
	profiles := make([]domain.Profile, 0, len(e.individualOrder))
	for _, id := range e.individualOrder {
		profiles = append(profiles, e.individuals[id].Profile)
	}
	return profiles
}

// userDevice returns a mobile device belonging to the individual, or with
// 5% probability one belonging to some other random individual, simulating
// a compromised or borrowed device.
func (e *Events) userDevice(individual *Individual) string {
	if e.rng.Float64() < .05 {
		e.mu.RLock()
		var all []string
		for _, ind := range e.individuals {
			all = append(all, ind.Profile.Devices...)
		}
		e.mu.RUnlock()
		if len(all) > 0 {
			return pick(e.rng, all)
		}
	}
	return pick(e.rng, individual.Profile.Devices)
}

// transferChannel draws APP vs USSD weighted 3:1.
func (e *Events) transferChannel() string {
	if e.rng.Weighted([]float64{3, 1}) == 0 {
		return domain.ChannelApp
	}
	return domain.ChannelUSSD
}

// paymentCategory draws PAYMENT vs BILL uniformly.
func (e *Events) paymentCategory() string {
	if e.rng.IntN(2) == 0 {
		return domain.CategoryPayment
	}
	return domain.CategoryBill
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

// ATMWithdrawal debits the holder at a nearby ATM. A reversal credits the
// money straight back under the same reference.
func (e *Events) ATMWithdrawal(holder Holder, amount float64, reference string, opts Options) {
	atm, ok := randomATM(e.rng, e.allDevices(), holder.Location)
	if !ok {
		return
	}

	bank := e.banks[holder.BankName]
	leg := LegRequest{
		AccountNo:   holder.AccountNo,
		Related:     atm.DeviceID,
		RelatedBank: atm.BankName,
		Amount:      amount,
		DeviceID:    atm.DeviceID,
		Location:    atm.Location,
		Category:    domain.CategoryWithdrawal,
		Channel:     domain.ChannelCard,
		Reference:   reference,
	}

	debit, err := bank.Debit(leg)
	if err != nil {
		return
	}

	if debit.Status == domain.StatusSuccess && opts.Reverse {
		leg.Category = domain.CategoryReversal
		_, _ = bank.Credit(leg)
	}
}

// ATMDeposit credits the holder at a nearby ATM. No reversal path.
func (e *Events) ATMDeposit(holder Holder, amount float64, reference string, opts Options) {
	atm, ok := randomATM(e.rng, e.allDevices(), holder.Location)
	if !ok {
		return
	}

	bank := e.banks[holder.BankName]
	_, _ = bank.Credit(LegRequest{
		AccountNo:   holder.AccountNo,
		Related:     atm.DeviceID,
		RelatedBank: atm.BankName,
		Amount:      amount,
		DeviceID:    atm.DeviceID,
		Location:    atm.Location,
		Category:    domain.CategoryDeposit,
		Channel:     domain.ChannelCard,
		Reference:   reference,
	})
}

// ATMPayment debits the holder at an ATM and credits a random other account.
// A reversal emits a second pair with the roles swapped.
func (e *Events) ATMPayment(holder Holder, amount float64, reference string, opts Options) {
	atm, ok := randomATM(e.rng, e.allDevices(), holder.Location)
	if !ok {
		return
	}
	payee, ok := randomAccount(e.rng, e.allAccounts(), holder.AccountNo)
	if !ok {
		return
	}

	category := e.paymentCategory()
	e.payPair(holder, payee, amount, reference, category, category,
		domain.ChannelCard, atm.DeviceID, atm.Location, opts.Reverse)
}

// POSWithdrawal debits the holder at a nearby merchant's POS and deposits
// the money with the merchant. A no-op when the simulation has no merchants.
func (e *Events) POSWithdrawal(holder Holder, amount float64, reference string, opts Options) {
	merchant, ok := randomMerchant(e.rng, e.allProfiles(), e.allAccounts(), holder.Location)
	if !ok {
		return
	}

	payee := domain.Account{AccountNo: merchant.AccountNo, BankName: merchant.BankName}
	e.payPair(holder, payee, amount, reference, domain.CategoryWithdrawal, domain.CategoryDeposit,
		domain.ChannelCard, merchant.DeviceID, merchant.Location, opts.Reverse)
}

// POSPayment pays a nearby merchant. A no-op when the simulation has no
// merchants.
func (e *Events) POSPayment(holder Holder, amount float64, reference string, opts Options) {
	merchant, ok := randomMerchant(e.rng, e.allProfiles(), e.allAccounts(), holder.Location)
	if !ok {
		return
	}

	category := e.paymentCategory()
	payee := domain.Account{AccountNo: merchant.AccountNo, BankName: merchant.BankName}
	e.payPair(holder, payee, amount, reference, category, category,
		domain.ChannelCard, merchant.DeviceID, merchant.Location, opts.Reverse)
}

// MobileTransfer sends money to a random other account from a mobile device,
// usually the holder's own.
func (e *Events) MobileTransfer(holder Holder, amount float64, reference string, opts Options) {
	individual, ok := e.Individual(holder.BVN)
	if !ok {
		return
	}
	recipient, ok := randomAccount(e.rng, e.allAccounts(), holder.AccountNo)
	if !ok {
		return
	}

	device := e.userDevice(individual)
	location := randomLocation(e.rng, e.locations, &holder.Location)

	e.payPair(holder, recipient, amount, reference, domain.CategoryTransfer, domain.CategoryTransfer,
		e.transferChannel(), device, location, opts.Reverse)
}

// TakeLoan credits the holder with money the bank creates; there is no
// corresponding debit anywhere.
func (e *Events) TakeLoan(holder Holder, amount float64, reference string, opts Options) {
	individual, ok := e.Individual(holder.BVN)
	if !ok {
		return
	}

	bank := e.banks[holder.BankName]
	_, _ = bank.Credit(LegRequest{
		AccountNo:   holder.AccountNo,
		Related:     holder.AccountNo,
		RelatedBank: holder.BankName,
		Amount:      amount,
		DeviceID:    e.userDevice(individual),
		Location:    randomLocation(e.rng, e.locations, &holder.Location),
		Category:    domain.CategoryLoan,
		Channel:     e.transferChannel(),
		Reference:   reference,
	})
}

// payPair runs the debit/credit pair shared by payment-shaped events: debit
// the holder, credit the payee on success, and emit a swapped REVERSAL pair
// when asked to. debitCategory and creditCategory differ only for POS
// withdrawals (WITHDRAWAL out, DEPOSIT in).
func (e *Events) payPair(holder Holder, payee domain.Account, amount float64, reference, debitCategory, creditCategory, channel, deviceID string, location domain.Location, reverse bool) {
	holderBank := e.banks[holder.BankName]
	payeeBank := e.banks[payee.BankName]
	if holderBank == nil || payeeBank == nil {
		return
	}

	out := LegRequest{
		AccountNo:   holder.AccountNo,
		Related:     payee.AccountNo,
		RelatedBank: payee.BankName,
		Amount:      amount,
		DeviceID:    deviceID,
		Location:    location,
		Category:    debitCategory,
		Channel:     channel,
		Reference:   reference,
	}
	in := LegRequest{
		AccountNo:   payee.AccountNo,
		Related:     holder.AccountNo,
		RelatedBank: holder.BankName,
		Amount:      amount,
		DeviceID:    deviceID,
		Location:    location,
		Category:    creditCategory,
		Channel:     channel,
		Reference:   reference,
	}

	debit, err := holderBank.Debit(out)
	if err != nil || debit.Status != domain.StatusSuccess {
		return
	}

	_, _ = payeeBank.Credit(in)

	if reverse {
		out.Category = domain.CategoryReversal
		in.Category = domain.CategoryReversal
		_, _ = holderBank.Credit(out)
		_, _ = payeeBank.Debit(in)
	}
}
