package sim

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"okapi/banksim-api/internal/dataset"
	"okapi/banksim-api/internal/domain"
	"okapi/banksim-api/internal/geo"
	"okapi/banksim-api/internal/simclock"
)

// ErrNotSetUp is returned when the simulation is driven before SetupReality.
var ErrNotSetUp = errors.New("sim: reality not set up")

// spendFractions are the candidate fractions of an account's balance an
// event may move; the last (everything) is weighted by fraudulence.
var spendFractions = []float64{.1, .4, .7, 1}

// Config sets the shape of a simulated world. Zero fields take the defaults
// below.
type Config struct {
	NumUsers int
	NumBanks int

	// MinAmount and MaxAmount bound single-transaction values.
	MinAmount float64
	MaxAmount float64

	// Center and RadiusMeters define the disc all locations are drawn from.
	Center       domain.Location
	RadiusMeters float64

	// NumLocations is the size of the shared location pool.
	NumLocations int

	// Fraudulence is the probability that a transaction is reported, that an
	// event requests a reversal, and the weight on the spend-everything
	// fraction.
	Fraudulence float64
}

func (c Config) withDefaults() Config {
	if c.MinAmount == 0 {
		c.MinAmount = 100
	}
	if c.MaxAmount == 0 {
		c.MaxAmount = 5_000_000
	}
	if c.Center == (domain.Location{}) {
		c.Center = domain.Location{Latitude: 9.3, Longitude: 3.9}
	}
	if c.RadiusMeters == 0 {
		c.RadiusMeters = 50_000
	}
	if c.NumLocations == 0 {
		c.NumLocations = 1000
	}
	if c.Fraudulence == 0 {
		c.Fraudulence = .05
	}
	return c
}

// Simulator drives a banking world: it owns the clock, the shared random
// source, the banks and the individuals, and runs weighted random events
// against them in semaphore-bounded concurrent batches.
type Simulator struct {
	cfg   Config
	clock *simclock.Clock
	rng   *Rand

	locations []domain.Location
	banks     map[string]*Bank
	bankOrder []string
	events    *Events

	sem chan struct{}
}

// New creates a simulator with its own clock and random source, both seeded
// for reproducible runs.
func New(seed int64) *Simulator {
	return &Simulator{
		clock: simclock.New(simclock.DefaultBase, seed),
		rng:   NewRand(seed),
	}
}

// Clock exposes the simulation's clock, mainly so callers can timestamp
// transactions they submit from outside the event loop.
func (s *Simulator) Clock() *simclock.Clock {
	return s.clock
}

// ─── World setup ──────────────────────────────────────────────────────────────

// SetupReality builds the world: a location pool, the individuals, the banks
// with their devices and opened accounts, and the event catalog over them.
func (s *Simulator) SetupReality(cfg Config) {
	s.cfg = cfg.withDefaults()
	s.locations = geo.SampleDisc(s.rng, s.cfg.Center, s.cfg.RadiusMeters, s.cfg.NumLocations)

	individuals := make([]*Individual, 0, s.cfg.NumUsers)
	profiles := make([]domain.Profile, 0, s.cfg.NumUsers)
	for i := 0; i < s.cfg.NumUsers; i++ {
		ind := NewIndividual(s.rng, s.locations)
		individuals = append(individuals, ind)
		profiles = append(profiles, ind.Profile)
	}

	s.banks = make(map[string]*Bank, s.cfg.NumBanks)
	s.bankOrder = make([]string, 0, s.cfg.NumBanks)
	minAccounts := int(float64(len(profiles)) * .3)
	for i := 0; i < s.cfg.NumBanks; i++ {
		bank := NewBank(bankName(s.rng), s.clock, s.rng, s.locations, s.cfg.Fraudulence)
		bank.Setup(s.rng.IntBetween(3, 5), s.sampleProfiles(profiles, s.rng.IntBetween(minAccounts, minAccounts*2)))
		s.banks[bank.Name] = bank
		s.bankOrder = append(s.bankOrder, bank.Name)
	}

	s.events = NewEvents(s.banks, s.bankOrder, individuals, s.locations, s.rng)
}

// sampleProfiles draws n distinct profiles.
func (s *Simulator) sampleProfiles(profiles []domain.Profile, n int) []domain.Profile {
	if n > len(profiles) {
		n = len(profiles)
	}
	sample := make([]domain.Profile, 0, n)
	for _, idx := range s.rng.Perm(len(profiles))[:n] {
		sample = append(sample, profiles[idx])
	}
	return sample
}

// ─── Event loop ───────────────────────────────────────────────────────────────

// Simulate runs the world for period*iterations simulated seconds, firing
// events in concurrent batches of batchSize. It reseeds the random source
// and resets the clock first, so equal arguments replay the same timeline.
func (s *Simulator) Simulate(period, iterations int64, batchSize int, seed int64) error {
	if s.events == nil {
		return ErrNotSetUp
	}

	s.sem = make(chan struct{}, batchSize)
	s.rng.Seed(seed)
	s.clock.Reset(simclock.DefaultBase, seed)

	// The clock refuses to cross the configured window, so every recorded
	// transaction falls strictly inside it even when the final batch is
	// still in flight at the boundary.
	duration := period * iterations
	s.clock.SetLimit(duration)
	var milestone int64

	for !s.clock.Expired() {
		// Nights are quiet: between midnight and 06:00 a batch only fires
		// 30% of the time, otherwise the clock just moves on.
		if s.clock.Now().Hour() <= 6 && s.rng.Float64() <= .7 {
			s.clock.Advance(10)
		} else {
			s.runBatch(batchSize)
		}

		if progress := s.clock.Elapsed() / period; milestone < progress {
			milestone = progress
			slog.Info("season complete", "season", milestone)
		}
	}

	slog.Info("simulation complete", "elapsed_seconds", s.clock.Elapsed())
	s.clock.SetLimit(0)
	return nil
}

// runBatch fires batchSize events on their own goroutines and waits for all
// of them. The semaphore bounds in-flight events at batchSize.
func (s *Simulator) runBatch(batchSize int) {
	var wg sync.WaitGroup
	for i := 0; i < batchSize; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.sem <- struct{}{}
			defer func() { <-s.sem }()
			s.runEvent()
		}()
	}
	wg.Wait()
}

// runEvent picks a random funded account, decides how much of its balance the
// holder is willing to move, spins an event weighted by the holder's
// behaviour and plays it. Rarely, the population grows instead.
func (s *Simulator) runEvent() {
	if s.clock.Expired() {
		return
	}

	account, ok := s.eligibleAccount()
	if !ok {
		// Nothing can transact yet; keep the timeline moving.
		s.clock.Advance(60)
		return
	}

	individual, ok := s.events.Individual(account.BVN)
	if !ok {
		return
	}

	limit := spendFractions[s.rng.Weighted([]float64{.7, .19, .109, s.cfg.Fraudulence})] * account.Balance
	if limit <= s.cfg.MinAmount {
		limit = account.Balance
	}
	if limit > s.cfg.MaxAmount {
		limit = s.cfg.MaxAmount
	}
	amount := generateAmount(s.rng, account.KYC, limit)

	holder := Holder{
		AccountNo: account.AccountNo,
		BVN:       account.BVN,
		BankName:  account.BankName,
		Balance:   account.Balance,
		Location:  individual.Profile.Location,
	}

	handler := s.events.Spin(individual)
	handler(holder, amount, uuid.NewString(), Options{Reverse: s.rng.Float64() < s.cfg.Fraudulence})

	// A new user walks in, or an existing one opens another account.
	if s.rng.Float64() > .995 {
		if s.rng.Float64() > .5 {
			s.events.AddIndividual(NewIndividual(s.rng, s.locations))
		} else {
			s.banks[account.BankName].OpenAccount(individual.Profile, 0)
		}
	}
}

// eligibleAccount draws a uniform account whose balance clears the
// transaction minimum.
func (s *Simulator) eligibleAccount() (domain.Account, bool) {
	var funded []domain.Account
	for _, acct := range s.events.allAccounts() {
		if acct.Balance >= s.cfg.MinAmount {
			funded = append(funded, acct)
		}
	}
	if len(funded) == 0 {
		return domain.Account{}, false
	}
	return pick(s.rng, funded), true
}

// ─── Exports ──────────────────────────────────────────────────────────────────

// ExtractData flattens the world into the four flat tables, joining each
// account to its owner's profile fields on bvn = user_id.
func (s *Simulator) ExtractData() (domain.Tables, error) {
	if s.events == nil {
		return domain.Tables{}, ErrNotSetUp
	}

	var tables domain.Tables
	for _, name := range s.bankOrder {
		bank := s.banks[name]
		tables.Transactions = append(tables.Transactions, bank.Transactions()...)
		tables.BankDevices = append(tables.BankDevices, bank.Devices()...)
	}

	tables.Profiles = s.events.Profiles()
	profiles := s.events.allProfiles()

	for _, name := range s.bankOrder {
		for _, acct := range s.banks[name].Accounts() {
			row := domain.AccountRow{Account: acct}
			if p, ok := profiles[acct.BVN]; ok {
				row.Latitude = p.Latitude
				row.Longitude = p.Longitude
				row.Devices = p.Devices
				row.Name = p.Name
				row.Gender = p.Gender
				row.Email = p.Email
				row.Birthdate = p.Birthdate
			}
			tables.Accounts = append(tables.Accounts, row)
		}
	}
	return tables, nil
}

// SaveData extracts the four tables and writes them to dir as CSV files,
// returning the paths written.
func (s *Simulator) SaveData(dir string) ([]string, error) {
	tables, err := s.ExtractData()
	if err != nil {
		return nil, err
	}
	return dataset.Write(tables, dir)
}

// Bank returns the named bank.
func (s *Simulator) Bank(name string) (*Bank, bool) {
	bank, ok := s.banks[name]
	return bank, ok
}

// FindAccount resolves an account and its bank across the world.
func (s *Simulator) FindAccount(accountNo, bankName string) (domain.Account, *Bank, bool) {
	bank, ok := s.banks[bankName]
	if !ok {
		return domain.Account{}, nil, false
	}
	acct, ok := bank.Account(accountNo)
	return acct, bank, ok
}

// Events exposes the event catalog.
func (s *Simulator) Events() *Events {
	return s.events
}
