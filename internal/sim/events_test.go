package sim_test

import (
	"math"
	"testing"

	"okapi/banksim-api/internal/domain"
	"okapi/banksim-api/internal/sim"
	"okapi/banksim-api/internal/simclock"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

// testWorld is one bank, one individual with an open account, and an event
// catalog over them.
type testWorld struct {
	bank    *sim.Bank
	ind     *sim.Individual
	account domain.Account
	events  *sim.Events
}

func newTestWorld(seed int64) *testWorld {
	rng := sim.NewRand(seed)
	clock := simclock.New(simclock.DefaultBase, seed)
	locations := testLocations()

	bank := sim.NewBank("Test Bank", clock, rng, locations, 0)
	bank.Setup(3, nil)

	ind := sim.NewIndividual(rng, locations)
	account := bank.OpenAccount(ind.Profile, 2)

	events := sim.NewEvents(
		map[string]*sim.Bank{"Test Bank": bank},
		[]string{"Test Bank"},
		[]*sim.Individual{ind},
		locations,
		rng,
	)
	return &testWorld{bank: bank, ind: ind, account: account, events: events}
}

func (w *testWorld) holder() sim.Holder {
	return sim.Holder{
		AccountNo: w.account.AccountNo,
		BVN:       w.ind.Profile.UserID,
		BankName:  "Test Bank",
		Balance:   w.account.Balance,
		Location:  w.ind.Profile.Location,
	}
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

func TestTakeLoan_SingleCreditFromNowhere(t *testing.T) {
	w := newTestWorld(1)
	before := len(w.bank.Transactions())

	w.events.TakeLoan(w.holder(), 1000, "loan-ref", sim.Options{})

	txs := w.bank.Transactions()
	if len(txs) != before+1 {
		t.Fatalf("loan produced %d legs, want exactly 1", len(txs)-before)
	}
	loan := txs[len(txs)-1]
	if loan.Type != domain.TypeCredit || loan.Category != domain.CategoryLoan {
		t.Errorf("loan leg is %s/%s", loan.Type, loan.Category)
	}
	if loan.Amount != 1000 {
		t.Errorf("loan amount = %f", loan.Amount)
	}
	if loan.Reference != "loan-ref" {
		t.Errorf("loan reference = %q", loan.Reference)
	}

	want := math.Round(w.account.Balance + 1000)
	got, _ := w.bank.Account(w.account.AccountNo)
	if got.Balance != want {
		t.Errorf("balance after loan = %f, want %f", got.Balance, want)
	}
}

func TestATMDeposit_CreditsAtDevice(t *testing.T) {
	w := newTestWorld(2)
	before := len(w.bank.Transactions())

	w.events.ATMDeposit(w.holder(), 500, "dep-ref", sim.Options{})

	txs := w.bank.Transactions()
	if len(txs) != before+1 {
		t.Fatalf("deposit produced %d legs, want 1", len(txs)-before)
	}
	dep := txs[len(txs)-1]
	if dep.Type != domain.TypeCredit || dep.Category != domain.CategoryDeposit {
		t.Errorf("deposit leg is %s/%s", dep.Type, dep.Category)
	}
	if dep.Channel != domain.ChannelCard {
		t.Errorf("deposit channel = %s, want CARD", dep.Channel)
	}

	// The counterparty must be one of the bank's ATMs.
	var atmIDs []string
	for _, dev := range w.bank.Devices() {
		atmIDs = append(atmIDs, dev.DeviceID)
	}
	found := false
	for _, id := range atmIDs {
		if dep.Related == id && dep.Device == id {
			found = true
		}
	}
	if !found {
		t.Errorf("deposit counterparty %q is not a bank ATM", dep.Related)
	}
}

func TestATMWithdrawal_ReversalSharesReference(t *testing.T) {
	// Run until a withdrawal's primary debit succeeds, then check a
	// requested reversal landed under the same reference.
	w := newTestWorld(3)

	for i := 0; i < 50; i++ {
		ref := "wd-ref"
		before := len(w.bank.Transactions())
		w.events.ATMWithdrawal(w.holder(), 10, ref, sim.Options{Reverse: true})

		txs := w.bank.Transactions()[before:]
		if len(txs) == 0 {
			t.Fatal("withdrawal recorded nothing")
		}
		if txs[0].Status != domain.StatusSuccess {
			continue
		}
		if len(txs) != 2 {
			t.Fatalf("successful reversed withdrawal produced %d legs, want 2", len(txs))
		}
		if txs[1].Category != domain.CategoryReversal || txs[1].Type != domain.TypeCredit {
			t.Errorf("reversal leg is %s/%s", txs[1].Type, txs[1].Category)
		}
		if txs[0].Reference != ref || txs[1].Reference != ref {
			t.Errorf("legs do not share the reference: %q, %q", txs[0].Reference, txs[1].Reference)
		}
		return
	}
	t.Fatal("no withdrawal succeeded in 50 attempts")
}

func TestSpin_ReturnsHandler(t *testing.T) {
	w := newTestWorld(4)

	for i := 0; i < 20; i++ {
		if handler := w.events.Spin(w.ind); handler == nil {
			t.Fatal("Spin returned nil handler")
		}
	}
}

// ─── Population ───────────────────────────────────────────────────────────────

func TestAddIndividual_DedupsAndKeepsOrder(t *testing.T) {
	w := newTestWorld(5)
	rng := sim.NewRand(6)

	second := sim.NewIndividual(rng, testLocations())
	w.events.AddIndividual(second)
	w.events.AddIndividual(second)

	profiles := w.events.Profiles()
	if len(profiles) != 2 {
		t.Fatalf("got %d profiles, want 2", len(profiles))
	}
	if profiles[0].UserID != w.ind.Profile.UserID || profiles[1].UserID != second.Profile.UserID {
		t.Errorf("profiles out of arrival order: %s, %s", profiles[0].UserID, profiles[1].UserID)
	}

	if _, ok := w.events.Individual(second.Profile.UserID); !ok {
		t.Error("added individual not resolvable")
	}
}
