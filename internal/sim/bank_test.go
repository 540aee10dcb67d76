package sim_test

import (
	"errors"
	"math"
	"sync"
	"testing"

	"okapi/banksim-api/internal/domain"
	"okapi/banksim-api/internal/sim"
	"okapi/banksim-api/internal/simclock"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

func testLocations() []domain.Location {
	return []domain.Location{
		{Latitude: 9.30, Longitude: 3.90},
		{Latitude: 9.31, Longitude: 3.91},
		{Latitude: 9.29, Longitude: 3.89},
		{Latitude: 9.35, Longitude: 3.95},
	}
}

func testProfile(id string) domain.Profile {
	return domain.Profile{
		UserID:    "USER_" + id,
		Devices:   []string{"MOBILE_USER_" + id + "_a"},
		Name:      "Ngozi Okafor",
		Gender:    "F",
		Email:     "ngozi.okafor1@gmail.com",
		Birthdate: "1990-04-12",
		Location:  domain.Location{Latitude: 9.30, Longitude: 3.90},
	}
}

func newTestBank(seed int64) *sim.Bank {
	clock := simclock.New(simclock.DefaultBase, seed)
	return sim.NewBank("Test Bank", clock, sim.NewRand(seed), testLocations(), .05)
}

// reversalLeg builds a leg that cannot be randomly declined.
func reversalLeg(accountNo string, amount float64) sim.LegRequest {
	return sim.LegRequest{
		AccountNo:   accountNo,
		Related:     "ACC_0000000099",
		RelatedBank: "Other Bank",
		Amount:      amount,
		DeviceID:    "dev-1",
		Location:    domain.Location{Latitude: 9.3, Longitude: 3.9},
		Category:    domain.CategoryReversal,
		Channel:     domain.ChannelApp,
		Reference:   "ref-1",
	}
}

// ─── Account opening ──────────────────────────────────────────────────────────

func TestOpenAccount_RecordsOpeningCredit(t *testing.T) {
	bank := newTestBank(1)
	account := bank.OpenAccount(testProfile("1"), 2)

	if account.AccountNo != "ACC_0000000001" {
		t.Errorf("account no = %q", account.AccountNo)
	}
	if account.KYC != 2 {
		t.Errorf("kyc = %d, want 2", account.KYC)
	}
	if account.BVN != "USER_1" {
		t.Errorf("bvn = %q", account.BVN)
	}
	if account.Balance <= 0 {
		t.Errorf("opening balance = %f, want > 0", account.Balance)
	}

	txs := bank.Transactions()
	if len(txs) != 1 {
		t.Fatalf("got %d transactions, want 1 opening credit", len(txs))
	}
	opening := txs[0]
	if opening.Type != domain.TypeCredit || opening.Category != domain.CategoryOpening {
		t.Errorf("opening leg is %s/%s", opening.Type, opening.Category)
	}
	if opening.Amount != account.Balance || opening.Balance != account.Balance {
		t.Errorf("opening amount %f / balance %f, want both %f", opening.Amount, opening.Balance, account.Balance)
	}
	if opening.Holder != account.AccountNo || opening.HolderBank != "Test Bank" {
		t.Errorf("opening holder = %s at %s", opening.Holder, opening.HolderBank)
	}
}

func TestOpenAccount_DrawsTierWhenUnset(t *testing.T) {
	bank := newTestBank(2)

	for i := 0; i < 20; i++ {
		account := bank.OpenAccount(testProfile("x"), 0)
		if account.KYC < 1 || account.KYC > 3 {
			t.Fatalf("drawn kyc = %d, want 1..3", account.KYC)
		}
	}
}

func TestSetup_ProvisionsDevicesAndAccounts(t *testing.T) {
	bank := newTestBank(3)
	bank.Setup(4, []domain.Profile{testProfile("1"), testProfile("2")})

	if got := len(bank.Devices()); got != 4 {
		t.Errorf("devices = %d, want 4", got)
	}
	if got := len(bank.Accounts()); got != 2 {
		t.Errorf("accounts = %d, want 2", got)
	}
}

// ─── Debits and credits ───────────────────────────────────────────────────────

func TestDebit_ReducesBalance(t *testing.T) {
	bank := newTestBank(4)
	account := bank.OpenAccount(testProfile("1"), 3)

	amount := math.Floor(account.Balance / 2)
	tx, err := bank.Debit(reversalLeg(account.AccountNo, amount))
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if tx.Status != domain.StatusSuccess {
		t.Fatalf("reversal debit status = %s", tx.Status)
	}

	want := account.Balance - amount
	if tx.Balance != want {
		t.Errorf("tx balance = %f, want %f", tx.Balance, want)
	}
	got, _ := bank.Account(account.AccountNo)
	if got.Balance != want {
		t.Errorf("stored balance = %f, want %f", got.Balance, want)
	}
}

func TestDebit_InsufficientFundsFailsUnchanged(t *testing.T) {
	bank := newTestBank(5)
	account := bank.OpenAccount(testProfile("1"), 1)

	tx, err := bank.Debit(reversalLeg(account.AccountNo, account.Balance+1))
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if tx.Status != domain.StatusFailed {
		t.Fatalf("overdraft debit status = %s, want FAILED", tx.Status)
	}
	if tx.Balance != account.Balance {
		t.Errorf("failed debit reported balance %f, want untouched %f", tx.Balance, account.Balance)
	}
	got, _ := bank.Account(account.AccountNo)
	if got.Balance != account.Balance {
		t.Errorf("stored balance moved on a failed debit: %f != %f", got.Balance, account.Balance)
	}
}

func TestCredit_RoundsToWholeAmount(t *testing.T) {
	bank := newTestBank(6)
	account := bank.OpenAccount(testProfile("1"), 1)

	leg := reversalLeg(account.AccountNo, 100.57)
	leg.Category = domain.CategoryDeposit
	tx, err := bank.Credit(leg)
	if err != nil {
		t.Fatalf("credit: %v", err)
	}

	want := math.Round(account.Balance + 100.57)
	if tx.Balance != want {
		t.Errorf("credited balance = %f, want %f", tx.Balance, want)
	}
	if tx.Status != domain.StatusSuccess {
		t.Errorf("credit status = %s", tx.Status)
	}
}

func TestCredit_ConcurrentWithSnapshots(t *testing.T) {
	bank := newTestBank(8)
	account := bank.OpenAccount(testProfile("1"), 2)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				leg := reversalLeg(account.AccountNo, 10)
				leg.Category = domain.CategoryDeposit
				if _, err := bank.Credit(leg); err != nil {
					t.Errorf("credit: %v", err)
					return
				}
				if _, ok := bank.Account(account.AccountNo); !ok {
					t.Error("account disappeared mid-run")
					return
				}
				bank.Accounts()
			}
		}()
	}
	wg.Wait()

	got, _ := bank.Account(account.AccountNo)
	want := math.Round(account.Balance) + 8*100*10
	if math.Abs(got.Balance-want) > 1 {
		t.Errorf("final balance = %f, want about %f", got.Balance, want)
	}
}

func TestDebit_UnknownAccount(t *testing.T) {
	bank := newTestBank(7)

	if _, err := bank.Debit(reversalLeg("ACC_9999999999", 10)); err == nil {
		t.Fatal("debit against an unknown account succeeded")
	}
}

// ─── Deterministic posting ────────────────────────────────────────────────────

func TestPost_DebitExactlyReducesBalance(t *testing.T) {
	bank := newTestBank(8)
	account := bank.OpenAccount(testProfile("1"), 3)

	leg := reversalLeg(account.AccountNo, 250.25)
	leg.Category = domain.CategoryTransfer
	tx, err := bank.Post(domain.TypeDebit, leg)
	if err != nil {
		t.Fatalf("post: %v", err)
	}

	want := math.Round((account.Balance-250.25)*100) / 100
	if tx.Balance != want {
		t.Errorf("posted balance = %f, want %f", tx.Balance, want)
	}
	if tx.Status != domain.StatusSuccess || tx.Type != domain.TypeDebit {
		t.Errorf("posted leg is %s/%s", tx.Status, tx.Type)
	}
	if tx.Reported {
		t.Error("externally posted leg marked reported")
	}
}

func TestPost_InsufficientFundsRecordsNothing(t *testing.T) {
	bank := newTestBank(9)
	account := bank.OpenAccount(testProfile("1"), 1)
	before := len(bank.Transactions())

	leg := reversalLeg(account.AccountNo, account.Balance+0.01)
	leg.Category = domain.CategoryTransfer
	_, err := bank.Post(domain.TypeDebit, leg)
	if !errors.Is(err, sim.ErrInsufficientFunds) {
		t.Fatalf("error = %v, want ErrInsufficientFunds", err)
	}

	if got := len(bank.Transactions()); got != before {
		t.Errorf("failed post recorded a transaction: %d -> %d", before, got)
	}
	got, _ := bank.Account(account.AccountNo)
	if got.Balance != account.Balance {
		t.Errorf("failed post moved the balance: %f != %f", got.Balance, account.Balance)
	}
}

func TestPost_CreditRoundsWhole(t *testing.T) {
	bank := newTestBank(10)
	account := bank.OpenAccount(testProfile("1"), 1)

	leg := reversalLeg(account.AccountNo, 99.49)
	leg.Category = domain.CategoryTransfer
	tx, err := bank.Post(domain.TypeCredit, leg)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if want := math.Round(account.Balance + 99.49); tx.Balance != want {
		t.Errorf("posted credit balance = %f, want %f", tx.Balance, want)
	}
}
