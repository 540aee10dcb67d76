package sim

import (
	"math"
	"strings"

	"okapi/banksim-api/internal/domain"
	"okapi/banksim-api/internal/geo"
)

// Randomised selection primitives shared by banks, events and the simulator.
// Every location-constrained pick uses the same policy: draw a radius from
// tiered limits (short trips dominate), filter candidates to that radius,
// and fall back to an unconstrained pick when nothing qualifies.

// radiusTiers are candidate search radii in kilometres and their weights.
var (
	radiusTiers   = []float64{1, 10, 100, 1000, 10000}
	radiusWeights = []float64{1, .5, .1, .05, .001}
)

// generateAmount produces a random money amount for a KYC tier. A non-zero
// limit overrides the tier-derived ceiling.
func generateAmount(rng *Rand, kyc int, limit float64) float64 {
	max := limit
	if max == 0 {
		max = math.Pow(10, float64(kyc)) * 10_000
	}

	low := 100.0
	if max < low {
		low = max
	}
	return round2(rng.Uniform(low, max))
}

// drawRadius picks a search radius in kilometres using the tiered policy.
func drawRadius(rng *Rand) float64 {
	return rng.Uniform(0, radiusTiers[rng.Weighted(radiusWeights)])
}

// randomLocation picks a location from the pool. When an origin is given,
// the pick is biased to a random radius around it, falling back to the whole
// pool when no location is close enough.
func randomLocation(rng *Rand, pool []domain.Location, origin *domain.Location) domain.Location {
	candidates := pool
	if origin != nil {
		radius := drawRadius(rng)
		var nearby []domain.Location
		for _, loc := range pool {
			if geo.Distance(*origin, loc) <= radius {
				nearby = append(nearby, loc)
			}
		}
		if len(nearby) > 0 {
			candidates = nearby
		}
	}
	return pick(rng, candidates)
}

// randomAccount picks a counterparty account, preferring higher KYC tiers
// and never returning the excluded account. Returns false when no other
// account exists.
func randomAccount(rng *Rand, accounts []domain.Account, exclude string) (domain.Account, bool) {
	level := 1 + rng.Weighted([]float64{1, 2, 3, 4})

	var others, qualified []domain.Account
	for _, acc := range accounts {
		if acc.AccountNo == exclude {
			continue
		}
		others = append(others, acc)
		if acc.KYC >= level {
			qualified = append(qualified, acc)
		}
	}
	if len(qualified) > 0 {
		return pick(rng, qualified), true
	}
	if len(others) > 0 {
		return pick(rng, others), true
	}
	return domain.Account{}, false
}

// merchantPoint describes the merchant side of a POS transaction.
type merchantPoint struct {
	domain.Location
	DeviceID  string
	AccountNo string
	BVN       string
	BankName  string
}

// randomMerchant picks a merchant account near the origin, resolved through
// its owning individual's home location. Returns false when the simulation
// has no merchants at all.
func randomMerchant(rng *Rand, profiles map[string]domain.Profile, accounts []domain.Account, origin domain.Location) (merchantPoint, bool) {
	var merchants []domain.Account
	for _, acc := range accounts {
		if acc.Merchant {
			merchants = append(merchants, acc)
		}
	}
	if len(merchants) == 0 {
		return merchantPoint{}, false
	}

	// Prefer a merchant whose owner lives within a random radius.
	radius := drawRadius(rng)
	var nearbyOwners []string
	seen := make(map[string]bool)
	for _, acc := range merchants {
		owner, ok := profiles[acc.BVN]
		if !ok || seen[acc.BVN] {
			continue
		}
		seen[acc.BVN] = true
		if geo.Distance(origin, owner.Location) <= radius {
			nearbyOwners = append(nearbyOwners, acc.BVN)
		}
	}

	pool := merchants
	if len(nearbyOwners) > 0 {
		ownerID := pick(rng, nearbyOwners)
		var owned []domain.Account
		for _, acc := range merchants {
			if acc.BVN == ownerID {
				owned = append(owned, acc)
			}
		}
		pool = owned
	}

	merchant := pick(rng, pool)
	owner := profiles[merchant.BVN]

	return merchantPoint{
		Location:  owner.Location,
		DeviceID:  "POS_" + strings.TrimPrefix(merchant.BVN, "USER_"),
		AccountNo: merchant.AccountNo,
		BVN:       merchant.BVN,
		BankName:  merchant.BankName,
	}, true
}

// randomATM picks an ATM near the origin, falling back to any device.
// Returns false only when no devices exist anywhere.
func randomATM(rng *Rand, devices []domain.BankDevice, origin domain.Location) (domain.BankDevice, bool) {
	if len(devices) == 0 {
		return domain.BankDevice{}, false
	}

	radius := drawRadius(rng)
	var nearby []domain.BankDevice
	for _, dev := range devices {
		if geo.Distance(origin, dev.Location) <= radius {
			nearby = append(nearby, dev)
		}
	}
	if len(nearby) > 0 {
		return pick(rng, nearby), true
	}
	return pick(rng, devices), true
}

// round2 rounds to two decimal places, mimicking money.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
