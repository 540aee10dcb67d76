package sim

import (
	"github.com/google/uuid"

	"okapi/banksim-api/internal/domain"
)

// behaviourCeilings caps the per-event behaviour weight an individual can be
// assigned, in domain.EventTypes order. Mobile transfers dominate; ATM trips
// are rare.
var behaviourCeilings = []int{1, 1, 2, 3, 3, 7, 3}

// Individual is a simulated person: an immutable profile plus a behavioural
// event-rate vector that biases which events they initiate.
type Individual struct {
	Profile   domain.Profile
	Behaviour map[string]int
}

// NewIndividual creates a fully set-up individual: identity, 1-2 mobile
// devices, a home drawn from the location pool, and random behaviour rates.
func NewIndividual(rng *Rand, locations []domain.Location) *Individual {
	userID := "USER_" + uuid.NewString()
	p := newPersona(rng)

	numDevices := rng.IntBetween(1, 2)
	devices := make([]string, 0, numDevices)
	for i := 0; i < numDevices; i++ {
		devices = append(devices, "MOBILE_"+userID+"_"+uuid.NewString())
	}

	behaviour := make(map[string]int, len(domain.EventTypes))
	for i, event := range domain.EventTypes {
		behaviour[event] = rng.IntBetween(0, behaviourCeilings[i])
	}

	return &Individual{
		Profile: domain.Profile{
			UserID:    userID,
			Devices:   devices,
			Name:      p.name,
			Gender:    p.gender,
			Email:     p.email,
			Birthdate: p.birthdate,
			Location:  randomLocation(rng, locations, nil),
		},
		Behaviour: behaviour,
	}
}
