package sim

import (
	"fmt"
	"strings"
	"time"
)

// Synthetic identity material for generated individuals and bank names.
// The pools are deliberately small; collisions in names are realistic and
// identifiers stay unique through UUIDs, not names.

var firstNames = []string{
	"Adaeze", "Amina", "Babajide", "Chidinma", "Chukwuemeka", "Damilola",
	"Emeka", "Fatima", "Folake", "Gbenga", "Halima", "Ibrahim",
	"Ifeoma", "Kelechi", "Musa", "Ngozi", "Nnamdi", "Olumide",
	"Oluwaseun", "Sade", "Tunde", "Uche", "Yusuf", "Zainab",
}

var lastNames = []string{
	"Abubakar", "Adebayo", "Adeyemi", "Afolabi", "Balogun", "Bello",
	"Chukwu", "Eze", "Ibrahim", "Lawal", "Mohammed", "Nwachukwu",
	"Obi", "Ogunleye", "Okafor", "Okeke", "Okonkwo", "Olawale",
	"Onyeka", "Osei", "Sanni", "Suleiman", "Umar", "Yakubu",
}

var emailDomains = []string{"gmail.com", "yahoo.com", "outlook.com", "hotmail.com"}

var genders = []string{"M", "F"}

// persona is a generated identity: everything a Profile needs besides its
// location and devices.
type persona struct {
	name      string
	gender    string
	email     string
	birthdate string
}

// newPersona draws a random identity.
func newPersona(rng *Rand) persona {
	first := pick(rng, firstNames)
	last := pick(rng, lastNames)
	name := first + " " + last

	email := fmt.Sprintf("%s.%s%d@%s",
		strings.ToLower(first), strings.ToLower(last), rng.IntBetween(1, 99), pick(rng, emailDomains))

	// Adults only: birth years 1955-2005.
	birth := time.Date(rng.IntBetween(1955, 2005), time.Month(rng.IntBetween(1, 12)),
		rng.IntBetween(1, 28), 0, 0, 0, 0, time.UTC)

	return persona{
		name:      name,
		gender:    pick(rng, genders),
		email:     email,
		birthdate: birth.Format("2006-01-02"),
	}
}

// bankName draws a bank name from the same identity pools.
func bankName(rng *Rand) string {
	return newPersona(rng).name + " Bank"
}
