// Package randomgen produces random but valid user data for tests and load generation.
package randomgen

import (
	"fmt"
	"math/rand"
	"time"

	pkgmodel "gitlab.com/dirk.krummacker/user-management/pkg/model"
)

var firstNames = []string{
	"Emily", "Michael", "Sophia", "James", "Emma", "Olivia", "Alexander", "Ava", "Ethan", "Isabella",
	"Liam", "Mia", "Noah", "Charlotte", "Erika", "Rudi", "Anton", "Zacharias", "Kumari", "Nimal",
}

var lastNames = []string{
	"Johnson", "Williams", "Brown", "Garcia", "Miller", "Davis", "Rodriguez", "Martinez", "Wilson",
	"Anderson", "Mustermann", "Völler", "Perera", "Fernando", "Silva", "Schmidt", "Novak", "Dvořák",
}

var domains = []string{"example.com", "example.org", "mail.example.net"}

var genders = []string{"male", "female", "other"}

// PickFirstName returns a random first name.
func PickFirstName() string {
	return firstNames[rand.Intn(len(firstNames))]
}

// PickLastName returns a random last name. Last names contain no spaces.
func PickLastName() string {
	return lastNames[rand.Intn(len(lastNames))]
}

// PickGender returns one of the form's gender options.
func PickGender() string {
	return genders[rand.Intn(len(genders))]
}

// PickEmail returns a random address of an example domain.
func PickEmail() string {
	return fmt.Sprintf("user%d@%s", rand.Intn(1000000), domains[rand.Intn(len(domains))])
}

// PickPhone returns a random international phone number like "+49 171 5550123".
func PickPhone() string {
	return fmt.Sprintf("+%d %d %07d", 1+rand.Intn(98), 100+rand.Intn(900), rand.Intn(10000000))
}

// PickBirthDate returns a birth date between 1 and 99 years before today, formatted as
// YYYY-MM-DD.
func PickBirthDate(today time.Time) string {
	days := 366 + rand.Intn(98*365)
	return today.AddDate(0, 0, -days).Format(time.DateOnly)
}

// UserInput returns the payload of a valid add form with one phone number.
func UserInput(today time.Time) pkgmodel.UserInput {
	return pkgmodel.UserInput{
		FirstName: PickFirstName(),
		LastName:  PickLastName(),
		Gender:    PickGender(),
		Email:     PickEmail(),
		Phones:    []string{PickPhone()},
		BirthDate: PickBirthDate(today),
	}
}
