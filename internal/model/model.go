package model

import "errors"

// ErrNotFound is returned when a user is required to exist and does not.
var ErrNotFound = errors.New("user not found")

// User is the data structure for a person managed by the operator.
// All fields are mandatory; see package schema for the constraints.
type User struct {
	Id        int    `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Age       int    `json:"age"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	BirthDate string `json:"birthDate"`
}

// Gender is collected by the form but never persisted with the user.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)
