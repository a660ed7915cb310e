package model

// UserInput is the payload of the add and edit forms. Phones holds the operator's list of
// phone numbers; only the first one is ever saved. Age is only used when no birth date is
// given, otherwise it is derived from the birth date.
type UserInput struct {
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Gender    string   `json:"gender,omitempty"`
	Email     string   `json:"email"`
	Phones    []string `json:"phones"`
	BirthDate string   `json:"birthDate,omitempty"`
	Age       *int     `json:"age,omitempty"`
}

// User is the public representation of a saved user.
type User struct {
	Id        int    `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Age       int    `json:"age"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	BirthDate string `json:"birthDate"`
}

// UserList is one page of users together with the number of users matching the filter.
type UserList struct {
	Users []User `json:"users"`
	Total int    `json:"total"`
}

// ErrorResponse is returned for every failed request. Errors is only set for validation
// failures and maps field names to messages.
type ErrorResponse struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// ValidateRequest asks for the validation of a single form field.
type ValidateRequest struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

// ValidateResponse is the answer to a ValidateRequest.
type ValidateResponse struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}
