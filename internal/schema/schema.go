// Package schema is the single source of truth for the shape of a user record and the
// constraints on its fields. The same rule table serves whole-record validation before a user
// is saved and single-field validation while the operator is still typing.
package schema

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"gitlab.com/dirk.krummacker/user-management/internal/model"
)

// Names of the validated fields, as they appear in JSON and in error maps.
const (
	FieldId        = "id"
	FieldFirstName = "firstName"
	FieldLastName  = "lastName"
	FieldAge       = "age"
	FieldEmail     = "email"
	FieldPhone     = "phone"
	FieldBirthDate = "birthDate"
)

// Fields lists all fields of a user record in display order.
var Fields = []string{FieldId, FieldFirstName, FieldLastName, FieldAge, FieldEmail, FieldPhone, FieldBirthDate}

// BirthDateLayout is the canonical format of a birth date.
const BirthDateLayout = "2006-01-02"

// birthDateLayouts are tried in order when parsing a birth date. The second layout also
// accepts dates without zero padding, e.g. "1996-5-30", which the remote API returns.
var birthDateLayouts = []string{BirthDateLayout, "2006-1-2", time.RFC3339}

// strictEmail must match on top of the generic email syntax check.
var strictEmail = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// internationalPhone is matched against a phone number with all whitespace removed.
var internationalPhone = regexp.MustCompile(`^(\+\d{1,3}[- ]?)?\(?\d{1,4}\)?[- ]?\d{1,4}[- ]?\d{1,9}$`)

// FieldErrors maps a field name to the message of the first rule that field failed.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+e[field])
	}
	return "invalid user: " + strings.Join(parts, "; ")
}

// FieldError is the result of a failed single-field validation.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Message
}

// rule is one constraint on a field. Rules of a field are evaluated in order and the first
// failing rule determines the message.
type rule struct {
	valid   func(value any) bool
	message string
}

// Validator checks user records against the rule table. The birth date rule depends on the
// current day, which is taken from the clock the validator was created with.
type Validator struct {
	now    func() time.Time
	syntax *validator.Validate
	rules  map[string][]rule
}

// NewValidator creates a validator. A nil clock means time.Now.
func NewValidator(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	v := &Validator{now: now, syntax: validator.New()}
	v.rules = map[string][]rule{
		FieldId: {
			isInt("Expected number"),
			intAtLeast(1, "ID must be greater than 0"),
		},
		FieldFirstName: {
			isString("Expected string"),
			minLength(1, "First name is required"),
			maxLength(50, "First name must be less than 50 characters"),
		},
		FieldLastName: {
			isString("Expected string"),
			minLength(1, "Last name is required"),
			maxLength(50, "Last name must be less than 50 characters"),
		},
		FieldAge: {
			isInt("Expected number"),
			intAtLeast(1, "Age must be greater than 0"),
			intAtMost(120, "Age must be less than 120"),
		},
		FieldEmail: {
			isString("Expected string"),
			minLength(1, "Email is required"),
			stringRule("Invalid email format", func(s string) bool {
				return v.syntax.Var(s, "email") == nil
			}),
			stringRule("Please enter a valid email address", strictEmail.MatchString),
			stringRule("Email must have a valid domain", func(s string) bool {
				_, domain, found := strings.Cut(s, "@")
				return found && strings.Contains(domain, ".")
			}),
		},
		FieldPhone: {
			isString("Expected string"),
			minLength(1, "Phone number is required"),
			stringRule("Please enter a valid phone number (e.g., +1 123 456 7890 or +94 77 123 4567)", func(s string) bool {
				return internationalPhone.MatchString(stripSpaces(s))
			}),
		},
		FieldBirthDate: {
			isString("Expected string"),
			minLength(1, "Birth date is required"),
			stringRule("Birth date must be a valid date", func(s string) bool {
				_, err := ParseBirthDate(s, time.Local)
				return err == nil
			}),
			stringRule("Birth date cannot be in the future", v.notInFuture),
		},
	}
	return v
}

// Now returns the current time according to the validator's clock.
func (v *Validator) Now() time.Time {
	return v.now()
}

// ValidateRecord checks every field of the candidate. It returns the validated user or
// FieldErrors holding one message per failing field.
func (v *Validator) ValidateRecord(candidate model.User) (model.User, error) {
	errs := FieldErrors{}
	for _, field := range Fields {
		if message, ok := v.check(field, fieldValue(candidate, field)); !ok {
			errs[field] = message
		}
	}
	if len(errs) > 0 {
		return model.User{}, errs
	}
	return candidate, nil
}

// ValidateField checks a single field value against the rules of that field only. Fields
// without a constraint of their own, e.g. "gender", always pass.
func (v *Validator) ValidateField(field string, value any) error {
	if _, known := v.rules[field]; !known {
		return nil
	}
	if message, ok := v.check(field, value); !ok {
		return &FieldError{Field: field, Message: message}
	}
	return nil
}

func (v *Validator) check(field string, value any) (string, bool) {
	for _, r := range v.rules[field] {
		if !r.valid(value) {
			return r.message, false
		}
	}
	return "", true
}

// notInFuture accepts any birth date up to and including the last instant of today.
func (v *Validator) notInFuture(s string) bool {
	now := v.now()
	date, err := ParseBirthDate(s, now.Location())
	if err != nil {
		return false
	}
	endOfDay := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 999999999, now.Location())
	return !date.After(endOfDay)
}

// ParseBirthDate parses a birth date in one of the accepted layouts. Dates without a time
// zone are interpreted in loc.
func ParseBirthDate(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range birthDateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized birth date %q", s)
}

// FormatBirthDate formats t in the canonical birth date layout.
func FormatBirthDate(t time.Time) string {
	return t.Format(BirthDateLayout)
}

func fieldValue(u model.User, field string) any {
	switch field {
	case FieldId:
		return u.Id
	case FieldFirstName:
		return u.FirstName
	case FieldLastName:
		return u.LastName
	case FieldAge:
		return u.Age
	case FieldEmail:
		return u.Email
	case FieldPhone:
		return u.Phone
	case FieldBirthDate:
		return u.BirthDate
	}
	return nil
}

func stripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func isString(message string) rule {
	return rule{message: message, valid: func(value any) bool {
		_, ok := value.(string)
		return ok
	}}
}

// stringRule must only follow isString in a rule list.
func stringRule(message string, valid func(string) bool) rule {
	return rule{message: message, valid: func(value any) bool {
		return valid(value.(string))
	}}
}

func minLength(n int, message string) rule {
	return stringRule(message, func(s string) bool { return utf8.RuneCountInString(s) >= n })
}

func maxLength(n int, message string) rule {
	return stringRule(message, func(s string) bool { return utf8.RuneCountInString(s) <= n })
}

func isInt(message string) rule {
	return rule{message: message, valid: func(value any) bool {
		_, ok := asInt(value)
		return ok
	}}
}

func intAtLeast(n int, message string) rule {
	return rule{message: message, valid: func(value any) bool {
		i, _ := asInt(value)
		return i >= n
	}}
}

func intAtMost(n int, message string) rule {
	return rule{message: message, valid: func(value any) bool {
		i, _ := asInt(value)
		return i <= n
	}}
}

// asInt accepts Go integers and whole floats, the latter being how JSON numbers arrive
// when decoded into an interface value.
func asInt(value any) (int, bool) {
	switch n := value.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}
