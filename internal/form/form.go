// Package form turns operator input into a validated user. It keeps the state of the add and
// edit forms, derives the age from the birth date, assigns ids to new users and reports
// field errors while the operator is typing and on submit.
package form

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gitlab.com/dirk.krummacker/user-management/internal/model"
	"gitlab.com/dirk.krummacker/user-management/internal/schema"
)

// FieldGender is collected by the form but not part of the user record.
const FieldGender = "gender"

// ErrUnknownField is returned when input is set for a field the form does not have.
var ErrUnknownField = errors.New("unknown form field")

// ErrNoSuchPhone is returned for a phone index outside the phone list.
var ErrNoSuchPhone = errors.New("no such phone number")

// textFields are the fields edited through SetField.
var textFields = map[string]bool{
	schema.FieldFirstName: true,
	schema.FieldLastName:  true,
	schema.FieldEmail:     true,
	FieldGender:           true,
}

// ControllerArgs contains the arguments for NewController. Validator and IDs are mandatory.
type ControllerArgs struct {
	// Validator checks single fields and the assembled user.
	Validator *schema.Validator

	// IDs assigns the id of a new user.
	IDs *IDAllocator

	// Initial is the user being edited. It is nil when a new user is created.
	Initial *model.User

	// OnSubmit receives the validated user. If it returns an error the form keeps its state.
	OnSubmit func(ctx context.Context, u model.User) error

	// OnOpenChange is told when the hosting dialog should open or close.
	OnOpenChange func(open bool)
}

// Controller holds the state of one add or edit form.
type Controller struct {
	validator    *schema.Validator
	ids          *IDAllocator
	initial      *model.User
	onSubmit     func(ctx context.Context, u model.User) error
	onOpenChange func(open bool)

	text      map[string]string
	phones    []string
	birthDate string
	age       *int
	errors    map[string]string
	open      bool
}

// NewController creates a form. An edit form starts with the values of the initial user.
func NewController(args ControllerArgs) *Controller {
	c := &Controller{
		validator:    args.Validator,
		ids:          args.IDs,
		initial:      args.Initial,
		onSubmit:     args.OnSubmit,
		onOpenChange: args.OnOpenChange,
	}
	c.Reset()
	return c
}

// IsEdit tells whether the form edits an existing user.
func (c *Controller) IsEdit() bool {
	return c.initial != nil && c.initial.Id != 0
}

// Reset discards all input and errors and restores the initial values.
func (c *Controller) Reset() {
	c.text = map[string]string{}
	c.phones = []string{""}
	c.birthDate = ""
	c.age = nil
	c.errors = map[string]string{}
	if c.initial == nil {
		return
	}
	c.text[schema.FieldFirstName] = c.initial.FirstName
	c.text[schema.FieldLastName] = c.initial.LastName
	c.text[schema.FieldEmail] = c.initial.Email
	c.phones = []string{c.initial.Phone}
	c.birthDate = c.initial.BirthDate
	age := c.initial.Age
	c.age = &age
}

// Open opens the hosting dialog.
func (c *Controller) Open() {
	c.setOpen(true)
}

// Close closes the hosting dialog without submitting. The input is kept.
func (c *Controller) Close() {
	c.setOpen(false)
}

// IsOpen tells whether the hosting dialog is open.
func (c *Controller) IsOpen() bool {
	return c.open
}

func (c *Controller) setOpen(open bool) {
	c.open = open
	if c.onOpenChange != nil {
		c.onOpenChange(open)
	}
}

// SetField stores the value of a text field and clears its error until the next validation.
// The gender has no rules of its own and is validated right away.
func (c *Controller) SetField(field, value string) error {
	if !textFields[field] {
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	c.text[field] = value
	if field == FieldGender {
		c.validate(field, value)
		return nil
	}
	c.clearError(field)
	return nil
}

// Value returns the current value of a text field.
func (c *Controller) Value(field string) string {
	return c.text[field]
}

// BlurField validates the current value of a field, as done when the operator leaves it.
// It returns whether the field is valid.
func (c *Controller) BlurField(field string) bool {
	switch field {
	case schema.FieldPhone:
		return c.validate(field, c.phones[0])
	case schema.FieldBirthDate:
		return c.validate(field, c.birthDate)
	case schema.FieldAge:
		if c.age == nil {
			return c.validate(field, 0)
		}
		return c.validate(field, *c.age)
	}
	return c.validate(field, c.text[field])
}

// Phones returns a copy of the phone list. The first entry is the primary phone number.
func (c *Controller) Phones() []string {
	phones := make([]string, len(c.phones))
	copy(phones, c.phones)
	return phones
}

// AddPhone appends an empty phone number to the list.
func (c *Controller) AddPhone() {
	c.phones = append(c.phones, "")
}

// RemovePhone removes the phone number at index i. The last remaining entry cannot be
// removed; in that case false is returned.
func (c *Controller) RemovePhone(i int) bool {
	if len(c.phones) <= 1 || i < 0 || i >= len(c.phones) {
		return false
	}
	c.phones = append(c.phones[:i], c.phones[i+1:]...)
	return true
}

// UpdatePhone changes the phone number at index i. The primary phone number is validated
// right away.
func (c *Controller) UpdatePhone(i int, value string) error {
	if i < 0 || i >= len(c.phones) {
		return fmt.Errorf("%w: %d", ErrNoSuchPhone, i)
	}
	c.phones[i] = value
	if i == 0 {
		c.validate(schema.FieldPhone, value)
	}
	return nil
}

// SetBirthDate chooses the birth date and derives the age from it. Both are validated.
func (c *Controller) SetBirthDate(birth time.Time) {
	c.birthDate = schema.FormatBirthDate(birth)
	age := DeriveAge(birth, c.validator.Now())
	c.age = &age
	c.validate(schema.FieldBirthDate, c.birthDate)
	c.validate(schema.FieldAge, age)
}

// SetBirthDateString chooses the birth date from its text form. Text that is not a date is
// kept as entered and reported as a birth date error.
func (c *Controller) SetBirthDateString(value string) {
	if value == "" {
		c.ClearBirthDate()
		return
	}
	birth, err := schema.ParseBirthDate(value, c.validator.Now().Location())
	if err != nil {
		c.birthDate = value
		c.validate(schema.FieldBirthDate, value)
		return
	}
	c.SetBirthDate(birth)
}

// ClearBirthDate removes the birth date and its errors. An age set before stays.
func (c *Controller) ClearBirthDate() {
	c.birthDate = ""
	c.clearError(schema.FieldBirthDate)
	c.clearError(schema.FieldAge)
}

// BirthDate returns the chosen birth date in the canonical layout, or "" if none is chosen.
func (c *Controller) BirthDate() string {
	return c.birthDate
}

// SetAge sets the age directly and clears its error.
func (c *Controller) SetAge(age int) {
	c.age = &age
	c.clearError(schema.FieldAge)
}

// Age returns the current age and whether one is set.
func (c *Controller) Age() (int, bool) {
	if c.age == nil {
		return 0, false
	}
	return *c.age, true
}

// Errors returns a copy of the current field errors.
func (c *Controller) Errors() map[string]string {
	errs := make(map[string]string, len(c.errors))
	for field, message := range c.errors {
		errs[field] = message
	}
	return errs
}

// Submit assembles the user from the current input and validates it. On success the user is
// handed to OnSubmit, the form is reset and the dialog closed. On validation failure the
// field errors are kept for display and returned as schema.FieldErrors; the input stays.
func (c *Controller) Submit(ctx context.Context) (model.User, error) {
	id, err := c.id(ctx)
	if err != nil {
		return model.User{}, err
	}
	age := 0
	if c.age != nil {
		age = *c.age
	}
	candidate := model.User{
		Id:        id,
		FirstName: c.text[schema.FieldFirstName],
		LastName:  c.text[schema.FieldLastName],
		Age:       age,
		Email:     c.text[schema.FieldEmail],
		Phone:     c.phones[0],
		BirthDate: c.birthDate,
	}

	validated, err := c.validator.ValidateRecord(candidate)
	if err != nil {
		var fieldErrors schema.FieldErrors
		if errors.As(err, &fieldErrors) {
			c.errors = map[string]string(fieldErrors)
		}
		return model.User{}, err
	}
	if !c.IsEdit() {
		if err := c.ids.Commit(ctx, id); err != nil {
			return model.User{}, err
		}
	}
	if c.onSubmit != nil {
		if err := c.onSubmit(ctx, validated); err != nil {
			c.errors = map[string]string{}
			return model.User{}, err
		}
	}
	c.Reset()
	c.setOpen(false)
	return validated, nil
}

// id returns the id of the user being edited, or the next free id for a new user. The id of
// a new user is only committed once the user is valid.
func (c *Controller) id(ctx context.Context) (int, error) {
	if c.IsEdit() {
		return c.initial.Id, nil
	}
	return c.ids.Peek(ctx)
}

// validate runs the rules of one field and records or clears its error.
func (c *Controller) validate(field string, value any) bool {
	if err := c.validator.ValidateField(field, value); err != nil {
		var fieldError *schema.FieldError
		if errors.As(err, &fieldError) {
			c.errors[field] = fieldError.Message
		}
		return false
	}
	c.clearError(field)
	return true
}

func (c *Controller) clearError(field string) {
	delete(c.errors, field)
}
