package form

import "gitlab.com/dirk.krummacker/user-management/internal/schema"

// Input is the complete content of a form, as sent by a client in one request.
type Input struct {
	FirstName string
	LastName  string
	Gender    string
	Email     string
	Phones    []string
	BirthDate string
	Age       *int
}

// Apply enters all values of in into the form, the same way an operator would enter them
// one by one. Fields that are empty in an edit form keep their initial value. The age is
// only taken from in if no birth date is given.
func (c *Controller) Apply(in Input) {
	edit := c.IsEdit()
	for field, value := range map[string]string{
		schema.FieldFirstName: in.FirstName,
		schema.FieldLastName:  in.LastName,
		schema.FieldEmail:     in.Email,
		FieldGender:           in.Gender,
	} {
		if edit && value == "" {
			continue
		}
		// SetField cannot fail for these fields.
		_ = c.SetField(field, value)
	}

	if len(in.Phones) > 0 {
		c.phones = []string{""}
		for i, phone := range in.Phones {
			if i > 0 {
				c.AddPhone()
			}
			_ = c.UpdatePhone(i, phone)
		}
	}

	switch {
	case in.BirthDate != "":
		c.SetBirthDateString(in.BirthDate)
	case in.Age != nil:
		c.SetAge(*in.Age)
	}
}
