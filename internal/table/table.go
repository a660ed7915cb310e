// Package table filters, sorts and pages user lists for display.
package table

import (
	"sort"
	"strings"
	"time"

	"gitlab.com/dirk.krummacker/user-management/internal/model"
	"gitlab.com/dirk.krummacker/user-management/internal/schema"
)

// Column describes one column of the user table.
type Column struct {
	Key    string `json:"key"`
	Header string `json:"header"`
}

// Columns are the columns of the user table in display order. The actions column holds the
// view, edit and delete controls of a row.
var Columns = []Column{
	{Key: schema.FieldId, Header: "ID"},
	{Key: schema.FieldFirstName, Header: "First Name"},
	{Key: schema.FieldLastName, Header: "Last Name"},
	{Key: schema.FieldEmail, Header: "Email"},
	{Key: schema.FieldPhone, Header: "Phone"},
	{Key: schema.FieldAge, Header: "Age"},
	{Key: schema.FieldBirthDate, Header: "Birth Date"},
	{Key: "actions", Header: "Actions"},
}

// less compares two users by one column.
var less = map[string]func(a, b model.User) bool{
	schema.FieldId:        func(a, b model.User) bool { return a.Id < b.Id },
	schema.FieldFirstName: func(a, b model.User) bool { return lessFold(a.FirstName, b.FirstName) },
	schema.FieldLastName:  func(a, b model.User) bool { return lessFold(a.LastName, b.LastName) },
	schema.FieldEmail:     func(a, b model.User) bool { return lessFold(a.Email, b.Email) },
	schema.FieldPhone:     func(a, b model.User) bool { return a.Phone < b.Phone },
	schema.FieldAge:       func(a, b model.User) bool { return a.Age < b.Age },
	schema.FieldBirthDate: lessBirthDate,
}

// Sortable tells whether the table can be sorted by the column with the given key.
func Sortable(key string) bool {
	_, ok := less[key]
	return ok
}

// Query selects a page of users.
type Query struct {
	// Filter keeps only users whose first name contains it, ignoring case. Empty keeps all.
	Filter string

	// OrderBy is the key of the column to sort by. Empty keeps the insertion order.
	OrderBy string

	// Ascending sorts from the lowest value. Otherwise the order is reversed.
	Ascending bool

	// Limit is the maximum number of users on the page. Zero means no limit.
	Limit int

	// Offset is the number of matching users skipped before the page starts.
	Offset int
}

// Page is the result of a query.
type Page struct {
	// Users are the users on the page.
	Users []model.User

	// Total is the number of users matching the filter, on all pages.
	Total int
}

// Apply runs the query on users. The input slice is not modified.
func Apply(users []model.User, q Query) Page {
	filter := strings.ToLower(q.Filter)
	matching := make([]model.User, 0, len(users))
	for _, u := range users {
		if filter == "" || strings.Contains(strings.ToLower(u.FirstName), filter) {
			matching = append(matching, u)
		}
	}

	if compare, ok := less[q.OrderBy]; ok {
		sort.SliceStable(matching, func(i, j int) bool {
			if q.Ascending {
				return compare(matching[i], matching[j])
			}
			return compare(matching[j], matching[i])
		})
	}

	total := len(matching)
	start := min(max(q.Offset, 0), total)
	end := total
	if q.Limit > 0 {
		end = start + min(q.Limit, total-start)
	}
	return Page{Users: matching[start:end], Total: total}
}

// lessBirthDate compares birth dates as dates, so that "1996-5-30" comes before "1996-12-01".
// Dates that cannot be parsed are compared as strings.
func lessBirthDate(a, b model.User) bool {
	da, errA := schema.ParseBirthDate(a.BirthDate, time.UTC)
	db, errB := schema.ParseBirthDate(b.BirthDate, time.UTC)
	if errA != nil || errB != nil {
		return a.BirthDate < b.BirthDate
	}
	return da.Before(db)
}

func lessFold(a, b string) bool {
	return strings.ToLower(a) < strings.ToLower(b)
}
