// Package store holds the users created by the operator during one session. The collection
// is written to the session storage after every change and read back when a store is
// created, so it survives reloads for as long as the session lives.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gitlab.com/dirk.krummacker/user-management/internal/model"
	"gitlab.com/dirk.krummacker/user-management/internal/schema"
	"gitlab.com/dirk.krummacker/user-management/internal/storage"
)

// StorageKey is the name of the session storage item holding the serialized collection.
const StorageKey = "new-users-storage"

// formatVersion is written into every serialized collection. Content with another version
// is not rehydrated.
const formatVersion = 0

// envelope is the serialized form of the collection.
type envelope struct {
	State struct {
		NewPosts []model.User `json:"newPosts"`
	} `json:"state"`
	Version int `json:"version"`
}

// StoreArgs contains the mandatory arguments for New.
type StoreArgs struct {
	// Storage is the session storage the collection is persisted to.
	Storage storage.Storage

	// Validator checks every user before it enters the collection.
	Validator *schema.Validator

	// Logger receives validation and storage failures.
	Logger logrus.FieldLogger
}

// Store is the ordered collection of users created in one session. Insertion order is
// display order. A Store is not safe for concurrent use.
type Store struct {
	storage   storage.Storage
	validator *schema.Validator
	log       logrus.FieldLogger
	users     []model.User
}

// New creates a store and rehydrates it from the session storage. Missing or unreadable
// content yields an empty collection.
func New(ctx context.Context, args StoreArgs) *Store {
	s := &Store{storage: args.Storage, validator: args.Validator, log: args.Logger}
	s.rehydrate(ctx)
	return s
}

// Users returns a copy of the collection.
func (s *Store) Users() []model.User {
	users := make([]model.User, len(s.users))
	copy(users, s.users)
	return users
}

// Len returns the number of users in the collection.
func (s *Store) Len() int {
	return len(s.users)
}

// Get returns the first user with the given id, or model.ErrNotFound.
func (s *Store) Get(id int) (model.User, error) {
	if i := s.indexOf(id); i >= 0 {
		return s.users[i], nil
	}
	return model.User{}, model.ErrNotFound
}

// Add validates the user and appends it to the collection. An invalid user is logged and
// dropped, the collection stays unchanged and the validation error is returned.
func (s *Store) Add(ctx context.Context, u model.User) error {
	validated, err := s.validator.ValidateRecord(u)
	if err != nil {
		s.logInvalid(err, "invalid user data")
		return err
	}
	s.users = append(s.users, validated)
	s.persist(ctx)
	return nil
}

// Update validates the user and replaces the first user with the same id. If no user has
// that id, nothing happens. An invalid user is logged and dropped like in Add.
func (s *Store) Update(ctx context.Context, u model.User) error {
	validated, err := s.validator.ValidateRecord(u)
	if err != nil {
		s.logInvalid(err, "invalid user data for update")
		return err
	}
	i := s.indexOf(validated.Id)
	if i < 0 {
		return nil
	}
	s.users[i] = validated
	s.persist(ctx)
	return nil
}

// Remove deletes every user with the given id and keeps the order of the others. Removing
// an unknown id is not an error.
func (s *Store) Remove(ctx context.Context, id int) {
	kept := s.users[:0]
	for _, u := range s.users {
		if u.Id != id {
			kept = append(kept, u)
		}
	}
	s.users = kept
	s.persist(ctx)
}

// Clear empties the collection.
func (s *Store) Clear(ctx context.Context) {
	s.users = nil
	s.persist(ctx)
}

func (s *Store) indexOf(id int) int {
	for i, u := range s.users {
		if u.Id == id {
			return i
		}
	}
	return -1
}

func (s *Store) logInvalid(err error, msg string) {
	var fieldErrors schema.FieldErrors
	if errors.As(err, &fieldErrors) {
		s.log.WithField("fields", map[string]string(fieldErrors)).Error(msg)
		return
	}
	s.log.WithError(err).Error(msg)
}

// persist writes the whole collection. Failures are logged and otherwise ignored.
func (s *Store) persist(ctx context.Context) {
	data, err := Encode(s.users)
	if err != nil {
		s.log.WithError(err).Warn("could not encode users")
		return
	}
	if err := s.storage.SetItem(ctx, StorageKey, data); err != nil {
		s.log.WithError(err).Warn("could not persist users")
	}
}

func (s *Store) rehydrate(ctx context.Context) {
	data, ok, err := s.storage.GetItem(ctx, StorageKey)
	if err != nil {
		s.log.WithError(err).Warn("could not read persisted users")
		return
	}
	if !ok {
		return
	}
	users, err := Decode(data)
	if err != nil {
		s.log.WithError(err).Warn("ignoring malformed persisted users")
		return
	}
	for _, u := range users {
		validated, err := s.validator.ValidateRecord(u)
		if err != nil {
			s.log.WithError(err).WithField("id", u.Id).Warn("dropping invalid persisted user")
			continue
		}
		s.users = append(s.users, validated)
	}
}

// Encode serializes a collection for the session storage.
func Encode(users []model.User) (string, error) {
	var e envelope
	e.State.NewPosts = users
	if e.State.NewPosts == nil {
		e.State.NewPosts = []model.User{}
	}
	e.Version = formatVersion
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("error encoding users: %w", err)
	}
	return string(data), nil
}

// Decode parses a collection written by Encode.
func Decode(data string) ([]model.User, error) {
	var e envelope
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return nil, fmt.Errorf("error decoding users: %w", err)
	}
	if e.Version != formatVersion {
		return nil, fmt.Errorf("unsupported version %d", e.Version)
	}
	return e.State.NewPosts, nil
}
