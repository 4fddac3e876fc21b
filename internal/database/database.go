package database

import (
	"github.com/focalpics/focal/internal/model"
)

type (
	// A Client can interacts with the database.
	Client interface {
		// Save inserts or updates the entry in database with the given model.
		Save(m model.Model) error
		// Delete deletes the entry in database with the given model.
		Delete(m model.Model) error
		// Close the database.
		Close() error
		// IsNotFound returns true if err is a not found error.
		IsNotFound(err error) bool
		// IsAlreadyExists returns true if err is a unique constraint error.
		IsAlreadyExists(err error) bool

		AccountInteraction
	}

	// An AccountInteraction defines all the methods used to interact with an account record.
	AccountInteraction interface {
		// FindAccount returns the account for the given id (UUID).
		FindAccount(id string) (*model.Account, error)
		// FindAccountByEmail returns the account for the given email.
		FindAccountByEmail(email string) (*model.Account, error)
		// FindAccountBySafename returns the account for the given safename.
		FindAccountBySafename(safename string) (*model.Account, error)
	}
)
