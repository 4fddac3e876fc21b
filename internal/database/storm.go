package database

import (
	"time"

	"github.com/asdine/storm/v3"
	"github.com/asdine/storm/v3/codec/msgpack"
	"github.com/focalpics/focal/internal/model"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
)

type strm struct {
	db *storm.DB
}

// StormCodec is the format used to store data in the database.
var StormCodec = storm.Codec(msgpack.Codec)

// StormInit initializes Storm database.
func StormInit(database string) error {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return errors.Wrap(err, "could not get database connection")
	}
	defer db.Close()

	err = db.Init(&model.Account{})
	return errors.Wrap(err, "could not init account index")
}

// StormReIndex reindex Storm database.
func StormReIndex(database string) error {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return errors.Wrap(err, "could not get database connection")
	}
	defer db.Close()

	err = db.ReIndex(&model.Account{})
	return errors.Wrap(err, "could not ReIndex accounts")
}

// StormOpen returns a new Storm database connection.
func StormOpen(database string) (Client, error) {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return nil, errors.Wrap(err, "could not get database connection")
	}

	return &strm{
		db: db,
	}, nil
}

// Save inserts or updates the entry in database with the given model.
func (c *strm) Save(m model.Model) error {
	t := time.Now().UTC()
	m.SetUpdatedAt(t)

	if m.GetID() == "" {
		m.SetID(uuid.Must(uuid.NewV4()).String())
		m.SetCreatedAt(t)
	}

	return errors.Wrap(c.db.Save(m), "could not save the model")
}

// Delete deletes the entry in database with the given model.
func (c *strm) Delete(m model.Model) error {
	return errors.Wrap(c.db.DeleteStruct(m), "could not delete the model")
}

// Close the database.
func (c *strm) Close() error {
	return c.db.Close()
}

// IsNotFound returns true if err is a not found error.
func (c *strm) IsNotFound(err error) bool {
	return errors.Cause(err) == storm.ErrNotFound
}

// IsAlreadyExists returns true if err is a unique constraint error.
func (c *strm) IsAlreadyExists(err error) bool {
	return errors.Cause(err) == storm.ErrAlreadyExists
}

// FindAccount returns the account for the given id (UUID).
func (c *strm) FindAccount(id string) (*model.Account, error) {
	var account model.Account
	if err := c.db.One("ID", id, &account); err != nil {
		return nil, errors.Wrap(err, "find account by id")
	}
	return &account, nil
}

// FindAccountByEmail returns the account for the given email.
func (c *strm) FindAccountByEmail(email string) (*model.Account, error) {
	var account model.Account
	if err := c.db.One("Email", email, &account); err != nil {
		return nil, errors.Wrap(err, "find account by email")
	}
	return &account, nil
}

// FindAccountBySafename returns the account for the given safename.
func (c *strm) FindAccountBySafename(safename string) (*model.Account, error) {
	var account model.Account
	if err := c.db.One("Safename", safename, &account); err != nil {
		return nil, errors.Wrap(err, "find account by safename")
	}
	return &account, nil
}
