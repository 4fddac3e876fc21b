package server

import (
	"net/http"
	"strings"

	"github.com/focalpics/focal/internal/apierror"
	"github.com/focalpics/focal/internal/database"
	"github.com/focalpics/focal/internal/model"
	"github.com/focalpics/focal/internal/server/serializer"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type (
	account struct {
		db database.Client
	}

	accountParams struct {
		Name string `json:"account_name"`
	}
)

// Create registers an account for the email of the current session.
func (h *account) Create(c echo.Context) error {
	var params accountParams
	if err := c.Bind(&params); err != nil {
		return err
	}

	params.Name = strings.TrimSpace(params.Name)
	if params.Name == "" {
		return c.JSON(http.StatusBadRequest, apierror.NewWithTagCode(
			http.StatusBadRequest,
			"invalid-parameters",
			"No account_name provided.",
		))
	}

	session := currentSession(c)
	account := model.NewAccount(params.Name, session.AccountEmail)
	// The session proves the ownership of the email.
	account.EmailVerifiedAt = session.VerifiedAt

	if err := h.db.Save(account); err != nil {
		if h.db.IsAlreadyExists(err) {
			return c.JSON(http.StatusConflict, apierror.NewWithTagCode(
				http.StatusConflict,
				"account-exists",
				"An account already exists with this name or email.",
			))
		}
		return errors.Wrap(err, "could not save account")
	}

	logrus.WithField("email", account.Email).Info("account: created")
	return c.JSON(http.StatusCreated, serializer.Account(account))
}

// Show renders the account of the current session.
func (h *account) Show(c echo.Context) error {
	account, err := h.current(c)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, serializer.Account(account))
}

// Delete removes the account of the current session.
// Active sessions remain valid until they are terminated.
func (h *account) Delete(c echo.Context) error {
	account, err := h.current(c)
	if err != nil {
		return err
	}

	if err = h.db.Delete(account); err != nil {
		return errors.Wrap(err, "could not delete account")
	}

	logrus.WithField("email", account.Email).Info("account: deleted")
	return c.NoContent(http.StatusNoContent)
}

func (h *account) current(c echo.Context) (*model.Account, error) {
	account, err := h.db.FindAccountByEmail(currentSession(c).AccountEmail)
	if err != nil {
		if h.db.IsNotFound(err) {
			return nil, apierror.NewWithTagCode(
				http.StatusNotFound,
				"account-not-found",
				"No account exists for this session.",
			)
		}
		return nil, errors.Wrap(err, "could not get account")
	}
	return account, nil
}
