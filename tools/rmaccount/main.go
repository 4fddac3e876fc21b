package main

import (
	"fmt"

	"github.com/asdine/storm/v3"
	"github.com/focalpics/focal/internal/database"
	"github.com/focalpics/focal/internal/model"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	c := &cobra.Command{
		Use:   "rmaccount <database> <email>",
		Short: "Remove an account from the database",
		Long: "Remove an account from the database.\n" +
			"Active sessions of the email are kept until they are terminated.",
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			fmt.Println("Opening", args[0])
			db, err := storm.Open(args[0], database.StormCodec)
			if err != nil {
				return errors.Wrap(err, "could not open database")
			}
			defer db.Close()

			// Fetch account
			var account model.Account
			err = db.One("Email", args[1], &account)
			if err != nil {
				if err == storm.ErrNotFound {
					fmt.Println("No account for this email")
					return nil
				}
				return errors.Wrap(err, "find account by email")
			}

			fmt.Printf("Account found: %s (%s)\n", account.Name, account.ID)

			err = db.DeleteStruct(&account)
			if err != nil && err != storm.ErrNotFound {
				return errors.Wrap(err, "delete account")
			}
			fmt.Println("Account removed")

			return nil
		},
	}

	if err := c.Execute(); err != nil {
		logrus.Fatalf("%+v", err)
	}
}
