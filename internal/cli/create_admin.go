package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mrlokans/librarian/internal/auth"
	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/database"
	"github.com/mrlokans/librarian/internal/entities"
	"github.com/mrlokans/librarian/internal/logging"
)

// PasswordReader reads a password without echoing it.
type PasswordReader func(prompt string) (string, error)

// CreateAdminCommand bootstraps an administrator account.
type CreateAdminCommand struct {
	Email     string
	FirstName string
	LastName  string
	Password  string

	readPassword PasswordReader
	out          io.Writer
}

func NewCreateAdminCommand() *CreateAdminCommand {
	return &CreateAdminCommand{
		readPassword: readTerminalPassword,
		out:          os.Stdout,
	}
}

func newCreateAdminCommand() *cobra.Command {
	c := NewCreateAdminCommand()
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		Long: "Create an administrator account in the configured database.\n" +
			"The password is prompted for when --password is omitted.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c.out = cmd.OutOrStdout()
			cfg := config.NewConfig()
			logger := logging.New(cfg.Log)
			defer logger.Sync() //nolint:errcheck

			db, err := database.NewDatabase(cfg.Database, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer db.Close()

			accounts := auth.NewService(db.DB, cfg.Auth, auth.NewTokenService(cfg.Auth), logger)
			return c.Run(cmd.Context(), accounts)
		},
	}

	cmd.Flags().StringVar(&c.Email, "email", "", "Email address of the administrator")
	cmd.Flags().StringVar(&c.FirstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&c.LastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&c.Password, "password", "", "Password (prompted for when omitted)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("first-name")
	_ = cmd.MarkFlagRequired("last-name")
	return cmd
}

// AdminCreator is the part of auth.Service used here.
type AdminCreator interface {
	CreateAdmin(ctx context.Context, in auth.RegisterInput) (*entities.UserAccount, error)
}

// Run creates the account, prompting for the password if needed.
func (c *CreateAdminCommand) Run(ctx context.Context, accounts AdminCreator) error {
	password := c.Password
	if password == "" {
		first, err := c.readPassword("Password: ")
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		second, err := c.readPassword("Confirm password: ")
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		if first != second {
			return fmt.Errorf("passwords do not match")
		}
		password = first
	}

	user, err := accounts.CreateAdmin(ctx, auth.RegisterInput{
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Email:     c.Email,
		Password:  password,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}

	fmt.Fprintf(c.out, "Created administrator %s (id %d)\n", user.Email, user.ID)
	return nil
}

func readTerminalPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}
