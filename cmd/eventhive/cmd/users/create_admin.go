package users

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/eventhive/eventhive/cmd/eventhive/internal/apperr"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/config"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/db/bunx"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/db/models"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/repository"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/services/accounts"
)

var (
	usernameFlag      string
	emailFlag         string
	passwordStdinFlag bool
)

var errPasswordMismatch = errors.New("passwords do not match")

// adminCreator is the slice of accounts.Service this command needs.
type adminCreator interface {
	CreateAdmin(ctx context.Context, username, email, password string) (*models.User, error)
}

type adminInput struct {
	Username string
	Email    string
	Password string
}

func (in adminInput) validate() error {
	if in.Username == "" {
		return fmt.Errorf("username is required")
	}
	if in.Email == "" {
		return fmt.Errorf("email is required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return fmt.Errorf("invalid email format: %w", err)
	}
	if in.Password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an Admin account",
	Long: `Creates an account with the Admin role. Missing values are prompted for;
the password is read without echo, or from stdin with --password-stdin.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := collectInput(os.Stdin, usernameFlag, emailFlag, passwordStdinFlag)
		if err != nil {
			return err
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		db, err := bunx.NewDB(cfg.DatabaseURL, cfg.MaxDBConnections)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)

		svc := accounts.NewService(repository.NewBunUserRepository(db), repository.NewBunSessionRepository(db))
		return createAdmin(cmd.Context(), svc, in)
	},
}

// collectInput fills in whatever the flags left out, prompting on a terminal.
func collectInput(stdin *os.File, username, email string, passwordStdin bool) (adminInput, error) {
	in := adminInput{Username: strings.TrimSpace(username), Email: strings.TrimSpace(email)}
	interactive := term.IsTerminal(int(stdin.Fd()))

	var err error
	if in.Username == "" && interactive {
		if in.Username, err = pterm.DefaultInteractiveTextInput.Show("Username"); err != nil {
			return adminInput{}, fmt.Errorf("read username: %w", err)
		}
	}
	if in.Email == "" && interactive {
		if in.Email, err = pterm.DefaultInteractiveTextInput.Show("Email"); err != nil {
			return adminInput{}, fmt.Errorf("read email: %w", err)
		}
	}
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	switch {
	case passwordStdin:
		in.Password, err = readPasswordLine(stdin)
	case interactive:
		in.Password, err = promptPassword(int(stdin.Fd()))
	default:
		err = fmt.Errorf("stdin is not a terminal; use --password-stdin")
	}
	if err != nil {
		return adminInput{}, err
	}
	return in, in.validate()
}

// readPasswordLine reads the first line of r, without its line ending.
func readPasswordLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func promptPassword(fd int) (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	fmt.Fprint(os.Stderr, "Confirm password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password confirmation: %w", err)
	}

	if string(first) != string(second) {
		return "", errPasswordMismatch
	}
	return string(first), nil
}

// createAdmin creates the account and reports the result.
func createAdmin(ctx context.Context, svc adminCreator, in adminInput) error {
	if err := in.validate(); err != nil {
		return err
	}

	user, err := svc.CreateAdmin(ctx, in.Username, in.Email, in.Password)
	if err != nil {
		var taken apperr.FieldErrors
		if errors.As(err, &taken) {
			for _, field := range []string{"username", "email"} {
				if msg, ok := taken[field]; ok {
					pterm.Error.Println(msg)
				}
			}
			return fmt.Errorf("admin account not created: %w", apperr.ErrConflict)
		}
		return fmt.Errorf("failed to create admin: %w", err)
	}

	pterm.Success.Println("Admin user created successfully!")
	_ = pterm.DefaultTable.WithData(pterm.TableData{
		{"ID", "USERNAME", "EMAIL", "ROLE"},
		{fmt.Sprint(user.ID), user.Username, user.Email, string(user.Role)},
	}).WithHasHeader().Render()
	return nil
}
