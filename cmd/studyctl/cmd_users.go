package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v3"

	"studyflow-backend/internal/auth"
)

var errNoIdentifier = errors.New("usage: studyctl make-admin <username or email>")

func makeAdminCmd(f *flags) *cli.Command {
	return &cli.Command{
		Name:      "make-admin",
		Usage:     "Promote a user to admin by username or email",
		UsageText: "studyctl make-admin <username or email>",
		Action: func(ctx context.Context, c *cli.Command) error {
			login := strings.TrimSpace(c.Args().First())
			if login == "" {
				return errNoIdentifier
			}

			database, err := f.open(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			return makeAdmin(ctx, c.Root().Writer, &auth.Users{DB: database}, login)
		},
	}
}

// makeAdmin is a no-op for users who already hold the role.
func makeAdmin(ctx context.Context, w io.Writer, users *auth.Users, login string) error {
	u, err := users.ByLogin(ctx, login)
	if errors.Is(err, auth.ErrUserNotFound) {
		return fmt.Errorf("user not found with username/email: %s", login)
	}
	if err != nil {
		return err
	}

	if u.Role == auth.RoleAdmin {
		_, _ = fmt.Fprintf(w, "⚠️  %s is already an admin\n", u.Username)
		return nil
	}

	if err := users.SetRole(ctx, u.ID, auth.RoleAdmin); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "✅ %s (%s) promoted to admin\n", u.Username, u.Email)
	return nil
}

func usersCmd(f *flags) *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "List all users with their roles",
		Action: func(ctx context.Context, c *cli.Command) error {
			database, err := f.open(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			return listUsers(ctx, c.Root().Writer, &auth.Users{DB: database})
		},
	}
}

func listUsers(ctx context.Context, w io.Writer, users *auth.Users) error {
	list, err := users.List(ctx, "")
	if err != nil {
		return err
	}
	for i, u := range list {
		icon := "👤"
		if u.Role == auth.RoleAdmin {
			icon = "👑"
		}
		_, _ = fmt.Fprintf(w, "%d. %s %s (%s) - %s\n", i+1, icon, u.Username, u.Email, u.Role)
	}
	return nil
}
