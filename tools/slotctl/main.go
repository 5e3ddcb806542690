// Command slotctl is the operator CLI: schema migrations and dev tokens.
package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/md-rashed-zaman/slotbook/libs/auth"
	"github.com/md-rashed-zaman/slotbook/libs/config"
	"github.com/md-rashed-zaman/slotbook/libs/db"
	bookingmigrations "github.com/md-rashed-zaman/slotbook/services/booking-service/migrations"
	notificationmigrations "github.com/md-rashed-zaman/slotbook/services/notification-service/migrations"
)

var schemas = map[string]fs.FS{
	"booking":      bookingmigrations.FS,
	"notification": notificationmigrations.FS,
}

func main() {
	if err := config.Load(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "slotctl",
		Short:        "Operator tooling for the slotbook services",
		SilenceUsage: true,
	}
	root.AddCommand(migrateCmd())
	root.AddCommand(tokenCmd())
	return root
}

func schemaFor(name string) (fs.FS, error) {
	fsys, ok := schemas[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		names := make([]string, 0, len(schemas))
		for n := range schemas {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("unknown service %q (want one of %s)", name, strings.Join(names, ", "))
	}
	return fsys, nil
}

func openDB(ctx context.Context, cmd *cobra.Command) (*db.Pool, error) {
	url, _ := cmd.Flags().GetString("database-url")
	if url == "" {
		var err error
		if url, err = config.RequiredString("DATABASE_URL"); err != nil {
			return nil, err
		}
	}
	return db.Open(ctx, url)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage service schemas",
	}
	cmd.PersistentFlags().String("database-url", "", "Postgres URL (defaults to DATABASE_URL)")

	cmd.AddCommand(&cobra.Command{
		Use:   "up <booking|notification>",
		Short: "Apply pending migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fsys, err := schemaFor(args[0])
			if err != nil {
				return err
			}
			pool, err := openDB(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := db.Migrate(cmd.Context(), pool, fsys); err != nil {
				return err
			}
			v, err := db.Version(cmd.Context(), pool)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema at version %d\n", args[0], v)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the applied schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := openDB(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer pool.Close()
			v, err := db.Version(cmd.Context(), pool)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d\n", v)
			return nil
		},
	})
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an HS256 token for local testing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			business, _ := cmd.Flags().GetString("business-id")
			subject, _ := cmd.Flags().GetString("subject")
			role, _ := cmd.Flags().GetString("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			secret, _ := cmd.Flags().GetString("secret")
			if strings.TrimSpace(business) == "" {
				return fmt.Errorf("--business-id is required")
			}
			if secret == "" {
				secret = config.String("JWT_SECRET", "dev-secret")
			}
			token, err := auth.SignHS256(auth.NewClaims(subject, business, role, ttl), secret)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String("business-id", "", "Tenant the token is scoped to")
	cmd.Flags().String("subject", "dev-user", "Token subject")
	cmd.Flags().String("role", "owner", "Role claim (owner, admin, staff)")
	cmd.Flags().Duration("ttl", time.Hour, "Token lifetime")
	cmd.Flags().String("secret", "", "Signing secret (defaults to JWT_SECRET)")
	return cmd
}
