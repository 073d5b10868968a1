package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Darkpool645/alex-backend/internal/config"
	"github.com/Darkpool645/alex-backend/internal/db"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := config.Load()
	var databaseURL string

	root := &cobra.Command{
		Use:          "migrator",
		Short:        "Apply the embedded database migrations",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&databaseURL, "database-url", cfg.DatabaseURL, "postgres connection url")

	for _, sub := range []struct{ name, short string }{
		{"up", "Run all pending migrations"},
		{"down", "Roll back the latest migration"},
		{"status", "Print the migration status"},
		{"reset", "Roll back every migration"},
	} {
		command := sub.name
		root.AddCommand(&cobra.Command{
			Use:   command,
			Short: sub.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd.Context(), databaseURL, command)
			},
		})
	}
	return root
}

func run(ctx context.Context, databaseURL, command string) error {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := db.NewPool(connectCtx, databaseURL)
	cancel()
	if err != nil {
		return fmt.Errorf("db connection failed: %w", err)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool, command); err != nil {
		return fmt.Errorf("migrate %s: %w", command, err)
	}
	fmt.Printf("migrate %s: done\n", command)
	return nil
}
