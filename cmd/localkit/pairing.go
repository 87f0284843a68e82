package main

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/monaca/localkit/internal/adapters/secondary/account"
	"github.com/monaca/localkit/internal/adapters/secondary/storage"
	"github.com/monaca/localkit/internal/domain/services"
)

// pairingCmd groups pairing-store maintenance commands
var pairingCmd = &cobra.Command{
	Use:   "pairing",
	Short: "Inspect and manage paired debugger clients",
}

var pairingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List paired client identities",
	RunE: func(cmd *cobra.Command, args []string) error {
		persist := storage.NewPairingFile(storage.DefaultPath())
		keys, err := persist.Load()
		if err != nil {
			return fmt.Errorf("loading pairing store: %w", err)
		}

		if len(keys) == 0 {
			fmt.Println("No paired clients.")
			return nil
		}

		ids := make([]string, 0, len(keys))
		for id := range keys {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

var pairingClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all pairing relationships",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

		persist := storage.NewPairingFile(storage.DefaultPath())
		store, err := services.NewPairingStore(account.NewLocalService(), persist, logger)
		if err != nil {
			return fmt.Errorf("opening pairing store: %w", err)
		}

		count := store.Count()
		if err := store.Clear(); err != nil {
			return fmt.Errorf("clearing pairing store: %w", err)
		}

		fmt.Printf("Removed %d pairing(s).\n", count)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pairingCmd)
	pairingCmd.AddCommand(pairingListCmd)
	pairingCmd.AddCommand(pairingClearCmd)
}
