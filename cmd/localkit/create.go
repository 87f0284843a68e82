package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/monaca/localkit/internal/adapters/secondary/config"
	"github.com/monaca/localkit/internal/domain/entities"
	"github.com/monaca/localkit/internal/domain/services"
)

// createCmd represents the create command
var createCmd = &cobra.Command{
	Use:   "create <dir>",
	Short: "Scaffold a new project directory",
	Long: `Create a new project skeleton at the given path, including the
marker subdirectory that makes it trackable. Fails if the destination
already exists and is not empty.`,
	Args: cobra.ExactArgs(1),
	RunE: runCreate,
}

func init() {
	rootCmd.AddCommand(createCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	dest := args[0]
	cfg := config.GetDefaultConfig()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	registry := services.NewProjectRegistry(cfg.Projects.GetMarker(), nil, logger)
	defer registry.Close()

	project, err := registry.Scaffold(dest, entities.ProjectOptions{
		Name: filepath.Base(dest),
	})
	if err != nil {
		return fmt.Errorf("creating project: %w", err)
	}

	fmt.Printf("Created project %s (%s)\n", project.Name, project.ID)
	return nil
}
