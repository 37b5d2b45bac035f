package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/djwaifu/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the bundled config template to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := r.configPath
	if path == "" {
		path = "config.toml"
	}

	if _, err := os.Stat(path); err == nil {
		if !cmd.Bool("force") {
			return fmt.Errorf("%w: %s already exists, use --force to overwrite", shared.ErrInvalidArgument, path)
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove existing config: %w", err)
		}
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	r.logger.Info("config file created", "path", path)

	r.writePlain("✓ Config written to %s\n", path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Fill in credentials.spotify and credentials.myanimelist (or set SPOTIFY_CLIENT_ID, SPOTIFY_CLIENT_SECRET, MAL_CLIENT_ID)\n")
	r.writePlain("2. Run 'djwaifu setup database' if you use the sqlite session store\n")
	r.writePlain("3. Run 'djwaifu spotify auth' to authorize the CLI\n")
	return nil
}

// SetupDatabase initializes the database and runs migrations.
//
// A missing config file is created from the template first.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	config := r.config
	if r.configPath != "" {
		if _, err := os.Stat(r.configPath); err != nil {
			r.logger.Info("config file not found, creating from template", "path", r.configPath)
			if err := shared.CreateConfigFile(r.configPath); err != nil {
				r.logger.Warn("failed to create config file, using defaults", "error", err)
			} else if loaded, err := shared.LoadConfig(r.configPath); err != nil {
				r.logger.Warn("failed to load created config, using defaults", "error", err)
			} else {
				config = loaded
			}
		}
	}

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	r.writePlain("✓ Database ready at %s\n", config.Database.Path)
	return nil
}

// SetupRollback reverts the most recent migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := shared.RollbackMigration(db); err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}
	r.writePlain("✓ Rolled back the latest migration in %s\n", r.config.Database.Path)
	return nil
}
