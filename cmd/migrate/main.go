// Command migrate applies or rolls back the schema outside the server process.
//
//	migrate [-dir path] up|down|version
//
// Without -dir the migrations embedded in the binary are used.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/HammerMeetNail/skillswap/internal/config"
	"github.com/HammerMeetNail/skillswap/internal/database"
	"github.com/HammerMeetNail/skillswap/internal/logging"
	"github.com/HammerMeetNail/skillswap/migrations"
)

func main() {
	dir := flag.String("dir", "", "read migrations from this directory instead of the embedded set")
	flag.Parse()

	if err := run(*dir, flag.Arg(0)); err != nil {
		logging.Error("Migration failed", logging.Fields{"error": err.Error()})
		os.Exit(1)
	}
}

func run(dir, command string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading .env: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	var migrator *database.Migrator
	if dir != "" {
		migrator, err = database.NewMigrator(cfg.Database.DSN(), dir)
	} else {
		migrator, err = database.NewEmbeddedMigrator(cfg.Database.DSN(), migrations.FS, ".")
	}
	if err != nil {
		return err
	}
	defer func() { _ = migrator.Close() }()

	switch command {
	case "up":
		err = migrator.Up()
	case "down":
		err = migrator.Down()
	case "version", "":
	default:
		return fmt.Errorf("unknown command %q (want up, down or version)", command)
	}
	if err != nil {
		return err
	}

	version, dirty, err := migrator.Version()
	if errors.Is(err, database.ErrNoVersion) {
		logging.Info("Schema is empty", logging.Fields{"command": command})
		return nil
	}
	if err != nil {
		return err
	}
	logging.Info("Schema version", logging.Fields{"version": version, "dirty": dirty, "command": command})
	return nil
}
