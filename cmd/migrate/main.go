package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/cassiomorais/ordercore/internal/infrastructure/config"
	"github.com/cassiomorais/ordercore/internal/infrastructure/postgres/migrations"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

func main() {
	var (
		direction string
		dbURL     string
		steps     int
	)
	flag.StringVar(&direction, "direction", "up", "up, down or version")
	flag.StringVar(&dbURL, "db", os.Getenv("DATABASE_URL"), "database URL; defaults to the ORDERCORE_DATABASE_* settings")
	flag.IntVar(&steps, "steps", 0, "apply only this many migrations (0 = all)")
	flag.Parse()

	if err := run(direction, dbURL, steps); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

func run(direction, dbURL string, steps int) error {
	if dbURL == "" {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		dbURL = cfg.Database.DatabaseURL()
	}

	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	switch direction {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	case "version":
		v, dirty, verr := m.Version()
		if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
			return verr
		}
		fmt.Printf("version=%d dirty=%t\n", v, dirty)
		return nil
	default:
		return fmt.Errorf("unknown direction %q (use up, down or version)", direction)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate %s: %w", direction, err)
	}

	v, _, _ := m.Version()
	fmt.Printf("migrations applied, version=%d\n", v)
	return nil
}
