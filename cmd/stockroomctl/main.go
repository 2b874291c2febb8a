package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/doublejdg/stockroom/internal/auth"
	"github.com/doublejdg/stockroom/internal/bootstrap"
	"github.com/doublejdg/stockroom/internal/config"
	"github.com/doublejdg/stockroom/internal/reconcile"
)

const usage = "Usage: stockroomctl <init|reset-password|schema>"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "init":
		err = cmdInit(os.Args[2:])
	case "reset-password":
		err = cmdResetPassword(os.Args[2:])
	case "schema":
		err = cmdSchema()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n%s\n", os.Args[1], usage)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads configuration and applies the common -config and -db
// flags.
func loadConfig(fs *flag.FlagSet, args []string) (*config.Config, error) {
	configPath := fs.String("config", "", "YAML config file")
	dbPath := fs.String("db", "", "SQLite database path")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}
	if *dbPath != "" {
		cfg.Storage.Path = *dbPath
	}
	return cfg, nil
}

func cmdInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	owner := fs.String("user", "", "owner username")
	cfg, err := loadConfig(fs, args)
	if err != nil {
		return err
	}
	if *owner != "" {
		cfg.Owner.Username = *owner
	}

	if cfg.Storage.Driver == config.DriverSQLite {
		if _, err := os.Stat(cfg.Storage.Path); err == nil {
			return fmt.Errorf("database file %s already exists", cfg.Storage.Path)
		}
	}

	ctx := context.Background()
	backend, err := bootstrap.OpenBackend(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer backend.Close()

	engine := reconcile.New(backend, nil, nil)
	password, err := bootstrap.EnsureOwner(ctx, engine, cfg.Owner)
	if err != nil {
		return err
	}
	if password == "" {
		return fmt.Errorf("an owner account already exists")
	}

	fmt.Println("Storage initialized.")
	fmt.Println()
	fmt.Println("Owner account created:")
	fmt.Printf("  Username: %s\n", cfg.Owner.Username)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	return nil
}

func cmdResetPassword(args []string) error {
	fs := flag.NewFlagSet("reset-password", flag.ExitOnError)
	cfg, err := loadConfig(fs, args)
	if err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: stockroomctl reset-password [flags] <username>")
	}
	username := fs.Arg(0)

	ctx := context.Background()
	backend, err := bootstrap.OpenBackend(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer backend.Close()

	engine := reconcile.New(backend, nil, nil)
	if _, err := engine.Account(ctx, username); err != nil {
		return err
	}

	password, err := auth.GeneratePassword(16)
	if err != nil {
		return fmt.Errorf("generating password: %w", err)
	}
	if err := engine.SetPassword(ctx, username, password); err != nil {
		return err
	}

	fmt.Printf("New password for %s: %s\n", username, password)
	return nil
}

// cmdSchema prints the JSON Schema of the scan payload, for generating
// labels or QR codes that the scanner understands.
func cmdSchema() error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(reconcile.PayloadSchema())
}
