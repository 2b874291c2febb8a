package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/doublejdg/stockroom/internal/api"
	"github.com/doublejdg/stockroom/internal/bootstrap"
	"github.com/doublejdg/stockroom/internal/config"
)

func main() {
	fs := flag.NewFlagSet("stockroom", flag.ContinueOnError)

	var configPath string
	fs.StringVar(&configPath, "config", "", "")
	fs.StringVar(&configPath, "c", "", "")

	var dbPath string
	fs.StringVar(&dbPath, "db", "", "")
	fs.StringVar(&dbPath, "d", "", "")

	var addr string
	fs.StringVar(&addr, "addr", "", "")
	fs.StringVar(&addr, "a", "", "")

	var ownerUser string
	fs.StringVar(&ownerUser, "user", "", "")
	fs.StringVar(&ownerUser, "u", "", "")

	var logPath string
	fs.StringVar(&logPath, "log", "", "")
	fs.StringVar(&logPath, "l", "", "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: stockroom [flags]

Flags:
  -c, -config <path>      YAML config file (default: ./stockroom.yaml if present)
  -d, -db <path>          SQLite database path (default: stockroom.sqlite3)
  -a, -addr <host:port>   listen address (default: :8080)
  -u, -user <name>        owner username on first run (default: owner)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -h, -help               show this help and exit

Settings can also be given as STOCKROOM_* environment variables or in a
.env file, e.g. STOCKROOM_STORAGE_DRIVER=mongo.
`)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", fs.Arg(0))
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Flags override the config file and environment.
	if dbPath != "" {
		cfg.Storage.Path = dbPath
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if ownerUser != "" {
		cfg.Owner.Username = ownerUser
	}
	if logPath != "" {
		cfg.Log.Path = logPath
	}

	closeLog, err := setupLogger(cfg.Log.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if closeLog != nil {
		defer closeLog()
	}

	if err := run(cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	backend, err := bootstrap.OpenBackend(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer backend.Close()

	engine, err := bootstrap.NewEngine(ctx, cfg, backend)
	if err != nil {
		return err
	}

	password, err := bootstrap.EnsureOwner(ctx, engine, cfg.Owner)
	if err != nil {
		return err
	}
	if password != "" {
		printOwnerCreated(cfg.Owner.Username, password)
	}

	jwtSecret, err := bootstrap.JWTSecret(ctx, cfg.Auth, backend)
	if err != nil {
		return err
	}

	handler := api.LoggingMiddleware(api.NewRouter(engine, backend, jwtSecret))

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	slog.Info("server stopped, flushing notifications")
	engine.Flush()
	return nil
}

// printOwnerCreated prints the first-run owner credentials to stdout.
func printOwnerCreated(username, password string) {
	fmt.Println("Owner account created:")
	fmt.Printf("  Username: %s\n", username)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("The owner can change it after logging in.")
	fmt.Println()
}
