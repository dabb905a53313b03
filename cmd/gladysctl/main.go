// Command gladysctl is the management CLI named in spec §6:
// start|stop|restart|status|health|logs|psql|migrate|clean|test|reset|
// cache{stats,list,flush,evict}|queue{stats,list,watch}. It is a thin
// dispatcher over internal/cli, grounded on the teacher's
// cmd/tarsy/main.go getEnv-and-flag bootstrap rather than a CLI
// framework: no repo in this module's dependency graph pulls in cobra,
// urfave/cli or pflag, so a hand-rolled switch matches the corpus
// better than introducing one.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/gladys-ai/gladys/internal/cli"
	"github.com/gladys-ai/gladys/pkg/config"
	"github.com/gladys-ai/gladys/pkg/version"
)

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: gladysctl <start|stop|restart|status|health|logs|psql|migrate|clean|test|reset|cache|queue> [args...]")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, rest := args[0], args[1:]

	// Config-dir .env loading mirrors cmd/memory/cmd/executive/
	// cmd/orchestrator's bootstrap; failure is non-fatal since most
	// subcommands (start/stop/status/logs/health) don't need a database.
	configDir := getEnv("CONFIG_DIR", "./deploy/config")
	_ = godotenv.Load(filepath.Join(configDir, ".env"))

	var err error
	switch cmd {
	case "start":
		err = cli.Start(rest)
	case "stop":
		err = cli.Stop(rest)
	case "restart":
		err = cli.Restart(rest)
	case "status":
		err = cli.Status(rest)
	case "health":
		err = cli.Health(rest)
	case "logs":
		err = cli.Logs(rest)
	case "psql":
		err = withConfig(func(cfg *config.Config) error { return cli.Psql(rest, cfg) })
	case "migrate":
		err = withConfig(func(cfg *config.Config) error { return cli.Migrate(cfg) })
	case "clean":
		err = withConfig(func(cfg *config.Config) error { return cli.Clean(rest, cfg) })
	case "reset":
		err = withConfig(func(cfg *config.Config) error { return cli.Reset(rest, cfg) })
	case "test":
		err = cli.Test(rest)
	case "cache":
		err = withConfig(func(cfg *config.Config) error { return cli.Cache(rest, cfg) })
	case "queue":
		err = cli.Queue(rest)
	case "version":
		fmt.Println(version.Full())
	default:
		fmt.Fprintf(os.Stderr, "gladysctl: unknown command %q\n", cmd)
		return 1
	}

	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return 130
		}
		fmt.Fprintln(os.Stderr, "gladysctl:", err)
		return 1
	}
	return 0
}

func withConfig(fn func(cfg *config.Config) error) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	return fn(cfg)
}
