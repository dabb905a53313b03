package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/gladys-ai/gladys/pkg/config"
	"github.com/gladys-ai/gladys/pkg/storage"
)

// domainTables lists every table gladysctl's clean command truncates;
// kept in one place so Clean and Reset agree on scope.
var domainTables = []string{"heuristic_fires", "episodic_events", "heuristics"}

// Psql execs the psql binary against the configured database,
// inheriting the current process's stdio so the session behaves like an
// interactive shell. It replaces the GLADyS process environment's own
// argv, matching the teacher's single-purpose dev-tooling wrappers.
func Psql(args []string, cfg *config.Config) error {
	psqlArgs := []string{
		"-h", cfg.DBHost,
		"-p", strconv.Itoa(cfg.DBPort),
		"-U", cfg.DBUser,
		"-d", cfg.DBName,
	}
	psqlArgs = append(psqlArgs, args...)
	cmd := exec.Command("psql", psqlArgs...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if cfg.DBPassword != "" {
		cmd.Env = append(os.Environ(), "PGPASSWORD="+cfg.DBPassword)
	}
	return cmd.Run()
}

// Migrate connects to the database, which applies storage's embedded
// migrations as a side effect of storage.NewClient, and reports success.
func Migrate(cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	client, err := storage.NewClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer client.Close()
	fmt.Println("migrations applied")
	return nil
}

// Clean truncates every domain table, requiring --force since it is
// irreversible against a live database.
func Clean(args []string, cfg *config.Config) error {
	if !hasFlag(args, "--force") {
		return fmt.Errorf("clean: refusing to truncate domain tables without --force")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	client, err := storage.NewClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("clean: %w", err)
	}
	defer client.Close()

	for _, table := range domainTables {
		if _, err := client.DB().ExecContext(ctx, "TRUNCATE TABLE "+table+" CASCADE"); err != nil {
			return fmt.Errorf("clean: truncate %s: %w", table, err)
		}
	}
	fmt.Println("domain tables truncated:", domainTables)
	return nil
}

// Reset is Clean followed by Migrate, giving a known-empty-but-
// schema-current database.
func Reset(args []string, cfg *config.Config) error {
	if err := Clean(args, cfg); err != nil {
		return err
	}
	return Migrate(cfg)
}

// Test runs the module's test suite. There is no library in this
// module's dependency graph for driving `go test` itself, so this
// shells out to the go tool directly, inheriting stdio.
func Test(args []string) error {
	testArgs := append([]string{"test"}, args...)
	if len(args) == 0 {
		testArgs = append(testArgs, "./...")
	}
	cmd := exec.Command("go", testArgs...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	return cmd.Run()
}

func hasFlag(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}
