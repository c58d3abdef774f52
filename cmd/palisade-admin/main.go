// Package main is the entry point for the Palisade admin CLI.
// This tool provides offline administrative commands for managing users
// and registration keys directly against the forum database.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/palisade-forum/palisade/internal/config"
	"github.com/palisade-forum/palisade/internal/domain"
	"github.com/palisade-forum/palisade/internal/pkg/crypto"
	"github.com/palisade-forum/palisade/internal/repository"
	"github.com/palisade-forum/palisade/internal/repository/sqlite"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "version":
		fmt.Printf("Palisade Admin CLI\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "bootstrap":
		if err := runBootstrap(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "user":
		if err := runUser(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "keys":
		if err := runKeys(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

// openDB loads configuration and opens the forum database.
func openDB(ctx context.Context, configPath string) (*sqlite.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	dbCfg := sqlite.DefaultConfig(cfg.Database.Path)
	dbCfg.JournalMode = cfg.Database.JournalMode
	dbCfg.BusyTimeout = cfg.Database.BusyTimeout
	dbCfg.CacheSize = cfg.Database.CacheSize
	dbCfg.SynchronousMode = cfg.Database.SynchronousMode

	db, err := sqlite.NewDB(ctx, dbCfg, zerolog.Nop())
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// runBootstrap provisions the first admin account and a starter
// registration key on an empty database.
func runBootstrap(args []string) error {
	fs := flag.NewFlagSet("bootstrap", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	username := fs.String("username", "admin", "admin username")
	email := fs.String("email", "admin@palisade.local", "admin email")
	password := fs.String("password", "", "admin password (generated when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	db, err := openDB(ctx, *configPath)
	if err != nil {
		return err
	}
	defer db.Close()

	userRepo := sqlite.NewUserRepository(db)
	existing, err := userRepo.List(ctx, repository.ListOptions{Limit: 1})
	if err != nil {
		return err
	}
	if existing.Total > 0 {
		return fmt.Errorf("database already has %d users, refusing to bootstrap", existing.Total)
	}

	pass := *password
	generated := false
	if pass == "" {
		pass, err = crypto.GenerateRandomPassword()
		if err != nil {
			return err
		}
		generated = true
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := domain.NewUser(*username, *email, string(hash))
	admin.IsAdmin = true
	admin.HasPrivateAccess = true
	admin.EmailVerified = true
	if err := userRepo.Create(ctx, admin); err != nil {
		return err
	}

	code, err := crypto.GenerateAccessKeyCode()
	if err != nil {
		return err
	}
	key := &domain.AccessKey{
		Code:      code,
		IsActive:  true,
		CreatedBy: admin.ID,
		CreatedAt: time.Now().UTC(),
	}
	if err := sqlite.NewAccessKeyRepository(db).Create(ctx, key); err != nil {
		return err
	}

	fmt.Printf("Created admin %q (id %d)\n", admin.Username, admin.ID)
	if generated {
		fmt.Printf("Password (shown once): %s\n", pass)
	}
	fmt.Printf("Registration key: %s\n", code)
	return nil
}

func runUser(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("user requires a subcommand: create, list")
	}

	switch args[0] {
	case "create":
		return runUserCreate(args[1:])
	case "list":
		return runUserList(args[1:])
	default:
		return fmt.Errorf("unknown user subcommand: %s", args[0])
	}
}

func runUserCreate(args []string) error {
	fs := flag.NewFlagSet("user create", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	username := fs.String("username", "", "username for the new account")
	email := fs.String("email", "", "email for the new account")
	password := fs.String("password", "", "password (generated when omitted)")
	isAdmin := fs.Bool("admin", false, "grant admin privileges")
	private := fs.Bool("private", false, "grant private thread access")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *username == "" || *email == "" {
		return fmt.Errorf("--username and --email are required")
	}

	ctx := context.Background()
	db, err := openDB(ctx, *configPath)
	if err != nil {
		return err
	}
	defer db.Close()

	pass := *password
	generated := false
	if pass == "" {
		pass, err = crypto.GenerateRandomPassword()
		if err != nil {
			return err
		}
		generated = true
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user := domain.NewUser(*username, *email, string(hash))
	user.IsAdmin = *isAdmin
	user.HasPrivateAccess = *private || *isAdmin
	user.EmailVerified = true

	if err := sqlite.NewUserRepository(db).Create(ctx, user); err != nil {
		return err
	}

	fmt.Printf("Created user %q (id %d)\n", user.Username, user.ID)
	if generated {
		fmt.Printf("Password (shown once): %s\n", pass)
	}
	return nil
}

func runUserList(args []string) error {
	fs := flag.NewFlagSet("user list", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	limit := fs.Int("limit", 50, "maximum number of users to list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	db, err := openDB(ctx, *configPath)
	if err != nil {
		return err
	}
	defer db.Close()

	result, err := sqlite.NewUserRepository(db).List(ctx, repository.ListOptions{Limit: *limit})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tADMIN\tPRIVATE\tBANNED\tTHREADS\tREPLIES\tCREATED")
	for _, u := range result.Items {
		fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%t\t%t\t%d\t%d\t%s\n",
			u.ID, u.Username, u.Email, u.IsAdmin, u.HasPrivateAccess, u.IsBanned,
			u.ThreadCount, u.ReplyCount, u.CreatedAt.Format(time.RFC3339))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%d of %d users\n", len(result.Items), result.Total)
	return nil
}

func runKeys(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("keys requires a subcommand: create, list")
	}

	switch args[0] {
	case "create":
		return runKeysCreate(args[1:])
	case "list":
		return runKeysList(args[1:])
	default:
		return fmt.Errorf("unknown keys subcommand: %s", args[0])
	}
}

func runKeysCreate(args []string) error {
	fs := flag.NewFlagSet("keys create", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	count := fs.Int("count", 1, "number of keys to mint")
	creator := fs.String("created-by", "", "admin username the keys are attributed to")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *creator == "" {
		return fmt.Errorf("--created-by is required")
	}
	if *count < domain.MinKeyBatch || *count > domain.MaxKeyBatch {
		return fmt.Errorf("--count must be between %d and %d", domain.MinKeyBatch, domain.MaxKeyBatch)
	}

	ctx := context.Background()
	db, err := openDB(ctx, *configPath)
	if err != nil {
		return err
	}
	defer db.Close()

	admin, err := sqlite.NewUserRepository(db).GetByUsername(ctx, *creator)
	if err != nil {
		return fmt.Errorf("unknown user %q: %w", *creator, err)
	}
	if !admin.IsAdmin {
		return fmt.Errorf("user %q is not an admin", *creator)
	}

	keyRepo := sqlite.NewAccessKeyRepository(db)
	for i := 0; i < *count; i++ {
		code, err := crypto.GenerateAccessKeyCode()
		if err != nil {
			return err
		}
		key := &domain.AccessKey{
			Code:      code,
			IsActive:  true,
			CreatedBy: admin.ID,
			CreatedAt: time.Now().UTC(),
		}
		if err := keyRepo.Create(ctx, key); err != nil {
			return err
		}
		fmt.Println(code)
	}
	return nil
}

func runKeysList(args []string) error {
	fs := flag.NewFlagSet("keys list", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	db, err := openDB(ctx, *configPath)
	if err != nil {
		return err
	}
	defer db.Close()

	keys, err := sqlite.NewAccessKeyRepository(db).List(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCODE\tACTIVE\tCREATED BY\tUSED BY\tCREATED")
	for _, k := range keys {
		usedBy := "-"
		if k.UsedByUsername != "" {
			usedBy = k.UsedByUsername
		}
		fmt.Fprintf(w, "%d\t%s\t%t\t%s\t%s\t%s\n",
			k.ID, k.Code, k.IsActive, k.CreatedByUsername, usedBy,
			k.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func printUsage() {
	fmt.Println(`Palisade Admin CLI

Usage:
  palisade-admin <command> [arguments]

Commands:
  bootstrap   Provision the first admin account and a starter key
  user        Manage accounts (create, list)
  keys        Manage registration keys (create, list)
  version     Print version information
  help        Show this help message

Examples:
  palisade-admin bootstrap --username admin --email admin@example.com
  palisade-admin user create --username mod --email mod@example.com --admin
  palisade-admin user list --limit 20
  palisade-admin keys create --count 10 --created-by admin
  palisade-admin keys list

All commands accept --config to point at a non-default config file.`)
}
