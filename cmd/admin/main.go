// Command supik-admin performs maintenance tasks that must not depend on a
// working admin login: bootstrapping or resetting an administrator and
// exporting the audit log on demand.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"supik-server/internal/audit"
	"supik-server/internal/auth"
	"supik-server/internal/config"
	database "supik-server/internal/db"
	"supik-server/internal/logger"
	"supik-server/internal/models"
	"supik-server/internal/storage"
)

const usage = `Usage: supik-admin <command> [flags]

Commands:
  admin     create an administrator, or reset and promote an existing account
  archive   export audit log records in [--from, --to) to storage
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return errors.New("no command given")
	}

	cfg := config.Load()
	if err := logger.Init(logger.Config{Level: cfg.Log.Level, Format: "console"}); err != nil {
		return err
	}
	defer logger.Sync()

	switch args[0] {
	case "admin":
		return runAdmin(cfg, args[1:])
	case "archive":
		return runArchive(cfg, args[1:])
	case "-h", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func runAdmin(cfg *config.Config, args []string) error {
	flagSet := pflag.NewFlagSet("admin", pflag.ContinueOnError)
	username := flagSet.StringP("username", "u", "", "account username")
	password := flagSet.StringP("password", "p", "", "new password (or SUPIK_ADMIN_PASSWORD)")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if *password == "" {
		*password = os.Getenv("SUPIK_ADMIN_PASSWORD")
	}
	if *username == "" || *password == "" {
		return errors.New("--username and --password are required")
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	hash, err := auth.HashPassword(*password)
	if err != nil {
		return err
	}

	var account models.Account
	err = db.DB.Where("username = ?", *username).First(&account).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		account = models.Account{Username: *username, Password: hash, Name: "Administrator", Admin: 1}
		if err := db.DB.Create(&account).Error; err != nil {
			return fmt.Errorf("create account: %w", err)
		}
		logger.Info("Administrator created", zap.String("username", *username), zap.Uint("account_id", account.ID))
	case err != nil:
		return err
	default:
		if err := db.DB.Model(&account).Updates(map[string]any{
			"password": hash,
			"admin":    1,
			"disabled": 0,
		}).Error; err != nil {
			return fmt.Errorf("update account: %w", err)
		}
		logger.Info("Administrator reset", zap.String("username", *username), zap.Uint("account_id", account.ID))
	}
	return nil
}

func runArchive(cfg *config.Config, args []string) error {
	flagSet := pflag.NewFlagSet("archive", pflag.ContinueOnError)
	from := flagSet.String("from", "", "window start, RFC 3339 (default: 24h before --to)")
	to := flagSet.String("to", "", "window end, RFC 3339 (default: now)")
	prefix := flagSet.String("prefix", cfg.Archive.Prefix, "object key prefix")
	replace := flagSet.Bool("replace", false, "delete an existing archive of the same window first")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	end := time.Now().UTC()
	if *to != "" {
		t, err := time.Parse(time.RFC3339, *to)
		if err != nil {
			return fmt.Errorf("--to: %w", err)
		}
		end = t
	}
	start := end.Add(-24 * time.Hour)
	if *from != "" {
		t, err := time.Parse(time.RFC3339, *from)
		if err != nil {
			return fmt.Errorf("--from: %w", err)
		}
		start = t
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	store, err := storage.New(cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if *replace {
		if err := store.Delete(ctx, audit.ArchiveKey(*prefix, start, end)); err != nil {
			return fmt.Errorf("delete previous archive: %w", err)
		}
	}

	exporter := audit.NewExporter(audit.NewService(db.DB), store, *prefix)
	key, n, err := exporter.Export(ctx, start, end)
	if errors.Is(err, audit.ErrAlreadyArchived) {
		return fmt.Errorf("%s/%s already exists, rerun with --replace to overwrite it", store.Bucket(), key)
	}
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Println("no records in window")
		return nil
	}
	fmt.Printf("wrote %d records to %s/%s\n", n, store.Bucket(), key)
	return nil
}

func openDB(cfg *config.Config) (*database.Client, error) {
	db, err := database.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
