// admintoken issues a bearer token for the registry's admin API. Admins sign
// in elsewhere; this is for operators and scripts.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"birdcount/config"
	"birdcount/internal/adapters/auth"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		adminID string
		email   string
		ttl     time.Duration
	)
	flagSet := pflag.NewFlagSet("admintoken", pflag.ContinueOnError)
	flagSet.StringVar(&adminID, "admin-id", "", "admin identifier recorded as the actor of every change (required)")
	flagSet.StringVar(&email, "email", "", "admin email address")
	flagSet.DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	adminID = strings.TrimSpace(adminID)
	if adminID == "" {
		return fmt.Errorf("--admin-id is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("--ttl must be positive")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	token, err := auth.NewJWTIssuer(cfg.JWTSecret, cfg.JWTIssuer).Issue(adminID, email, []string{auth.RoleAdmin}, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
