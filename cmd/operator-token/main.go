// Command operator-token prints a signed bearer token for the payments API.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/mwork/robokassa-gateway/internal/config"
	"github.com/mwork/robokassa-gateway/internal/pkg/jwt"
)

func main() {
	cfg := config.Load()

	name := flag.String("name", "", "operator display name")
	role := flag.String("role", jwt.RoleOperator, "admin, operator or viewer")
	id := flag.String("id", "", "operator UUID (random when empty)")
	ttl := flag.Duration("ttl", cfg.JWTTokenTTL, "token lifetime")
	flag.Parse()

	if err := run(cfg.JWTSecret, *name, *role, *id, *ttl); err != nil {
		fmt.Fprintln(os.Stderr, "operator-token:", err)
		os.Exit(1)
	}
}

func run(secret, name, role, rawID string, ttl time.Duration) error {
	if name == "" {
		return fmt.Errorf("-name is required")
	}
	switch role {
	case jwt.RoleAdmin, jwt.RoleOperator, jwt.RoleViewer:
	default:
		return fmt.Errorf("unknown role %q", role)
	}

	operatorID := uuid.New()
	if rawID != "" {
		parsed, err := uuid.Parse(rawID)
		if err != nil {
			return fmt.Errorf("invalid -id: %w", err)
		}
		operatorID = parsed
	}

	token, expiresAt, err := jwt.NewService(secret, ttl).GenerateOperatorToken(operatorID, name, role)
	if err != nil {
		return err
	}
	fmt.Printf("operator_id=%s\nexpires_at=%s\ntoken=%s\n", operatorID, expiresAt.Format(time.RFC3339), token)
	return nil
}
