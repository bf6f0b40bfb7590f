// Command opstoken mints a bearer token for the ops HTTP API.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spec-kit/ticket-warden/internal/auth"
	"github.com/spec-kit/ticket-warden/internal/config"
)

func main() {
	subject := flag.String("subject", "ops", "token subject")
	scopes := flag.String("scopes", auth.ScopeTicketsRead, "comma-separated scopes ("+auth.ScopeTicketsRead+","+auth.ScopeTicketsWrite+")")
	ttl := flag.Int("ttl", 0, "lifetime in minutes (default AUTH_ACCESS_TOKEN_TTL_MINUTES)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	minutes := cfg.Auth.AccessTokenTTLMinutes
	if *ttl > 0 {
		minutes = *ttl
	}

	var granted []string
	for _, s := range strings.Split(*scopes, ",") {
		if s = strings.TrimSpace(s); s != "" {
			granted = append(granted, s)
		}
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.App.Name, minutes)
	token, expiresAt, err := tokens.GenerateToken(*subject, granted)
	if err != nil {
		log.Fatalf("failed to sign token: %v", err)
	}
	fmt.Fprintln(os.Stderr, "expires", expiresAt.UTC().Format(time.RFC3339))
	fmt.Println(token)
}
