// Package main provides a CLI tool for issuing staff bearer tokens for the registrar admin API.
// Without -signing-key it uses the development key and the tokens will NOT work in production.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"registrar/internal/staffauth"
)

const (
	// Dev signing key - matches config.go when STAFF_SIGNING_KEY is not set
	devSigningKey = "dev-secret-key-change-in-production"

	defaultIssuer   = "registrar"
	defaultTokenTTL = 8 * time.Hour
)

type tokenOutput struct {
	Token     string            `json:"token"`
	Subject   string            `json:"subject"`
	Role      string            `json:"role"`
	ExpiresIn string            `json:"expires_in"`
	Usage     map[string]string `json:"usage"`
}

type options struct {
	subject    string
	role       string
	ttl        time.Duration
	signingKey string
	issuer     string
	jsonOutput bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := options{}
	cmd := &cobra.Command{
		Use:   "tokengen",
		Short: "Generate staff tokens for the registrar admin API",
		Long: `tokengen issues signed bearer tokens for /admin routes.

Roles:
  admin   roster, report, withdrawals, catalog refresh
  staff   roster and report only`,
		Example: `  tokengen -s ops@school.example -r admin
  tokengen -s desk@school.example -r staff --ttl 1h --json`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return generate(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.subject, "subject", "s", "", "staff identifier recorded as the actor on withdrawals")
	f.StringVarP(&opts.role, "role", "r", staffauth.RoleStaff, "admin or staff")
	f.DurationVar(&opts.ttl, "ttl", defaultTokenTTL, "token time-to-live")
	f.StringVar(&opts.signingKey, "signing-key", envOr("STAFF_SIGNING_KEY", devSigningKey), "HMAC signing key")
	f.StringVar(&opts.issuer, "issuer", envOr("STAFF_TOKEN_ISSUER", defaultIssuer), "token issuer")
	f.BoolVar(&opts.jsonOutput, "json", false, "output as JSON")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func generate(cmd *cobra.Command, opts options) error {
	svc := staffauth.NewTokenService(opts.signingKey, opts.issuer)
	token, err := svc.Generate(opts.subject, opts.role, opts.ttl)
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}

	out := cmd.OutOrStdout()
	if opts.jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(tokenOutput{
			Token:     token,
			Subject:   opts.subject,
			Role:      opts.role,
			ExpiresIn: opts.ttl.String(),
			Usage: map[string]string{
				"header": "Authorization: Bearer <token>",
			},
		})
	}

	fmt.Fprintln(out, "Staff Token (JWT)")
	fmt.Fprintln(out, "=================")
	fmt.Fprintf(out, "Subject:     %s\n", opts.subject)
	fmt.Fprintf(out, "Role:        %s\n", opts.role)
	fmt.Fprintf(out, "Expires In:  %s\n", opts.ttl)
	if opts.signingKey == devSigningKey {
		fmt.Fprintln(out, "Signing Key: dev")
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Token:")
	fmt.Fprintln(out, token)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Usage:")
	fmt.Fprintln(out, `  curl -H "Authorization: Bearer <token>" http://localhost:8080/admin/report`)
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
