package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/guidepost-hq/guidepost/pkg/api"
	"github.com/guidepost-hq/guidepost/pkg/auth"
	"github.com/guidepost-hq/guidepost/pkg/auth/jwks"
	authmw "github.com/guidepost-hq/guidepost/pkg/auth/middleware"
	"github.com/guidepost-hq/guidepost/pkg/auth/session"
	"github.com/guidepost-hq/guidepost/pkg/auth/token"
	"github.com/guidepost-hq/guidepost/pkg/clerk"
	"github.com/guidepost-hq/guidepost/pkg/logger"
	"github.com/guidepost-hq/guidepost/pkg/networking"
	"github.com/guidepost-hq/guidepost/pkg/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the authentication API server",
	Long: `Start the authentication API server.
The server verifies Clerk-issued bearer tokens, resolves each caller's
identity and roles, and serves the organization-scoped endpoints.`,
	RunE: runServe,
}

const defaultJWKSValidity = 24 * time.Hour

func init() {
	serveCmd.Flags().String("address", ":8080", "Address to listen on (host:port, or a socket path with --unix-socket)")
	serveCmd.Flags().Bool("unix-socket", false, "Serve on a UNIX socket instead of TCP")
	serveCmd.Flags().String("issuer", "", "Expected token issuer, e.g. https://clerk.example.com")
	serveCmd.Flags().String("clerk-api-url", clerk.DefaultBaseURL, "Clerk backend API base URL")
	serveCmd.Flags().String("clerk-secret-key", "", "Clerk secret key (prefer --clerk-secret-key-file or GUIDEPOST_CLERK_SECRET_KEY)")
	serveCmd.Flags().String("clerk-secret-key-file", "", "Path to a file containing the Clerk secret key")
	serveCmd.Flags().Bool("strict-session", false, "Reject requests whose token claims lag the live identity record")
	serveCmd.Flags().Duration("jwks-validity", defaultJWKSValidity, "How long a cached JWKS document stays fresh")

	for _, name := range []string{
		"address", "unix-socket", "issuer", "clerk-api-url",
		"clerk-secret-key", "clerk-secret-key-file", "strict-session", "jwks-validity",
	} {
		if err := viper.BindPFlag(name, serveCmd.Flags().Lookup(name)); err != nil {
			logger.Fatalf("Failed to bind %s flag: %v", name, err)
		}
	}
}

// resolveSecretKey reads the Clerk secret key from the key file when one is
// configured, otherwise from the flag or environment.
func resolveSecretKey() (string, error) {
	if file := viper.GetString("clerk-secret-key-file"); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read secret key file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	if key := viper.GetString("clerk-secret-key"); key != "" {
		return key, nil
	}

	return "", fmt.Errorf("a Clerk secret key is required: set --clerk-secret-key, --clerk-secret-key-file or GUIDEPOST_CLERK_SECRET_KEY")
}

func runServe(_ *cobra.Command, _ []string) error {
	issuer := viper.GetString("issuer")
	if issuer == "" {
		return fmt.Errorf("issuer flag is required")
	}
	if !networking.IsURL(issuer) {
		return fmt.Errorf("issuer must be an http(s) URL, got %q", issuer)
	}

	clerkAPIURL := viper.GetString("clerk-api-url")
	if !networking.IsURL(clerkAPIURL) {
		return fmt.Errorf("clerk-api-url must be an http(s) URL, got %q", clerkAPIURL)
	}

	secretKey, err := resolveSecretKey()
	if err != nil {
		return err
	}

	clerkClient, err := clerk.New(secretKey, clerk.WithBaseURL(clerkAPIURL))
	if err != nil {
		return fmt.Errorf("failed to create clerk client: %w", err)
	}

	registry := telemetry.NewRegistry()
	metrics := telemetry.NewMetrics(registry)

	cache, err := jwks.New(
		jwks.WithValidity(viper.GetDuration("jwks-validity")),
		jwks.WithMetrics(metrics),
	)
	if err != nil {
		return fmt.Errorf("failed to create JWKS cache: %w", err)
	}

	freshness := session.NewValidator(clerkClient, session.WithMetrics(metrics))

	authOpts := []authmw.Option{
		authmw.WithFreshness(freshness),
		authmw.WithMetrics(metrics),
		authmw.WithRealm(issuer),
	}
	if viper.GetBool("strict-session") {
		authOpts = append(authOpts, authmw.WithStrictSessions())
		logger.Info("Strict session mode enabled: requests with stale role claims will be rejected")
	}

	cfg := api.Config{
		Address:    viper.GetString("address"),
		UnixSocket: viper.GetBool("unix-socket"),
		Authenticator: authmw.NewAuthenticator(
			token.NewVerifier(cache, token.WithExpectedIssuer(issuer)),
			auth.NewResolver(clerkClient, auth.WithResolverMetrics(metrics)),
			authOpts...,
		),
		Freshness: freshness,
		Metrics:   metrics,
		Registry:  registry,
	}

	logger.Infof("Issuer: %s, Clerk API: %s", issuer, clerkAPIURL)

	// Serve until interrupted; api.Serve drains connections on cancel.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return api.Serve(ctx, cfg)
}
