package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/researchmesh/fedsession/internal/logx"
	"github.com/researchmesh/fedsession/internal/netclient"
	"github.com/researchmesh/fedsession/internal/search"
	"github.com/researchmesh/fedsession/internal/session"
	"github.com/researchmesh/fedsession/internal/snapshot"
	"github.com/researchmesh/fedsession/internal/version"
	"github.com/spf13/cobra"
)

// resolveHubURL returns the hub URL from the flag or FEDSESSION_HUB_URL env var.
// Prints a warning to stderr when falling back to the env var.
// Returns an error if neither is set.
func resolveHubURL(cmd *cobra.Command, flagValue string) (string, error) {
	normalize := func(v string) string {
		for len(v) > 0 && v[len(v)-1] == '/' {
			v = v[:len(v)-1]
		}
		return v
	}
	if cmd.Flags().Changed("hub") {
		return normalize(flagValue), nil
	}
	if v := os.Getenv("FEDSESSION_HUB_URL"); v != "" {
		fmt.Fprintf(os.Stderr, "fedsession: WARNING: using hub URL from FEDSESSION_HUB_URL environment variable\n")
		return normalize(v), nil
	}
	return "", fmt.Errorf("hub URL required: use --hub flag or set FEDSESSION_HUB_URL")
}

// configPath returns a path under the user's fedsession config directory,
// falling back to the working directory when no config dir is available.
func configPath(name string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return name
	}
	return filepath.Join(dir, "fedsession", name)
}

func main() {
	rootCmd := &cobra.Command{
		Use:     "fedsession",
		Short:   "fedsession - session bootstrap client for federated research networks",
		Version: version.Version,
	}
	rootCmd.SetVersionTemplate(version.String("fedsession") + "\n")

	var logLevel string
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug|info|warn|error (or FEDSESSION_LOG_LEVEL)")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return logx.Configure(logLevel, false)
	}

	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newRefreshCmd())
	rootCmd.AddCommand(newLogoutCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLoginCmd() *cobra.Command {
	var (
		hubURL     string
		username   string
		project    string
		identified bool
		tokenPath  string
		keepAlive  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Attest to the hub and bootstrap a session",
		Long: `Submit credentials to the home hub, resolve the responder set across the
network, and load the session's query resources. Progress is printed as
the load advances. If a recent previous session exists you are offered
the chance to resume it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := resolveHubURL(cmd, hubURL)
			if err != nil {
				return err
			}
			return runLogin(resolved, username, project, identified, tokenPath, keepAlive)
		},
	}

	cmd.Flags().StringVar(&hubURL, "hub", "", "Home hub URL (or set FEDSESSION_HUB_URL)")
	cmd.Flags().StringVarP(&username, "user", "u", "", "Username to attest as")
	cmd.Flags().StringVar(&project, "project", "", "Project context for the session")
	cmd.Flags().BoolVar(&identified, "identified", false, "Request an identified (non-anonymized) session; disables federated broadcast")
	cmd.Flags().StringVar(&tokenPath, "token-path", configPath("token.json"), "Path for the cached session token")
	cmd.Flags().DurationVar(&keepAlive, "keep-alive", 0, "Keep the session alive, refreshing the token at this interval (0 = exit after bootstrap)")
	cmd.MarkFlagRequired("user")

	return cmd
}

func runLogin(hubURL, username, project string, identified bool, tokenPath string, keepAlive time.Duration) error {
	password := os.Getenv("FEDSESSION_PASSWORD")
	if password == "" {
		fmt.Fprintf(os.Stderr, "Password for %s: ", username)
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	client := netclient.New(hubURL, netclient.WithTokenPath(tokenPath))

	snaps, err := snapshot.NewStore(configPath("snapshots.db"))
	if err != nil {
		return fmt.Errorf("open snapshot store: %w", err)
	}
	defer snaps.Close()

	deps := session.Deps{
		Tokens:    client,
		Directory: client,
		Resources: client,
		Search:    search.NewEngine(),
		Snapshots: snaps,
		Confirm:   terminalConfirmer{},
		Bus:       progressBus(),
	}

	ctx := context.Background()
	s, err := session.Bootstrap(ctx, deps, session.Attestation{
		Username:   username,
		Password:   password,
		Project:    project,
		Identified: identified,
	})
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	printSummary(s)

	if keepAlive <= 0 {
		return nil
	}
	return keepSessionAlive(ctx, client, s.State, keepAlive)
}

func printSummary(s *session.Session) {
	fmt.Printf("\nSession ready on %s.\n", s.Home.Name)
	fmt.Printf("  responders:    %d", len(s.Responders))
	if len(s.Failures) > 0 {
		fmt.Printf(" (%d partner(s) unreachable)", len(s.Failures))
	}
	fmt.Println()
	fmt.Printf("  datasets:      %d\n", len(s.Datasets))
	fmt.Printf("  concepts:      %d\n", len(s.Concepts))
	fmt.Printf("  saved queries: %d\n", len(s.SavedQueries))
	if s.Query != "" || len(s.Panels) > 0 {
		fmt.Printf("  resumed query: %q with %d panel(s)\n", s.Query, len(s.Panels))
	}
}

// keepSessionAlive refreshes the token on a ticker until interrupted.
func keepSessionAlive(ctx context.Context, client *netclient.Client, st session.State, interval time.Duration) error {
	ctrl := &session.Controller{Tokens: client}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	fmt.Printf("Refreshing token every %s; press Ctrl-C to exit.\n", interval)
	for {
		select {
		case <-ticker.C:
			next, err := ctrl.Refresh(ctx, st)
			if err != nil {
				return fmt.Errorf("refresh: %w", err)
			}
			st = next
		case <-sig:
			fmt.Println("\nInterrupted; token remains cached. Run `fedsession logout` to end the session.")
			return nil
		}
	}
}

func newStatusCmd() *cobra.Command {
	var (
		hubURL    string
		tokenPath string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the cached session token and its claims",
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := resolveHubURL(cmd, hubURL)
			if err != nil {
				return err
			}
			client := netclient.New(resolved, netclient.WithTokenPath(tokenPath))
			st, err := client.LoadState()
			if err != nil {
				return fmt.Errorf("no cached session (run `fedsession login`): %w", err)
			}
			fmt.Printf("hub:       %s\n", client.BaseURL())
			fmt.Printf("subject:   %s\n", st.Claims.Subject)
			fmt.Printf("federated: %v\n", st.Claims.FederatedAllowed)
			fmt.Printf("expires:   %s\n", st.Claims.ExpiresAt.Format(time.RFC3339))
			if !st.Valid() {
				fmt.Println("status:    EXPIRED")
			} else {
				fmt.Printf("status:    valid for %s\n", time.Until(st.Claims.ExpiresAt).Round(time.Second))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&hubURL, "hub", "", "Home hub URL (or set FEDSESSION_HUB_URL)")
	cmd.Flags().StringVar(&tokenPath, "token-path", configPath("token.json"), "Path for the cached session token")

	return cmd
}

func newRefreshCmd() *cobra.Command {
	var (
		hubURL    string
		tokenPath string
	)

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the cached token for a fresh one",
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := resolveHubURL(cmd, hubURL)
			if err != nil {
				return err
			}
			client := netclient.New(resolved, netclient.WithTokenPath(tokenPath))
			st, err := client.LoadState()
			if err != nil {
				return fmt.Errorf("no cached session (run `fedsession login`): %w", err)
			}
			ctrl := &session.Controller{Tokens: client}
			next, err := ctrl.Refresh(context.Background(), st)
			if err != nil {
				return fmt.Errorf("refresh: %w", err)
			}
			fmt.Printf("Token refreshed; expires %s.\n", next.Claims.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&hubURL, "hub", "", "Home hub URL (or set FEDSESSION_HUB_URL)")
	cmd.Flags().StringVar(&tokenPath, "token-path", configPath("token.json"), "Path for the cached session token")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	var (
		hubURL    string
		tokenPath string
		auth      string
		redirect  string
	)

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "End the session and clear the cached token",
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := resolveHubURL(cmd, hubURL)
			if err != nil {
				return err
			}
			client := netclient.New(resolved, netclient.WithTokenPath(tokenPath))
			st, err := client.LoadState()
			if err != nil {
				// Nothing cached; still make sure the file is gone.
				client.ClearLocalToken()
				fmt.Println("No cached session.")
				return nil
			}
			ctrl := &session.Controller{
				Tokens:            client,
				Redirect:          terminalRedirector{hub: client.BaseURL()},
				AuthMechanism:     auth,
				LogoutRedirectURI: redirect,
			}
			ctrl.Logout(context.Background(), st)
			fmt.Println("Logged out.")
			return nil
		},
	}

	cmd.Flags().StringVar(&hubURL, "hub", "", "Home hub URL (or set FEDSESSION_HUB_URL)")
	cmd.Flags().StringVar(&tokenPath, "token-path", configPath("token.json"), "Path for the cached session token")
	cmd.Flags().StringVar(&auth, "auth", "native", "Authentication mechanism the session was created with (native|oidc|unsecured)")
	cmd.Flags().StringVar(&redirect, "redirect", "", "Fallback post-logout URI when the hub offers none")

	return cmd
}

// progressBus prints load progress and node failures as they happen.
func progressBus() *session.Bus {
	bus := session.NewBus()
	bus.Subscribe(func(ev session.Event) {
		switch ev.Kind {
		case session.EventLoadStatus:
			st := ev.Payload.(session.LoadStatus)
			fmt.Printf("[%3d%%] %s\n", st.Percent, st.Label)
		case session.EventNodeFailure:
			f := ev.Payload.(session.ResolveFailure)
			fmt.Fprintf(os.Stderr, "partner %d unreachable: %v\n", f.PartnerID, f.Err)
		case session.EventAttestationErrored:
			fmt.Fprintln(os.Stderr, "login failed")
		}
	})
	return bus
}

type terminalConfirmer struct{}

func (terminalConfirmer) Confirm(prompt string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// terminalRedirector stands in for browser navigation: it prints the target
// for the user to follow.
type terminalRedirector struct {
	hub string
}

func (r terminalRedirector) Redirect(uri string) {
	fmt.Printf("Continue sign-out at: %s\n", uri)
}

func (r terminalRedirector) Reload() {
	fmt.Printf("Session ended. Sign in again at %s.\n", r.hub)
}
