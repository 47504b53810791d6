package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/researchmesh/fedsession/internal/hub"
	"github.com/researchmesh/fedsession/internal/hub/db"
	"github.com/researchmesh/fedsession/internal/logx"
	"github.com/researchmesh/fedsession/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "Print version and exit")
	verbose := flag.Bool("verbose", false, "Enable verbose debug logs (same as --log-level debug)")
	logLevel := flag.String("log-level", "", "Log level: debug|info|warn|error (or FEDSESSION_LOG_LEVEL)")
	flag.BoolVar(showVersion, "v", false, "Print version and exit")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s\n\n", version.String("fedsession-hub"))
		fmt.Fprintf(os.Stderr, "fedsession-hub is a home node for a federated research network: it attests\nusers, issues session tokens and serves the network and resource catalogs.\n\n")
		fmt.Fprintf(os.Stderr, "Environment variables:\n")
		fmt.Fprintf(os.Stderr, "  FEDSESSION_HUB_ADMIN_TOKEN      Admin Bearer token for provisioning APIs (min 16 chars, required)\n")
		fmt.Fprintf(os.Stderr, "  FEDSESSION_HUB_DB_PATH          SQLite database path (default: fedsession-hub.db)\n")
		fmt.Fprintf(os.Stderr, "  FEDSESSION_HUB_LISTEN_ADDR      Listen address (default: :8080)\n")
		fmt.Fprintf(os.Stderr, "  FEDSESSION_HUB_NODE_NAME        Display name of this node (default: Home Node)\n")
		fmt.Fprintf(os.Stderr, "  FEDSESSION_HUB_AUTH             Auth mechanism: native|oidc|unsecured (default: native)\n")
		fmt.Fprintf(os.Stderr, "  FEDSESSION_HUB_TOKEN_TTL        Session token lifetime (default: 30m)\n")
		fmt.Fprintf(os.Stderr, "  FEDSESSION_HUB_LOGOUT_REDIRECT  URI offered to clients after logout (optional)\n")
		fmt.Fprintf(os.Stderr, "  FEDSESSION_HUB_CORS_ORIGINS     Comma-separated allowed CORS origins (optional)\n")
		fmt.Fprintf(os.Stderr, "  FEDSESSION_LOG_LEVEL            Log level: debug|info|warn|error (default: info)\n")
		fmt.Fprintf(os.Stderr, "\nFlags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("fedsession-hub"))
		os.Exit(0)
	}

	if err := logx.Configure(*logLevel, *verbose); err != nil {
		log.Fatalf("configure logging: %v", err)
	}

	cfg, err := hub.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	store, err := db.NewStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer store.Close()

	r := hub.NewRouter(store, cfg)
	logx.Infof("hub config: node=%q auth=%s token_ttl=%s", cfg.NodeName, cfg.AuthMechanism, cfg.TokenTTL)

	log.Printf("fedsession-hub listening on %s", cfg.ListenAddr)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
