package hub

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds hub configuration loaded from environment variables.
type Config struct {
	AdminToken        string
	DBPath            string
	ListenAddr        string
	NodeName          string
	AuthMechanism     string
	LogoutRedirectURI string
	TokenTTL          time.Duration
	CORSOrigins       []string
}

// LoadConfig loads hub configuration from environment variables.
func LoadConfig() (*Config, error) {
	adminToken := os.Getenv("FEDSESSION_HUB_ADMIN_TOKEN")
	if adminToken == "" {
		return nil, fmt.Errorf("FEDSESSION_HUB_ADMIN_TOKEN is required")
	}
	if len(adminToken) < 16 {
		return nil, fmt.Errorf("FEDSESSION_HUB_ADMIN_TOKEN must be at least 16 characters")
	}

	dbPath := os.Getenv("FEDSESSION_HUB_DB_PATH")
	if dbPath == "" {
		dbPath = "fedsession-hub.db"
	}

	listenAddr := os.Getenv("FEDSESSION_HUB_LISTEN_ADDR")
	if listenAddr == "" {
		listenAddr = ":8080"
	}

	nodeName := os.Getenv("FEDSESSION_HUB_NODE_NAME")
	if nodeName == "" {
		nodeName = "Home Node"
	}

	auth := strings.TrimSpace(strings.ToLower(os.Getenv("FEDSESSION_HUB_AUTH")))
	switch auth {
	case "":
		auth = "native"
	case "native", "oidc", "unsecured":
	default:
		return nil, fmt.Errorf("FEDSESSION_HUB_AUTH must be one of native/oidc/unsecured")
	}

	tokenTTL := 30 * time.Minute
	if v := os.Getenv("FEDSESSION_HUB_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("FEDSESSION_HUB_TOKEN_TTL must be a positive duration, got %q", v)
		}
		tokenTTL = d
	}

	var corsOrigins []string
	if v := os.Getenv("FEDSESSION_HUB_CORS_ORIGINS"); v != "" {
		for _, o := range strings.Split(v, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				corsOrigins = append(corsOrigins, o)
			}
		}
	}

	return &Config{
		AdminToken:        adminToken,
		DBPath:            dbPath,
		ListenAddr:        listenAddr,
		NodeName:          nodeName,
		AuthMechanism:     auth,
		LogoutRedirectURI: os.Getenv("FEDSESSION_HUB_LOGOUT_REDIRECT"),
		TokenTTL:          tokenTTL,
		CORSOrigins:       corsOrigins,
	}, nil
}
