package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DatabaseSchemePostgres is the postgres database scheme identifier
	DatabaseSchemePostgres = "postgres"
	// DatabaseSchemeSqlite is the embedded sqlite database scheme identifier
	DatabaseSchemeSqlite = "sqlite"
)

type Config struct {
	RPCURL          string // CometBFT RPC endpoint used to follow the chain head; empty disables it
	WSPath          string
	DBDialect       string // postgres or sqlite
	DBDsn           string // DSN string passed to GORM driver
	RedisAddr       string // optional schedule cache
	RedisPassword   string
	SnapshotDir     string // directory of <account>.json voting snapshots
	SnapshotURL     string // or base URL of the snapshot API
	TracksURL       string // optional track metadata API
	Accounts        []string
	HTTPAddr        string // empty disables the HTTP API
	TokenDecimals   int32
	TokenSymbol     string
	BlockTime       time.Duration // average block time for ETA estimates
	RefreshInterval time.Duration // minimal delay between two refreshes of an account
	CacheTTL        time.Duration
	TUI             bool
	Debug           bool
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: invalid %s=%q, using %d\n", key, v, def)
		return def
	}
	return n
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		fmt.Fprintf(os.Stderr, "warning: invalid %s=%q, using %s\n", key, v, def)
		return def
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseDatabaseURL interprets DATABASE_URL and returns (dialect, dsn).
// Supported schemes: postgres, postgresql, sqlite.
func parseDatabaseURL(databaseURL string) (string, string, error) {
	// sqlite://path/to/file.db or sqlite://:memory:, not always a valid URL
	if prefix := DatabaseSchemeSqlite + "://"; strings.HasPrefix(strings.ToLower(databaseURL), prefix) {
		dsn := databaseURL[len(prefix):]
		if dsn == "" {
			return "", "", fmt.Errorf("empty sqlite path in DATABASE_URL")
		}
		return DatabaseSchemeSqlite, dsn, nil
	}
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", "", err
	}
	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case DatabaseSchemePostgres, "postgresql":
		// GORM postgres driver accepts URL DSN as-is
		return DatabaseSchemePostgres, databaseURL, nil
	default:
		return "", "", fmt.Errorf("unsupported DATABASE_URL scheme: %s", u.Scheme)
	}
}

func Load() Config {
	cfg := Config{
		RPCURL:          os.Getenv("RPC_URL"),
		WSPath:          getenv("WS_PATH", "/websocket"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		SnapshotDir:     os.Getenv("SNAPSHOT_DIR"),
		SnapshotURL:     os.Getenv("SNAPSHOT_URL"),
		TracksURL:       os.Getenv("TRACKS_URL"),
		Accounts:        splitList(os.Getenv("ACCOUNTS")),
		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		TokenDecimals:   int32(getenvInt("TOKEN_DECIMALS", 10)),
		TokenSymbol:     getenv("TOKEN_SYMBOL", "DOT"),
		BlockTime:       getenvDuration("BLOCK_TIME", 6*time.Second),
		RefreshInterval: getenvDuration("REFRESH_INTERVAL", 30*time.Second),
		CacheTTL:        getenvDuration("CACHE_TTL", 5*time.Minute),
		TUI:             getenvBool("TUI", true),
		Debug:           getenvBool("DEBUG", false),
	}

	if dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL")); dbURL != "" {
		if dialect, dsn, err := parseDatabaseURL(dbURL); err == nil {
			cfg.DBDialect = dialect
			cfg.DBDsn = dsn
		} else {
			fmt.Fprintf(os.Stderr, "warning: invalid DATABASE_URL, disabling persistence: %v\n", err)
		}
	}

	return cfg
}

// Validate checks that the configuration can drive the service.
func (c Config) Validate() error {
	if c.SnapshotDir == "" && c.SnapshotURL == "" {
		return fmt.Errorf("one of SNAPSHOT_DIR or SNAPSHOT_URL is required")
	}
	if c.SnapshotDir != "" && c.SnapshotURL != "" {
		return fmt.Errorf("SNAPSHOT_DIR and SNAPSHOT_URL are mutually exclusive")
	}
	if c.TokenDecimals < 0 {
		return fmt.Errorf("TOKEN_DECIMALS must not be negative")
	}
	return nil
}

func (c Config) WSURL() string {
	// cometbft http client expects a separate ws endpoint path
	return c.WSPath
}

func (c Config) String() string {
	return fmt.Sprintf("rpc=%s ws_path=%s db=%s accounts=%d", c.RPCURL, c.WSPath, c.DBDialect, len(c.Accounts))
}

// DebugString returns a human-friendly configuration string with masked secrets.
func (c Config) DebugString() string {
	redisPassword := ""
	if c.RedisPassword != "" {
		redisPassword = "***"
	}
	return fmt.Sprintf(
		"rpc=%s ws_path=%s db=%s dsn=%s redis=%s redis_password=%s snapshots=%s%s tracks_url=%s accounts=%s http=%s",
		c.RPCURL,
		c.WSPath,
		c.DBDialect,
		maskDSN(c.DBDialect, c.DBDsn),
		c.RedisAddr,
		redisPassword,
		c.SnapshotDir,
		c.SnapshotURL,
		c.TracksURL,
		strings.Join(c.Accounts, ","),
		c.HTTPAddr,
	)
}

func maskDSN(dialect, dsn string) string {
	switch strings.ToLower(dialect) {
	case DatabaseSchemePostgres:
		if u, err := url.Parse(dsn); err == nil && u.Scheme != "" {
			if u.User != nil {
				username := u.User.Username()
				u.User = url.User(username)
			}
			return u.String()
		}
		// Fallback for DSN as key-value list
		parts := strings.Fields(dsn)
		for i, p := range parts {
			lower := strings.ToLower(p)
			if strings.HasPrefix(lower, "password=") {
				parts[i] = "password=***"
			}
		}
		return strings.Join(parts, " ")
	default:
		return dsn
	}
}
