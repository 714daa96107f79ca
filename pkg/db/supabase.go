package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	supabase "github.com/supabase-community/supabase-go"

	"podcast-brain/pkg/logging"
)

// SupabaseConfig holds what is needed to reach a Supabase project.
// URL and Key enable the REST store. ConnectionString or Password
// additionally open a direct Postgres handle used for schema work.
type SupabaseConfig struct {
	ConnectionString string
	// SupabaseURL is the project URL, e.g. "https://<ref>.supabase.co".
	SupabaseURL string
	// SupabaseKey should be the service_role key: the chunk store filters by user itself.
	SupabaseKey string
	// Password is the database password, not the API key.
	Password string

	MaxOpenConns int
	MaxIdleConns int
	ConnMaxIdle  time.Duration
	ConnMaxLife  time.Duration
}

// SupabaseClient bundles the REST SDK client and an optional direct Postgres handle.
type SupabaseClient struct {
	db  *sql.DB
	sdk *supabase.Client
	cfg SupabaseConfig
}

// NewSupabaseClient constructs a Supabase client.
func NewSupabaseClient(cfg SupabaseConfig) *SupabaseClient {
	return &SupabaseClient{cfg: cfg}
}

// Connect sets up whichever access paths the config allows. A failing direct
// connection is tolerated when the REST client is available.
func (c *SupabaseClient) Connect(ctx context.Context) error {
	if c.cfg.SupabaseURL != "" && c.cfg.SupabaseKey != "" {
		sdk, err := supabase.NewClient(c.cfg.SupabaseURL, c.cfg.SupabaseKey, nil)
		if err != nil {
			return fmt.Errorf("initialize supabase SDK: %w", err)
		}
		c.sdk = sdk
	}

	if err := c.openDirect(ctx); err != nil {
		if c.sdk != nil {
			logging.Warn("Direct Supabase connection unavailable, using REST only: %v", err)
			return nil
		}
		return err
	}

	if c.db == nil && c.sdk == nil {
		return fmt.Errorf("either connection string/password or Supabase URL+key must be provided")
	}
	return nil
}

func (c *SupabaseClient) openDirect(ctx context.Context) error {
	dsn := c.cfg.ConnectionString
	if dsn == "" {
		if c.cfg.Password == "" {
			return nil
		}
		var err error
		if dsn, err = supabaseDSN(c.cfg.SupabaseURL, c.cfg.Password); err != nil {
			return fmt.Errorf("build connection string: %w", err)
		}
	}

	// Pooled Supabase endpoints reject server-side prepared statements.
	dsn = withParam(dsn, "statement_cache_capacity", "0")
	dsn = withParam(dsn, "default_query_exec_mode", "simple_protocol")

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open supabase postgres: %w", err)
	}
	applyPool(db, c.cfg.MaxOpenConns, c.cfg.MaxIdleConns, c.cfg.ConnMaxIdle, c.cfg.ConnMaxLife)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping supabase postgres: %w", err)
	}
	c.db = db
	return nil
}

// Close closes the direct database handle, if any.
func (c *SupabaseClient) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// DB returns the direct handle, or nil in REST-only mode.
func (c *SupabaseClient) DB() *sql.DB {
	return c.db
}

// HasDirectDB reports whether a direct Postgres handle is open.
func (c *SupabaseClient) HasDirectDB() bool {
	return c.db != nil
}

// SDK returns the REST client used by SupabaseStore, or nil.
func (c *SupabaseClient) SDK() *supabase.Client {
	return c.sdk
}

// supabaseDSN derives the direct connection string for the project behind projectURL.
func supabaseDSN(projectURL, password string) (string, error) {
	if projectURL == "" {
		return "", fmt.Errorf("supabase URL is required when connection string is not provided")
	}
	u, err := url.Parse(projectURL)
	if err != nil {
		return "", fmt.Errorf("parse supabase URL: %w", err)
	}
	ref, _, ok := strings.Cut(u.Host, ".")
	if !ok || ref == "" {
		return "", fmt.Errorf("invalid supabase URL %q: expected <ref>.supabase.co", projectURL)
	}
	return fmt.Sprintf("postgresql://postgres:%s@db.%s.supabase.co:5432/postgres?sslmode=require",
		url.QueryEscape(password), ref), nil
}

func withParam(dsn, key, value string) string {
	if strings.Contains(dsn, key+"=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + key + "=" + value
}
