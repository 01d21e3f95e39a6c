package e2e

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/asakaida/kanmon/internal/app"
	"github.com/asakaida/kanmon/internal/client"
	"github.com/asakaida/kanmon/internal/entities"
	"github.com/asakaida/kanmon/internal/infrastructure/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

const bufSize = 1024 * 1024

var (
	adminCaller     = entities.Principal{Subject: "admin", Authorities: []string{entities.AuthorityAdmin, entities.AuthorityUser}}
	userCaller      = entities.Principal{Subject: "user", Authorities: []string{entities.AuthorityUser}}
	anonymousCaller = entities.AnonymousPrincipal()
)

// E2ETestServer represents an E2E test server
type E2ETestServer struct {
	Server   *app.Server
	Registry *app.Registry
	Client   *client.Client
	Conn     *grpc.ClientConn
	Listener *bufconn.Listener
	Logs     *test.Hook
}

// Option adjusts the configuration of a test server
type Option func(cfg *config.Config)

// WithCache enables the in-process registry cache
func WithCache() Option {
	return func(cfg *config.Config) {
		cfg.Cache.Enabled = true
		cfg.Cache.Backend = config.CacheBackendMemory
	}
}

// WithDatabase uses PostgreSQL instead of the in-memory registry
func WithDatabase(db config.DatabaseConfig) Option {
	return func(cfg *config.Config) {
		cfg.Storage.Driver = config.StorageDriverPostgres
		cfg.Storage.AutoMigrate = true
		cfg.Database = db
	}
}

func testConfig(opts ...Option) *config.Config {
	cfg := &config.Config{
		Storage: config.StorageConfig{Driver: config.StorageDriverMemory},
		Cache: config.CacheConfig{
			Backend:    config.CacheBackendMemory,
			MaxEntries: 1000,
			TTLSeconds: 60,
		},
		Gate: config.GateConfig{
			AnonymousAuthority: entities.AuthorityAnonymous,
			AdminAuthority:     entities.AuthorityAdmin,
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// SetupE2ETest starts the full server stack on an in-memory listener.
// Everything is torn down when the test finishes.
func SetupE2ETest(t *testing.T, opts ...Option) *E2ETestServer {
	t.Helper()

	ctx := context.Background()
	cfg := testConfig(opts...)
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	registry, err := app.OpenRegistry(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("failed to open registry: %v", err)
	}
	t.Cleanup(func() {
		if err := registry.Close(); err != nil {
			t.Logf("warning: failed to close registry: %v", err)
		}
	})
	if err := registry.Start(ctx); err != nil {
		t.Fatalf("failed to start registry: %v", err)
	}

	srv, err := app.NewServer(ctx, cfg, registry, logger, app.WithPrometheusRegistry(prometheus.NewRegistry()))
	if err != nil {
		t.Fatalf("failed to build server: %v", err)
	}

	listener := bufconn.Listen(bufSize)
	go func() {
		if err := srv.GRPC.Serve(listener); err != nil {
			t.Logf("server error: %v", err)
		}
	}()

	conn, err := grpc.NewClient(
		"passthrough:///bufconn",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("failed to create client connection: %v", err)
	}

	e := &E2ETestServer{
		Server:   srv,
		Registry: registry,
		Client:   client.New(conn),
		Conn:     conn,
		Listener: listener,
		Logs:     hook,
	}
	t.Cleanup(e.teardown)
	return e
}

func (e *E2ETestServer) teardown() {
	e.Conn.Close()
	e.Server.GRPC.Stop()
	e.Listener.Close()
}

// as returns a context carrying the caller's identity
func as(p entities.Principal) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	return client.As(ctx, p), cancel
}

// SetupTestDatabase starts a PostgreSQL container and returns its settings.
// The container is terminated when the test finishes.
func SetupTestDatabase(t *testing.T) config.DatabaseConfig {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping PostgreSQL e2e test in short mode")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("kanmon_e2e"),
		tcpostgres.WithUsername("kanmon"),
		tcpostgres.WithPassword("kanmon"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("PostgreSQL container unavailable: %v", err)
	}
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("warning: failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("failed to get container port: %v", err)
	}

	return config.DatabaseConfig{
		Host:     host,
		Port:     int(port.Num()),
		User:     "kanmon",
		Password: "kanmon",
		Database: "kanmon_e2e",
		SSLMode:  "disable",
	}
}

// eventually polls cond until it holds or timeout passes
func eventually(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return cond()
}
