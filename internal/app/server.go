package app

import (
	"context"
	"fmt"

	"github.com/asakaida/kanmon/internal/handlers"
	"github.com/asakaida/kanmon/internal/identity"
	"github.com/asakaida/kanmon/internal/infrastructure/config"
	"github.com/asakaida/kanmon/internal/infrastructure/logging"
	"github.com/asakaida/kanmon/internal/infrastructure/metrics"
	"github.com/asakaida/kanmon/internal/services"
	"github.com/asakaida/kanmon/internal/services/authorization"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Server bundles the gRPC server with the components it was built from
type Server struct {
	GRPC      *grpc.Server
	Gate      *authorization.Gate
	Guard     *authorization.GuardTable
	Health    *health.Server
	Collector *metrics.Collector
	Exporter  *metrics.PrometheusExporter
}

// ServerOption adjusts NewServer
type ServerOption func(*serverOptions)

type serverOptions struct {
	provider   identity.Provider
	promReg    *prometheus.Registry
	grpcServer []grpc.ServerOption
}

// WithIdentityProvider replaces the metadata based caller identity
func WithIdentityProvider(p identity.Provider) ServerOption {
	return func(o *serverOptions) { o.provider = p }
}

// WithPrometheusRegistry registers metrics in reg instead of a fresh registry
func WithPrometheusRegistry(reg *prometheus.Registry) ServerOption {
	return func(o *serverOptions) { o.promReg = reg }
}

// WithGRPCOptions appends raw grpc.ServerOptions
func WithGRPCOptions(opts ...grpc.ServerOption) ServerOption {
	return func(o *serverOptions) { o.grpcServer = append(o.grpcServer, opts...) }
}

// NewServer builds the guarded gRPC server over registry.
// It fails when the guard table is inconsistent, and warns about guarded
// operations that the registry does not grant to anyone.
func NewServer(ctx context.Context, cfg *config.Config, registry *Registry, logger logrus.FieldLogger, opts ...ServerOption) (*Server, error) {
	o := serverOptions{provider: identity.NewMetadataProvider()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.promReg == nil {
		o.promReg = prometheus.NewRegistry()
		o.promReg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	collector := metrics.NewCollector()
	if registry.Cache != nil {
		collector.SetCache(registry.Cache)
	}
	exporter := metrics.NewPrometheusExporter(collector, o.promReg)

	gate := authorization.NewGate(registry.Functionalities, cfg.Gate.AnonymousAuthority, logger)
	gate.SetObserver(exporter)
	if c := registry.Cached(); c != nil {
		c.SetObserver(exporter)
	}

	guard, err := authorization.NewGuardTable(
		handlers.DefaultGuardRequirements(cfg.Gate.AdminAuthority, cfg.Gate.AnonymousAuthority),
		handlers.PublicMethods...,
	)
	if err != nil {
		return nil, fmt.Errorf("invalid guard table: %w", err)
	}

	missing, err := guard.Unregistered(ctx, registry.Functionalities)
	if err != nil {
		logger.WithError(err).Warn("could not verify guard table against the registry")
	}
	for _, req := range missing {
		logger.WithFields(logrus.Fields{
			"operation": req.Operation,
			"authority": req.Authority,
		}).Warn("guarded operation is not registered; every call to it will be denied")
	}

	serverOpts := append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			logging.UnaryServerInterceptor(logger),
			metrics.UnaryServerInterceptor(collector, exporter),
			handlers.GuardInterceptor(guard, gate, o.provider, logger),
		),
	}, o.grpcServer...)
	grpcServer := grpc.NewServer(serverOpts...)

	handlers.RegisterPermissionServiceServer(grpcServer, handlers.NewPermissionHandler(gate))
	handlers.RegisterFunctionalityServiceServer(grpcServer, handlers.NewFunctionalityHandler(
		services.NewFunctionalityService(registry.Functionalities, logger),
	))
	handlers.RegisterAuthorityServiceServer(grpcServer, handlers.NewAuthorityHandler(
		services.NewAuthorityService(registry.Authorities, logger),
	))

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	for _, name := range []string{
		handlers.PermissionServiceName,
		handlers.FunctionalityServiceName,
		handlers.AuthorityServiceName,
	} {
		healthServer.SetServingStatus(name, healthpb.HealthCheckResponse_SERVING)
	}

	reflection.Register(grpcServer)

	return &Server{
		GRPC:      grpcServer,
		Gate:      gate,
		Guard:     guard,
		Health:    healthServer,
		Collector: collector,
		Exporter:  exporter,
	}, nil
}

// Shutdown marks every service as not serving
func (s *Server) Shutdown() {
	s.Health.Shutdown()
}
