// Command kanmonctl administers the permission registry directly, without
// going through the gRPC API.
package main

import (
	"context"
	"os"

	"github.com/asakaida/kanmon/internal/app"
	"github.com/asakaida/kanmon/internal/infrastructure/config"
	"github.com/asakaida/kanmon/internal/infrastructure/logging"
	"github.com/sirupsen/logrus"
)

func main() {
	cmd := newRootCmd(openConfiguredRegistry)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openConfiguredRegistry(ctx context.Context, env string) (*app.Registry, *config.Config, logrus.FieldLogger, error) {
	if err := config.InitConfig(env); err != nil {
		return nil, nil, nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}

	// Administrative output goes to stdout; keep logs to warnings on stderr
	logCfg := cfg.Log
	logCfg.Level = "warn"
	logger, err := logging.New(&logCfg)
	if err != nil {
		return nil, nil, nil, err
	}

	registry, err := app.OpenRegistry(ctx, cfg, logger, app.WithoutCache())
	if err != nil {
		return nil, nil, nil, err
	}
	return registry, cfg, logger, nil
}
