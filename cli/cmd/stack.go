package cmd

import (
	"context"
	"os"
	"sync"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/freetracer/adapter"
	"github.com/justapithecus/freetracer/adapter/redis"
	"github.com/justapithecus/freetracer/adapter/webhook"
	"github.com/justapithecus/freetracer/cli/config"
	"github.com/justapithecus/freetracer/helper"
	"github.com/justapithecus/freetracer/ipc"
	"github.com/justapithecus/freetracer/log"
	"github.com/justapithecus/freetracer/metrics"
	"github.com/justapithecus/freetracer/types"
)

// defaultConfigPath is tried when --config is not given.
const defaultConfigPath = "freetracer.yaml"

// loadConfig resolves the effective configuration: --config if given,
// ./freetracer.yaml if present, built-in defaults otherwise.
func loadConfig(c *cli.Context) (*config.Config, error) {
	if path := c.String("config"); path != "" {
		return config.Load(path)
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return config.Load(defaultConfigPath)
	}
	return config.Default(), nil
}

// lazyTransport dials the helper socket on first use. The helper may
// not be installed when the command starts; the lifecycle manager
// installs it and the next call connects. After a connection drops the
// session stays down: started is never reset.
type lazyTransport struct {
	mu      sync.Mutex
	client  *ipc.Client
	started bool
}

func newLazyTransport(socketPath string, logger *log.Logger) *lazyTransport {
	return &lazyTransport{client: ipc.NewClient(socketPath, logger)}
}

func (t *lazyTransport) Call(ctx context.Context, req *types.HelperRequest) (*types.HelperResponse, error) {
	t.mu.Lock()
	if !t.started {
		if err := t.client.Start(); err != nil {
			t.mu.Unlock()
			return nil, err
		}
		t.started = true
	}
	t.mu.Unlock()

	return t.client.Call(ctx, req)
}

func (t *lazyTransport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		_ = t.client.Stop()
	}
}

// newLifecycle builds the helper lifecycle manager from config. The
// collector counts installs and may be nil.
func newLifecycle(cfg *config.Config, transport helper.Transport, logger *log.Logger, collector *metrics.Collector) *helper.Manager {
	return helper.NewManager(helper.Config{
		ExpectedVersion:     cfg.Helper.ExpectedVersion,
		InstallWaitAttempts: cfg.Helper.InstallWaitAttempts,
		InstallWaitInterval: cfg.Helper.InstallWaitInterval.Duration,
		Metrics:             collector,
	}, &helper.SystemdRegistry{
		UnitPath:       cfg.Helper.UnitPath,
		InstallCommand: cfg.Helper.InstallCommand,
	}, transport, logger.Named("helper"))
}

// newSink builds the completion notification adapter, Discard when
// none is configured.
func newSink(cfg *config.Config) (adapter.Adapter, error) {
	switch cfg.Adapter.Type {
	case "", "none":
		return adapter.Discard{}, nil
	case "webhook":
		wcfg := webhook.Config{
			URL:     cfg.Adapter.URL,
			Headers: cfg.Adapter.Headers,
			Timeout: cfg.Adapter.Timeout.Duration,
			Retries: webhook.DefaultRetries,
		}
		if cfg.Adapter.Retries != nil {
			wcfg.Retries = *cfg.Adapter.Retries
		}
		return webhook.New(wcfg)
	case "redis":
		rcfg := redis.Config{
			URL:     cfg.Adapter.URL,
			Channel: cfg.Adapter.Channel,
			Timeout: cfg.Adapter.Timeout.Duration,
			Retries: redis.DefaultRetries,
		}
		if cfg.Adapter.Retries != nil {
			rcfg.Retries = *cfg.Adapter.Retries
		}
		return redis.New(rcfg)
	default:
		return nil, cli.Exit("unknown adapter type: "+cfg.Adapter.Type, 1)
	}
}
