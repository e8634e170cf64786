package main

import (
	"context"
	"fmt"
	"io"

	"github.com/entrhq/htmlblock/pkg/config"
	"github.com/entrhq/htmlblock/pkg/logging"
)

type app struct {
	dataDir string
	out     io.Writer
	logger  *logging.Logger

	syncStore *config.FileStore
	configs   *config.ConfigStore
	stats     *config.StatsStore
}

func newApp(cfg *Config, out io.Writer, logger *logging.Logger) (*app, error) {
	stores, err := config.Open(cfg.DataDir, logger)
	if err != nil {
		return nil, err
	}

	return &app{
		dataDir:   cfg.DataDir,
		out:       out,
		logger:    logger,
		syncStore: stores.Sync,
		configs:   stores.Configs,
		stats:     stores.Stats,
	}, nil
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return a.status()
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "init":
		return a.seed()
	case "status":
		return a.status()
	case "enable":
		return a.setEnabled(true)
	case "disable":
		return a.setEnabled(false)
	case "sites":
		return a.sites(rest)
	case "stats":
		return a.statsCmd(rest)
	case "import":
		return a.importRules(rest)
	case "export":
		return a.exportRules(rest)
	case "clean":
		return a.clean(rest)
	case "watch":
		return a.watch(ctx, rest)
	default:
		return fmt.Errorf("unknown command %q (see htmlblock -h)", cmd)
	}
}

func (a *app) printf(format string, v ...interface{}) {
	fmt.Fprintf(a.out, format, v...)
}
