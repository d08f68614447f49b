package main

import (
	"fmt"
	"strings"

	"github.com/danmuck/reconctl/internal/config"
	"github.com/danmuck/reconctl/internal/mcpserver"
	"github.com/danmuck/reconctl/internal/operations"
	"github.com/danmuck/reconctl/internal/rawcmd"
	"github.com/danmuck/reconctl/internal/tools"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type app struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "reconctl",
		Short: "Catalog-driven nmap gateway",
		Long: `reconctl exposes a fixed catalog of nmap scans as named operations with
typed parameters, plus an optional raw shell path for anything the catalog
cannot express.

Only scan systems you own or have explicit written permission to test.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", config.DefaultPath, "config file (defaults apply when absent)")

	root.AddCommand(
		newServeCmd(a),
		newOpsCmd(),
		newRunCmd(a),
		newRawCmd(a),
		newConfigCmd(a),
	)
	return root
}

func (a *app) loadConfig() (config.Config, error) {
	cfg, found, err := config.LoadOptional(a.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if found {
		log.Debug().Str("path", a.configPath).Msg("loaded config")
	} else {
		log.Debug().Str("path", a.configPath).Msg("config not found, using defaults")
	}
	return cfg, nil
}

// runtime is the wired execution stack for one process.
type runtime struct {
	cfg        config.Config
	dispatcher *operations.Dispatcher
	raw        mcpserver.RawRunner
}

func newRuntime(cfg config.Config) (*runtime, error) {
	registry, err := operations.NewCatalog()
	if err != nil {
		return nil, fmt.Errorf("build catalog: %w", err)
	}
	exec := tools.NewExecutor(cfg.CommandRunner())
	d, err := operations.NewDispatcher(registry, exec, operations.DispatcherConfig{
		Binary:        cfg.Binary,
		Timeout:       cfg.CatalogTimeout,
		MaxConcurrent: cfg.MaxConcurrent,
	})
	if err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg, dispatcher: d}
	if cfg.RawEnabled {
		rt.raw = rawcmd.New(exec, cfg.RawTimeout)
	}
	log.Debug().
		Int("operations", registry.Len()).
		Str("runner", cfg.Runner).
		Bool("raw", cfg.RawEnabled).
		Msg("runtime ready")
	return rt, nil
}

func (rt *runtime) Close() {
	rt.dispatcher.Close()
}

// parseAssignments turns key=value words into operation arguments.
func parseAssignments(words []string) (map[string]any, error) {
	args := make(map[string]any, len(words))
	for _, w := range words {
		key, value, ok := strings.Cut(w, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("argument %q is not key=value", w)
		}
		if _, dup := args[key]; dup {
			return nil, fmt.Errorf("argument %q given twice", key)
		}
		args[key] = value
	}
	return args, nil
}
