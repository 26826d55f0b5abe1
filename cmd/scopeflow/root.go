package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	scopeflow "github.com/scopeflow/scopeflow"
	"github.com/scopeflow/scopeflow/internal/logging"
	"github.com/scopeflow/scopeflow/pkg/adapters/analysis"
	"github.com/scopeflow/scopeflow/pkg/adapters/file"
	"github.com/scopeflow/scopeflow/pkg/adapters/memory"
	"github.com/scopeflow/scopeflow/pkg/adapters/redis"
	"github.com/scopeflow/scopeflow/pkg/ports"
	"github.com/scopeflow/scopeflow/pkg/registry"
)

var rootCmd = &cobra.Command{
	Use:   "scopeflow",
	Short: "Scopeflow drives multi-step scoping sessions for NAC deployments",
	Long:  `Scopeflow is a workflow engine for scoping sessions: ordered stages with dependency gating, validation, autosave and handoff to an analysis service.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("store", "file", "Persistence strategy: memory, file or redis")
	rootCmd.PersistentFlags().String("dir", "", "Session directory for the file store (default .scopeflow/sessions)")
	rootCmd.PersistentFlags().String("redis-addr", "localhost:6379", "Redis address for the redis store")
	rootCmd.PersistentFlags().String("analysis-url", "", "Endpoint of the analysis service (optional)")
	rootCmd.PersistentFlags().String("catalog", "", "YAML overlay customizing stage titles and required flags (optional)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")
}

// buildRegistry resolves the stage catalog, applying a YAML overlay when
// one is configured.
func buildRegistry(cmd *cobra.Command) (*registry.Registry, error) {
	path, _ := cmd.Flags().GetString("catalog")
	if path == "" {
		return registry.DefaultCatalog()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog overlay: %w", err)
	}
	defer f.Close()

	overlay, err := registry.LoadOverlay(f)
	if err != nil {
		return nil, err
	}
	return registry.DefaultCatalogWith(overlay)
}

// buildStore resolves the persistence strategy from flags. The choice is
// always explicit; there is no silent fallback.
func buildStore(cmd *cobra.Command) (ports.SessionStore, error) {
	kind, _ := cmd.Flags().GetString("store")
	switch kind {
	case "memory":
		return memory.NewStore(), nil
	case "file":
		dir, _ := cmd.Flags().GetString("dir")
		return file.New(dir), nil
	case "redis":
		addr, _ := cmd.Flags().GetString("redis-addr")
		return redis.New(addr, "", 0), nil
	default:
		return nil, fmt.Errorf("unknown store %q (want memory, file or redis)", kind)
	}
}

func buildEngine(cmd *cobra.Command) (*scopeflow.Engine, error) {
	store, err := buildStore(cmd)
	if err != nil {
		return nil, err
	}
	reg, err := buildRegistry(cmd)
	if err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}

	opts := []scopeflow.Option{
		scopeflow.WithStore(store),
		scopeflow.WithRegistry(reg),
		scopeflow.WithLogger(logging.New(level)),
	}
	if url, _ := cmd.Flags().GetString("analysis-url"); url != "" {
		opts = append(opts, scopeflow.WithAnalyzer(analysis.NewClient(url)))
	}
	return scopeflow.New(opts...)
}
