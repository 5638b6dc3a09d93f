// Command scanner is the UltraScan entrypoint: an HTTP scanning service
// and a one-shot CLI scanner sharing the same pipeline.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"ultrascan/pkg/api"
	"ultrascan/pkg/config"
	"ultrascan/pkg/detectors"
	"ultrascan/pkg/media"
	"ultrascan/pkg/scan"
	"ultrascan/pkg/shield"
	"ultrascan/pkg/store"
	"ultrascan/pkg/telemetry"
)

// Version is stamped by the build.
var Version = "dev"

var profileFlag string

func main() {
	root := &cobra.Command{
		Use:           "scanner",
		Short:         "UltraScan multi-modal deepfake scanner",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&profileFlag, "profile", "default",
		"config profile: default, high-security, high-throughput")

	root.AddCommand(serveCmd(), scanCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		log.Fatalf("[STARTUP] FATAL: %v", err)
	}
}

func loadConfig() *config.Config {
	var cfg *config.Config
	switch profileFlag {
	case "high-security":
		cfg = config.NewHighSecurityConfig()
	case "high-throughput":
		cfg = config.NewHighThroughputConfig()
	default:
		cfg = config.NewDefaultConfig()
	}
	cfg.MustValidate()
	return cfg
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP scanning service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()

			weights, err := config.LoadWeights(cfg.WeightsPath)
			if err != nil {
				return fmt.Errorf("load weights: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := config.WatchWeights(ctx, weights); err != nil {
				log.Printf("[STARTUP] Weights watch unavailable: %v", err)
			}

			registry := detectors.NewDefaultRegistry()
			orch := scan.NewOrchestrator(cfg, registry, weights, telemetry.GlobalClient)
			cache := scan.NewCache(cfg.RedisAddr, cfg.CacheTTL)
			defer cache.Close()

			var st api.VerdictStore
			if cfg.PostgresDSN != "" {
				pgStore, err := store.New(ctx, cfg.PostgresDSN)
				if err != nil {
					return fmt.Errorf("verdict store: %w", err)
				}
				defer pgStore.Close()
				st = pgStore
			}

			server := api.NewServer(cfg, orch, cache, st, telemetry.GlobalClient)

			errCh := make(chan error, 1)
			go func() { errCh <- server.Listen() }()

			select {
			case <-ctx.Done():
				log.Println("[SHUTDOWN] Signal received, draining")
				return server.Shutdown()
			case err := <-errCh:
				return err
			}
		},
	}
}

func scanCmd() *cobra.Command {
	var mediaTypeFlag string
	cmd := &cobra.Command{
		Use:   "scan <file>",
		Short: "Scan one media file and print the verdict as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()

			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read media: %w", err)
			}

			in, err := media.Preprocess(content, filepath.Base(args[0]), mediaTypeFlag)
			if err != nil {
				return fmt.Errorf("preprocess: %w", err)
			}

			weights, err := config.LoadWeights(cfg.WeightsPath)
			if err != nil {
				return fmt.Errorf("load weights: %w", err)
			}

			orch := scan.NewOrchestrator(cfg, detectors.NewDefaultRegistry(), weights, telemetry.GlobalClient)

			verdict, err := orch.Scan(cmd.Context(), newCLIScanID(), in, nil)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(verdict, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))

			if verdict.Verdict == shield.VerdictFake || verdict.Verdict == shield.VerdictLikelyFake {
				os.Exit(2) // scriptable: nonzero for fake-ward verdicts
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mediaTypeFlag, "media-type", "",
		"media type hint: image, video, audio, text (default: sniffed)")
	return cmd
}

func newCLIScanID() string {
	return "scn_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ultrascan %s\n", Version)
		},
	}
}
