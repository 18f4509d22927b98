package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sandevgo/chorus/internal/config"
	"github.com/sandevgo/chorus/pkg/env"
	"github.com/sandevgo/chorus/pkg/log"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:          "init",
	Short:        "Write a commented .env into the runtime directory",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()
		logger := log.FromCtx(ctx)

		runtimePath := config.GetRuntimePath()
		envPath := filepath.Join(runtimePath, ".env")

		if _, err := os.Stat(envPath); err == nil && !initForce {
			return fmt.Errorf("%s already exists, use --force to overwrite", envPath)
		}

		content, err := env.Template(map[string]any{
			"App":       &config.AppConfig{},
			"Provider":  &config.ProviderConfig{},
			"Pipeline":  &config.PipelineConfig{},
			"Retrieval": &config.RetrievalConfig{},
			"Telegram":  &config.TelegramConfig{},
		}, "App", "Provider", "Pipeline", "Retrieval", "Telegram")
		if err != nil {
			return err
		}

		if err := os.MkdirAll(runtimePath, 0755); err != nil {
			return fmt.Errorf("failed to create runtime directory: %w", err)
		}
		if err := os.WriteFile(envPath, []byte(content), 0600); err != nil {
			return fmt.Errorf("failed to write %s: %w", envPath, err)
		}

		logger.Info().Str("path", envPath).Msg("wrote configuration template")
		fmt.Fprintf(cmd.OutOrStdout(), "Edit %s, then run 'chorus chat'.\n", envPath)
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:          "config",
	Short:        "Print the effective non-secret configuration",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, section := range []struct {
			name string
			cfg  any
		}{
			{"App", config.NewAppConfig(ctx)},
			{"Pipeline", config.NewPipelineConfig(ctx)},
			{"Retrieval", config.NewRetrievalConfig(ctx)},
		} {
			text, err := env.MarshalEnv(section.cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "# %s\n%s\n", section.name, text)
		}
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing .env")
	rootCmd.AddCommand(initCmd, configCmd)
}
