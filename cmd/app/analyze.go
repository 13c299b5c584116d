package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeffasante/skincare-analysis-api/internal/config"
	"github.com/jeffasante/skincare-analysis-api/internal/service"
	"github.com/jeffasante/skincare-analysis-api/internal/validator"
	"github.com/jeffasante/skincare-analysis-api/pkg/logger"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <image>",
	Short: "Validate a local image and print its analysis report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		log, err := logger.New(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer log.Sync()

		path := args[0]
		v := validator.New(cfg.App.MaxUploadSize, cfg.App.AllowedExtensions, cfg.App.AllowedMimeTypes)
		if err := v.CheckExtension(path); err != nil {
			return err
		}
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if err := v.CheckSize(info.Size()); err != nil {
			return err
		}
		if _, err := v.CheckContent(path); err != nil {
			return err
		}

		report := service.NewAnalysisService(log, 0, nil).Analyze(path)

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}
