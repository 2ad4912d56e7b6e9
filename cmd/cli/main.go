package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"battforge/adapters/llm"
	"battforge/adapters/physics"
	"battforge/app"
	"battforge/internal/config"
	"battforge/internal/report"
	"battforge/ports"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "battforge-cli",
		Short: "BattForge CLI for analyzing battery telemetry exports",
	}

	rootCmd.AddCommand(
		newAnalyzeCmd(),
		newBatchCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newAnalyzeCmd() *cobra.Command {
	var chemistry string
	var localMode bool
	var asMarkdown bool

	cmd := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Run the universal analysis on one telemetry export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := buildService()
			if err != nil {
				return err
			}

			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("could not read %s: %w", args[0], err)
			}

			result, err := service.Analyze(context.Background(), app.AnalysisRequest{
				Content:   content,
				Filename:  filepath.Base(args[0]),
				Chemistry: chemistry,
				LocalMode: localMode,
			})
			if err != nil {
				return err
			}

			if asMarkdown {
				fmt.Println(report.Markdown(result))
				return nil
			}
			return printJSON(result)
		},
	}

	cmd.Flags().StringVar(&chemistry, "chemistry", "NMC", "cell chemistry for the physics reference")
	cmd.Flags().BoolVar(&localMode, "local", false, "skip the semantic classifier for a fully deterministic run")
	cmd.Flags().BoolVar(&asMarkdown, "markdown", false, "print a markdown report instead of JSON")
	return cmd
}

func newBatchCmd() *cobra.Command {
	var chemistry string
	var localMode bool

	cmd := &cobra.Command{
		Use:   "batch [files...]",
		Short: "Analyze a set of exports and print the aggregate summary",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := buildService()
			if err != nil {
				return err
			}

			files := make([]app.BatchFile, 0, len(args))
			for _, path := range args {
				content, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("could not read %s: %w", path, err)
				}
				files = append(files, app.BatchFile{Filename: filepath.Base(path), Content: content})
			}

			batch := app.NewBatchService(service)
			summary := batch.Process(context.Background(), files, chemistry, localMode)
			return printJSON(summary)
		},
	}

	cmd.Flags().StringVar(&chemistry, "chemistry", "NMC", "cell chemistry for the physics reference")
	cmd.Flags().BoolVar(&localMode, "local", false, "skip the semantic classifier for a fully deterministic run")
	return cmd
}

func buildService() (*app.AnalysisService, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	var classifier ports.SemanticClassifierPort
	if c := llm.NewGeminiClassifier(cfg.AI); c != nil {
		classifier = c
	}
	var physicsPort ports.PhysicsReferencePort
	if p := physics.NewTwinClient(cfg.Physics); p != nil {
		physicsPort = p
	}

	return app.NewAnalysisService(classifier, physicsPort), nil
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
