package main

import (
	"fmt"
	"math/rand/v2"
	"os"

	"github.com/spf13/cobra"

	"github.com/dunamismax/pixelshuffle/internal/logging"
	"github.com/dunamismax/pixelshuffle/internal/pipeline"
)

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Transform a local JPEG without uploading or notifying",
	RunE:  runTransform,
}

func init() {
	transformCmd.Flags().StringP("input", "i", "", "Input JPEG file")
	transformCmd.Flags().StringP("output", "o", "", "Output JPEG file")
	transformCmd.Flags().Uint64("seed", 0, "Seed for a reproducible channel permutation")
	transformCmd.Flags().Bool("base64", false, "Read and write base64 text instead of raw JPEG")
	transformCmd.Flags().String("log-level", "info", "Log level")
	transformCmd.MarkFlagRequired("input")
	transformCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(transformCmd)
}

func runTransform(cmd *cobra.Command, _ []string) error {
	inputPath, _ := cmd.Flags().GetString("input")
	outputPath, _ := cmd.Flags().GetString("output")
	seed, _ := cmd.Flags().GetUint64("seed")
	useBase64, _ := cmd.Flags().GetBool("base64")
	level, _ := cmd.Flags().GetString("log-level")

	logger := logging.NewWithWriter(cmd.ErrOrStderr(), level, "console", "cli")

	input, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	if useBase64 {
		input, err = pipeline.DecodeBase64(string(input))
		if err != nil {
			return err
		}
	}

	permuter := pipeline.DefaultPermuter
	if cmd.Flags().Changed("seed") {
		permuter = rand.New(rand.NewPCG(seed, seed))
	}

	if err := pipeline.Startup(); err != nil {
		return fmt.Errorf("starting image runtime: %w", err)
	}
	defer pipeline.Shutdown()

	transformer, err := pipeline.NewTransformer(permuter)
	if err != nil {
		return err
	}

	result, err := transformer.Transform(cmd.Context(), input)
	if err != nil {
		return fmt.Errorf("transforming %s: %w", inputPath, err)
	}

	output := result.Data
	if useBase64 {
		output = []byte(result.Base64)
	}
	if err := os.WriteFile(outputPath, output, 0o644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	logger.Info().
		Str("output", outputPath).
		Int("width", result.Width).
		Int("height", result.Height).
		Int("bytes", len(output)).
		Msg("transformed")
	return nil
}
