package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/airgrid-tv/airgrid/internal/app/profile"
	"github.com/airgrid-tv/airgrid/internal/app/programming"
	"github.com/airgrid-tv/airgrid/internal/app/report"
	"github.com/airgrid-tv/airgrid/internal/app/scoring"
	"github.com/airgrid-tv/airgrid/internal/domain"
)

func init() {
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(validateCmd)

	generateCmd.Flags().StringP("profile", "p", "", "Path to the profile YAML (required)")
	generateCmd.Flags().StringP("content", "c", "", "Path to the content pool JSON (required)")
	generateCmd.Flags().IntP("iterations", "n", 10, "Number of iterations")
	generateCmd.Flags().Float64P("randomness", "r", 0.3, "Randomness factor in [0,1]")
	generateCmd.Flags().Int("hours", 24, "Schedule duration in hours")
	generateCmd.Flags().String("start", "", "Start datetime (RFC 3339, local; default now)")
	generateCmd.Flags().Int64("seed", 0, "Random seed (0 picks one)")
	generateCmd.Flags().Bool("replace-forbidden", false, "Replace forbidden programs in the best result")
	generateCmd.Flags().Bool("improve", false, "Improve the best result from other iterations")
	generateCmd.Flags().StringP("output", "o", "", "Write the result JSON to a file instead of stdout")
	generateCmd.MarkFlagRequired("profile")
	generateCmd.MarkFlagRequired("content")

	scoreCmd.Flags().StringP("profile", "p", "", "Path to the profile YAML (required)")
	scoreCmd.Flags().StringP("playlist", "l", "", "Path to the playlist JSON (required)")
	scoreCmd.Flags().String("start", "", "Playlist start datetime (RFC 3339, local; default now)")
	scoreCmd.Flags().String("csv", "", "Write the per-program breakdown CSV to a file")
	scoreCmd.Flags().StringP("output", "o", "", "Write the result JSON to a file instead of stdout")
	scoreCmd.MarkFlagRequired("profile")
	scoreCmd.MarkFlagRequired("playlist")

	validateCmd.Flags().StringP("profile", "p", "", "Path to the profile YAML (required)")
	validateCmd.MarkFlagRequired("profile")
}

// ─── generate ───────────────────────────────────────────────────────────────

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a schedule from a profile and content pool",
	Long: `Run the generator offline: load a profile and a content pool from
disk, assemble N candidate schedules, and print the best result.`,
	RunE: runGenerate,
}

func runGenerate(cmd *cobra.Command, args []string) error {
	log := newLogger(flagString(cmd, "log-level"), true)

	profilePath, _ := cmd.Flags().GetString("profile")
	prof, err := profile.Load(profilePath)
	if err != nil {
		return err
	}

	contentPath, _ := cmd.Flags().GetString("content")
	pool, err := loadPool(contentPath)
	if err != nil {
		return err
	}

	iterations, _ := cmd.Flags().GetInt("iterations")
	randomness, _ := cmd.Flags().GetFloat64("randomness")
	hours, _ := cmd.Flags().GetInt("hours")
	seed, _ := cmd.Flags().GetInt64("seed")
	replaceForbidden, _ := cmd.Flags().GetBool("replace-forbidden")
	improve, _ := cmd.Flags().GetBool("improve")

	cfg := programming.Config{
		DurationHours:    hours,
		Iterations:       iterations,
		Randomness:       randomness,
		Seed:             seed,
		ReplaceForbidden: replaceForbidden,
		ImproveBest:      improve,
	}
	if start, _ := cmd.Flags().GetString("start"); start != "" {
		t, err := time.ParseInLocation(time.RFC3339, start, time.Local)
		if err != nil {
			return fmt.Errorf("bad start datetime: %w", err)
		}
		cfg.Start = t
	}

	engine := scoring.NewEngine()
	generator := programming.NewGenerator(engine,
		programming.WithLogger(log.With().Str("comp", "generator").Logger()))

	result, err := generator.Generate(cmd.Context(), pool, prof, cfg, func(iteration, total int, best float64) {
		fmt.Fprintf(os.Stderr, "iteration %d/%d, best %.1f\n", iteration, total, best)
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "best iteration %d: %d programs, total %.1f, average %.1f, %d forbidden\n",
		result.Iteration, len(result.Programs), result.TotalScore, result.AverageScore, result.ForbiddenCount)

	return writeResultJSON(cmd, result)
}

// ─── score ──────────────────────────────────────────────────────────────────

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score an externally supplied playlist against a profile",
	RunE:  runScore,
}

func runScore(cmd *cobra.Command, args []string) error {
	profilePath, _ := cmd.Flags().GetString("profile")
	prof, err := profile.Load(profilePath)
	if err != nil {
		return err
	}

	playlistPath, _ := cmd.Flags().GetString("playlist")
	playlist, err := loadPool(playlistPath)
	if err != nil {
		return err
	}

	start := time.Now()
	if v, _ := cmd.Flags().GetString("start"); v != "" {
		start, err = time.ParseInLocation(time.RFC3339, v, time.Local)
		if err != nil {
			return fmt.Errorf("bad start datetime: %w", err)
		}
	}

	engine := scoring.NewEngine()
	generator := programming.NewGenerator(engine)
	result, err := generator.Evaluate(playlist, prof, start)
	if err != nil {
		return err
	}

	if csvPath, _ := cmd.Flags().GetString("csv"); csvPath != "" {
		f, err := os.Create(csvPath)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := report.WriteScoringCSV(f, result.Programs); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "breakdown written to %s\n", csvPath)
	}

	fmt.Fprintf(os.Stderr, "%d programs, total %.2f, average %.2f, %d forbidden\n",
		len(result.Programs), result.TotalScore, result.AverageScore, result.ForbiddenCount)
	return writeResultJSON(cmd, result)
}

// ─── validate ───────────────────────────────────────────────────────────────

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a profile and its time-block coverage",
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	profilePath, _ := cmd.Flags().GetString("profile")
	prof, err := profile.Load(profilePath)
	if err != nil {
		return err
	}

	coverage, gaps := profile.Coverage(prof)
	if coverage {
		fmt.Printf("profile %q: %d blocks, full 24h coverage\n", prof.Name, len(prof.TimeBlocks))
		return nil
	}
	fmt.Printf("profile %q: %d blocks, coverage gaps:\n", prof.Name, len(prof.TimeBlocks))
	for _, gap := range gaps {
		fmt.Printf("  - %s\n", gap)
	}
	return nil
}

// ─── helpers ────────────────────────────────────────────────────────────────

func flagString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

// loadPool reads a content pool or playlist JSON document: a list of
// {content, meta} items.
func loadPool(path string) ([]domain.ContentItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	var pool []domain.ContentItem
	if err := json.Unmarshal(data, &pool); err != nil {
		return nil, fmt.Errorf("parse content: %w", err)
	}
	return pool, nil
}

func writeResultJSON(cmd *cobra.Command, result *domain.ProgrammingResult) error {
	out := os.Stdout
	if path, _ := cmd.Flags().GetString("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
