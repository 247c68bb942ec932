package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/cutout/internal/testutil"
	"github.com/MeKo-Tech/cutout/internal/utils"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		generateImages   = flag.Bool("images", true, "Generate synthetic scenes and their ground truth")
		generateFixtures = flag.Bool("fixtures", true, "Generate test fixtures")
		verbose          = flag.Bool("v", false, "Verbose output")
		help             = flag.Bool("h", false, "Show help")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate test data for cutout testing.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s                 # Generate all test data\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -fixtures=false # Generate only images\n", os.Args[0])
	}

	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	root, err := testutil.GetProjectRoot()
	if err != nil {
		slog.Error("Failed to find project root", "error", err)
		os.Exit(1)
	}
	testdata := filepath.Join(root, "testdata")
	if *verbose {
		slog.Info("Options", "images", *generateImages, "fixtures", *generateFixtures, "testdata", testdata)
	}

	if *generateImages {
		if err := generateScenes(filepath.Join(testdata, "images", "scenes")); err != nil {
			slog.Error("Failed to generate test images", "error", err)
			os.Exit(1)
		}
		slog.Info("Generated synthetic scenes")
	}

	if *generateFixtures {
		if err := generateTestFixtures(filepath.Join(testdata, "fixtures")); err != nil {
			slog.Error("Failed to generate test fixtures", "error", err)
			os.Exit(1)
		}
		slog.Info("Generated test fixtures")
	}
}

// generateScenes writes every standard scene and its ground-truth mask.
func generateScenes(dir string) error {
	if err := testutil.EnsureDir(dir); err != nil {
		return fmt.Errorf("failed to create scene directory: %w", err)
	}
	for _, s := range testutil.StandardScenes() {
		img, truth := testutil.GenerateScene(s.Config)
		if err := utils.SaveImage(filepath.Join(dir, s.Name+".png"), img); err != nil {
			return fmt.Errorf("failed to save scene %s: %w", s.Name, err)
		}
		if err := utils.SaveImage(filepath.Join(dir, s.Name+".truth.png"), truth); err != nil {
			return fmt.Errorf("failed to save ground truth of %s: %w", s.Name, err)
		}
		slog.Debug("Wrote scene", "name", s.Name)
	}
	return nil
}

// generateTestFixtures writes one JSON fixture per standard scene.
func generateTestFixtures(dir string) error {
	if err := testutil.EnsureDir(dir); err != nil {
		return fmt.Errorf("failed to create fixtures directory: %w", err)
	}
	for _, s := range testutil.StandardScenes() {
		fixture := testutil.SceneFixture(s)
		data, err := json.MarshalIndent(fixture, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, fixture.Name+".json"), data, 0o600); err != nil {
			return fmt.Errorf("failed to save fixture '%s': %w", fixture.Name, err)
		}
	}
	return nil
}
