// Package main implements the storyloom CLI for running story and gallery
// workflows over a JSON memory file.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/storyloom/internal/config"
	"github.com/fyrsmithlabs/storyloom/internal/coordinator"
	"github.com/fyrsmithlabs/storyloom/internal/logging"
	"github.com/fyrsmithlabs/storyloom/internal/memoir"
	"github.com/fyrsmithlabs/storyloom/internal/narrator"
	"github.com/fyrsmithlabs/storyloom/internal/telemetry"
)

var (
	configPath string
	inputPath  string
	seed       int64

	flagQuery      string
	flagTheme      string
	flagMode       string
	flagStyle      string
	flagMaxResults int

	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "storyloom",
	Short: "Curate personal memories into narrative stories",
	Long: `storyloom selects, sanitizes, narrates, and sequences personal memories
into reviewed story or gallery artifacts. Memories are supplied as a JSON
request file; results are printed as JSON.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml")
	rootCmd.PersistentFlags().Int64Var(&seed, "seed", 0, "RNG seed for media scattering (0 = time-based)")

	for _, cmd := range []*cobra.Command{storyCmd, galleryCmd, validateCmd} {
		cmd.Flags().StringVar(&inputPath, "input", "-", "JSON request file ('-' for stdin)")
	}
	for _, cmd := range []*cobra.Command{storyCmd, galleryCmd} {
		cmd.Flags().StringVar(&flagQuery, "query", "", "override the request query")
		cmd.Flags().StringVar(&flagTheme, "theme", "", "override the request theme")
		cmd.Flags().StringVar(&flagMode, "mode", "", "narrative mode (chronological|thematic|people-centered|place-centered)")
		cmd.Flags().StringVar(&flagStyle, "style", "", "narrative style hint")
		cmd.Flags().IntVar(&flagMaxResults, "max-results", 0, "cap on selected memories")
	}

	rootCmd.AddCommand(storyCmd)
	rootCmd.AddCommand(galleryCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)
}

var storyCmd = &cobra.Command{
	Use:   "story",
	Short: "Generate a narrated story from memories",
	Long: `Generate a story: select relevant memories, sanitize them, compose
chapters, sequence them for flow and pacing, and review the result.

Examples:
  # Generate a story from a request file
  storyloom story --input request.json

  # Override the query and mode
  storyloom story --input request.json --query "beach vacation" --mode thematic`,
	RunE: runStory,
}

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Generate a sequenced memory gallery",
	Long: `Generate a gallery: the same workflow as story but without narration;
the selected memories themselves are sequenced and reviewed.`,
	RunE: runGallery,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a request file without running a workflow",
	RunE:  runValidate,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the storyloom version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("storyloom %s\n", version)
	},
}

func runStory(cmd *cobra.Command, args []string) error {
	return runWorkflow(cmd.Context(), func(ctx context.Context, c *coordinator.Coordinator, req *memoir.Request) *coordinator.WorkflowResult {
		return c.GenerateStory(ctx, req)
	})
}

func runGallery(cmd *cobra.Command, args []string) error {
	return runWorkflow(cmd.Context(), func(ctx context.Context, c *coordinator.Coordinator, req *memoir.Request) *coordinator.WorkflowResult {
		return c.GenerateGallery(ctx, req)
	})
}

func runValidate(cmd *cobra.Command, args []string) error {
	req, err := readRequest()
	if err != nil {
		return err
	}
	cfg, log, tel, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer shutdown(log, tel)

	c := newCoordinator(cfg, log, tel)
	ok, issues := c.ValidateRequest(req)

	out := struct {
		Valid  bool     `json:"valid"`
		Issues []string `json:"issues"`
	}{Valid: ok, Issues: issues}
	if out.Issues == nil {
		out.Issues = []string{}
	}
	return printJSON(out)
}

func runWorkflow(ctx context.Context, run func(context.Context, *coordinator.Coordinator, *memoir.Request) *coordinator.WorkflowResult) error {
	req, err := readRequest()
	if err != nil {
		return err
	}
	applyFlagOverrides(req)

	cfg, log, tel, err := setup(ctx)
	if err != nil {
		return err
	}
	defer shutdown(log, tel)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := newCoordinator(cfg, log, tel)
	if err := c.Initialize(); err != nil {
		return fmt.Errorf("initializing pipeline: %w", err)
	}

	result := run(ctx, c, req)
	if err := printJSON(result); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("workflow failed: %s", result.Error)
	}
	return nil
}

// setup loads configuration and constructs the logger and telemetry.
func setup(ctx context.Context) (*config.Config, *logging.Logger, *telemetry.Telemetry, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}
	log, err := logging.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating logger: %w", err)
	}
	tel, err := telemetry.New(ctx, &cfg.Telemetry)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initializing telemetry: %w", err)
	}
	return cfg, log, tel, nil
}

func newCoordinator(cfg *config.Config, log *logging.Logger, tel *telemetry.Telemetry) *coordinator.Coordinator {
	var rng *rand.Rand
	if seed != 0 {
		rng = rand.New(rand.NewSource(seed))
	}
	return coordinator.New(cfg, narrator.NewTemplate(log), rng, log, tel)
}

func shutdown(log *logging.Logger, tel *telemetry.Telemetry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = tel.Shutdown(ctx)
	_ = log.Sync()
}

// readRequest reads the JSON request from the input file or stdin.
func readRequest() (*memoir.Request, error) {
	var data []byte
	var err error
	if inputPath == "" || inputPath == "-" {
		data, err = io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
	} else {
		data, err = os.ReadFile(inputPath)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", inputPath, err)
		}
	}

	var req memoir.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("parsing request: %w", err)
	}
	return &req, nil
}

func applyFlagOverrides(req *memoir.Request) {
	if flagQuery != "" {
		req.Query = flagQuery
	}
	if flagTheme != "" {
		req.Theme = flagTheme
	}
	if flagMode != "" {
		req.Mode = memoir.NarrativeMode(flagMode)
	}
	if flagStyle != "" {
		req.Style = flagStyle
	}
	if flagMaxResults > 0 {
		req.MaxResults = flagMaxResults
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
