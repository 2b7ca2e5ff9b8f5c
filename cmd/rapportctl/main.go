package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/rapport/internal/config"
	"github.com/MikeSquared-Agency/rapport/internal/engine"
	"github.com/MikeSquared-Agency/rapport/internal/rubric"
)

func main() {
	if err := newRootCmd(config.Load()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(cfg config.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rapportctl",
		Short: "Drive the rapport conversation simulator from the terminal",
		Long: `rapportctl replays scripted evaluations through the interest engine,
checks reply text against a bucket's envelope and plays conversations
against the live models with state kept in a local SQLite file.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("rubric", cfg.RubricPath, "YAML rubric override file")
	rootCmd.PersistentFlags().Int("notch", cfg.RealismNotch, "Realism notch added to every exit-risk change")

	rootCmd.AddCommand(
		newSimulateCmd(),
		newCheckCmd(),
		newRubricCmd(),
		newStartCmd(cfg),
		newSayCmd(cfg),
	)
	return rootCmd
}

// loadEngine builds the engine from the persistent --rubric and --notch flags.
func loadEngine(cmd *cobra.Command) (*engine.Engine, error) {
	path, _ := cmd.Flags().GetString("rubric")
	notch, _ := cmd.Flags().GetInt("notch")
	r, err := rubric.Load(path)
	if err != nil {
		return nil, err
	}
	return engine.New(r, notch), nil
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
