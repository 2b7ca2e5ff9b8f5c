package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/rapport/internal/engine"
	"github.com/MikeSquared-Agency/rapport/internal/rubric"
	"github.com/MikeSquared-Agency/rapport/internal/textguard"
)

type checkResult struct {
	Bucket     rubric.Bucket `json:"bucket"`
	Words      int           `json:"words"`
	Violations []string      `json:"violations"`
	Clamped    string        `json:"clamped"`
}

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <text>",
		Short: "Check reply text against the envelope of an interest level",
		Example: `  rapportctl check --interest 2 "Oh wow, that's such a fun question! What about you?"
  rapportctl check --interest 8 --json "*laughs* okay, you got me."`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := loadEngine(cmd)
			if err != nil {
				return err
			}
			interest, _ := cmd.Flags().GetInt("interest")
			text := strings.Join(args, " ")

			r := eng.Rubric()
			bucket := rubric.BucketOf(interest)
			profile := r.ProfileOf(bucket)
			res := checkResult{
				Bucket:     bucket,
				Words:      textguard.WordCount(text),
				Violations: textguard.Strings(textguard.Validate(text, profile, r.Limits)),
				Clamped:    textguard.Clamp(text, profile, r.Limits),
			}
			if res.Violations == nil {
				res.Violations = []string{}
			}

			out := cmd.OutOrStdout()
			if jsonOutput(cmd) {
				return writeJSON(out, res)
			}
			fmt.Fprintf(out, "bucket:  %s (%d-%d words)\n", bucket, profile.WordCount.Min, profile.WordCount.Max)
			if len(res.Violations) == 0 {
				fmt.Fprintln(out, "ok")
				return nil
			}
			for _, v := range res.Violations {
				fmt.Fprintf(out, "  - %s\n", v)
			}
			fmt.Fprintf(out, "clamped: %s\n", res.Clamped)
			return nil
		},
	}
	cmd.Flags().Int("interest", engine.DefaultInterest, "Interest level whose bucket to check against")
	return cmd
}
