package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/rapport/internal/anthropic"
	"github.com/MikeSquared-Agency/rapport/internal/config"
	"github.com/MikeSquared-Agency/rapport/internal/engine"
	"github.com/MikeSquared-Agency/rapport/internal/evaluator"
	"github.com/MikeSquared-Agency/rapport/internal/processor"
	"github.com/MikeSquared-Agency/rapport/internal/reply"
	"github.com/MikeSquared-Agency/rapport/internal/store"
)

type sayResult struct {
	ID      uuid.UUID                `json:"id"`
	Reply   string                   `json:"reply"`
	State   engine.ConversationState `json:"state"`
	Ended   bool                     `json:"ended"`
	Reason  string                   `json:"reason,omitempty"`
	Blocked bool                     `json:"blocked,omitempty"`
	Bucket  string                   `json:"bucket"`
}

func newStartCmd(cfg config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a conversation in the local session database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			seed, _ := cmd.Flags().GetInt64("seed")
			if !cmd.Flags().Changed("seed") {
				seed = rand.Int64()
			}

			db, err := store.OpenSQLite(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			c := store.NewConversation(seed)
			if err := db.Create(cmd.Context(), c); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput(cmd) {
				return writeJSON(out, map[string]any{"id": c.ID, "state": c.State})
			}
			fmt.Fprintf(out, "conversation %s started (interest=%d, bucket=%s)\n", c.ID, c.State.InterestLevel, c.State.Bucket())
			return nil
		},
	}
	cmd.Flags().String("db", cfg.SessionDB, "SQLite session database")
	cmd.Flags().Int64("seed", 0, "Seed for canned-line rotation (random when unset)")
	return cmd
}

func newSayCmd(cfg config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "say [id] <message>",
		Short: "Send one message and print her reply",
		Long: `Send one message to a conversation and print her reply. Without an id the
most recently active conversation in the session database is used.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			verbose, _ := cmd.Flags().GetBool("verbose")
			if cfg.AnthropicAPIKey == "" {
				return errors.New("ANTHROPIC_API_KEY is required")
			}
			eng, err := loadEngine(cmd)
			if err != nil {
				return err
			}

			db, err := store.OpenSQLite(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			var id uuid.UUID
			message := args[len(args)-1]
			if len(args) == 2 {
				if id, err = uuid.Parse(args[0]); err != nil {
					return fmt.Errorf("invalid conversation id %q: %w", args[0], err)
				}
			} else {
				latest, err := db.Latest(ctx)
				if errors.Is(err, store.ErrNotFound) {
					return errors.New("no conversations yet, run 'rapportctl start' first")
				}
				if err != nil {
					return err
				}
				id = latest.ID
			}

			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			if verbose {
				logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
			}
			r := eng.Rubric()
			judge := evaluator.New(anthropic.NewClient(cfg.AnthropicAPIKey, cfg.JudgeModel), r, cfg.Trajectory, logger)
			responder := reply.NewResponder(r, reply.NewLLM(anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)), logger)
			proc := processor.New(db, eng, judge, responder, nil, logger)

			res, err := proc.Turn(ctx, id, message)
			blocked := errors.Is(err, engine.ErrConversationEnded)
			if err != nil && !blocked {
				return err
			}

			out := cmd.OutOrStdout()
			sr := sayResult{
				ID:      id,
				Reply:   res.Reply,
				State:   res.Conversation.State,
				Ended:   res.Ended,
				Reason:  res.Reason,
				Blocked: blocked,
				Bucket:  string(res.Conversation.State.Bucket()),
			}
			if jsonOutput(cmd) {
				return writeJSON(out, sr)
			}
			fmt.Fprintf(out, "her: %s\n", sr.Reply)
			s := sr.State
			fmt.Fprintf(out, "     [turn %d  interest=%d exit_risk=%d bucket=%s phase=%s]\n",
				s.TurnCount, s.InterestLevel, s.ExitRisk, sr.Bucket, s.Phase)
			if sr.Ended && !blocked {
				fmt.Fprintf(out, "     she left: %s\n", sr.Reason)
			}
			return nil
		},
	}
	cmd.Flags().String("db", cfg.SessionDB, "SQLite session database")
	cmd.Flags().BoolP("verbose", "v", false, "Log judge and generator activity to stderr")
	return cmd
}
