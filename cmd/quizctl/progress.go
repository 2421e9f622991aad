package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mind-engage/mindengage-quiz/internal/grading"
	"github.com/mind-engage/mindengage-quiz/internal/quiz"
	syncx "github.com/mind-engage/mindengage-quiz/internal/sync"
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Inspect and repair progress snapshots",
}

var progressRecomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Re-derive one learner's progress on a quiz from the answer ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		quizID, _ := cmd.Flags().GetString("quiz")
		if user == "" || quizID == "" {
			return errors.New("--user and --quiz are required")
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		conn, driver, err := openDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		store := quiz.NewSQLStore(conn, driver, grading.NewDefaultGrader(), syncx.NewEventRepo(cfg.SiteID))
		p, err := store.RecomputeProgress(cmd.Context(), user, quizID)
		if err != nil {
			return fmt.Errorf("recompute: %w", err)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	},
}

func init() {
	progressRecomputeCmd.Flags().String("user", "", "Learner id")
	progressRecomputeCmd.Flags().String("quiz", "", "Quiz id")
	progressCmd.AddCommand(progressRecomputeCmd)
}
