package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/maine/youtube_digest/internal/state"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect or maintain the seen-videos history",
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show how many videos are recorded and their age range",
	RunE:  runHistoryStats,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop records older than history_max_days",
	Long: `Drop records older than history_max_days and rewrite the history file.

A regular run prunes as well; this is for trimming the file without polling.`,
	RunE: runHistoryPrune,
}

func init() {
	historyCmd.AddCommand(historyStatsCmd)
	historyCmd.AddCommand(historyPruneCmd)
}

func historyStore(s settings) *state.FileStore {
	p := s.cfg.Pipeline
	return state.NewFileStore(p.HistoryFile, p.Retention(), time.Now, s.logger)
}

func runHistoryStats(cmd *cobra.Command, args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	store := historyStore(s)

	h, err := store.Load(cmd.Context())
	if err != nil {
		return err
	}
	st := h.Stats()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "History file: %s\n", store.Path())
	fmt.Fprintf(out, "Records:      %d\n", st.Records)
	if st.Records > 0 {
		fmt.Fprintf(out, "Oldest:       %s\n", st.Oldest.Format(time.RFC3339))
		fmt.Fprintf(out, "Newest:       %s\n", st.Newest.Format(time.RFC3339))
	}
	fmt.Fprintf(out, "Retention:    %d days\n", s.cfg.Pipeline.HistoryMaxDays)
	return nil
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	store := historyStore(s)

	h, err := store.Load(cmd.Context())
	if err != nil {
		return err
	}
	before := h.Len()

	if err := store.Commit(cmd.Context(), h); err != nil {
		return err
	}

	reloaded, err := store.Load(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d of %d records, %d left\n",
		before-reloaded.Len(), before, reloaded.Len())
	return nil
}
