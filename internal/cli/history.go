package cli

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ironsheep/symbol-takeoff/internal/history"
)

// openHistory connects to the configured Redis history.
func (a *app) openHistory(ctx context.Context) (*history.RedisStore, error) {
	h := a.cfg.History
	if h.Addr == "" {
		return nil, errors.New("history is disabled: set history.addr or TAKEOFF_REDIS_ADDR")
	}
	return history.NewRedisStore(ctx, history.RedisOptions{
		Addr:     h.Addr,
		Password: h.Password,
		DB:       h.DB,
		Prefix:   h.Prefix,
		TTL:      h.TTL,
		Logger:   a.log,
	})
}

// historyRow is the compact listing form of an entry.
type historyRow struct {
	JobID      string         `json:"job_id"`
	Project    string         `json:"project"`
	Source     string         `json:"source"`
	CreatedAt  time.Time      `json:"created_at"`
	Detections int            `json:"detections"`
	Summary    map[string]int `json:"summary"`
}

func newHistoryRow(e history.Entry) historyRow {
	row := historyRow{
		JobID:     e.JobID,
		Project:   e.Project,
		Source:    e.Source,
		CreatedAt: e.CreatedAt,
	}
	if e.Result != nil {
		row.Detections = len(e.Result.Detections)
		row.Summary = e.Result.Summary
	}
	return row
}

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage stored takeoff results",
		Long: `List, show, rename and delete page results saved with "detect --save".

History lives in Redis; configure it with history.addr in the config file
or TAKEOFF_REDIS_ADDR.`,
	}

	cmd.AddCommand(newHistoryListCmd(a))
	cmd.AddCommand(newHistoryShowCmd(a))
	cmd.AddCommand(newHistoryDeleteCmd(a))
	cmd.AddCommand(newHistoryRenameCmd(a))

	return cmd
}

func newHistoryListCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored results, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openHistory(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			rows := make([]historyRow, len(entries))
			for i, e := range entries {
				rows[i] = newHistoryRow(e)
			}
			return printJSON(cmd.OutOrStdout(), rows)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum entries to list (0 for all)")
	return cmd
}

func newHistoryShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Print a stored result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openHistory(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			entry, err := store.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entry)
		},
	}
}

func newHistoryDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <job-id>",
		Short: "Delete a stored result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openHistory(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			a.log.WithField("job_id", args[0]).Info("history entry deleted")
			return nil
		},
	}
}

func newHistoryRenameCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <job-id> <project>",
		Short: "Change the project name of a stored result",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openHistory(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Rename(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			a.log.WithFields(logrus.Fields{
				"job_id":  args[0],
				"project": args[1],
			}).Info("history entry renamed")
			return nil
		},
	}
}
