package main

import (
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/edgeaihub/edgeplug/internal/ui"
)

func newHistoryCommand(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <plugin-id>",
		Short: "Show recent invocations of a plugin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			repo := s.Invocations()

			list, err := repo.ListByPlugin(ctx, args[0], limit)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				a.out.Status(ui.Info, "No invocations recorded for %s", args[0])
				return nil
			}

			rows := make([][]string, 0, len(list))
			for _, inv := range list {
				rows = append(rows, []string{
					shortID(inv.ID),
					humanize.Time(inv.CreatedAt),
					inv.PluginVersion,
					inv.DataType,
					strconv.FormatBool(inv.Success),
					inv.Duration.String(),
					inv.ErrorMessage,
				})
			}
			a.out.Table([]string{"ID", "When", "Version", "Input", "Success", "Duration", "Error"}, rows)

			stats, err := repo.Stats(ctx, args[0])
			if err != nil {
				return err
			}
			a.out.Muted("%s total, %s succeeded, %s failed, average %s",
				humanize.Comma(int64(stats.Total)),
				humanize.Comma(int64(stats.Succeeded)),
				humanize.Comma(int64(stats.Failed)),
				stats.AvgDuration)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of invocations to show (0 for all)")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
