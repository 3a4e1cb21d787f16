package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/edgeaihub/edgeplug/internal/catalog"
	"github.com/edgeaihub/edgeplug/internal/store"
	"github.com/edgeaihub/edgeplug/internal/ui"
)

func newListCommand(a *app) *cobra.Command {
	var sync bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the plugins installed in the plugin directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat := catalog.New(a.cfg.PluginDir, catalog.WithLogger(a.log))
			if err := cat.Discover(); err != nil {
				return err
			}

			indexed := map[string]time.Time{}
			if sync {
				s, err := a.openStore()
				if err != nil {
					return err
				}
				defer s.Close()

				if err := cat.Sync(cmd.Context(), s); err != nil {
					return err
				}
				indexed, err = indexTimes(cmd.Context(), s)
				if err != nil {
					return err
				}
			}

			entries := cat.List()
			if len(entries) == 0 {
				a.out.Status(ui.Info, "No plugins in %s", cat.Root())
			} else {
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					m := e.Manifest
					seen := "-"
					if at, ok := indexed[m.ID]; ok {
						seen = humanize.Time(at)
					}
					rows = append(rows, []string{
						m.ID, m.Name, m.Version, m.Category,
						joinTypes(m.SupportedInputTypes), e.Dir, seen,
					})
				}
				a.out.Table([]string{"ID", "Name", "Version", "Category", "Inputs", "Directory", "Indexed"}, rows)
			}

			for _, p := range cat.Problems() {
				a.out.Status(ui.Warning, "%s: %v", p.Dir, p.Err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&sync, "sync", false, "Also write the discovered manifests to the index")
	return cmd
}

func indexTimes(ctx context.Context, s *store.Store) (map[string]time.Time, error) {
	list, err := s.Manifests().List(ctx)
	if err != nil {
		return nil, err
	}

	times := make(map[string]time.Time, len(list))
	for _, m := range list {
		times[m.Manifest.ID] = m.IndexedAt
	}
	return times, nil
}

func newWatchCommand(a *app) *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the manifest index in step with the plugin directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			cat := catalog.New(a.cfg.PluginDir, catalog.WithLogger(a.log))
			if err := cat.Discover(); err != nil {
				return err
			}

			sync := func(c *catalog.Catalog) {
				if err := c.Sync(ctx, s); err != nil {
					a.out.Status(ui.Error, "Sync failed: %v", err)
					return
				}
				a.out.Status(ui.Success, "Indexed %d plugins (%d problems)", len(c.List()), len(c.Problems()))
			}
			sync(cat)

			a.out.Muted("Watching %s, press Ctrl+C to stop", cat.Root())
			return cat.Watch(ctx, debounce, sync)
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", catalog.DefaultDebounce, "Quiet period before rescanning")
	return cmd
}
