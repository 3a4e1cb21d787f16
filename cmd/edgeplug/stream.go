package main

import (
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/edgeaihub/edgeplug/internal/capture"
	"github.com/edgeaihub/edgeplug/internal/host"
	"github.com/edgeaihub/edgeplug/internal/ui"
)

func newStreamCommand(a *app) *cobra.Command {
	var (
		cameraID int
		dir      string
		loop     bool
		motion   float64
	)

	cmd := &cobra.Command{
		Use:   "stream <plugin-id>",
		Short: "Run a plugin on live camera frames",
		Long: `Run a plugin on frames from a camera, or from a directory of images with
--dir. With --motion above zero only frames with movement are processed.
Press Ctrl+C to stop.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			p, err := a.registry.New(args[0])
			if err != nil {
				return err
			}

			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			runner := host.NewRunner(p, host.WithLogger(a.log), host.WithStore(s))
			defer runner.Release()

			if !runner.Initialize() {
				return errors.Newf("plugin %s failed to initialize", args[0])
			}

			var cam capture.Camera
			if dir != "" {
				cam = capture.NewDirCamera(dir, loop)
			} else {
				cam = capture.NewCamera(cameraID)
			}

			opts := []host.StreamOption{host.WithStreamLogger(a.log)}
			if motion > 0 {
				opts = append(opts, host.WithMotionGate(motion))
			}

			return host.NewStream(cam, runner, opts...).Run(ctx, func(r host.StreamResult) {
				if !r.Output.Success {
					a.out.Status(ui.Error, "frame %d: %s", r.Seq, r.Output.ErrorMessage)
					return
				}
				a.out.Status(ui.Info, "frame %d: %s", r.Seq, describe(r.Output))
			})
		},
	}

	cmd.Flags().IntVar(&cameraID, "camera", 0, "Camera device id")
	cmd.Flags().StringVar(&dir, "dir", "", "Play back image files from this directory instead of a camera")
	cmd.Flags().BoolVar(&loop, "loop", false, "Loop the --dir frames")
	cmd.Flags().Float64Var(&motion, "motion", 0, "Motion threshold in percent of changed pixels (0 disables)")
	return cmd
}
