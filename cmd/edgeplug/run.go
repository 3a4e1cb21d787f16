package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gocv.io/x/gocv"

	"github.com/edgeaihub/edgeplug/internal/host"
	"github.com/edgeaihub/edgeplug/pkg/imageutil"
	"github.com/edgeaihub/edgeplug/internal/store"
	"github.com/edgeaihub/edgeplug/internal/ui"
	"github.com/edgeaihub/edgeplug/pkg/plugin"
	"github.com/edgeaihub/edgeplug/plugins/facedetector"
)

// ErrInvocationsFailed is returned by run when at least one input failed.
var ErrInvocationsFailed = errors.New("some invocations failed")

type runOptions struct {
	outDir      string
	metricsFile string
	noRecord    bool
	maxSize     int
}

func newRunCommand(a *app) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run <plugin-id> <image>...",
		Short: "Run a plugin over image files",
		Long: `Run a plugin over one or more image files in parallel. Each worker owns
its own plugin instance. Results are printed per file; with --out the
annotated images are written to that directory.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, args[0], args[1:], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.outDir, "out", "o", "", "Directory for annotated images")
	// Read through the config layer in setup.
	cmd.Flags().IntP("workers", "w", 0, "Parallel plugin instances (default from config)")
	cmd.Flags().StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file when done")
	cmd.Flags().BoolVar(&opts.noRecord, "no-record", false, "Do not record invocations in the database")
	cmd.Flags().IntVar(&opts.maxSize, "max-size", 0, "Shrink images so neither side exceeds this many pixels (0 keeps the original size)")
	return cmd
}

func (a *app) run(cmd *cobra.Command, id string, paths []string, opts runOptions) error {
	if _, err := a.registry.New(id); err != nil {
		return err
	}

	var s *store.Store
	if !opts.noRecord {
		var err error
		if s, err = a.openStore(); err != nil {
			return err
		}
		defer s.Close()
	}

	reg := prometheus.NewRegistry()
	metrics := host.NewMetrics(reg)

	factory := func() (*host.Runner, error) {
		p, err := a.registry.New(id)
		if err != nil {
			return nil, err
		}
		runnerOpts := []host.RunnerOption{
			host.WithLogger(a.log),
			host.WithMetrics(metrics),
		}
		if s != nil {
			runnerOpts = append(runnerOpts, host.WithStore(s))
		}
		return host.NewRunner(p, runnerOpts...), nil
	}

	inputs := make([]*plugin.Input, len(paths))
	for i, path := range paths {
		inputs[i] = imageInput(path, opts.maxSize)
		inputs[i].Metadata = map[string]any{"source": path}
	}
	defer closeInputs(inputs)

	if opts.outDir != "" {
		if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
			return errors.Wrapf(err, "create %s", opts.outDir)
		}
	}

	outputs, err := host.RunBatch(cmd.Context(), factory, inputs, a.cfg.Workers)
	if err != nil {
		return err
	}

	failed := 0
	for i, out := range outputs {
		if !out.Success {
			failed++
			a.out.Status(ui.Error, "%s: %s", paths[i], out.ErrorMessage)
			continue
		}
		a.out.Status(ui.Success, "%s: %s", paths[i], describe(out))

		if opts.outDir != "" {
			if err := writeAnnotated(opts.outDir, paths[i], out); err != nil {
				a.out.Status(ui.Warning, "%s: %v", paths[i], err)
			}
		}
	}

	a.out.Muted("%s processed, %s failed",
		humanize.Comma(int64(len(outputs))), humanize.Comma(int64(failed)))

	if opts.metricsFile != "" {
		if err := prometheus.WriteToTextfile(opts.metricsFile, reg); err != nil {
			return errors.Wrap(err, "write metrics")
		}
	}

	if failed > 0 {
		return errors.Wrapf(ErrInvocationsFailed, "%d of %d", failed, len(outputs))
	}
	return nil
}

// imageInput builds the input for one image file. With maxSize set, the file
// is decoded and shrunk here so every worker sees a bounded image; files that
// fail to decode are passed by path and fail inside the plugin.
func imageInput(path string, maxSize int) *plugin.Input {
	if maxSize <= 0 {
		return plugin.NewInput(plugin.DataTypeImage, path)
	}

	mat, err := imageutil.ToMat(path)
	if err != nil {
		return plugin.NewInput(plugin.DataTypeImage, path)
	}
	if mat.Cols() <= maxSize && mat.Rows() <= maxSize {
		return plugin.NewInput(plugin.DataTypeImage, mat)
	}

	small := imageutil.ResizeKeepRatio(mat, maxSize, maxSize)
	mat.Close()
	return plugin.NewInput(plugin.DataTypeImage, small)
}

func closeInputs(inputs []*plugin.Input) {
	for _, in := range inputs {
		if mat, ok := in.Data.(gocv.Mat); ok {
			mat.Close()
		}
	}
}

// describe summarizes a successful output in one line.
func describe(out plugin.Output) string {
	switch data := out.Data.(type) {
	case *facedetector.Result:
		return humanize.Plural(len(data.Faces), "face", "faces")
	case nil:
		return "ok"
	default:
		s := strings.TrimSpace(strings.ReplaceAll(fmtValue(data), "\n", " "))
		if len(s) > 60 {
			s = s[:57] + "..."
		}
		return s
	}
}

// writeAnnotated saves the image carried by out next to the other results,
// keeping the source file's base name.
func writeAnnotated(dir, src string, out plugin.Output) error {
	result, ok := out.Data.(*facedetector.Result)
	if !ok || result.Image == nil {
		return nil
	}

	mat, err := imageutil.ToMat(result.Image)
	if err != nil {
		return err
	}
	defer mat.Close()

	return imageutil.WriteFile(filepath.Join(dir, filepath.Base(src)), mat)
}
