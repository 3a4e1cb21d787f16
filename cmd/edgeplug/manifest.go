package main

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/edgeaihub/edgeplug/internal/schema"
	"github.com/edgeaihub/edgeplug/internal/ui"
	"github.com/edgeaihub/edgeplug/pkg/plugin"
)

func newManifestCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Write, show and describe plugin manifests",
	}

	cmd.AddCommand(
		newManifestWriteCommand(a),
		newManifestShowCommand(a),
		newManifestSchemaCommand(a),
	)
	return cmd
}

func newManifestWriteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "write <plugin-id> <dir>",
		Short: "Write a built-in plugin's manifest.json into dir",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.registry.New(args[0])
			if err != nil {
				return err
			}

			dir := args[1]
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return errors.Wrapf(err, "create %s", dir)
			}
			if err := plugin.SaveManifest(dir, plugin.ManifestOf(p.Descriptor())); err != nil {
				return err
			}

			a.out.Status(ui.Success, "Wrote manifest for %s to %s", args[0], dir)
			return nil
		},
	}
}

func newManifestShowCommand(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show <dir>",
		Short: "Print the manifest stored in a plugin directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := plugin.LoadManifest(args[0])
			if err != nil {
				return err
			}
			if m == nil {
				a.out.Status(ui.Warning, "No usable manifest in %s", args[0])
				return nil
			}

			var data []byte
			switch format {
			case "json":
				data, err = m.Encode()
			case "yaml":
				data, err = yaml.Marshal(m)
			default:
				return errors.Newf("unknown format %q (want json or yaml)", format)
			}
			if err != nil {
				return err
			}

			_, err = a.out.Writer().Write(data)
			return err
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "Output format: json or yaml")
	return cmd
}

func newManifestSchemaCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of manifest.json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := schema.GenerateJSON()
			if err != nil {
				return err
			}
			_, err = a.out.Writer().Write(data)
			return err
		},
	}
}
