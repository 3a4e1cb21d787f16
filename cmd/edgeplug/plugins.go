package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/edgeaihub/edgeplug/pkg/plugin"
)

func newPluginsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List the built-in plugins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var rows [][]string
			for _, id := range a.registry.IDs() {
				p, err := a.registry.New(id)
				if err != nil {
					return err
				}
				d := p.Descriptor()
				rows = append(rows, []string{
					d.ID, d.Name, d.Version, d.Category,
					joinTypes(d.SupportedInputTypes), joinTypes(d.SupportedOutputTypes),
				})
			}

			a.out.Table([]string{"ID", "Name", "Version", "Category", "Inputs", "Outputs"}, rows)
			return nil
		},
	}
}

func joinTypes(types []plugin.DataType) string {
	tags := make([]string, len(types))
	for i, t := range types {
		tags[i] = t.String()
	}
	return strings.Join(tags, ", ")
}
