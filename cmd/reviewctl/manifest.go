package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newManifestCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Inspect slide manifests",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <image-id>",
		Short: "Print slide geometry and the cell grid at every magnification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := a.manifests()
			if err != nil {
				return err
			}
			m, err := provider.Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("load manifest %s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "slide:     %s\n", args[0])
			fmt.Fprintf(out, "level 0:   %d x %d px\n", m.Level0Width, m.Level0Height)
			fmt.Fprintf(out, "patch:     %d px, tile %d px, overlap %d\n", m.PatchPx, m.TileSize, m.Overlap)
			fmt.Fprintf(out, "alignment: %t\n\n", m.AlignmentOK)

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "MAG\tDZI LEVEL\tCELL PX\tCOLS\tROWS")
			for _, mag := range m.Magnifications() {
				level, _ := m.LevelFor(mag)
				cols, rows := m.Grid(mag).Dimensions()
				fmt.Fprintf(tw, "%sx\t%d\t%s\t%d\t%d\n",
					strconv.FormatFloat(mag, 'f', -1, 64), level,
					strconv.FormatFloat(m.CellSize(mag), 'f', -1, 64), cols, rows)
			}
			return tw.Flush()
		},
	})

	return cmd
}
