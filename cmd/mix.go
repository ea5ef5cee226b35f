package cmd

import (
	"context"
	"fmt"

	"Rippers/core/app"
	"Rippers/core/merge"

	"github.com/spf13/cobra"
)

var mixVolume float64

var mixCmd = &cobra.Command{
	Use:   "mix <voice> <bed>",
	Short: "Lay a looped background track under a voice track",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, svc *app.Services) error {
			var out string
			err := spin("Mixing", func() error {
				var err error
				out, err = svc.Compositor.MixBackground(ctx, args[0], args[1], merge.MixOptions{BedVolume: mixVolume})
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Mixed into %s\n", out)
			return nil
		})
	},
}

func init() {
	mixCmd.Flags().Float64Var(&mixVolume, "volume", merge.DefaultBedVolume, "linear gain of the background track")
	rootCmd.AddCommand(mixCmd)
}
