package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meigma/asar"
	"github.com/meigma/asar/fuse"
)

func newMountCmd(g *globals) *cobra.Command {
	var allowOther bool
	cmd := &cobra.Command{
		Use:   "mount <archive> <mountpoint>",
		Short: "Mount an archive read-only with FUSE until interrupted",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := asar.OpenArchive(args[0])
			if err != nil {
				return err
			}
			defer a.Close()

			server, err := fuse.Mount(fuse.Options{
				Mountpoint: args[1],
				Archive:    a,
				AllowOther: allowOther,
				Logger:     g.logger,
			})
			if err != nil {
				return err
			}

			<-cmd.Context().Done()
			g.logger.Info("unmounting", "mountpoint", args[1])
			if err := server.Unmount(); err != nil {
				return fmt.Errorf("unmount %s: %w", args[1], err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&allowOther, "allow-other", false, "allow other users to access the mount")
	return cmd
}
