package main

import (
	"github.com/spf13/cobra"

	"github.com/meigma/asar"
)

func newPackCmd(g *globals) *cobra.Command {
	var (
		unpack    []string
		unpackDir []string
	)
	cmd := &cobra.Command{
		Use:   "pack <dir> <output>",
		Short: "Pack a directory into an archive",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("unpack") {
				unpack = g.cfg.Pack.Unpack
			}
			if !cmd.Flags().Changed("unpack-dir") {
				unpackDir = g.cfg.Pack.UnpackDir
			}
			return asar.Create(cmd.Context(), args[0], args[1],
				asar.CreateWithUnpack(unpack...),
				asar.CreateWithUnpackDir(unpackDir...),
				asar.CreateWithLogger(g.logger),
				asar.CreateWithProgress(func(ev asar.ProgressEvent) {
					if ev.Path != "" {
						g.logger.Debug("pack", "stage", ev.Stage.String(), "path", ev.Path)
					}
				}),
			)
		},
	}
	cmd.Flags().StringArrayVar(&unpack, "unpack", nil, "glob of files to keep outside the archive (repeatable)")
	cmd.Flags().StringArrayVar(&unpackDir, "unpack-dir", nil, "glob of directories to keep outside the archive (repeatable)")
	return cmd
}
