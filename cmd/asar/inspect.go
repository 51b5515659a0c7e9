package main

import (
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/meigma/asar"
)

func newCatCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "cat <path>...",
		Short: "Print files, reading through archives",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fsys := g.newFS()
			defer fsys.Close()

			for _, name := range args {
				data, err := fsys.ReadFile(name)
				if err != nil {
					return err
				}
				if _, err := cmd.OutOrStdout().Write(data); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newStatCmd(g *globals) *cobra.Command {
	var follow bool
	cmd := &cobra.Command{
		Use:   "stat <path>...",
		Short: "Show file status, reading through archives",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fsys := g.newFS()
			defer fsys.Close()

			for _, name := range args {
				stat := fsys.Lstat
				if follow {
					stat = fsys.Stat
				}
				info, err := stat(name)
				if err != nil {
					return err
				}
				printStat(cmd, name, info)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "L", false, "follow symlinks")
	return cmd
}

func printStat(cmd *cobra.Command, name string, info fs.FileInfo) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "  File: %s\n", name)
	fmt.Fprintf(out, "  Size: %d\n", info.Size())
	fmt.Fprintf(out, "  Mode: %s\n", info.Mode())
	ei, ok := info.Sys().(*asar.EntryInfo)
	if !ok {
		return
	}
	fmt.Fprintf(out, "Archive: %s\n", ei.Archive)
	switch {
	case ei.Link != "":
		fmt.Fprintf(out, "  Link: %s\n", ei.Link)
	case ei.Unpacked:
		fmt.Fprintln(out, "Stored: unpacked")
	case !info.IsDir():
		fmt.Fprintf(out, "Offset: %d\n", ei.Offset)
	}
	if ei.Digest != "" {
		fmt.Fprintf(out, "SHA256: %s\n", ei.Digest)
	}
}

func newRealpathCmd(g *globals) *cobra.Command {
	var native bool
	cmd := &cobra.Command{
		Use:   "realpath <path>...",
		Short: "Print canonical paths, resolving links inside archives",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fsys := g.newFS()
			defer fsys.Close()

			resolve := fsys.Realpath
			if native {
				resolve = fsys.RealpathNative
			}
			for _, name := range args {
				p, err := resolve(name)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&native, "native", false, "resolve the path outside the archive with OS rules only")
	return cmd
}
