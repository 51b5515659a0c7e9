package main

import (
	"fmt"
	"io/fs"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/meigma/asar"
)

func newListCmd(g *globals) *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:     "list <archive>",
		Aliases: []string{"ls"},
		Short:   "List the entries of an archive in header order",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := asar.OpenArchive(args[0])
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			return a.Walk(func(inner string, info fs.FileInfo) error {
				line := formatEntry(inner, info)
				if long {
					line = fmt.Sprintf("%s %10d  %s", info.Mode(), info.Size(), line)
				}
				_, err := fmt.Fprintln(out, line)
				return err
			})
		},
	}
	cmd.Flags().BoolVarP(&long, "long", "l", false, "show mode and size")
	return cmd
}

var (
	dirColor      = color.New(color.FgBlue, color.Bold).SprintFunc()
	linkColor     = color.New(color.FgCyan).SprintFunc()
	unpackedColor = color.New(color.FgYellow).SprintFunc()
	execColor     = color.New(color.FgGreen).SprintFunc()
)

// formatEntry renders one listing line: the entry path with a leading
// slash, colored by kind.
func formatEntry(inner string, info fs.FileInfo) string {
	name := "/" + inner
	ei, _ := info.Sys().(*asar.EntryInfo)
	switch {
	case info.IsDir():
		return dirColor(name)
	case ei != nil && ei.Link != "":
		return linkColor(name) + " -> " + ei.Link
	case ei != nil && ei.Unpacked:
		return unpackedColor(name) + " (unpacked)"
	case ei != nil && ei.Executable:
		return execColor(name)
	default:
		return name
	}
}
