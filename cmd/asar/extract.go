package main

import (
	"os"
	"path"

	"github.com/spf13/cobra"

	"github.com/meigma/asar"
)

func newExtractCmd(g *globals) *cobra.Command {
	var (
		overwrite bool
		workers   int
	)
	cmd := &cobra.Command{
		Use:     "extract <archive> <dest>",
		Aliases: []string{"e"},
		Short:   "Extract a whole archive into a directory",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := asar.OpenArchive(args[0])
			if err != nil {
				return err
			}
			defer a.Close()

			if !cmd.Flags().Changed("workers") {
				workers = g.cfg.Workers()
			}
			return a.Extract(cmd.Context(), args[1],
				asar.ExtractWithOverwrite(overwrite),
				asar.ExtractWithWorkers(workers),
				asar.ExtractWithLogger(g.logger),
			)
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace files that already exist")
	cmd.Flags().IntVar(&workers, "workers", 0, "files written concurrently (0 = GOMAXPROCS)")
	return cmd
}

func newExtractFileCmd(_ *globals) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:     "extract-file <archive> <path>",
		Aliases: []string{"ef"},
		Short:   "Extract one file from an archive",
		Long: `Extract one file from an archive. The file is written to the current
directory under its base name unless --output is given.`,
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			a, err := asar.OpenArchive(args[0])
			if err != nil {
				return err
			}
			defer a.Close()

			inner := args[1]
			info, err := a.Stat(inner)
			if err != nil {
				return err
			}
			data, err := a.ReadFile(inner)
			if err != nil {
				return err
			}
			dest := output
			if dest == "" {
				dest = path.Base(inner)
			}
			return os.WriteFile(dest, data, info.Mode().Perm()|0o200)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "destination file")
	return cmd
}
