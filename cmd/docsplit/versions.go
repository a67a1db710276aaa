package main

import (
	"github.com/dgallion1/docsplit/internal/objectstore"
	"github.com/dgallion1/docsplit/internal/versions"
	"github.com/spf13/cobra"
)

func newVersionsCmd() *cobra.Command {
	var (
		dir    string
		prefix string
		format string
	)
	cmd := &cobra.Command{
		Use:   "versions",
		Short: "Print the version index built from a directory's keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			objs, err := objectstore.NewDirSource(dir, prefix).List(cmd.Context())
			if err != nil {
				return err
			}
			return writeFormatted(cmd.OutOrStdout(), format, versions.Build(objs).Snapshot())
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory laid out like a bucket")
	cmd.Flags().StringVar(&prefix, "prefix", "production/", "only keys under this prefix")
	cmd.Flags().StringVar(&format, "format", "json", "output format: json or yaml")
	cmd.MarkFlagRequired("dir")
	return cmd
}
