package main

import (
	"github.com/dgallion1/docsplit/internal/keypath"
	"github.com/spf13/cobra"
)

type classified struct {
	Key      string           `json:"key" yaml:"key"`
	Document bool             `json:"document" yaml:"document"`
	Info     keypath.PathInfo `json:"info" yaml:"info"`
}

func newClassifyCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "classify <key>...",
		Short: "Print the logical path and version info derived from object keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := make([]classified, 0, len(args))
			for _, key := range args {
				out = append(out, classified{
					Key:      key,
					Document: keypath.IsDocumentKey(key),
					Info:     keypath.Classify(key),
				})
			}
			return writeFormatted(cmd.OutOrStdout(), format, out)
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "output format: json or yaml")
	return cmd
}
