package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "docsplit",
		Short: "Split HTML documentation into per-section content records",
		Long: `docsplit turns rendered HTML documentation stored in S3 (or a local
directory laid out like a bucket) into one record per top-level section,
plus a sitemap record per page and an image record per image asset.`,
		SilenceUsage: true,
	}
	root.AddCommand(newRunCmd(), newClassifyCmd(), newVersionsCmd())
	return root
}

// writeFormatted prints v as indented JSON or YAML.
func writeFormatted(w io.Writer, format string, v any) error {
	switch format {
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown format %q (want json or yaml)", format)
	}
}
