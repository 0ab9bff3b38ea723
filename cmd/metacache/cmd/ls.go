package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/objectfs/metacache/internal/filesystem"
	"github.com/objectfs/metacache/pkg/utils"
)

func init() {
	lsCmd := &cobra.Command{
		Use:   "ls [PATH]",
		Short: "List a directory",
		Long: `List the entries of a directory. Attributes come from the metadata
cache when listing.prefetch_attributes is enabled; otherwise only names
and directory flags from the listing are shown.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runLs,
	}
	lsCmd.Flags().BoolP("recursive", "R", false, "list subdirectories recursively")
	lsCmd.Flags().IntP("repeat", "n", 1, "list this many times, to observe cache hits")
	rootCmd.AddCommand(lsCmd)
}

func runLs(cmd *cobra.Command, args []string) error {
	dir := "/"
	if len(args) == 1 {
		dir = args[0]
	}
	recursive, _ := cmd.Flags().GetBool("recursive")
	repeat, _ := cmd.Flags().GetInt("repeat")
	if repeat < 1 {
		repeat = 1
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		for i := 0; i < repeat; i++ {
			// Only the first pass is printed; later passes exercise the cache.
			out := cmd.OutOrStdout()
			if i > 0 {
				out = io.Discard
			}
			if err := listDir(ctx, a.meta, out, dir, recursive); err != nil {
				return err
			}
		}
		return nil
	})
}

func listDir(ctx context.Context, meta filesystem.MetadataService, out io.Writer, dir string, recursive bool) error {
	entries, err := meta.ReadDir(ctx, dir)
	if err != nil {
		return err
	}

	if recursive {
		fmt.Fprintf(out, "%s:\n", dir)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, e := range entries {
		name := e.Name
		if e.IsDir {
			name += "/"
		}
		if !e.HasAttr {
			fmt.Fprintf(tw, "%s\t\t\t%s\n", e.Type, name)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Mode, utils.FormatBytes(e.Size), e.ModTime.Format("2006-01-02 15:04"), name)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if !recursive {
		return nil
	}
	for _, e := range entries {
		if !e.IsDir {
			continue
		}
		fmt.Fprintln(out)
		if err := listDir(ctx, meta, out, joinPath(dir, e.Name), true); err != nil {
			return err
		}
	}
	return nil
}

func joinPath(dir, name string) string {
	if dir == "" || dir == "/" {
		return "/" + name
	}
	return utils.TrimTrailingSlash(dir) + "/" + name
}
