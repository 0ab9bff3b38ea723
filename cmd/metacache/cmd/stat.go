package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/objectfs/metacache/internal/filesystem"
	"github.com/objectfs/metacache/pkg/utils"
)

func init() {
	statCmd := &cobra.Command{
		Use:   "stat PATH...",
		Short: "Show the attributes of one or more paths",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runStat,
	}
	rootCmd.AddCommand(statCmd)
}

func runStat(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		out := cmd.OutOrStdout()
		for _, p := range args {
			entry, err := a.meta.GetAttr(ctx, p)
			if err != nil {
				return err
			}
			attr := entry.Attr
			fmt.Fprintf(out, "  File: %s\n", p)
			fmt.Fprintf(out, "  Size: %d (%s)\tBlocks: %d\n", attr.Size, utils.FormatBytes(attr.Size), attr.Blocks)
			fmt.Fprintf(out, "  Mode: %s (%#o)\tUid: %d\tGid: %d\n", filesystem.FileMode(attr.Mode), attr.Mode, attr.UID, attr.GID)
			fmt.Fprintf(out, "Modify: %s\n", attr.Mtime.Format(time.RFC3339))
			fmt.Fprintf(out, "Change: %s\n", attr.Ctime.Format(time.RFC3339))
			if etag := entry.Headers.Get("etag"); etag != "" {
				fmt.Fprintf(out, "  ETag: %s\n", etag)
			}
		}
		return nil
	})
}
