package main

import (
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/filemanager/internal/kernel"
	"github.com/shashiranjanraj/filemanager/pkg/filemanager"
	"github.com/shashiranjanraj/filemanager/pkg/storage"
)

// filemanager tree: print the folder tree of the configured adapter.
var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Print the folder tree of the configured file manager",
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := kernel.Boot(cmd.Context())
		if err != nil {
			return err
		}
		defer k.Close() //nolint:errcheck

		tree, err := k.Adapter.FolderTree(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", k.Config.Disk, k.Adapter.ModeName())
		printTree(cmd.OutOrStdout(), tree, 0)
		return nil
	},
}

func printTree(out io.Writer, nodes []filemanager.FolderNode, depth int) {
	for _, n := range nodes {
		fmt.Fprintf(out, "%s%s/ (%d %s)\n", strings.Repeat("  ", depth), n.Name, n.FileCount, plural(n.FileCount, "file"))
		printTree(out, n.Children, depth+1)
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

var signFlags struct {
	download bool
	filename string
}

// filemanager sign <disk> <path>: print a signed gateway link.
var signCmd = &cobra.Command{
	Use:   "sign <disk> <path>",
	Short: "Print a signed stream or download URL for a file on a disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := kernel.Boot(cmd.Context())
		if err != nil {
			return err
		}
		defer k.Close() //nolint:errcheck

		disk, key := args[0], storage.Clean(args[1])
		d, err := k.Disks.Disk(disk)
		if err != nil {
			return err
		}
		if !d.Exists(key) {
			return fmt.Errorf("sign: %s has no file %q", disk, key)
		}

		target := filemanager.StreamTarget{
			Disk:     disk,
			Path:     key,
			Mode:     filemanager.ModeStorage,
			Filename: signFlags.filename,
		}
		if target.Filename == "" {
			target.Filename = path.Base(key)
		}

		link := k.Links.StreamURL
		if signFlags.download {
			link = k.Links.DownloadURL
		}
		u, err := link(target)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), u)
		return nil
	},
}

func init() {
	signCmd.Flags().BoolVar(&signFlags.download, "download", false, "sign a download (attachment) link instead of a stream link")
	signCmd.Flags().StringVar(&signFlags.filename, "filename", "", "filename offered to the browser (defaults to the key's base name)")
}
