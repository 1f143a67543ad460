package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"playground-go/internal/app"
	"playground-go/internal/playground"
)

var fileCmd = &cobra.Command{
	Use:   "file",
	Short: "Edit the files of a project",
}

var fileAddCmd = &cobra.Command{
	Use:   "add PROJECT PATH",
	Short: "Create a file",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
		_, sess, err := a.Open(ctx, args[0])
		if err != nil {
			return err
		}
		content, err := readContent(cmd, false)
		if err != nil {
			return err
		}
		parent, filename, extension := playground.SplitFilePath(args[1])
		p, err := sess.AddFile(ctx, parent, filename, extension, content)
		if err != nil {
			return err
		}
		fmt.Printf("Added %s\n", p)
		return nil
	}),
}

var fileMkdirCmd = &cobra.Command{
	Use:   "mkdir PROJECT PATH",
	Short: "Create a folder",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
		_, sess, err := a.Open(ctx, args[0])
		if err != nil {
			return err
		}
		path := strings.Trim(args[1], "/")
		p, err := sess.AddFolder(ctx, playground.ParentPath(path), playground.BaseName(path))
		if err != nil {
			return err
		}
		fmt.Printf("Added %s/\n", p)
		return nil
	}),
}

var fileRmCmd = &cobra.Command{
	Use:   "rm PROJECT PATH",
	Short: "Delete a file or folder",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
		_, sess, err := a.Open(ctx, args[0])
		if err != nil {
			return err
		}
		if playground.Find(sess.Tree(), args[1]) == nil {
			return fmt.Errorf("%w: %s", playground.ErrNotFound, args[1])
		}
		if err := sess.Delete(ctx, args[1]); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", args[1])
		return nil
	}),
}

var fileMvCmd = &cobra.Command{
	Use:   "mv PROJECT PATH NEWNAME",
	Short: "Rename a file or folder in place",
	Long: "Rename a file or folder without moving it. For files, a NEWNAME " +
		"without a dot keeps the current extension.",
	Args: cobra.ExactArgs(3),
	RunE: withApp(func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
		_, sess, err := a.Open(ctx, args[0])
		if err != nil {
			return err
		}
		n := playground.Find(sess.Tree(), args[1])
		if n == nil || args[1] == "" {
			return fmt.Errorf("%w: %s", playground.ErrNotFound, args[1])
		}

		var p string
		switch n.Kind {
		case playground.KindFolder:
			p, err = sess.RenameFolder(ctx, args[1], args[2])
		case playground.KindFile:
			var ext *string
			filename := args[2]
			if strings.Contains(args[2], ".") {
				var e string
				filename, e = playground.SplitName(args[2])
				ext = &e
			}
			p, err = sess.RenameFile(ctx, args[1], filename, ext)
		}
		if err != nil {
			return err
		}
		fmt.Printf("Renamed %s to %s\n", args[1], p)
		return nil
	}),
}

var fileWriteCmd = &cobra.Command{
	Use:   "write PROJECT PATH",
	Short: "Replace a file's content, creating it and its folders if needed",
	Long: "Replace a file's content from --content, --from FILE or standard input. " +
		"Missing parent folders are created.",
	Args: cobra.ExactArgs(2),
	RunE: withApp(func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
		_, sess, err := a.Open(ctx, args[0])
		if err != nil {
			return err
		}
		content, err := readContent(cmd, true)
		if err != nil {
			return err
		}
		if err := sess.SyncFile(ctx, args[1], content); err != nil {
			return err
		}
		fmt.Printf("Wrote %s (%d bytes)\n", args[1], len(content))
		return nil
	}),
}

var fileCatCmd = &cobra.Command{
	Use:   "cat PROJECT PATH",
	Short: "Print a file's content",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
		_, sess, err := a.Open(ctx, args[0])
		if err != nil {
			return err
		}
		n := playground.Find(sess.Tree(), args[1])
		if n == nil || args[1] == "" {
			return fmt.Errorf("%w: %s", playground.ErrNotFound, args[1])
		}
		if n.Kind != playground.KindFile {
			return fmt.Errorf("%w: %s", playground.ErrNotFile, args[1])
		}
		fmt.Print(n.Content)
		return nil
	}),
}

// readContent returns the content given by --content or --from. With
// stdinDefault and neither flag set it reads standard input.
func readContent(cmd *cobra.Command, stdinDefault bool) (string, error) {
	if cmd.Flags().Changed("content") {
		s, _ := cmd.Flags().GetString("content")
		return s, nil
	}
	from, _ := cmd.Flags().GetString("from")
	switch {
	case from == "-" || (from == "" && stdinDefault):
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	case from != "":
		data, err := os.ReadFile(from)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", from, err)
		}
		return string(data), nil
	default:
		return "", nil
	}
}

func init() {
	for _, c := range []*cobra.Command{fileAddCmd, fileWriteCmd} {
		c.Flags().StringP("content", "c", "", "File content")
		c.Flags().StringP("from", "f", "", "Read content from a local file ('-' for stdin)")
	}

	fileCmd.AddCommand(fileAddCmd)
	fileCmd.AddCommand(fileMkdirCmd)
	fileCmd.AddCommand(fileRmCmd)
	fileCmd.AddCommand(fileMvCmd)
	fileCmd.AddCommand(fileWriteCmd)
	fileCmd.AddCommand(fileCatCmd)
}
