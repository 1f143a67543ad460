package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"playground-go/internal/app"
	"playground-go/internal/archive"
)

// passphraseEnv supplies the archive passphrase when stdin is not a terminal.
const passphraseEnv = "PLAYGROUND_PASSPHRASE"

var runCmd = &cobra.Command{
	Use:   "run PROJECT",
	Short: "Start a project's dev server in a sandbox",
	Long: "Mount the project into a sandbox, install dependencies and start its " +
		"server. Runs until interrupted. With --watch, edits made in the sandbox " +
		"folder are saved back into the project.",
	Args: cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
		watch, _ := cmd.Flags().GetBool("watch")
		return a.RunProject(ctx, args[0], os.Stdout, watch)
	}),
}

var exportCmd = &cobra.Command{
	Use:   "export PROJECT [NAME]",
	Short: "Export a project to the archive",
	Args:  cobra.RangeArgs(1, 2),
	RunE: withApp(func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
		encrypt, _ := cmd.Flags().GetBool("encrypt")
		name := ""
		if len(args) > 1 {
			name = args[1]
		}

		passphrase := ""
		if encrypt {
			var err error
			passphrase, err = readPassphrase(true)
			if err != nil {
				return err
			}
			if name != "" && !strings.HasSuffix(name, archive.EncryptedExt) {
				name += archive.EncryptedExt
			}
		}

		stored, err := a.ExportProject(ctx, args[0], name, passphrase)
		if err != nil {
			return err
		}
		fmt.Printf("Exported to %s\n", stored)
		return nil
	}),
}

var importCmd = &cobra.Command{
	Use:   "import NAME",
	Short: "Create a project from an archive",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")

		passphrase := ""
		if strings.HasSuffix(args[0], archive.EncryptedExt) {
			var err error
			passphrase, err = readPassphrase(false)
			if err != nil {
				return err
			}
		}

		p, err := a.ImportProject(ctx, args[0], passphrase, title)
		if errors.Is(err, archive.ErrPassphraseRequired) {
			return fmt.Errorf("%s is encrypted: %w", args[0], err)
		}
		if err != nil {
			return err
		}
		fmt.Printf("Created project %s (%s)\n", p.Title, p.ID)
		return nil
	}),
}

var archivesCmd = &cobra.Command{
	Use:   "archives",
	Short: "List exported archives",
	RunE: withApp(func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
		names, err := a.ListArchives(ctx)
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Println("No archives.")
			return nil
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	}),
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	RunE: withApp(func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			a.Config().Server.Addr = addr
		}
		srv, err := a.NewServer()
		if err != nil {
			return err
		}
		fmt.Printf("Listening on %s\n", a.Config().Server.Addr)
		return srv.ListenAndServe(ctx)
	}),
}

var tokenCmd = &cobra.Command{
	Use:   "token [USER_ID]",
	Short: "Issue an API token",
	Args:  cobra.MaximumNArgs(1),
	RunE: withApp(func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
		ttl, _ := cmd.Flags().GetDuration("ttl")
		userID := ""
		if len(args) > 0 {
			userID = args[0]
		}
		token, err := a.NewToken(userID, ttl)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	}),
}

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database maintenance",
}

var dbBackupCmd = &cobra.Command{
	Use:   "backup DEST",
	Short: "Copy the SQLite database to DEST",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
		if err := a.BackupDatabase(args[0]); err != nil {
			return err
		}
		fmt.Printf("Database copied to %s\n", args[0])
		return nil
	}),
}

// readPassphrase prompts on the terminal, or reads PLAYGROUND_PASSPHRASE
// when stdin is not one.
func readPassphrase(confirm bool) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		if p := os.Getenv(passphraseEnv); p != "" {
			return p, nil
		}
		return "", fmt.Errorf("stdin is not a terminal; set %s", passphraseEnv)
	}

	fmt.Fprint(os.Stderr, "Passphrase: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	if len(first) == 0 {
		return "", errors.New("empty passphrase")
	}
	if confirm {
		fmt.Fprint(os.Stderr, "Repeat passphrase: ")
		second, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		if string(first) != string(second) {
			return "", errors.New("passphrases do not match")
		}
	}
	return string(first), nil
}

func init() {
	runCmd.Flags().BoolP("watch", "w", false, "Save edits made in the sandbox folder back into the project")
	exportCmd.Flags().BoolP("encrypt", "e", false, "Encrypt the archive with a passphrase")
	importCmd.Flags().String("title", "", "Title for the new project (default: the archived title)")
	serveCmd.Flags().String("addr", "", "Listen address (default: server.addr from config)")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	dbCmd.AddCommand(dbBackupCmd)
}
