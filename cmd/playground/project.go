package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"playground-go/internal/app"
	"playground-go/internal/playground"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create TITLE",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
		template, _ := cmd.Flags().GetString("template")
		description, _ := cmd.Flags().GetString("description")

		p, err := a.CreateProject(ctx, args[0], template, description)
		if err != nil {
			return err
		}
		fmt.Printf("Created project %s (%s)\n", p.Title, p.ID)
		return nil
	}),
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	RunE: withApp(func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
		projects, err := a.ListProjects(ctx)
		if err != nil {
			return err
		}
		if len(projects) == 0 {
			fmt.Println("No projects.")
			return nil
		}
		for _, p := range projects {
			star := " "
			if p.Starred {
				star = "*"
			}
			fmt.Printf("%s %s  %-10s  %s  %s\n",
				star,
				p.ID,
				templateLabel(p.Template),
				p.UpdatedAt.Local().Format("2006-01-02 15:04"),
				p.Title,
			)
		}
		return nil
	}),
}

var projectShowCmd = &cobra.Command{
	Use:   "show PROJECT",
	Short: "Show project details",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
		p, sess, err := a.Open(ctx, args[0])
		if err != nil {
			return err
		}

		var files, folders, bytes int
		playground.Walk(sess.Tree(), func(_ string, n *playground.Node) {
			switch n.Kind {
			case playground.KindFolder:
				folders++
			case playground.KindFile:
				files++
				bytes += len(n.Content)
			}
		})

		fmt.Printf("ID:          %s\n", p.ID)
		fmt.Printf("Title:       %s\n", p.Title)
		fmt.Printf("Description: %s\n", p.Description)
		fmt.Printf("Template:    %s\n", templateLabel(p.Template))
		fmt.Printf("Starred:     %v\n", p.Starred)
		fmt.Printf("Created:     %s\n", p.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		fmt.Printf("Updated:     %s\n", p.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
		fmt.Printf("Contents:    %d file(s), %d folder(s), %d byte(s)\n", files, folders, bytes)
		return nil
	}),
}

var projectRenameCmd = &cobra.Command{
	Use:   "rename PROJECT TITLE",
	Short: "Change a project's title",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
		p, err := a.ResolveProject(ctx, args[0])
		if err != nil {
			return err
		}
		description := p.Description
		if cmd.Flags().Changed("description") {
			description, _ = cmd.Flags().GetString("description")
		}
		updated, err := a.Service().UpdateProject(ctx, p.ID, args[1], description)
		if err != nil {
			return err
		}
		fmt.Printf("Renamed %s to %s\n", p.Title, updated.Title)
		return nil
	}),
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete PROJECT",
	Short: "Delete a project and all of its files",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
		if err := a.DeleteProject(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	}),
}

var projectDuplicateCmd = &cobra.Command{
	Use:   "duplicate PROJECT",
	Short: "Copy a project",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
		p, err := a.ResolveProject(ctx, args[0])
		if err != nil {
			return err
		}
		dup, err := a.Service().DuplicateProject(ctx, p.ID)
		if err != nil {
			return err
		}
		fmt.Printf("Created project %s (%s)\n", dup.Title, dup.ID)
		return nil
	}),
}

var projectStarCmd = &cobra.Command{
	Use:   "star PROJECT",
	Short: "Star or unstar a project",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
		unset, _ := cmd.Flags().GetBool("unset")
		return a.SetStar(ctx, args[0], !unset)
	}),
}

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List project templates",
	RunE: withApp(func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
		for _, name := range a.Templates().Names() {
			fmt.Println(name)
		}
		return nil
	}),
}

var treeCmd = &cobra.Command{
	Use:   "tree PROJECT",
	Short: "Print a project's file tree",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
		p, sess, err := a.Open(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Println(p.Title)
		printTree(sess.Tree(), "")
		return nil
	}),
}

// printTree prints folder items with box-drawing guides.
func printTree(folder *playground.Node, indent string) {
	for i, n := range folder.Items {
		branch, next := "├── ", "│   "
		if i == len(folder.Items)-1 {
			branch, next = "└── ", "    "
		}
		switch n.Kind {
		case playground.KindFolder:
			fmt.Printf("%s%s%s/\n", indent, branch, n.Name())
			printTree(n, indent+next)
		case playground.KindFile:
			fmt.Printf("%s%s%s\n", indent, branch, n.Name())
		}
	}
}

func templateLabel(t string) string {
	if t == "" {
		return "default"
	}
	return strings.ToUpper(t)
}

func init() {
	projectCmd.AddCommand(projectCreateCmd)
	projectCreateCmd.Flags().StringP("template", "t", "", "Starter template (see 'playground templates')")
	projectCreateCmd.Flags().StringP("description", "d", "", "Project description")
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectShowCmd)
	projectCmd.AddCommand(projectRenameCmd)
	projectRenameCmd.Flags().StringP("description", "d", "", "New description")
	projectCmd.AddCommand(projectDeleteCmd)
	projectCmd.AddCommand(projectDuplicateCmd)
	projectCmd.AddCommand(projectStarCmd)
	projectStarCmd.Flags().Bool("unset", false, "Remove the star")
}
