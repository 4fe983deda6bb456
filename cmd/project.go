package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docbase/docbase/internal/app"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var (
	projectDescription  string
	projectChunkSize    int
	projectChunkOverlap int
)

var projectCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			size, overlap := projectChunkSize, projectChunkOverlap
			if size <= 0 {
				size = a.Config.ChunkSize
			}
			if overlap <= 0 {
				overlap = a.Config.ChunkOverlap
			}
			p, err := a.Store.CreateProject(ctx, args[0], projectDescription, size, overlap)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created project %s (%s)\n", p.Name, p.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "  chunk size: %d, overlap: %d\n", p.ChunkSize, p.ChunkOverlap)
			return nil
		})
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			projects, err := a.Store.ListProjects(ctx)
			if err != nil {
				return err
			}
			if len(projects) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no projects")
				return nil
			}
			for _, p := range projects {
				count, err := a.Store.CountCompletedDocuments(ctx, p.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  (%d completed documents)\n", p.ID, p.Name, count)
			}
			return nil
		})
	},
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete <project-id>",
	Short: "Delete a project, its documents, and its stored chunks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			projectID := args[0]
			removed, err := a.Vectors.DeleteNamespace(ctx, projectID)
			if err != nil {
				return err
			}
			if err := a.Store.DeleteProject(ctx, projectID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted project %s (%d chunks removed)\n", projectID, removed)
			return nil
		})
	},
}

func init() {
	projectCreateCmd.Flags().StringVar(&projectDescription, "description", "", "project description")
	projectCreateCmd.Flags().IntVar(&projectChunkSize, "chunk-size", 0, "chunk size in characters (0 = default)")
	projectCreateCmd.Flags().IntVar(&projectChunkOverlap, "chunk-overlap", 0, "chunk overlap in characters (0 = default)")

	projectCmd.AddCommand(projectCreateCmd, projectListCmd, projectDeleteCmd)
	rootCmd.AddCommand(projectCmd)
}
