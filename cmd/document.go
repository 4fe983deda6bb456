package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docbase/docbase/internal/app"
	"github.com/docbase/docbase/internal/store"
)

var docCmd = &cobra.Command{
	Use:   "doc",
	Short: "Manage documents",
}

var docListCmd = &cobra.Command{
	Use:   "list <project-id>",
	Short: "List a project's documents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			docs, err := a.Store.ListDocuments(ctx, args[0])
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no documents")
				return nil
			}
			for _, d := range docs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-10s  %s", d.ID, d.Status, d.Filename)
				if d.Status == store.StatusCompleted {
					fmt.Fprintf(cmd.OutOrStdout(), "  (%d chunks, %d pages, %d chars)",
						d.ChunkCount, d.PageCount, d.CharacterCount)
				} else if d.StatusMessage != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s", d.StatusMessage)
				}
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return nil
		})
	},
}

var docDeleteCmd = &cobra.Command{
	Use:   "delete <document-id>",
	Short: "Delete a document and its stored chunks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			doc, err := a.Store.GetDocument(ctx, args[0])
			if err != nil {
				return err
			}
			removed, err := a.Vectors.DeleteByDocument(ctx, doc.ProjectID, doc.ID)
			if err != nil {
				return err
			}
			if err := a.Store.DeleteDocument(ctx, doc.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted document %s (%d chunks removed)\n", doc.ID, removed)
			return nil
		})
	},
}

func init() {
	docCmd.AddCommand(docListCmd, docDeleteCmd)
	rootCmd.AddCommand(docCmd)
}
