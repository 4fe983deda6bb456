package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/docbase/docbase/internal/app"
	"github.com/docbase/docbase/internal/ingest"
	"github.com/docbase/docbase/internal/loader"
)

var ingestAsync bool

var ingestCmd = &cobra.Command{
	Use:   "ingest <project-id> <file>...",
	Short: "Ingest document files into a project",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			projectID := args[0]
			if _, err := a.Store.GetProject(ctx, projectID); err != nil {
				return err
			}

			for _, path := range args[1:] {
				if !loader.Supported(path) {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: unsupported file type, skipped\n", path)
					continue
				}
				stored, err := copyToUploads(a.Config.UploadDir, projectID, path)
				if err != nil {
					return err
				}
				doc, err := a.Store.CreateDocument(ctx, projectID, filepath.Base(path), stored)
				if err != nil {
					return err
				}

				if ingestAsync {
					if err := a.Queue.Submit(doc.ID); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s: queued as document %s\n", path, doc.ID)
					continue
				}

				result, err := a.Ingest.Ingest(ctx, doc.ID)
				if err != nil {
					return err
				}
				printIngestResult(cmd, path, doc.ID, result)
			}
			return nil
		})
	},
}

var reingestForce bool

var reingestCmd = &cobra.Command{
	Use:   "reingest <document-id>",
	Short: "Re-ingest a document, replacing its stored chunks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			result, err := a.Ingest.Reingest(ctx, args[0], reingestForce)
			if err != nil {
				return err
			}
			printIngestResult(cmd, args[0], args[0], result)
			return nil
		})
	},
}

func printIngestResult(cmd *cobra.Command, source, docID string, result ingest.Result) {
	if result.OK {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ingested as document %s (%d chunks)\n",
			source, docID, result.ChunkCount)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: failed (%s): %s\n", source, result.Category, result.Message)
}

// copyToUploads copies the source file into the project's upload
// directory under a unique name and returns the stored path.
func copyToUploads(uploadDir, projectID, path string) (string, error) {
	dir := filepath.Join(uploadDir, projectID)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("creating upload directory: %w", err)
	}

	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() {
		_ = src.Close()
	}()

	dest := filepath.Join(dir, uuid.New().String()+"-"+filepath.Base(path))
	dst, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0640)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", dest, err)
	}
	defer func() {
		_ = dst.Close()
	}()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("copying %s: %w", path, err)
	}
	return dest, nil
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestAsync, "async", false, "queue ingestion instead of waiting")
	reingestCmd.Flags().BoolVar(&reingestForce, "force", false, "re-ingest even if the document completed")
	rootCmd.AddCommand(ingestCmd, reingestCmd)
}
