package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docbase/docbase/internal/app"
	"github.com/docbase/docbase/internal/query"
	"github.com/docbase/docbase/internal/retrieval"
)

var (
	askStrategy   string
	askTopK       int
	askDocuments  []string
	askAllSources bool
)

var askCmd = &cobra.Command{
	Use:   "ask <project-id> <question>",
	Short: "Ask a question over a project's documents",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			strategy, err := retrieval.ParseStrategy(askStrategy)
			if err != nil {
				return err
			}

			topK := askTopK
			if topK <= 0 {
				topK = a.Config.TopK
			}
			result, err := a.Query.Ask(ctx, args[0], strings.Join(args[1:], " "), query.Options{
				Strategy:          strategy,
				TopK:              topK,
				DocumentIDs:       askDocuments,
				MMRLambda:         a.Config.MMRLambda,
				HybridAlpha:       a.Config.HybridAlpha,
				IncludeAllSources: askAllSources,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, result.Answer)
			if len(result.Citations) > 0 {
				fmt.Fprintln(out, "\nSources:")
				for _, c := range result.Citations {
					fmt.Fprintf(out, "  [%s] %s (page %d, score %.3f)\n",
						c.ChunkID, c.SourceFile, c.Page+1, c.RelevanceScore)
				}
			}
			return nil
		})
	},
}

var (
	searchStrategy string
	searchTopK     int
)

var searchCmd = &cobra.Command{
	Use:   "search <project-id> <query>",
	Short: "Retrieve matching chunks without generating an answer",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			strategy, err := retrieval.ParseStrategy(searchStrategy)
			if err != nil {
				return err
			}

			topK := searchTopK
			if topK <= 0 {
				topK = a.Config.TopK
			}
			chunks, err := a.Retrieval.Retrieve(ctx, args[0], strings.Join(args[1:], " "), retrieval.Options{
				Strategy:    strategy,
				TopK:        topK,
				MMRLambda:   a.Config.MMRLambda,
				HybridAlpha: a.Config.HybridAlpha,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(chunks) == 0 {
				fmt.Fprintln(out, "no matching chunks")
				return nil
			}
			for _, c := range chunks {
				preview := c.Content
				if len(preview) > 120 {
					preview = preview[:120] + "..."
				}
				fmt.Fprintf(out, "%2d. [%s] score %.3f\n    %s\n", c.Rank+1, c.ChunkID, c.Score, preview)
			}
			return nil
		})
	},
}

func init() {
	askCmd.Flags().StringVar(&askStrategy, "strategy", "similarity", "retrieval strategy: similarity, mmr, or hybrid")
	askCmd.Flags().IntVar(&askTopK, "top-k", 0, "number of chunks to retrieve (0 = default)")
	askCmd.Flags().StringSliceVar(&askDocuments, "documents", nil, "restrict retrieval to these document IDs")
	askCmd.Flags().BoolVar(&askAllSources, "all-sources", false, "include retrieved-but-uncited chunks in sources")

	searchCmd.Flags().StringVar(&searchStrategy, "strategy", "similarity", "retrieval strategy: similarity, mmr, or hybrid")
	searchCmd.Flags().IntVar(&searchTopK, "top-k", 0, "number of chunks to retrieve (0 = default)")

	rootCmd.AddCommand(askCmd, searchCmd)
}
