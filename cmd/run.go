package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/docs-discovery-console/internal/backend"
	"github.com/JakeFAU/docs-discovery-console/internal/markdown"
	"github.com/JakeFAU/docs-discovery-console/internal/orchestrator"
)

type runOptions struct {
	url      string
	depth    string
	selected []string
	out      string
	quiet    bool
}

// newRunCmd discovers once and crawls either the given URLs or every
// discovered page as a single batch.
func newRunCmd() *cobra.Command {
	opts := runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Discover a documentation site and crawl it once",
		Example: `  docs-discovery-console run --url https://docs.example.com --depth 2
  docs-discovery-console run --url https://docs.example.com --select https://docs.example.com/intro --out docs.md`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnce(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.url, "url", "", "documentation URL to discover from")
	cmd.Flags().StringVar(&opts.depth, "depth", "", "discovery depth (1-5, default 3)")
	cmd.Flags().StringSliceVar(&opts.selected, "select", nil, "URLs to crawl (default: every discovered page)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "write the document here instead of stdout")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "skip the summary table")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func runOnce(cmd *cobra.Command, opts runOptions) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	ctl := a.Controller()
	logger := a.Logger()

	found, err := ctl.Discover(ctx, opts.url, backend.ParseDepthString(opts.depth))
	if err != nil {
		return fmt.Errorf("discover: %w", err)
	}
	if found.Empty() {
		logger.Warn("no pages discovered", zap.String("url", opts.url))
		return nil
	}

	selection := opts.selected
	if len(selection) == 0 {
		selection = make([]string, 0, len(found.Snapshot.Pages))
		for _, p := range found.Snapshot.Pages {
			selection = append(selection, p.URL)
		}
	}
	crawled, err := ctl.CrawlSelected(ctx, selection)
	if err != nil {
		return fmt.Errorf("crawl: %w", err)
	}
	if crawled.PersistErr != nil {
		logger.Warn("document was not persisted", zap.Error(crawled.PersistErr))
	}

	doc, _, err := ctl.Document(ctx)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	if err := writeDocument(cmd.OutOrStdout(), opts.out, doc); err != nil {
		return err
	}

	st := crawled.Stats
	logger.Info("run complete",
		zap.String("run_id", found.RunID),
		zap.Int("pages_discovered", st.SubdomainsParsed),
		zap.Int("pages_crawled", st.PagesCrawled),
		zap.String("data_extracted", st.DataExtracted),
		zap.Int("errors", st.ErrorsEncountered),
	)
	if !opts.quiet {
		renderSummary(cmd.ErrOrStderr(), found.RunID, crawled, len(markdown.New().Outline(doc)))
	}
	return nil
}

func renderSummary(w io.Writer, runID string, out orchestrator.CrawlOutcome, sections int) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Run", "Pages", "Crawled", "Extracted", "Sections", "Errors", "Saved As"})
	saved := out.DocumentKey
	if !out.Persisted() {
		saved = "-"
	}
	t.AppendRow(table.Row{
		runID,
		out.Stats.SubdomainsParsed,
		out.Stats.PagesCrawled,
		out.Stats.DataExtracted,
		sections,
		out.Stats.ErrorsEncountered,
		saved,
	})
	t.Render()
}

func writeDocument(stdout io.Writer, path, doc string) error {
	if path == "" {
		if _, err := io.WriteString(stdout, doc+"\n"); err != nil {
			return fmt.Errorf("write document: %w", err)
		}
		return nil
	}
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}
