// Package observability provides formatted output for the CLI commands.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jonathan/animelist/internal/catalog"
	"github.com/jonathan/animelist/internal/recommend"
	"github.com/jonathan/animelist/internal/search"
	"github.com/jonathan/animelist/internal/watchlist"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxTitleRunes keeps a ranked line inside the box
	maxTitleRunes = 36
)

// Printer handles formatted output for the CLI.
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

func rankedLine(rank int, item catalog.Item, score string) string {
	return fmt.Sprintf("#%-3d %-*s %8d %s", rank, maxTitleRunes, truncate(item.Title, maxTitleRunes), item.ID, score)
}

// PrintSearch outputs one page of title matches with their fuzzy ratios.
func (p *Printer) PrintSearch(query string, offset int, page search.Page) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Query: %s\n", query))
	sb.WriteString(fmt.Sprintf("Showing %d of %d matches\n", len(page.Hits), page.Total))
	if len(page.Hits) > 0 {
		sb.WriteString("\n")
	}
	for i, h := range page.Hits {
		sb.WriteString(rankedLine(offset+i+1, h.Item, fmt.Sprintf("%3.0f", h.Score)))
		sb.WriteString("\n")
	}
	p.printBox("TITLE SEARCH", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintRecommendations outputs recommendations with their similarity.
func (p *Printer) PrintRecommendations(res *recommend.Result) {
	if res == nil {
		return
	}

	var sb strings.Builder
	if len(res.Items) == 0 {
		sb.WriteString("No recommendations\n")
	}
	for i, it := range res.Items {
		sb.WriteString(rankedLine(i+1, it.Item, fmt.Sprintf("%.3f", it.Score)))
		sb.WriteString("\n")
	}
	if res.Unresolved > 0 {
		sb.WriteString(fmt.Sprintf("\n%d seed ids were not in the catalog\n", res.Unresolved))
	}
	p.printBox("RECOMMENDATIONS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintImport outputs the outcome of a MyAnimeList import.
func (p *Printer) PrintImport(res *watchlist.ImportResult) {
	if res == nil {
		return
	}
	content := fmt.Sprintf("Imported: %d\nUpdated:  %d\nSkipped:  %d", res.Imported, res.Updated, res.Skipped)
	p.printBox("MAL IMPORT", content)
}

// PrintCatalogLoad outputs the outcome of a catalog bulk load.
func (p *Printer) PrintCatalogLoad(res *catalog.LoadResult) {
	if res == nil {
		return
	}
	if res.Skipped {
		p.printBox("CATALOG LOAD", "Catalog already populated; use --replace to reload")
		return
	}
	p.printBox("CATALOG LOAD", fmt.Sprintf("Inserted: %d\nDuration: %s", res.Inserted, res.Duration.Round(time.Millisecond)))
}
