package export

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"menucrawler/crawler/internal/domain"

	"github.com/nao1215/markdown"
)

// ToMarkdown renders a crawl report: a summary, the per-category log when
// reports are given, and the items grouped by category in crawl order.
func ToMarkdown(items []domain.MenuItem, reports []domain.CategoryReport, at time.Time) ([]byte, error) {
	var buf bytes.Buffer
	md := markdown.NewMarkdown(&buf)

	md.H1("Menu Crawl Report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Field", "Value"},
		Rows: [][]string{
			{"Generated", at.Format(timestampLayout)},
			{"Items", strconv.Itoa(len(items))},
			{"Categories", strconv.Itoa(countCategories(items, reports))},
		},
	})
	md.PlainText("")

	if len(reports) > 0 {
		writeCategoryLog(md, reports)
	}
	writeItems(md, items)

	if err := md.Build(); err != nil {
		return nil, fmt.Errorf("failed to build markdown report: %w", err)
	}
	return buf.Bytes(), nil
}

func writeCategoryLog(md *markdown.Markdown, reports []domain.CategoryReport) {
	md.H2("Categories")
	md.PlainText("")

	rows := make([][]string, 0, len(reports))
	var failed []string
	for _, r := range reports {
		status := "ok"
		if !r.Success {
			status = "failed"
			failed = append(failed, fmt.Sprintf("%s: %s", r.Category, r.Error))
		}
		kind := "main"
		if r.IsSubcategory {
			kind = "sub"
		}
		rows = append(rows, []string{r.Category, kind, status, strconv.Itoa(r.Count), r.URL})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Category", "Level", "Status", "Items", "URL"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(failed) > 0 {
		md.H3("Failures")
		md.PlainText("")
		md.BulletList(failed...)
		md.PlainText("")
	}
}

func writeItems(md *markdown.Markdown, items []domain.MenuItem) {
	md.H2("Items")
	md.PlainText("")

	if len(items) == 0 {
		md.PlainText("No items were extracted.")
		md.PlainText("")
		return
	}

	var (
		current string
		rows    [][]string
	)
	flush := func() {
		if rows == nil {
			return
		}
		md.H3(categoryLabel(current))
		md.PlainText("")
		md.Table(markdown.TableSet{
			Header: []string{"Name", "Price", "Description"},
			Rows:   rows,
		})
		md.PlainText("")
		rows = nil
	}

	for _, item := range items {
		if item.Category != current {
			flush()
			current = item.Category
		}
		rows = append(rows, []string{item.Name, item.Price, item.Description})
	}
	flush()
}

func categoryLabel(name string) string {
	if name == "" {
		return "Uncategorized"
	}
	return name
}

func countCategories(items []domain.MenuItem, reports []domain.CategoryReport) int {
	if len(reports) > 0 {
		return len(reports)
	}
	seen := make(map[string]bool)
	for _, item := range items {
		seen[item.Category] = true
	}
	return len(seen)
}
