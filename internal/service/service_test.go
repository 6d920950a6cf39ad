package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"menucrawler/crawler/internal/classifier"
	"menucrawler/crawler/internal/client"
	"menucrawler/crawler/internal/config"
	"menucrawler/crawler/internal/crawl"
	"menucrawler/crawler/internal/discovery"
	"menucrawler/crawler/internal/domain"
	"menucrawler/crawler/internal/domain/task"
	"menucrawler/crawler/internal/export"
	"menucrawler/crawler/internal/mock"
	"menucrawler/crawler/internal/platform"
	"menucrawler/crawler/internal/repository"
	"menucrawler/crawler/internal/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	base    = "https://menu.test"
	rootURL = base + "/menu"
	session = "test-session"
)

var selectors = domain.SelectorSet{
	Container:   ".arabas",
	Item:        ".vertical-menu-list__item",
	Name:        "h6",
	Description: ".col-8 p",
	Price:       ".text-orange",
}

var fixedNow = time.Date(2024, 5, 1, 13, 45, 0, 0, time.UTC)

func menuURL(id int) string {
	return fmt.Sprintf("%s/menudetay?menu=%d", base, id)
}

func anchor(id int, text string) string {
	return fmt.Sprintf(`<li><a href="/menudetay?menu=%d">%s</a></li>`, id, text)
}

// page renders a navigation list followed by one product per name.
func page(nav []string, products ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body><ul class="nav">`)
	b.WriteString(strings.Join(nav, ""))
	b.WriteString(`</ul><div class="arabas">`)
	for i, name := range products {
		fmt.Fprintf(&b, `<div class="vertical-menu-list__item">
  <div class="col-8"><h6>%s</h6><p>Fresh</p></div>
  <span class="text-orange">%d,00 TL</span>
</div>`, name, (i+1)*10)
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

// site is a menu with one leaf category of 3 products and one branch category
// holding two subcategories of 2 products each.
func site() map[string]string {
	mainNav := []string{anchor(1, "Pizzas"), anchor(2, "Drinks")}
	subNav := append(append([]string{}, mainNav...), anchor(21, "Hot"), anchor(22, "Cold"))

	return map[string]string{
		rootURL:     page(mainNav),
		menuURL(1):  page(mainNav, "Margherita", "Pepperoni", "Funghi"),
		menuURL(2):  page(subNav),
		menuURL(21): page(subNav, "Tea", "Coffee"),
		menuURL(22): page(subNav, "Lemonade", "Ayran"),
	}
}

type fixture struct {
	svc     *Service
	fetcher *mock.Fetcher
	queue   *mock.Queue
	repo    *mock.CrawlRepository
	dir     string
}

func newFixture(t *testing.T, fetcher *mock.Fetcher) *fixture {
	t.Helper()

	rules, err := platform.NewRules(config.PlatformConfig{
		Name:                     "test",
		BaseURL:                  base,
		CategoryLinkSelector:     `a[href*="menudetay"]`,
		SubcategoryLinkSelectors: []string{`li a[href*="menudetay"]`},
		ProductSelector:          ".vertical-menu-list__item",
		DetailURLPattern:         `/menudetay\?(.*&)?menu=\d+`,
		SocialKeywords:           []string{"facebook", "instagram"},
		MinSubcategoryNameLength: 2,
	})
	require.NoError(t, err)

	cls, err := classifier.New(fetcher, rules, classifier.DefaultPolicy())
	require.NoError(t, err)

	pacer := client.NewPacer(0)
	d, err := discovery.New(fetcher, cls, rules, pacer, discovery.DefaultMaxDepth)
	require.NoError(t, err)

	dir := t.TempDir()
	q := mock.NewQueue()
	repo := &mock.CrawlRepository{}

	svc := NewService(
		fetcher,
		d,
		crawl.New(fetcher, pacer),
		state.NewMemorySessionStore(),
		export.NewExporter(config.ExportConfig{Directory: dir, FilenamePrefix: "menu_data_"}),
		q,
		repo,
		"test-group",
		2,
	)
	svc.now = func() time.Time { return fixedNow }

	return &fixture{svc: svc, fetcher: fetcher, queue: q, repo: repo, dir: dir}
}

func names(items []domain.MenuItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Name)
	}
	return out
}

func TestDiscover(t *testing.T) {
	f := newFixture(t, mock.Pages(site()))

	result := f.svc.Discover(context.Background(), rootURL, true)
	require.True(t, result.Success, result.Error)
	assert.Equal(t, 3, result.Count)
	assert.Equal(t, rootURL, result.SourceURL)
	assert.Equal(t, "Pizzas", result.Categories[0].Name)
	assert.Equal(t, "Drinks > Hot", result.Categories[1].Name)
	assert.Equal(t, "Drinks > Cold", result.Categories[2].Name)
}

func TestDiscover_InvalidURLMakesNoRequest(t *testing.T) {
	f := newFixture(t, mock.Pages(site()))

	for _, raw := range []string{"", "menu.test/menu", "ftp://menu.test/menu", "https://"} {
		result := f.svc.Discover(context.Background(), raw, true)
		assert.False(t, result.Success, raw)
		assert.Contains(t, result.Error, domain.ErrInvalidURL.Error(), raw)
	}
	assert.Empty(t, f.fetcher.Calls())
}

func TestCrawlWithCategories(t *testing.T) {
	f := newFixture(t, mock.Pages(site()))

	report := f.svc.CrawlWithCategories(context.Background(), session, rootURL, selectors)
	require.True(t, report.Success, report.Error)

	assert.Equal(t, 3, report.CategoriesDiscovered)
	assert.Equal(t, 7, report.Count)
	assert.Equal(t, fixedNow, report.Timestamp)
	require.Len(t, report.CrawlResults, 3)

	counts := []int{report.CrawlResults[0].Count, report.CrawlResults[1].Count, report.CrawlResults[2].Count}
	assert.Equal(t, []int{3, 2, 2}, counts)
	assert.True(t, report.CrawlResults[0].IsMainCategory)
	assert.True(t, report.CrawlResults[1].IsSubcategory)

	assert.Equal(t, []string{"Margherita", "Pepperoni", "Funghi", "Tea", "Coffee", "Lemonade", "Ayran"}, names(report.Data))
	assert.Equal(t, "Drinks > Hot", report.Data[3].Category)
	assert.Equal(t, menuURL(21), report.Data[3].SourceURL)

	stored, err := f.svc.SessionItems(context.Background(), session)
	require.NoError(t, err)
	assert.Equal(t, report.Data, stored)

	assert.Empty(t, f.queue.Tasks(task.CategoryRetryTaskType))

	runs := f.repo.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, rootURL, runs[0].SourceURL)
	assert.Equal(t, session, runs[0].SessionID)
	assert.Len(t, runs[0].Items, 7)
	assert.Len(t, runs[0].Reports, 3)
}

func TestCrawlWithCategories_ValidatesBeforeFetching(t *testing.T) {
	f := newFixture(t, mock.Pages(site()))

	report := f.svc.CrawlWithCategories(context.Background(), session, "not a url", selectors)
	assert.False(t, report.Success)
	assert.Contains(t, report.Error, domain.ErrInvalidURL.Error())

	report = f.svc.CrawlWithCategories(context.Background(), session, rootURL, domain.SelectorSet{Container: ".arabas"})
	assert.False(t, report.Success)
	assert.Contains(t, report.Error, domain.ErrMissingSelector.Error())

	assert.Empty(t, f.fetcher.Calls())
}

func TestCrawlWithCategories_DiscoveryFailure(t *testing.T) {
	f := newFixture(t, mock.Pages(site(), rootURL))

	report := f.svc.CrawlWithCategories(context.Background(), session, rootURL, selectors)
	assert.False(t, report.Success)
	assert.Contains(t, report.Error, "failed to fetch menu page")
	assert.Empty(t, report.CrawlResults)
	assert.Equal(t, []string{rootURL}, f.fetcher.Calls())
	assert.Empty(t, f.repo.Runs())
}

func TestCrawlWithCategories_PartialFailure(t *testing.T) {
	f := newFixture(t, mock.Pages(site(), menuURL(21)))

	report := f.svc.CrawlWithCategories(context.Background(), session, rootURL, selectors)
	require.True(t, report.Success, report.Error)

	assert.Equal(t, 5, report.Count)
	require.Len(t, report.CrawlResults, 3)
	assert.True(t, report.CrawlResults[0].Success)
	assert.False(t, report.CrawlResults[1].Success)
	assert.Contains(t, report.CrawlResults[1].Error, "connection reset")
	assert.True(t, report.CrawlResults[2].Success)

	failed := report.FailedCategories()
	require.Len(t, failed, 1)
	assert.Equal(t, "Drinks > Hot", failed[0].Category)

	tasks := f.queue.Tasks(task.CategoryRetryTaskType)
	require.Len(t, tasks, 1)
	retryTask, err := task.UnmarshalTask[*task.CategoryRetryTask]([]byte(tasks[0]))
	require.NoError(t, err)
	assert.Equal(t, session, retryTask.SessionID)
	assert.Equal(t, menuURL(21), retryTask.Category.URL)
	assert.Equal(t, selectors, retryTask.Selectors)
	assert.Zero(t, retryTask.RetryCount)
	assert.NotEmpty(t, retryTask.ID)
}

func TestCrawlWithCategories_WithoutQueueOrRepository(t *testing.T) {
	f := newFixture(t, mock.Pages(site(), menuURL(21)))
	f.svc.queue = nil
	f.svc.repository = nil

	report := f.svc.CrawlWithCategories(context.Background(), session, rootURL, selectors)
	require.True(t, report.Success)
	assert.Equal(t, 5, report.Count)

	result := f.svc.RetryFailed(context.Background(), "worker-1")
	assert.False(t, result.Success)
	assert.Equal(t, errQueueDisabled.Error(), result.Error)
}

func TestCrawlWithCategories_ArchiveFailureDoesNotFailCrawl(t *testing.T) {
	f := newFixture(t, mock.Pages(site()))
	f.repo.SaveCrawlFn = func(context.Context, repository.CrawlRun) error {
		return errors.New("database is down")
	}

	report := f.svc.CrawlWithCategories(context.Background(), session, rootURL, selectors)
	assert.True(t, report.Success)
	assert.Equal(t, 7, report.Count)
}

func TestCrawlSingle(t *testing.T) {
	f := newFixture(t, mock.Pages(site()))
	ctx := context.Background()

	result := f.svc.CrawlSingle(ctx, session, menuURL(1), selectors, "")
	require.True(t, result.Success, result.Error)
	assert.Equal(t, 3, result.Count)
	assert.Equal(t, menuURL(1), result.URL)
	for _, item := range result.Data {
		assert.Equal(t, DefaultCategoryLabel, item.Category)
		assert.Equal(t, menuURL(1), item.SourceURL)
	}

	result = f.svc.CrawlSingle(ctx, session, menuURL(22), selectors, "  Cold drinks ")
	require.True(t, result.Success, result.Error)
	assert.Equal(t, "Cold drinks", result.Data[0].Category)

	stored, err := f.svc.SessionItems(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, []string{"Margherita", "Pepperoni", "Funghi", "Lemonade", "Ayran"}, names(stored))

	require.NoError(t, f.svc.ResetSession(ctx, session))
	stored, err = f.svc.SessionItems(ctx, session)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestCrawlSingle_DefaultLabelMatchesExportLanguage(t *testing.T) {
	f := newFixture(t, mock.Pages(site()))
	ctx := context.Background()

	result := f.svc.CrawlSingle(ctx, session, menuURL(1), selectors, "   ")
	require.True(t, result.Success, result.Error)
	assert.Equal(t, "Kategori Yok", result.Data[0].Category)

	exported := f.svc.Export(ctx, session, "csv", false)
	require.True(t, exported.Success, exported.Error)
	assert.Contains(t, string(exported.Content), "Ürün Adı,Açıklama,Fiyat,Resim URL,Kategori,Kaynak URL")
	assert.Contains(t, string(exported.Content), `Margherita,Fresh,"10,00 TL",,Kategori Yok,`+menuURL(1))
}

func TestCrawlSingle_Failures(t *testing.T) {
	f := newFixture(t, mock.Pages(map[string]string{
		menuURL(1): `<html><body><div class="other"></div></body></html>`,
	}))
	ctx := context.Background()

	result := f.svc.CrawlSingle(ctx, session, menuURL(1), selectors, "")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, domain.ErrContainerNotFound.Error())

	result = f.svc.CrawlSingle(ctx, session, menuURL(9), selectors, "")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "404")

	stored, err := f.svc.SessionItems(ctx, session)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestTestSelectors(t *testing.T) {
	f := newFixture(t, mock.Pages(site()))

	result := f.svc.TestSelectors(context.Background(), menuURL(1), domain.SelectorSet{
		Container: ".arabas",
		Item:      ".vertical-menu-list__item",
		Name:      "h6",
		Price:     "[[",
	})
	require.True(t, result.Success, result.Error)

	assert.Equal(t, 1, result.Results[domain.FieldContainer].FoundCount)
	assert.Equal(t, 3, result.Results[domain.FieldItem].FoundCount)
	assert.Equal(t, "Margherita", result.Results[domain.FieldName].SampleData[0].Text)
	assert.NotEmpty(t, result.Results[domain.FieldPrice].Error)
	assert.NotContains(t, result.Results, domain.FieldDescription)
}

func TestTestSelectors_FetchFailure(t *testing.T) {
	f := newFixture(t, mock.Pages(nil))

	result := f.svc.TestSelectors(context.Background(), menuURL(1), selectors)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}

func TestExport(t *testing.T) {
	f := newFixture(t, mock.Pages(site()))
	ctx := context.Background()

	result := f.svc.Export(ctx, session, "csv", false)
	assert.False(t, result.Success)
	assert.Equal(t, domain.ErrNoSessionData.Error(), result.Error)

	f.svc.CrawlSingle(ctx, session, menuURL(1), selectors, "Pizzas")

	result = f.svc.Export(ctx, session, "csv", true)
	require.True(t, result.Success, result.Error)
	assert.True(t, strings.HasPrefix(result.Filename, "menu_data_"))
	assert.True(t, strings.HasSuffix(result.Filename, ".csv"))

	saved, err := os.ReadFile(result.Filepath)
	require.NoError(t, err)
	assert.Equal(t, result.Content, saved)
	assert.Contains(t, string(saved), "Margherita")

	result = f.svc.Export(ctx, session, "pdf", false)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, domain.ErrUnsupportedFormat.Error())
}

func TestExportReport(t *testing.T) {
	f := newFixture(t, mock.Pages(site(), menuURL(21)))

	report := f.svc.CrawlWithCategories(context.Background(), session, rootURL, selectors)
	result := f.svc.ExportReport(report, "md", false)
	require.True(t, result.Success, result.Error)
	assert.True(t, strings.HasSuffix(result.Filename, ".md"))
	assert.Contains(t, string(result.Content), "Menu Crawl Report")
	assert.Contains(t, string(result.Content), "failed")
	assert.Empty(t, result.Filepath)
}

func TestRetryFailed_Recovers(t *testing.T) {
	pages := site()
	delete(pages, menuURL(22))
	f := newFixture(t, mock.Pages(pages))
	ctx := context.Background()

	report := f.svc.CrawlWithCategories(ctx, session, rootURL, selectors)
	require.True(t, report.Success)
	assert.Equal(t, 5, report.Count)

	pages[menuURL(22)] = page(nil, "Lemonade", "Ayran")

	result := f.svc.RetryFailed(ctx, "worker-1")
	require.True(t, result.Success, result.Error)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Recovered)
	assert.Equal(t, 2, result.Items)
	assert.Zero(t, f.queue.Pending(task.CategoryRetryTaskType))

	stored, err := f.svc.SessionItems(ctx, session)
	require.NoError(t, err)
	require.Len(t, stored, 7)
	assert.Equal(t, "Drinks > Cold", stored[6].Category)
	assert.Equal(t, menuURL(22), stored[6].SourceURL)
}

func TestRetryFailed_RequeuesThenDrops(t *testing.T) {
	f := newFixture(t, mock.Pages(site(), menuURL(22)))
	ctx := context.Background()

	f.svc.CrawlWithCategories(ctx, session, rootURL, selectors)
	require.Len(t, f.queue.Tasks(task.CategoryRetryTaskType), 1)

	first := f.svc.RetryFailed(ctx, "worker-1")
	require.True(t, first.Success, first.Error)
	assert.Equal(t, 1, first.Processed)
	assert.Equal(t, 1, first.Requeued)

	tasks := f.queue.Tasks(task.CategoryRetryTaskType)
	require.Len(t, tasks, 2)
	requeued, err := task.UnmarshalTask[*task.CategoryRetryTask]([]byte(tasks[1]))
	require.NoError(t, err)
	assert.Equal(t, 1, requeued.RetryCount)
	assert.Contains(t, requeued.Error, "connection reset")

	second := f.svc.RetryFailed(ctx, "worker-1")
	require.True(t, second.Success, second.Error)
	assert.Equal(t, 1, second.Processed)
	assert.Equal(t, 1, second.Dropped)
	assert.Len(t, f.queue.Tasks(task.CategoryRetryTaskType), 2)

	third := f.svc.RetryFailed(ctx, "worker-1")
	assert.True(t, third.Success)
	assert.Zero(t, third.Processed)
}

func TestDownloadCategoryImages(t *testing.T) {
	pages := map[string]string{
		rootURL: `<html><body><ul class="nav">
  <li><a href="/menudetay?menu=1"><img src="/img/pizzas.png">Pizzas</a></li>
  <li><a href="/menudetay?menu=2"><img src="/img/missing.png">Drinks</a></li>
  <li><a href="/menudetay?menu=3">Desserts</a></li>
</ul></body></html>`,
		base + "/img/pizzas.png": "PNGDATA",
	}
	f := newFixture(t, mock.Pages(pages))

	result := f.svc.DownloadCategoryImages(context.Background(), rootURL, false)
	require.True(t, result.Success, result.Error)
	assert.Equal(t, 1, result.Images)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, "category_images_2024-05-01_13-45-00.zip", result.Filename)
	assert.Equal(t, len(result.Content), result.Size)

	zr, err := zip.NewReader(bytes.NewReader(result.Content), int64(len(result.Content)))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.True(t, strings.HasSuffix(zr.File[0].Name, ".png"))
}

func TestDownloadCategoryImages_NoImages(t *testing.T) {
	pages := map[string]string{
		rootURL: page([]string{anchor(1, "Pizzas")}),
	}
	f := newFixture(t, mock.Pages(pages))

	result := f.svc.DownloadCategoryImages(context.Background(), rootURL, false)
	assert.False(t, result.Success)
	assert.Equal(t, errNoCategoryImages.Error(), result.Error)
	assert.Equal(t, 1, result.Skipped)
}
