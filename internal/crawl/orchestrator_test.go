package crawl

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"menucrawler/crawler/internal/client"
	"menucrawler/crawler/internal/domain"
	"menucrawler/crawler/internal/mock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const base = "https://menu.test"

var selectors = domain.SelectorSet{
	Container:   ".arabas",
	Item:        ".vertical-menu-list__item",
	Name:        "h6",
	Description: ".col-8 p",
	Price:       ".text-orange",
	Image:       `.food-background div[style*="background-image"]`,
}

func menuPage(prefix string, n int) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="arabas">`)
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, `<div class="vertical-menu-list__item">
  <div class="col-8"><h6>%s %d</h6><p>Tasty</p></div>
  <span class="text-orange">%d,00 TL</span>
  <div class="food-background"><div style="background-image: url('/img/%s-%d.jpg')"></div></div>
</div>`, prefix, i, i*10, prefix, i)
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

func category(id int, name string, main bool) domain.Category {
	c := domain.Category{
		Name:           name,
		URL:            fmt.Sprintf("%s/menudetay?menu=%d", base, id),
		IsMainCategory: main,
		Depth:          1,
	}
	if !main {
		c.Depth = 2
		c.ParentCategory = strings.Split(name, domain.CategoryPathSeparator)[0]
	}
	return c
}

func TestCrawlPage(t *testing.T) {
	pageURL := base + "/menudetay?menu=1"
	o := New(mock.Pages(map[string]string{pageURL: menuPage("Pide", 2)}), client.NewPacer(0))

	items, err := o.CrawlPage(context.Background(), pageURL, selectors)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, domain.MenuItem{
		Name:        "Pide 1",
		Description: "Tasty",
		Price:       "10,00 TL",
		Image:       "/img/Pide-1.jpg",
	}, items[0])
}

func TestCrawlPage_MissingSelectorMakesNoRequest(t *testing.T) {
	fetcher := mock.Pages(nil)
	o := New(fetcher, client.NewPacer(0))

	_, err := o.CrawlPage(context.Background(), base+"/menudetay?menu=1", domain.SelectorSet{Item: ".x"})
	assert.ErrorIs(t, err, domain.ErrMissingSelector)
	assert.Empty(t, fetcher.Calls())
}

func TestCrawlCategories_TagsAndMergesInOrder(t *testing.T) {
	cats := []domain.Category{
		category(1, "Pizzas", true),
		category(21, "Drinks > Hot", false),
		category(22, "Drinks > Cold", false),
	}
	fetcher := mock.Pages(map[string]string{
		cats[0].URL: menuPage("Pizza", 3),
		cats[1].URL: menuPage("Tea", 2),
		cats[2].URL: menuPage("Lemonade", 2),
	})
	o := New(fetcher, client.NewPacer(0))

	items, reports := o.CrawlCategories(context.Background(), cats, selectors, nil)

	require.Len(t, reports, 3)
	for i, r := range reports {
		assert.True(t, r.Success, r.Category)
		assert.Equal(t, cats[i].Name, r.Category)
		assert.Equal(t, cats[i].URL, r.URL)
	}
	assert.Equal(t, []int{3, 2, 2}, []int{reports[0].Count, reports[1].Count, reports[2].Count})
	assert.True(t, reports[0].IsMainCategory)
	assert.False(t, reports[0].IsSubcategory)
	assert.True(t, reports[1].IsSubcategory)

	require.Len(t, items, 7)
	assert.Equal(t, "Pizza 1", items[0].Name)
	assert.Equal(t, "Tea 1", items[3].Name)
	assert.Equal(t, "Lemonade 2", items[6].Name)
	for _, item := range items {
		switch {
		case strings.HasPrefix(item.Name, "Pizza"):
			assert.Equal(t, "Pizzas", item.Category)
			assert.Equal(t, cats[0].URL, item.SourceURL)
		case strings.HasPrefix(item.Name, "Tea"):
			assert.Equal(t, "Drinks > Hot", item.Category)
		default:
			assert.Equal(t, "Drinks > Cold", item.Category)
			assert.Equal(t, cats[2].URL, item.SourceURL)
		}
	}

	assert.Equal(t, []string{cats[0].URL, cats[1].URL, cats[2].URL}, fetcher.Calls())
}

func TestCrawlCategories_ToleratesFailures(t *testing.T) {
	const n, failing = 5, 2

	cats := make([]domain.Category, 0, n)
	pages := make(map[string]string, n)
	for i := 0; i < n; i++ {
		c := category(i+1, fmt.Sprintf("Category %d", i+1), true)
		cats = append(cats, c)
		pages[c.URL] = menuPage(fmt.Sprintf("Item%d", i+1), 2)
	}

	o := New(mock.Pages(pages, cats[failing].URL), client.NewPacer(0))

	items, reports := o.CrawlCategories(context.Background(), cats, selectors, nil)

	require.Len(t, reports, n)
	for i, r := range reports {
		if i == failing {
			assert.False(t, r.Success)
			assert.Contains(t, r.Error, "connection reset by peer")
			assert.Zero(t, r.Count)
			continue
		}
		assert.True(t, r.Success)
		assert.Empty(t, r.Error)
	}

	assert.Len(t, items, (n-1)*2)
	for _, item := range items {
		assert.NotEqual(t, cats[failing].Name, item.Category)
	}
}

func TestCrawlCategories_ContainerNotFoundIsCategoryFailure(t *testing.T) {
	cats := []domain.Category{
		category(1, "Empty", true),
		category(2, "Full", true),
	}
	o := New(mock.Pages(map[string]string{
		cats[0].URL: `<html><body><p>Coming soon</p></body></html>`,
		cats[1].URL: menuPage("Dish", 1),
	}), client.NewPacer(0))

	items, reports := o.CrawlCategories(context.Background(), cats, selectors, nil)

	require.Len(t, reports, 2)
	assert.False(t, reports[0].Success)
	assert.Contains(t, reports[0].Error, domain.ErrContainerNotFound.Error())
	assert.True(t, reports[1].Success)
	assert.Len(t, items, 1)
}

func TestCrawlCategories_BranchPageYieldsZeroItems(t *testing.T) {
	cats := []domain.Category{category(1, "Index", true)}
	o := New(mock.Pages(map[string]string{
		cats[0].URL: `<html><body><div class="arabas"><ul><li><a href="/menudetay?menu=9">More</a></li></ul></div></body></html>`,
	}), client.NewPacer(0))

	items, reports := o.CrawlCategories(context.Background(), cats, selectors, nil)

	require.Len(t, reports, 1)
	assert.True(t, reports[0].Success)
	assert.Zero(t, reports[0].Count)
	assert.Empty(t, items)
}

func TestCrawlCategories_ExtendsAccumulator(t *testing.T) {
	previous := []domain.MenuItem{{Name: "Earlier", Price: "5 TL", Category: "Old"}}
	cats := []domain.Category{category(1, "New", true)}
	o := New(mock.Pages(map[string]string{cats[0].URL: menuPage("Fresh", 2)}), client.NewPacer(0))

	items, _ := o.CrawlCategories(context.Background(), cats, selectors, previous)

	require.Len(t, items, 3)
	assert.Equal(t, "Earlier", items[0].Name)
	assert.Equal(t, "Fresh 1", items[1].Name)
	assert.Equal(t, "New", items[2].Category)
}
