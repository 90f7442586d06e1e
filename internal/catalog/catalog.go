// Package catalog maps a (site, price) pair to the product an agent must
// order, and holds the pricing rules derived from it.
package catalog

import (
	"fmt"
	"sort"
	"strconv"
)

// Catalog is an immutable site → price → product link table.
type Catalog struct {
	products map[string]map[int]string
}

// Default returns the built-in product table.
func Default() *Catalog {
	return New(map[string]map[int]string{
		"site-1": {
			5:  "https://playstoreskw.com/product/%d8%b4%d8%ad%d9%86-%d9%86%d9%82%d8%a7%d8%b7-brawl-stars-30-usdt/",
			10: "https://playstoreskw.com/product/%d8%a7%d9%88%d9%81%d8%b1%d9%88%d8%a7%d8%aa%d8%b4-%d8%b3%d9%83%d9%86-%d9%88%d9%8a%d8%af%d9%88-%d9%86%d9%88%d9%8a%d8%b1-%d8%a3%d9%86%d8%af%d8%b1-%d8%b3%d9%83%d9%86-%d8%a8%d8%a7%d9%84%d9%84%d8%b9/",
			15: "https://playstoreskw.com/product/%d8%a7%d8%b4%d8%aa%d8%b1%d8%a7%d9%83-%d9%88%d9%84%d9%83%d9%86-%d9%85%d9%88%d9%86-%d9%82%d9%86%d8%a8%d9%83%d8%aa/",
			20: "https://playstoreskw.com/product/725-%d8%b4%d8%ad%d9%86-%d9%84%d9%8a%d9%82-%d8%a2%d8%b1-%d8%a8%d9%8a-%d9%84%d9%88%d9%84/",
			30: "https://playstoreskw.com/product/660-%d8%b4%d8%af%d9%87-pubg-uc/",
		},
		"site-2": {},
		"site-3": {},
	})
}

// New copies products into a new Catalog.
func New(products map[string]map[int]string) *Catalog {
	c := &Catalog{products: make(map[string]map[int]string, len(products))}
	for site, prices := range products {
		cp := make(map[int]string, len(prices))
		for price, link := range prices {
			cp[price] = link
		}
		c.products[site] = cp
	}
	return c
}

// FromStrings builds a Catalog from configuration, where price keys arrive
// as strings (e.g. {"site-1": {"5": "https://..."}}).
func FromStrings(raw map[string]map[string]string) (*Catalog, error) {
	products := make(map[string]map[int]string, len(raw))
	for site, prices := range raw {
		products[site] = make(map[int]string, len(prices))
		for p, link := range prices {
			price, err := strconv.Atoi(p)
			if err != nil {
				return nil, fmt.Errorf("invalid price %q for site %s: %w", p, site, err)
			}
			products[site][price] = link
		}
	}
	return New(products), nil
}

// ProductLink returns the link configured for site at price. An empty link
// counts as not configured.
func (c *Catalog) ProductLink(site string, price int) (string, bool) {
	link := c.products[site][price]
	return link, link != ""
}

// Sites lists the configured site names in sorted order.
func (c *Catalog) Sites() []string {
	sites := make([]string, 0, len(c.products))
	for s := range c.products {
		sites = append(sites, s)
	}
	sort.Strings(sites)
	return sites
}

// QtyForPrice is the number of units ordered per task at a given price.
func QtyForPrice(price int) int {
	if price == 30 {
		return 3
	}
	return 1
}

// SheetName is the export worksheet for a price category.
// Only the standard price points have a worksheet.
func SheetName(price int) (string, bool) {
	switch price {
	case 5, 10, 15, 20, 30:
		return fmt.Sprintf("Links-%d", price), true
	}
	return "", false
}
