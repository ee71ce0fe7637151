package shop

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// listing 是搜索结果页中的一个商品。
type listing struct {
	Title      string
	Href       string
	Amounts    []decimal.Decimal
	Categories []string
}

// parseListings 解析 WooCommerce 商品列表。
//
// 商品以 a.woocommerce-loop-product__link 为锚点；分类标签（a[rel=tag]）挂在外层 li.product 上，
// 没有外层容器时只在链接内部查找。
func parseListings(html []byte) ([]listing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}

	var out []listing
	doc.Find("a.woocommerce-loop-product__link").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		l := listing{
			Title: normSpace(a.Find(".woocommerce-loop-product__title").First().Text()),
			Href:  strings.TrimSpace(href),
		}
		a.Find(".woocommerce-Price-amount").Each(func(_ int, s *goquery.Selection) {
			if d, ok := parseAmount(s.Text()); ok {
				l.Amounts = append(l.Amounts, d)
			}
		})

		scope := a.Closest("li.product")
		if scope.Length() == 0 {
			scope = a
		}
		scope.Find("a[rel=tag]").Each(func(_ int, s *goquery.Selection) {
			if c := strings.ToLower(normSpace(s.Text())); c != "" {
				l.Categories = append(l.Categories, c)
			}
		})
		l.Categories = lo.Uniq(l.Categories)

		if l.Title == "" || l.Href == "" {
			return
		}
		out = append(out, l)
	})
	return out, nil
}

// parseAmount 解析 "$1,234.50" 这类金额文本。
func parseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimPrefix(s, "$"), "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return decimal.Decimal{}, false
	}
	return d, true
}

func normSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
