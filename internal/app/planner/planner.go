package planner

import (
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/John-Robertt/deckprice/internal/deck"
	"github.com/John-Robertt/deckprice/internal/domain"
)

// MassImportLine 是粘贴到 TCGplayer mass entry 的一行。
type MassImportLine struct {
	Quantity int
	Name     string
}

func (l MassImportLine) String() string {
	return strings.TrimSpace(strconv.Itoa(l.Quantity) + " " + l.Name)
}

// Purchase 是运行结束后的采购计划（只做决定，不做任何输出或副作用）。
type Purchase struct {
	// MassImport 为空表示未启用 mass import。
	MassImport []MassImportLine
	// Tabs 是需要在浏览器中打开的链接（保持条目顺序、去重）。
	Tabs []string
}

// Options 控制采购计划的生成。
type Options struct {
	MassImport  bool
	OpenBrowser bool
	// IsProxyShop 判断某个来源是否为代理店（代理店条目不能通过 TCGplayer 批量下单）。
	IsProxyShop func(domain.VendorID) bool
}

// PlanPurchase 基于最终条目生成确定性的采购计划。
//
// - mass import：所有来源不是代理店的条目（包括 UNK），牌名去掉 " // ..." 后缀
// - 浏览器：启用 mass import 时只打开代理店链接，否则打开所有非空链接
func PlanPurchase(entries []domain.OutputEntry, opts Options) Purchase {
	isProxy := opts.IsProxyShop
	if isProxy == nil {
		isProxy = func(domain.VendorID) bool { return false }
	}

	var p Purchase
	if opts.MassImport {
		p.MassImport = lo.FilterMap(entries, func(e domain.OutputEntry, _ int) (MassImportLine, bool) {
			if isProxy(e.Source) {
				return MassImportLine{}, false
			}
			return MassImportLine{Quantity: e.Quantity, Name: deck.Normalize(e.Name)}, true
		})
	}

	if opts.OpenBrowser {
		tabs := lo.FilterMap(entries, func(e domain.OutputEntry, _ int) (string, bool) {
			if e.URL == "" {
				return "", false
			}
			if opts.MassImport && !isProxy(e.Source) {
				return "", false
			}
			return e.URL, true
		})
		p.Tabs = lo.Uniq(tabs)
	}
	return p
}
