package app

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/John-Robertt/deckprice/internal/domain"
	"github.com/John-Robertt/deckprice/internal/resolve"
)

// Aggregator 把展开后的牌名序列合并为每个唯一牌名一行。
//
// - entries 保持首次出现顺序
// - 同名再次出现只累加数量，不再解析价格
type Aggregator struct {
	mode    string
	index   map[string]int
	entries []domain.OutputEntry
}

// NewAggregator 构造聚合器；mode 为空或未知时按 unique 计算总价。
func NewAggregator(mode string) *Aggregator {
	if mode != domain.TotalModePerCopy {
		mode = domain.TotalModeUnique
	}
	return &Aggregator{
		mode:    mode,
		index:   make(map[string]int, 64),
		entries: make([]domain.OutputEntry, 0, 64),
	}
}

func (a *Aggregator) Mode() string { return a.mode }

// Has 判断 name 是否已经出现过（调用方据此跳过重复解析）。
func (a *Aggregator) Has(name string) bool {
	_, ok := a.index[name]
	return ok
}

// Add 记录一次出现，返回这次出现对总价的贡献（重复出现时 card 被忽略）：
// unique 模式下首次出现贡献单价（UNK 为 0），之后为 0；per_copy 模式下每次都贡献单价。
func (a *Aggregator) Add(name string, card domain.ResolvedCard) decimal.Decimal {
	return a.add(name, card, false)
}

// AddResult 与 Add 相同，并把来自新鲜缓存的结果标记为 cached。
func (a *Aggregator) AddResult(name string, r resolve.Result) decimal.Decimal {
	return a.add(name, r.Card, r.From == resolve.CachedFresh)
}

func (a *Aggregator) add(name string, card domain.ResolvedCard, cached bool) decimal.Decimal {
	if idx, ok := a.index[name]; ok {
		e := &a.entries[idx]
		e.Quantity++
		if a.mode == domain.TotalModePerCopy {
			return unitOf(*e)
		}
		return decimal.Zero
	}

	e := domain.OutputEntry{
		Name:      name,
		Quantity:  1,
		UnitPrice: card.Best.Price,
		URL:       card.Best.URL,
		Source:    card.Best.Source,
		UpdatedAt: card.ResolvedAt,
		Cached:    cached,
	}
	a.index[name] = len(a.entries)
	a.entries = append(a.entries, e)
	return unitOf(e)
}

// Entry 返回 name 当前的条目。
func (a *Aggregator) Entry(name string) (domain.OutputEntry, bool) {
	idx, ok := a.index[name]
	if !ok {
		return domain.OutputEntry{}, false
	}
	return a.entries[idx], true
}

// Quantity 返回 name 当前的累计数量（未出现为 0）。
func (a *Aggregator) Quantity(name string) int {
	e, _ := a.Entry(name)
	return e.Quantity
}

// Entries 返回条目副本（首次出现顺序）。
func (a *Aggregator) Entries() []domain.OutputEntry {
	return append([]domain.OutputEntry(nil), a.entries...)
}

// Total 按模式计算总价：unique 为各唯一牌单价之和，per_copy 为单价 × 数量之和。UNK 计 0。
func (a *Aggregator) Total() decimal.Decimal {
	return lo.Reduce(a.entries, func(sum decimal.Decimal, e domain.OutputEntry, _ int) decimal.Decimal {
		u := unitOf(e)
		if a.mode == domain.TotalModePerCopy {
			u = u.Mul(decimal.NewFromInt(int64(e.Quantity)))
		}
		return sum.Add(u)
	}, decimal.Zero)
}

func unitOf(e domain.OutputEntry) decimal.Decimal {
	if !e.UnitPrice.Valid {
		return decimal.Zero
	}
	return e.UnitPrice.Decimal
}
