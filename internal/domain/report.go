package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	TotalModeUnique  = "unique"
	TotalModePerCopy = "per_copy"
)

// OutputEntry 是最终清单中的一行：每个唯一牌名恰好一行。
type OutputEntry struct {
	Name      string              `json:"name"`
	Quantity  int                 `json:"quantity"`
	UnitPrice decimal.NullDecimal `json:"unit_price"`
	URL       string              `json:"website"`
	Source    VendorID            `json:"source"`
	UpdatedAt time.Time           `json:"updated"`
	// Cached 表示价格来自未过期的缓存（本次没有发起网络请求）。
	Cached bool `json:"cached"`
}

// PriceLabel 返回展示用价格：$1.23 或 UNK。
func (e OutputEntry) PriceLabel() string {
	if !e.UnitPrice.Valid {
		return "UNK"
	}
	return "$" + e.UnitPrice.Decimal.StringFixed(2)
}

// RunReport 是对外稳定输出（stdout JSON / --report 文件）的结构。
type RunReport struct {
	Deck      string `json:"deck"`
	Shop      string `json:"shop"`
	TotalMode string `json:"total_mode"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary   `json:"summary"`
	Entries []OutputEntry   `json:"entries"`
	Total   decimal.Decimal `json:"total"`
}

type ReportSummary struct {
	Cards   int `json:"cards"`
	Copies  int `json:"copies"`
	Priced  int `json:"priced"`
	Unknown int `json:"unknown"`
	Cached  int `json:"cached"`
}

// Finalize 做两件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) summary 由 entries 计算得出
//
// entries 保持首次出现顺序，这里不排序。
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	var s ReportSummary
	for i := range r.Entries {
		e := &r.Entries[i]
		e.UpdatedAt = e.UpdatedAt.UTC()
		s.Cards++
		s.Copies += e.Quantity
		if e.UnitPrice.Valid {
			s.Priced++
		} else {
			s.Unknown++
		}
		if e.Cached {
			s.Cached++
		}
	}
	r.Summary = s
}

// MarshalJSON 集中约束输出的稳定性：entries 为空时输出 [] 而不是 null。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	a := Alias(r)
	if a.Entries == nil {
		a.Entries = []OutputEntry{}
	}
	return json.Marshal(a)
}
