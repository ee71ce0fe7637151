package report

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	jsoniter "github.com/json-iterator/go"

	"github.com/John-Robertt/deckprice/internal/app/planner"
	"github.com/John-Robertt/deckprice/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // skip

// MassEntryURL 是 TCGplayer 的批量下单页面。
const MassEntryURL = "https://store.tcgplayer.com/massentry"

// MassImportHeader 是 mass import 块的第一行。
const MassImportHeader = "Paste this into the TCGPlayer mass import tool: " + MassEntryURL

// WriteTable 把条目渲染为表格，并在末尾追加总价行。
func WriteTable(w io.Writer, rr domain.RunReport) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"name", "quantity", "unit_price", "website", "updated"})
	for _, e := range rr.Entries {
		t.AppendRow(table.Row{e.Name, e.Quantity, e.PriceLabel(), e.URL, formatTime(e.UpdatedAt)})
	}
	t.SetStyle(table.StyleRounded)
	// 表头保持原样（小写列名），不做默认的大写转换。
	t.Style().Format.Header = text.FormatDefault
	t.Render()

	_, err := fmt.Fprintf(w, "Approx deck total price (minus shipping): $%s\n", rr.Total.StringFixed(2))
	return err
}

// WriteMassImport 输出 mass import 块；没有任何行时什么都不写。
func WriteMassImport(w io.Writer, lines []planner.MassImportLine) error {
	if len(lines) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, MassImportHeader); err != nil {
		return err
	}
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l.String()); err != nil {
			return err
		}
	}
	return nil
}

// EncodeJSON 返回缩进后的 RunReport JSON（末尾带换行）。
//
// jsoniter 不会缩进 MarshalJSON 的输出，因此这里直接编码去掉方法的别名类型，
// entries 为空时同样输出 []。
func EncodeJSON(rr domain.RunReport) ([]byte, error) {
	type plain domain.RunReport
	p := plain(rr)
	if p.Entries == nil {
		p.Entries = []domain.OutputEntry{}
	}
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// WriteJSON 把 RunReport 作为单个 JSON 文档写入 w。
func WriteJSON(w io.Writer, rr domain.RunReport) error {
	b, err := EncodeJSON(rr)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(domain.TimestampLayout)
}
