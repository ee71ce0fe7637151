package main

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/deckprice/internal/app/run"
	"github.com/John-Robertt/deckprice/internal/config"
	"github.com/John-Robertt/deckprice/internal/resolve"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是交互终端下的进度输出。
//
// 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约。
// run 层只发事件，这里决定如何展示。
type progressUI struct {
	w io.Writer

	mu        sync.Mutex
	startedAt time.Time

	added   int
	updated int
	cached  int
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{w: w}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	fmt.Fprintf(p.w, "[%s] deckprice run\n", now.Format("15:04:05"))
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  deck: %s\n", eff.DeckPath)
	if eff.ConfigPath != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigPath)
	}
	fmt.Fprintf(p.w, "  shop: %s\n", eff.Shop)
	fmt.Fprintf(p.w, "  cache_db: %s (stale_after=%s)\n", eff.CacheDB, eff.StaleAfter)
	fmt.Fprintf(p.w, "  total_mode: %s\n", eff.TotalMode)
	fmt.Fprintf(p.w, "  mass_import: %s\n", onOff(eff.MassImport))
	fmt.Fprintf(p.w, "  browser: %s\n", onOff(eff.OpenBrowser))
	fmt.Fprintf(p.w, "  proxy: %s\n", formatProxy(eff.ProxyURL))
	if eff.ReportPath != "" {
		fmt.Fprintf(p.w, "  report: %s\n", eff.ReportPath)
	}
	fmt.Fprintln(p.w)
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "deck":
		fmt.Fprintf(p.w, "牌表: cards=%d unique=%d (%s)\n",
			intField(fields, "cards"), intField(fields, "unique"), formatShortDuration(dur),
		)
	case "cache":
		fmt.Fprintf(p.w, "缓存: records=%d (%s)\n\n",
			intField(fields, "records"), formatShortDuration(dur),
		)
	case "resolve":
		fmt.Fprintf(p.w, "\n查询完成: added=%d updated=%d cached=%d elapsed=%s\n\n",
			p.added, p.updated, p.cached, formatElapsed(time.Since(p.startedAt)),
		)
	default:
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}
}

func (p *progressUI) OnCardDone(idx, total int, ev run.CardEvent, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !ev.Added {
		p.updated++
		fmt.Fprintf(p.w, "[%d/%d] Updated %s in output with new quantity: %d\n",
			idx, total, ev.Name, ev.Entry.Quantity,
		)
		return
	}

	p.added++
	note := ""
	switch {
	case ev.Memo:
		note = " (memo)"
	case ev.From == resolve.CachedFresh:
		p.cached++
		note = " (cached)"
	}
	where := ev.Entry.URL
	if where == "" {
		where = string(ev.Entry.Source)
	}
	fmt.Fprintf(p.w, "[%d/%d] Added %s to output with price %s at %s%s (%s)\n",
		idx, total, ev.Name, ev.Entry.PriceLabel(), truncate(where, 120), note, formatShortDuration(dur),
	)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	switch x := fields[key].(type) {
	case int:
		return x
	case int64:
		return int(x)
	default:
		return 0
	}
}
