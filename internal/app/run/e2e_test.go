package run

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/deckprice/internal/config"
	"github.com/John-Robertt/deckprice/internal/domain"
	"github.com/John-Robertt/deckprice/internal/resolve"
)

const emptySearch = `<html><body><p class="woocommerce-info">No products were found matching your selection.</p></body></html>`

type fakeVendors struct {
	scryfall *httptest.Server
	shop     *httptest.Server

	// listings 是代理店搜索结果：牌名 → 价格；未列出的牌返回空搜索页。
	listings map[string]string

	scryfallHits atomic.Int32
	shopHits     atomic.Int32
}

func newFakeVendors(t *testing.T, prices map[string]string) *fakeVendors {
	t.Helper()
	fv := &fakeVendors{}
	fv.scryfall = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fv.scryfallHits.Add(1)
		p, ok := prices[r.URL.Query().Get("fuzzy")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"object":"error"}`))
			return
		}
		_, _ = w.Write([]byte(`{"prices":{"usd":"` + p + `"}}`))
	}))
	fv.shop = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fv.shopHits.Add(1)
		q := r.URL.Query().Get("s")
		p, ok := fv.listings[q]
		if !ok {
			_, _ = w.Write([]byte(emptySearch))
			return
		}
		_, _ = w.Write([]byte(listingPage(q, p)))
	}))
	t.Cleanup(fv.scryfall.Close)
	t.Cleanup(fv.shop.Close)
	return fv
}

// productURL 是假代理店中某张牌的商品页地址。
func productURL(name string) string {
	return "https://bootlegmage.com/product/" + strings.ReplaceAll(strings.ToLower(name), " ", "-") + "/"
}

func listingPage(name, price string) string {
	return `<html><body><ul class="products"><li class="product">` +
		`<a href="` + productURL(name) + `" class="woocommerce-LoopProduct-link woocommerce-loop-product__link">` +
		`<h2 class="woocommerce-loop-product__title">` + name + `</h2>` +
		`<span class="price"><span class="woocommerce-Price-amount amount"><bdi>` +
		`<span class="woocommerce-Price-currencySymbol">&#36;</span>` + price + `</bdi></span></span>` +
		`</a></li></ul></body></html>`
}

func writeDeck(t *testing.T, dir, body string) string {
	t.Helper()
	p := filepath.Join(dir, "deck.txt")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func effFor(dir, deckPath string, fv *fakeVendors) config.EffectiveConfig {
	return config.EffectiveConfig{
		DeckPath:        deckPath,
		Shop:            "bootlegmage",
		CacheDB:         filepath.Join(dir, "cards.db"),
		StaleAfter:      config.DefaultStaleAfter,
		TabDelay:        0,
		TotalMode:       domain.TotalModeUnique,
		ScryfallBaseURL: fv.scryfall.URL,
		ShopBaseURL:     fv.shop.URL,
		Timeout:         5 * time.Second,
		LogLevel:        "info",
	}
}

func TestExecute_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	fv := newFakeVendors(t, map[string]string{"Plains": "0.10", "Lightning Bolt": "1.00"})
	fv.listings = map[string]string{"Lightning Bolt": "0.75", "Plains": "0.01"}
	eff := effFor(dir, writeDeck(t, dir, "4 Plains\n2 Lightning Bolt\n"), fv)

	reg, err := NewRegistry(eff, nil)
	require.NoError(t, err)

	rr, err := Execute(context.Background(), eff, Deps{Registry: reg})
	require.NoError(t, err)

	require.Len(t, rr.Entries, 2)
	require.Equal(t, "Plains", rr.Entries[0].Name)
	require.Equal(t, 4, rr.Entries[0].Quantity)
	require.Equal(t, "0.10", rr.Entries[0].UnitPrice.Decimal.StringFixed(2))
	require.Equal(t, domain.VendorTCGPlayer, rr.Entries[0].Source, "基本地只走主市场")
	require.Equal(t, "Lightning Bolt", rr.Entries[1].Name)
	require.Equal(t, 2, rr.Entries[1].Quantity)
	require.Equal(t, "0.75", rr.Entries[1].UnitPrice.Decimal.StringFixed(2))
	require.Equal(t, domain.VendorBootlegMage, rr.Entries[1].Source, "代理店更便宜时应胜出")
	require.Equal(t, productURL("Lightning Bolt"), rr.Entries[1].URL)
	require.Equal(t, "0.85", rr.Total.StringFixed(2))

	require.EqualValues(t, 2, fv.scryfallHits.Load(), "每个唯一牌名只查询一次主市场")
	require.EqualValues(t, 1, fv.shopHits.Load(), "基本地不查询代理店")
	require.Equal(t, 6, rr.Summary.Copies)
	require.Equal(t, 0, rr.Summary.Cached)

	// 第二次运行：缓存仍新鲜，不应发起任何请求，代理店报价原样读回。
	rr2, err := Execute(context.Background(), eff, Deps{Registry: reg})
	require.NoError(t, err)
	require.EqualValues(t, 2, fv.scryfallHits.Load())
	require.EqualValues(t, 1, fv.shopHits.Load())
	require.Equal(t, "0.85", rr2.Total.StringFixed(2))
	require.Equal(t, 2, rr2.Summary.Cached)
	require.Equal(t, domain.VendorBootlegMage, rr2.Entries[1].Source)
	require.Equal(t, productURL("Lightning Bolt"), rr2.Entries[1].URL)
	require.Equal(t, "0.75", rr2.Entries[1].UnitPrice.Decimal.StringFixed(2))
	require.True(t, rr2.Entries[1].Cached)
}

func TestExecute_StaleCacheRefreshes(t *testing.T) {
	dir := t.TempDir()
	fv := newFakeVendors(t, map[string]string{"Sol Ring": "1.50"})
	eff := effFor(dir, writeDeck(t, dir, "1 Sol Ring\n"), fv)

	reg, err := NewRegistry(eff, nil)
	require.NoError(t, err)

	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	_, err = Execute(context.Background(), eff, Deps{Registry: reg, Now: func() time.Time { return start }})
	require.NoError(t, err)

	later := start.Add(10 * 24 * time.Hour)
	rr, err := Execute(context.Background(), eff, Deps{Registry: reg, Now: func() time.Time { return later }})
	require.NoError(t, err)
	require.EqualValues(t, 2, fv.scryfallHits.Load(), "过期缓存应重新查询")
	require.Equal(t, later, rr.Entries[0].UpdatedAt)
	require.False(t, rr.Entries[0].Cached)
}

func TestExecute_UnknownCardAndMalformedLines(t *testing.T) {
	dir := t.TempDir()
	fv := newFakeVendors(t, map[string]string{"Sol Ring": "1.50"})
	eff := effFor(dir, writeDeck(t, dir, "Deck\n1 Sol Ring\n\n1 Nope Card\nSideboard: 2 x\n"), fv)

	reg, err := NewRegistry(eff, nil)
	require.NoError(t, err)

	rr, err := Execute(context.Background(), eff, Deps{Registry: reg})
	require.NoError(t, err)
	require.Len(t, rr.Entries, 2)
	require.Equal(t, "UNK", rr.Entries[1].PriceLabel())
	require.Empty(t, rr.Entries[1].URL)
	require.Equal(t, "1.50", rr.Total.StringFixed(2))
}

func TestExecute_StartupFailures(t *testing.T) {
	dir := t.TempDir()
	fv := newFakeVendors(t, nil)

	eff := effFor(dir, filepath.Join(dir, "missing.txt"), fv)
	reg, err := NewRegistry(eff, nil)
	require.NoError(t, err)
	_, err = Execute(context.Background(), eff, Deps{Registry: reg})
	require.Error(t, err, "牌表不可读应为启动失败")

	eff = effFor(dir, writeDeck(t, dir, "1 Sol Ring\n"), fv)
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	eff.CacheDB = filepath.Join(blocker, "cards.db")
	_, err = Execute(context.Background(), eff, Deps{Registry: reg})
	require.Error(t, err, "缓存无法创建应为启动失败")
	require.EqualValues(t, 0, fv.scryfallHits.Load(), "启动失败前不应发起查询")
}

func TestExecute_UsesInjectedStore(t *testing.T) {
	dir := t.TempDir()
	fv := newFakeVendors(t, map[string]string{"Sol Ring": "1.50"})
	eff := effFor(dir, writeDeck(t, dir, "1 Sol Ring\n"), fv)
	reg, err := NewRegistry(eff, nil)
	require.NoError(t, err)

	store := &memStore{recs: map[string]domain.CacheRecord{}}
	_, err = Execute(context.Background(), eff, Deps{Registry: reg, Store: store})
	require.NoError(t, err)
	require.Contains(t, store.recs, "Sol Ring")
	_, statErr := os.Stat(eff.CacheDB)
	require.True(t, os.IsNotExist(statErr), "注入 store 时不应创建 sqlite 文件")
}

type memStore struct {
	recs map[string]domain.CacheRecord
}

var _ resolve.Store = (*memStore)(nil)

func (s *memStore) Get(_ context.Context, name string) (domain.CacheRecord, bool, error) {
	r, ok := s.recs[name]
	return r, ok, nil
}

func (s *memStore) Put(_ context.Context, rec domain.CacheRecord) error {
	s.recs[rec.Name] = rec
	return nil
}

func TestPurchase(t *testing.T) {
	dir := t.TempDir()
	fv := newFakeVendors(t, map[string]string{"Plains": "0.10"})
	eff := effFor(dir, writeDeck(t, dir, "4 Plains\n"), fv)
	eff.MassImport = true
	eff.OpenBrowser = true
	reg, err := NewRegistry(eff, nil)
	require.NoError(t, err)

	rr := domain.RunReport{Entries: []domain.OutputEntry{
		{Name: "Plains", Quantity: 4, Source: domain.VendorTCGPlayer, URL: "https://tcg.example/plains"},
		{Name: "Sol Ring", Quantity: 1, Source: domain.VendorBootlegMage, URL: "https://bootlegmage.example/sol-ring"},
	}}
	p := Purchase(eff, reg, rr)
	require.Len(t, p.MassImport, 1)
	require.Equal(t, "4 Plains", p.MassImport[0].String())
	require.Equal(t, []string{"https://bootlegmage.example/sol-ring"}, p.Tabs)
}
