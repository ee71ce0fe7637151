package resolve

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/deckprice/internal/domain"
	"github.com/John-Robertt/deckprice/internal/provider"
)

type stubAdapter struct {
	id    domain.VendorID
	kind  provider.Kind
	price map[string]string
	calls []string
}

func (a *stubAdapter) ID() domain.VendorID { return a.id }
func (a *stubAdapter) Kind() provider.Kind { return a.kind }

func (a *stubAdapter) Lookup(_ context.Context, name string) domain.Offer {
	a.calls = append(a.calls, name)
	p, ok := a.price[name]
	if !ok {
		return domain.Unresolved(a.id)
	}
	return domain.NewOffer(a.id, "https://"+string(a.id)+".example/"+name, decimal.RequireFromString(p))
}

type memStore struct {
	recs   map[string]domain.CacheRecord
	gets   int
	puts   int
	getErr error
	putErr error
}

func newMemStore() *memStore { return &memStore{recs: map[string]domain.CacheRecord{}} }

func (s *memStore) Get(_ context.Context, name string) (domain.CacheRecord, bool, error) {
	s.gets++
	if s.getErr != nil {
		return domain.CacheRecord{}, false, s.getErr
	}
	r, ok := s.recs[name]
	return r, ok, nil
}

func (s *memStore) Put(_ context.Context, rec domain.CacheRecord) error {
	s.puts++
	if s.putErr != nil {
		return s.putErr
	}
	s.recs[rec.Name] = rec
	return nil
}

var now = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

func newResolver(t *testing.T, primary, proxy *stubAdapter, store Store) *Resolver {
	t.Helper()
	r, err := New(primary, proxy, store, 5*24*time.Hour, nil)
	require.NoError(t, err)
	r.Now = func() time.Time { return now }
	return r
}

func newPair(primary, proxy map[string]string) (*stubAdapter, *stubAdapter) {
	return &stubAdapter{id: domain.VendorTCGPlayer, kind: provider.KindMarketplace, price: primary},
		&stubAdapter{id: domain.VendorBootlegMage, kind: provider.KindProxyShop, price: proxy}
}

func TestResolve_TieBreak(t *testing.T) {
	cases := []struct {
		name    string
		primary map[string]string
		proxy   map[string]string
		wantSrc domain.VendorID
		wantP   string
	}{
		{"proxy cheaper", map[string]string{"Sol Ring": "2.00"}, map[string]string{"Sol Ring": "1.50"}, domain.VendorBootlegMage, "1.50"},
		{"tie goes primary", map[string]string{"Sol Ring": "2.00"}, map[string]string{"Sol Ring": "2.00"}, domain.VendorTCGPlayer, "2.00"},
		{"proxy unknown", map[string]string{"Sol Ring": "2.00"}, nil, domain.VendorTCGPlayer, "2.00"},
		{"primary unknown", nil, map[string]string{"Sol Ring": "1.50"}, domain.VendorBootlegMage, "1.50"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, x := newPair(tc.primary, tc.proxy)
			r := newResolver(t, p, x, newMemStore())

			res := r.Resolve(context.Background(), "Sol Ring")
			require.Equal(t, Resolved, res.From)
			require.Equal(t, tc.wantSrc, res.Card.Best.Source)
			require.Equal(t, tc.wantP, res.Card.Best.Price.Decimal.StringFixed(2))
		})
	}
}

func TestResolve_BothUnknown(t *testing.T) {
	p, x := newPair(nil, nil)
	r := newResolver(t, p, x, newMemStore())

	res := r.Resolve(context.Background(), "Nope")
	require.False(t, res.Card.Best.Resolved(), "期望 UNK")
	require.Empty(t, res.Card.Best.URL)
}

func TestResolve_BasicLandSkipsProxy(t *testing.T) {
	p, x := newPair(map[string]string{"Plains": "0.10"}, map[string]string{"Plains": "0.01"})
	r := newResolver(t, p, x, newMemStore())

	res := r.Resolve(context.Background(), "Plains")
	require.Empty(t, x.calls, "基本地不应查询代理店")
	require.Equal(t, []string{"Plains"}, p.calls)
	require.Equal(t, domain.VendorTCGPlayer, res.Card.Best.Source)
	require.Len(t, res.Card.Offers, 1)
}

func TestResolve_NormalizesQueryButKeepsCacheKey(t *testing.T) {
	p, x := newPair(map[string]string{"Fire": "0.40"}, nil)
	store := newMemStore()
	r := newResolver(t, p, x, store)

	res := r.Resolve(context.Background(), "Fire // Ice")
	require.Equal(t, []string{"Fire"}, p.calls, "查询应使用规范化牌名")
	require.Equal(t, []string{"Fire"}, x.calls)
	require.Equal(t, "Fire // Ice", res.Card.Name)
	_, ok := store.recs["Fire // Ice"]
	require.True(t, ok, "缓存键应为原样牌名")
}

func TestResolve_CacheFreshness(t *testing.T) {
	cases := []struct {
		name      string
		age       time.Duration
		wantFrom  State
		wantCalls int
	}{
		{"1 day fresh", 24 * time.Hour, CachedFresh, 0},
		{"10 days stale", 10 * 24 * time.Hour, Resolved, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, x := newPair(map[string]string{"Sol Ring": "3.00"}, nil)
			store := newMemStore()
			old := now.Add(-tc.age)
			store.recs["Sol Ring"] = domain.CacheRecord{
				Name: "Sol Ring",
				Offers: []domain.Offer{
					domain.NewOffer(domain.VendorTCGPlayer, "u", decimal.RequireFromString("1.00")),
					domain.Unresolved(domain.VendorBootlegMage),
				},
				ResolvedAt: old,
			}
			r := newResolver(t, p, x, store)

			res := r.Resolve(context.Background(), "Sol Ring")
			require.Equal(t, tc.wantFrom, res.From)
			require.Len(t, p.calls, tc.wantCalls)
			require.Len(t, x.calls, tc.wantCalls)

			if tc.wantCalls == 0 {
				require.Equal(t, 0, store.puts, "新鲜缓存不应写库")
				require.Equal(t, old, res.Card.ResolvedAt, "新鲜缓存不应刷新时间戳")
				require.Equal(t, "1.00", res.Card.Best.Price.Decimal.StringFixed(2))
			} else {
				require.Equal(t, 1, store.puts)
				require.Equal(t, now, store.recs["Sol Ring"].ResolvedAt, "重新查询后应刷新时间戳")
				require.Equal(t, "3.00", res.Card.Best.Price.Decimal.StringFixed(2))
			}
		})
	}
}

func TestResolve_FreshRecordFromOtherShopIsRefreshed(t *testing.T) {
	p, _ := newPair(map[string]string{"Sol Ring": "3.00"}, nil)
	x := &stubAdapter{id: domain.VendorACardGameShop, kind: provider.KindProxyShop, price: map[string]string{"Sol Ring": "2.20"}}
	store := newMemStore()
	store.recs["Sol Ring"] = domain.CacheRecord{
		Name: "Sol Ring",
		Offers: []domain.Offer{
			domain.NewOffer(domain.VendorTCGPlayer, "u", decimal.RequireFromString("3.00")),
			domain.NewOffer(domain.VendorBootlegMage, "b", decimal.RequireFromString("1.00")),
		},
		ResolvedAt: now.Add(-time.Hour),
	}
	r := newResolver(t, p, x, store)

	res := r.Resolve(context.Background(), "Sol Ring")
	require.Equal(t, Resolved, res.From, "换了代理店后不能复用其他店铺的报价")
	require.Len(t, x.calls, 1)
	require.Equal(t, domain.VendorACardGameShop, res.Card.Best.Source)
	require.Equal(t, "2.20", res.Card.Best.Price.Decimal.StringFixed(2))
	require.Equal(t, domain.VendorACardGameShop, store.recs["Sol Ring"].Offers[1].Source)
}

func TestResolve_FreshBasicLandWithoutProxyOffer(t *testing.T) {
	p, x := newPair(map[string]string{"Plains": "0.50"}, nil)
	store := newMemStore()
	store.recs["Plains"] = domain.CacheRecord{
		Name:       "Plains",
		Offers:     []domain.Offer{domain.NewOffer(domain.VendorTCGPlayer, "u", decimal.RequireFromString("0.10"))},
		ResolvedAt: now.Add(-time.Hour),
	}
	r := newResolver(t, p, x, store)

	res := r.Resolve(context.Background(), "Plains")
	require.Equal(t, CachedFresh, res.From)
	require.Empty(t, p.calls)
	require.Empty(t, x.calls)
}

func TestResolve_MemoAvoidsSecondLookup(t *testing.T) {
	p, x := newPair(map[string]string{"Sol Ring": "1.00"}, nil)
	store := newMemStore()
	r := newResolver(t, p, x, store)

	first := r.Resolve(context.Background(), "Sol Ring")
	second := r.Resolve(context.Background(), "Sol Ring")

	require.False(t, first.Memo)
	require.True(t, second.Memo)
	require.Len(t, p.calls, 1, "同一次运行内不应重复请求")
	require.Equal(t, 1, store.gets, "memo 命中不应读库")
	require.Equal(t, first.Card.Best, second.Card.Best)
}

func TestResolve_StoreErrorsAreNonFatal(t *testing.T) {
	p, x := newPair(map[string]string{"Sol Ring": "1.00"}, nil)
	store := newMemStore()
	store.getErr = errors.New("disk on fire")
	store.putErr = errors.New("disk still on fire")
	r := newResolver(t, p, x, store)

	res := r.Resolve(context.Background(), "Sol Ring")
	require.Equal(t, Resolved, res.From)
	require.True(t, res.Card.Best.Resolved())
	require.Len(t, p.calls, 1)
}

func TestResolve_NilStore(t *testing.T) {
	p, x := newPair(map[string]string{"Sol Ring": "1.00"}, nil)
	r := newResolver(t, p, x, nil)

	res := r.Resolve(context.Background(), "Sol Ring")
	require.True(t, res.Card.Best.Resolved())
}

func TestNew_RejectsNilAdapters(t *testing.T) {
	p, _ := newPair(nil, nil)
	_, err := New(nil, p, nil, 0, nil)
	require.Error(t, err)
	_, err = New(p, nil, nil, 0, nil)
	require.Error(t, err)

	r, err := New(p, p, nil, 0, nil)
	require.NoError(t, err)
	require.Equal(t, DefaultStaleAfter, r.StaleAfter)
}
