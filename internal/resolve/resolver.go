package resolve

import (
	"context"
	"errors"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/John-Robertt/deckprice/internal/deck"
	"github.com/John-Robertt/deckprice/internal/domain"
	"github.com/John-Robertt/deckprice/internal/logx"
	"github.com/John-Robertt/deckprice/internal/provider"
)

// Store 是 Resolver 依赖的持久化缓存（由 infra/cache.Store 实现）。
type Store interface {
	Get(ctx context.Context, name string) (domain.CacheRecord, bool, error)
	Put(ctx context.Context, rec domain.CacheRecord) error
}

// Result 是一次 Resolve 的结果。From 记录结果来自哪条路径（CachedFresh 或 Resolved）。
type Result struct {
	Card domain.ResolvedCard
	From State
	// Memo 表示命中了本进程内的 memo（既没有读库也没有请求网络）。
	Memo bool
}

// Resolver 把牌名解析为 ResolvedCard：memo → 持久化缓存 → 网络查询。
//
// 约束：
// - 主市场永远查询；代理店对基本地跳过
// - 价格相同时主市场胜出（domain.BestOffer 的顺序语义）
// - resolved_at 只在真正发起查询时刷新
// - 缓存记录里的代理店报价不是当前代理店给出的，视为过期
// - 读库失败视为未命中；写库失败只记录日志
type Resolver struct {
	Primary provider.Adapter
	Proxy   provider.Adapter
	Store   Store

	StaleAfter time.Duration
	Now        func() time.Time
	Log        *slog.Logger

	memo *gocache.Cache
}

func New(primary, proxy provider.Adapter, store Store, staleAfter time.Duration, log *slog.Logger) (*Resolver, error) {
	if primary == nil {
		return nil, errors.New("主市场 adapter 不能为空")
	}
	if proxy == nil {
		return nil, errors.New("代理店 adapter 不能为空")
	}
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Resolver{
		Primary:    primary,
		Proxy:      proxy,
		Store:      store,
		StaleAfter: staleAfter,
		Now:        time.Now,
		Log:        logx.OrDiscard(log),
		memo:       gocache.New(staleAfter, 2*staleAfter),
	}, nil
}

// Resolve 解析一张牌。name 是牌表中的原样牌名（缓存键），查询时使用规范化后的牌名。
func (r *Resolver) Resolve(ctx context.Context, name string) Result {
	log := r.Log.With(slog.String(logx.FieldCard, name))

	if v, ok := r.memo.Get(name); ok {
		if c, ok := v.(domain.ResolvedCard); ok {
			return Result{Card: c, From: CachedFresh, Memo: true}
		}
	}

	now := r.Now()
	rec, found := r.load(ctx, log, name)
	st := Classify(rec, found, now, r.StaleAfter)
	if st == CachedFresh && !r.coversProxy(rec) {
		st = CachedStale
	}
	switch st {
	case CachedFresh:
		c := rec.Card()
		r.memo.SetDefault(name, c)
		log.DebugContext(ctx, "缓存命中", slog.String(logx.FieldState, st.String()))
		return Result{Card: c, From: CachedFresh}
	default:
		log.DebugContext(ctx, "需要重新查询", slog.String(logx.FieldState, st.String()))
	}

	c := r.lookup(ctx, name, now)
	r.store(ctx, log, c)
	r.memo.SetDefault(name, c)
	return Result{Card: c, From: Resolved}
}

// coversProxy 判断记录中是否有当前代理店的报价；基本地不查询代理店，始终满足。
func (r *Resolver) coversProxy(rec domain.CacheRecord) bool {
	if deck.IsBasicLand(deck.Normalize(rec.Name)) {
		return true
	}
	id := r.Proxy.ID()
	for _, o := range rec.Offers {
		if o.Source == id {
			return true
		}
	}
	return false
}

func (r *Resolver) lookup(ctx context.Context, name string, now time.Time) domain.ResolvedCard {
	q := deck.Normalize(name)

	offers := []domain.Offer{r.Primary.Lookup(ctx, q)}
	if !deck.IsBasicLand(q) {
		offers = append(offers, r.Proxy.Lookup(ctx, q))
	}
	return domain.ResolvedCard{
		Name:       name,
		Best:       domain.BestOffer(offers...),
		Offers:     offers,
		ResolvedAt: now.UTC().Truncate(time.Second),
	}
}

func (r *Resolver) load(ctx context.Context, log *slog.Logger, name string) (domain.CacheRecord, bool) {
	if r.Store == nil {
		return domain.CacheRecord{}, false
	}
	rec, found, err := r.Store.Get(ctx, name)
	if err != nil {
		log.WarnContext(ctx, "读取缓存失败，按未命中处理", logx.Error(err))
		return domain.CacheRecord{}, false
	}
	return rec, found
}

func (r *Resolver) store(ctx context.Context, log *slog.Logger, c domain.ResolvedCard) {
	if r.Store == nil {
		return
	}
	if err := r.Store.Put(ctx, domain.RecordOf(c)); err != nil {
		log.WarnContext(ctx, "写入缓存失败", logx.Error(err))
	}
}
