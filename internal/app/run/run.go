package run

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"github.com/John-Robertt/deckprice/internal/app"
	"github.com/John-Robertt/deckprice/internal/app/planner"
	"github.com/John-Robertt/deckprice/internal/config"
	"github.com/John-Robertt/deckprice/internal/deck"
	"github.com/John-Robertt/deckprice/internal/domain"
	"github.com/John-Robertt/deckprice/internal/infra/cache"
	"github.com/John-Robertt/deckprice/internal/infra/httpx"
	"github.com/John-Robertt/deckprice/internal/logx"
	"github.com/John-Robertt/deckprice/internal/provider"
	"github.com/John-Robertt/deckprice/internal/provider/shop"
	"github.com/John-Robertt/deckprice/internal/provider/tcgplayer"
	"github.com/John-Robertt/deckprice/internal/resolve"
)

// Deps 是一次运行的外部依赖。零值字段按 eff 构造默认实现。
type Deps struct {
	Registry provider.Registry
	// Store 为空时打开 eff.CacheDB（运行结束后关闭）。
	Store resolve.Store
	Now   func() time.Time
	Log   *slog.Logger
}

// NewRegistry 按配置构造所有适配器：主市场 + 全部代理店（只有选中的代理店会被查询）。
func NewRegistry(eff config.EffectiveConfig, log *slog.Logger) (provider.Registry, error) {
	hc, err := httpx.NewClient(httpx.Options{ProxyURL: eff.ProxyURL, Timeout: eff.Timeout})
	if err != nil {
		return provider.Registry{}, err
	}
	rc := httpx.NewResty(hc, log)

	adapters := []provider.Adapter{
		tcgplayer.Adapter{ScryfallBaseURL: eff.ScryfallBaseURL, Client: rc, Log: log},
	}
	for _, id := range shop.IDs() {
		base := ""
		if id == eff.Shop {
			base = eff.ShopBaseURL
		}
		a, err := shop.New(id, base, rc, log)
		if err != nil {
			return provider.Registry{}, err
		}
		adapters = append(adapters, a)
	}
	return provider.NewRegistry(adapters...)
}

// Execute 执行一次 run，返回对外稳定的 RunReport。
//
// 只有启动阶段（读牌表、打开缓存、选择适配器）的失败会返回 error；
// 单张牌的查询失败在适配器边界已降级为 UNK。
func Execute(ctx context.Context, eff config.EffectiveConfig, deps Deps) (domain.RunReport, error) {
	return ExecuteWithObserver(ctx, eff, deps, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息（由上层决定是否启用）。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, deps Deps, obs Observer) (domain.RunReport, error) {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	log := logx.OrDiscard(deps.Log)

	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		Deck:      eff.DeckPath,
		Shop:      eff.Shop,
		TotalMode: eff.TotalMode,
		StartedAt: now(),
	}

	deckStarted := time.Now()
	names, err := deck.ReadFile(eff.DeckPath)
	if err != nil {
		return rr, err
	}
	unique := len(lo.Uniq(names))
	if obs != nil {
		obs.OnPhaseDone("deck", map[string]any{
			"cards":  len(names),
			"unique": unique,
		}, time.Since(deckStarted))
	}
	log.InfoContext(ctx, "牌表已读取", slog.Int("cards", len(names)), slog.Int("unique", unique))

	primary, err := deps.Registry.Marketplace()
	if err != nil {
		return rr, err
	}
	proxy, err := deps.Registry.Proxy(eff.Shop)
	if err != nil {
		return rr, err
	}

	store := deps.Store
	if store == nil {
		cacheStarted := time.Now()
		s, err := cache.Open(ctx, eff.CacheDB)
		if err != nil {
			return rr, err
		}
		defer func() {
			if err := s.Close(); err != nil {
				log.WarnContext(ctx, "关闭缓存失败", logx.Error(err))
			}
		}()
		store = s
		if obs != nil {
			fields := map[string]any{"path": eff.CacheDB}
			if n, err := s.Count(ctx); err == nil {
				fields["records"] = n
			}
			obs.OnPhaseDone("cache", fields, time.Since(cacheStarted))
		}
	}

	resolver, err := resolve.New(primary, proxy, store, eff.StaleAfter, log)
	if err != nil {
		return rr, err
	}
	resolver.Now = now

	resolveStarted := time.Now()
	agg := app.NewAggregator(eff.TotalMode)
	for i, name := range names {
		oneStarted := time.Now()
		ev := CardEvent{Name: name}

		if agg.Has(name) {
			// 同名再次出现：只累加数量，不再解析。
			agg.Add(name, domain.ResolvedCard{})
		} else {
			res := resolver.Resolve(ctx, name)
			agg.AddResult(name, res)
			ev.Added = true
			ev.From = res.From
			ev.Memo = res.Memo
		}
		ev.Entry, _ = agg.Entry(name)

		if obs != nil {
			obs.OnCardDone(i+1, len(names), ev, time.Since(oneStarted))
		}
	}

	rr.Entries = agg.Entries()
	rr.Total = agg.Total()
	rr.FinishedAt = now()
	rr.Finalize()

	if obs != nil {
		obs.OnPhaseDone("resolve", map[string]any{
			"entries": rr.Summary.Cards,
			"priced":  rr.Summary.Priced,
			"unknown": rr.Summary.Unknown,
			"cached":  rr.Summary.Cached,
		}, time.Since(resolveStarted))
	}
	log.InfoContext(ctx, "解析完成",
		slog.Int("entries", rr.Summary.Cards),
		slog.Int("unknown", rr.Summary.Unknown),
		slog.String("total", rr.Total.StringFixed(2)),
	)
	return rr, nil
}

// Purchase 基于运行结果生成采购计划（mass import 行与需要打开的链接）。
func Purchase(eff config.EffectiveConfig, reg provider.Registry, rr domain.RunReport) planner.Purchase {
	return planner.PlanPurchase(rr.Entries, planner.Options{
		MassImport:  eff.MassImport,
		OpenBrowser: eff.OpenBrowser,
		IsProxyShop: reg.IsProxyShop,
	})
}
