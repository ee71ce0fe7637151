package cache

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/John-Robertt/deckprice/internal/domain"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// ErrClosed 表示 Store 已关闭。
var ErrClosed = errors.New("cache: closed")

// Store 是持久化的价格缓存（单文件 sqlite，单进程写入）。
//
// 约束：
// - Open 时总是执行 CREATE TABLE IF NOT EXISTS；失败即启动失败
// - Put 是 upsert：同名记录整行覆盖，不追加
type Store struct {
	mu sync.Mutex
	db *sqlx.DB
}

type row struct {
	Name          string              `db:"name"`
	PrimarySource string              `db:"primary_source"`
	PrimaryURL    string              `db:"primary_url"`
	PrimaryPrice  decimal.NullDecimal `db:"primary_price"`
	ProxySource   string              `db:"proxy_source"`
	ProxyURL      string              `db:"proxy_url"`
	ProxyPrice    decimal.NullDecimal `db:"proxy_price"`
	ResolvedAt    string              `db:"resolved_at"`
}

// Open 打开（必要时创建）path 处的缓存库并确保表结构存在。
func Open(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("缓存路径不能为空")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("创建缓存目录失败：%w", err)
		}
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("打开缓存失败：%w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("打开缓存失败：%w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("初始化缓存表失败：%w", err)
	}
	return &Store{db: db}, nil
}

// Get 按牌名（原样、大小写敏感）读取记录；不存在时 found=false 且 err=nil。
func (s *Store) Get(ctx context.Context, name string) (domain.CacheRecord, bool, error) {
	db, err := s.handle()
	if err != nil {
		return domain.CacheRecord{}, false, err
	}

	var r row
	err = db.GetContext(ctx, &r, `SELECT * FROM cards WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CacheRecord{}, false, nil
	}
	if err != nil {
		return domain.CacheRecord{}, false, fmt.Errorf("读取缓存失败：%w", err)
	}
	return r.record(), true, nil
}

// Put 写入（或覆盖）一条记录。Offers[0] 视为主市场报价，Offers[1]（可选）为代理店报价。
func (s *Store) Put(ctx context.Context, rec domain.CacheRecord) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	r, err := rowOf(rec)
	if err != nil {
		return err
	}

	_, err = db.NamedExecContext(ctx, `
INSERT INTO cards (name, primary_source, primary_url, primary_price, proxy_source, proxy_url, proxy_price, resolved_at)
VALUES (:name, :primary_source, :primary_url, :primary_price, :proxy_source, :proxy_url, :proxy_price, :resolved_at)
ON CONFLICT(name) DO UPDATE SET
    primary_source = excluded.primary_source,
    primary_url    = excluded.primary_url,
    primary_price  = excluded.primary_price,
    proxy_source   = excluded.proxy_source,
    proxy_url      = excluded.proxy_url,
    proxy_price    = excluded.proxy_price,
    resolved_at    = excluded.resolved_at`, r)
	if err != nil {
		return fmt.Errorf("写入缓存失败：%w", err)
	}
	return nil
}

// Count 返回缓存中的记录数。
func (s *Store) Count(ctx context.Context) (int, error) {
	db, err := s.handle()
	if err != nil {
		return 0, err
	}
	var n int
	if err := db.GetContext(ctx, &n, `SELECT COUNT(*) FROM cards`); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) handle() (*sqlx.DB, error) {
	if s == nil {
		return nil, ErrClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, ErrClosed
	}
	return s.db, nil
}

func rowOf(rec domain.CacheRecord) (row, error) {
	if rec.Name == "" {
		return row{}, fmt.Errorf("name 不能为空")
	}
	if len(rec.Offers) == 0 || len(rec.Offers) > 2 {
		return row{}, fmt.Errorf("offers 数量非法：%d", len(rec.Offers))
	}
	p := rec.Offers[0]
	r := row{
		Name:          rec.Name,
		PrimarySource: string(p.Source),
		PrimaryURL:    p.URL,
		PrimaryPrice:  p.Price,
		ResolvedAt:    rec.ResolvedAt.UTC().Format(domain.TimestampLayout),
	}
	if len(rec.Offers) == 2 {
		x := rec.Offers[1]
		r.ProxySource = string(x.Source)
		r.ProxyURL = x.URL
		r.ProxyPrice = x.Price
	}
	return r, nil
}

// record 还原为 CacheRecord。无法解析的时间戳还原为零值（上层视为过期）。
func (r row) record() domain.CacheRecord {
	offers := []domain.Offer{offerOf(r.PrimarySource, r.PrimaryURL, r.PrimaryPrice)}
	if r.ProxySource != "" {
		offers = append(offers, offerOf(r.ProxySource, r.ProxyURL, r.ProxyPrice))
	}
	at, err := time.ParseInLocation(domain.TimestampLayout, strings.TrimSpace(r.ResolvedAt), time.UTC)
	if err != nil {
		at = time.Time{}
	}
	return domain.CacheRecord{Name: r.Name, Offers: offers, ResolvedAt: at}
}

func offerOf(src, url string, price decimal.NullDecimal) domain.Offer {
	if !price.Valid {
		return domain.Unresolved(domain.VendorID(src))
	}
	return domain.NewOffer(domain.VendorID(src), url, price.Decimal)
}
