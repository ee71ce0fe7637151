package resolve

import (
	"time"

	"github.com/John-Robertt/deckprice/internal/domain"
)

// State 是单张牌在一次运行中的解析状态。
type State int

const (
	Unresolved State = iota
	CachedFresh
	CachedStale
	Resolving
	Resolved
)

func (s State) String() string {
	switch s {
	case Unresolved:
		return "unresolved"
	case CachedFresh:
		return "cached_fresh"
	case CachedStale:
		return "cached_stale"
	case Resolving:
		return "resolving"
	case Resolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// DefaultStaleAfter 是缓存记录的默认有效期。
const DefaultStaleAfter = 5 * 24 * time.Hour

// Classify 判断缓存记录的新鲜度。零值时间戳（含无法解析的）一律视为过期。
func Classify(rec domain.CacheRecord, found bool, now time.Time, staleAfter time.Duration) State {
	if !found {
		return Unresolved
	}
	if rec.ResolvedAt.IsZero() {
		return CachedStale
	}
	if now.Sub(rec.ResolvedAt) < staleAfter {
		return CachedFresh
	}
	return CachedStale
}
