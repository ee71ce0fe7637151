package domain

import "time"

// TimestampLayout 是缓存与 report 中时间戳的字符串形式（YYYY-MM-DD HH:MM:SS，UTC）。
const TimestampLayout = "2006-01-02 15:04:05"

// CacheRecord 是 ResolvedCard 的持久化形态：每个牌名（大小写敏感，原样）最多一行。
//
// 约束：
// - Offers 按优先级排列（主市场在前），读回时重新做 tie-break，不单独存 best
// - ResolvedAt 只在真正重新查询时刷新；命中缓存不触碰
type CacheRecord struct {
	Name       string
	Offers     []Offer
	ResolvedAt time.Time
}

// Card 把缓存记录还原为 ResolvedCard。
func (r CacheRecord) Card() ResolvedCard {
	return ResolvedCard{
		Name:       r.Name,
		Best:       BestOffer(r.Offers...),
		Offers:     append([]Offer(nil), r.Offers...),
		ResolvedAt: r.ResolvedAt,
	}
}

// RecordOf 把一次解析结果转为缓存记录。
func RecordOf(c ResolvedCard) CacheRecord {
	return CacheRecord{
		Name:       c.Name,
		Offers:     append([]Offer(nil), c.Offers...),
		ResolvedAt: c.ResolvedAt,
	}
}
