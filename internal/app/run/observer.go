package run

import (
	"time"

	"github.com/John-Robertt/deckprice/internal/config"
	"github.com/John-Robertt/deckprice/internal/domain"
	"github.com/John-Robertt/deckprice/internal/resolve"
)

// CardEvent 描述牌表中一行（展开后的一张牌）处理完成后的结果。
type CardEvent struct {
	Name string
	// Added 为 true 表示首次出现（新增条目）；false 表示只累加了数量。
	Added bool
	Entry domain.OutputEntry
	From  resolve.State
	Memo  bool
}

// Observer 用于把“运行进度/阶段/单张牌结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - 事件按牌表顺序在调用方 goroutine 中同步发出。
type Observer interface {
	// OnStart 在 ExecuteWithObserver 开始时调用。
	OnStart(eff config.EffectiveConfig)
	// OnPhaseDone 在阶段结束时调用（deck / cache / resolve）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnCardDone 在每张牌处理完成时调用。
	OnCardDone(idx, total int, ev CardEvent, dur time.Duration)
}
