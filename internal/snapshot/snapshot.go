// 包 snapshot：按批次键控的原始响应快照存储，支撑中断续跑
package snapshot

import "geo-enrich/internal/wdqs"

// 文档注释：快照存储抽象
// 背景：每批原始响应在消费前先落盘；重启时已有快照的批次直接加载，零网络成本续跑。
// 约束：键为批次序号，序号由输入实体列表的确定性切分产生——两次运行间不可重排输入；
// 仅整批写入成功的快照可见（原子落盘由实现保证）。
type Store interface {
	// Load：读取某批次快照；ok 为 false 表示不存在（非错误）
	Load(batch int) (res *wdqs.Result, ok bool, err error)
	// Save：持久化某批次快照
	Save(batch int, res *wdqs.Result) error
}
