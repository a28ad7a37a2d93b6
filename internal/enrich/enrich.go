// 包 enrich：批处理编排——切批、快照加载或拉取、父级回溯、记录构建与状态终结
package enrich

import (
	"context"
	"fmt"
	"sort"

	"geo-enrich/internal/geo"
	"geo-enrich/internal/input"
	"geo-enrich/internal/logger"
	"geo-enrich/internal/snapshot"
	"geo-enrich/internal/wdqs"
)

// 文档注释：批处理编排器
// 背景：单线程顺序驱动整条管线；批次按输入实体列表的固定次序切分，
// 该次序决定缓存填充次序、进而决定父级回溯"先见先取"的结果，续跑与复跑依赖它保持稳定。
// 约束：对外部服务不并发——观测到端点存在未公示的共享限流，串行加固定间隔是可持续的访问方式。
type Runner struct {
	q         geo.Querier
	snapshots snapshot.Store
	coords    *geo.CoordCache
	parents   *geo.ParentCache
	resolver  *geo.Resolver
	batchSize int
}

// NewRunner：依赖全部显式注入，缓存由调用方创建并贯穿整次运行
func NewRunner(q geo.Querier, snapshots snapshot.Store, coords *geo.CoordCache, parents *geo.ParentCache, resolver *geo.Resolver, entityBatch int) *Runner {
	if entityBatch <= 0 {
		entityBatch = 200
	}
	return &Runner{
		q:         q,
		snapshots: snapshots,
		coords:    coords,
		parents:   parents,
		resolver:  resolver,
		batchSize: entityBatch,
	}
}

// 文档注释：构建基础记录表
// 背景：先为每个合法输入实体占位一条记录，零定位语句的人物也保证恰好一条输出；
// 缺 id 或格式非法的条目跳过并告警，不进入任何查询。
func BuildBaseRecords(authors []input.Author) (map[string]*geo.PersonGeoRecord, []string) {
	records := make(map[string]*geo.PersonGeoRecord, len(authors))
	var qids []string
	for _, a := range authors {
		if !wdqs.IsValidQID(a.ID) {
			logger.L().Warn("author_skipped_bad_qid", "id", a.ID, "name", a.Content)
			continue
		}
		if _, dup := records[a.ID]; dup {
			logger.L().Warn("author_skipped_duplicate", "id", a.ID)
			continue
		}
		name := a.Content
		if name == "" {
			name = a.ID
		}
		qids = append(qids, a.ID)
		records[a.ID] = &geo.PersonGeoRecord{
			ID:                a.ID,
			Name:              name,
			WikipediaURL:      a.WikipediaURL,
			ActiveRange:       geo.ActiveRange{Start: a.Start, End: a.End},
			Status:            geo.StatusMissingWikidataLocation,
			NeedsManualLookup: true,
			Locations:         []geo.LocationStatement{},
			UnknownReason:     "no_locations_yet",
		}
	}
	return records, qids
}

// 文档注释：执行整次运行
// 流程：逐批 加载快照或拉取并落快照 → 解析行 → 回填直接坐标并解析缺坐标地点 → 落语句；
// 全部批次完成后逐人终结状态并去重。
// 异常：批级错误带批次号上抛并中止整次运行——静默的部分数据与"查无定位"不可区分，宁可失败。
func (r *Runner) Run(ctx context.Context, authors []input.Author) (map[string]*geo.PersonGeoRecord, error) {
	records, qids := BuildBaseRecords(authors)
	builder := geo.NewBuilder(r.coords, records)

	batches := chunkStrings(qids, r.batchSize)
	for bi, batch := range batches {
		res, ok, err := r.snapshots.Load(bi)
		if err != nil {
			return nil, fmt.Errorf("batch %d: %w", bi, err)
		}
		if ok {
			logger.L().Info("batch_loaded_from_snapshot", "batch", bi, "total", len(batches))
		} else {
			logger.L().Info("batch_fetch_begin", "batch", bi, "total", len(batches), "entities", len(batch))
			sparql := wdqs.BuildPeopleLocationsQuery(batch)
			if sparql == "" {
				logger.L().Warn("batch_skipped_no_valid_qids", "batch", bi)
				continue
			}
			res, err = r.q.Query(ctx, sparql)
			if err != nil {
				return nil, fmt.Errorf("batch %d: %w", bi, err)
			}
			if err := r.snapshots.Save(bi, res); err != nil {
				return nil, fmt.Errorf("batch %d: persist snapshot: %w", bi, err)
			}
		}

		rows := geo.ParseLocationRows(res)
		pending := builder.CollectUnresolved(ctx, rows)
		if len(pending) > 0 {
			logger.L().Info("resolver_begin", "batch", bi, "places", len(pending))
		}
		resolved, err := r.resolver.Resolve(ctx, pending)
		if err != nil {
			return nil, fmt.Errorf("batch %d: %w", bi, err)
		}
		builder.AppendStatements(rows, resolved)
		logger.L().Info("batch_done", "batch", bi, "rows", len(rows))
	}

	logger.L().Info("finalize_begin", "records", len(records))
	for _, rec := range records {
		geo.Finalize(rec)
	}
	return records, nil
}

// 文档注释：状态分布汇总
// 背景：运行结束后给操作者一张计数表，异常分布（如 missing 比例陡增）是上游数据或查询退化的信号
func Summary(records map[string]*geo.PersonGeoRecord) map[geo.Status]int {
	out := make(map[geo.Status]int)
	for _, rec := range records {
		out[rec.Status]++
	}
	return out
}

// LogSummary：按固定次序打印状态计数
func LogSummary(records map[string]*geo.PersonGeoRecord) {
	counts := Summary(records)
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	for _, k := range keys {
		logger.L().Info("status_count", "status", k, "count", counts[geo.Status(k)])
	}
}

func chunkStrings(list []string, n int) [][]string {
	var out [][]string
	for i := 0; i < len(list); i += n {
		j := i + n
		if j > len(list) {
			j = len(list)
		}
		out = append(out, list[i:j])
	}
	return out
}
