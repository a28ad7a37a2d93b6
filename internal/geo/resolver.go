package geo

import (
	"context"
	"fmt"

	"geo-enrich/internal/logger"
	"geo-enrich/internal/metrics"
	"geo-enrich/internal/wdqs"
)

// Querier：解析器对查询服务的最小依赖；便于测试注入
type Querier interface {
	Query(ctx context.Context, sparql string) (*wdqs.Result, error)
}

// Resolution：单个地点的解析结果三元组
type Resolution struct {
	Coord  *Coordinate
	Source CoordSource
	Hops   int
}

// 文档注释：父级回溯解析器
// 背景：许多历史地点（古城、考古遗址条目）没有直接坐标，但其行政隶属链上的市/省级条目有；
// 以受限跳数的逐层扩张在隶属图中找到首个带坐标的祖先，换取"可上图但精度降级"的坐标。
// 约束：隶属图不保证无环也不保证树形，已访问集合去重兼做环路终止；
// 每个子节点按父级返回次序取"先见"而非"最近"，该判定依赖外部服务未约定的行序，属尽力而为。
type Resolver struct {
	q          Querier
	coords     *CoordCache
	parents    *ParentCache
	placeBatch int
	maxHops    int
}

// NewResolver：构建解析器
// 参数：placeBatch 为地点类查询的批大小；maxHops 为回溯跳数预算，0 表示不回溯
func NewResolver(q Querier, coords *CoordCache, parents *ParentCache, placeBatch, maxHops int) *Resolver {
	if placeBatch <= 0 {
		placeBatch = 50
	}
	return &Resolver{q: q, coords: coords, parents: parents, placeBatch: placeBatch, maxHops: maxHops}
}

// 文档注释：批量解析地点坐标（带父级回溯）
// 流程：先为未知地点补坐标查询；缓存命中者即为 exact（0 跳）；其余进入逐跳扩张——
// 每跳补齐当前边界的父级关系、计算未访问的新边界、为新边界补坐标，
// 再按次序为当前边界内仍未解决的地点取首个有坐标的父级（via_parent，记当前跳数）。
// 终止：跳数预算耗尽或无新边界。
// 边界情形：输入为空立即返回空表；maxHops 为 0 时全部未命中者直接判 missing，不发父级查询。
func (r *Resolver) Resolve(ctx context.Context, placeQIDs []string) (map[string]Resolution, error) {
	out := make(map[string]Resolution)
	if len(placeQIDs) == 0 {
		return out, nil
	}

	var unknown []string
	for _, q := range placeQIDs {
		if _, known := r.coords.Get(ctx, q); !known && wdqs.IsValidQID(q) {
			unknown = append(unknown, q)
		}
	}
	if err := r.fetchCoords(ctx, unknown); err != nil {
		return nil, err
	}

	var needParents []string
	for _, q := range placeQIDs {
		if c, _ := r.coords.Get(ctx, q); c != nil {
			out[q] = Resolution{Coord: c, Source: SourceExact, Hops: 0}
			metrics.ResolverPlacesTotal.WithLabelValues(string(SourceExact)).Inc()
		} else {
			needParents = append(needParents, q)
		}
	}

	if len(needParents) == 0 || r.maxHops <= 0 {
		for _, q := range needParents {
			out[q] = Resolution{Source: SourceMissing}
			metrics.ResolverPlacesTotal.WithLabelValues(string(SourceMissing)).Inc()
		}
		return out, nil
	}

	frontier := append([]string(nil), needParents...)
	visited := make(map[string]bool, len(frontier))
	for _, q := range frontier {
		visited[q] = true
	}
	best := make(map[string]Resolution, len(needParents))
	for _, q := range needParents {
		best[q] = Resolution{Source: SourceMissing}
	}

	for hop := 1; hop <= r.maxHops; hop++ {
		var toQuery []string
		for _, q := range frontier {
			if _, known := r.parents.Get(q); !known && wdqs.IsValidQID(q) {
				toQuery = append(toQuery, q)
			}
		}
		if err := r.fetchParents(ctx, toQuery); err != nil {
			return nil, err
		}

		// 下一边界：当前边界全部父级的保序去重，剔除已访问节点
		var next []string
		seen := make(map[string]bool)
		for _, q := range frontier {
			ps, _ := r.parents.Get(q)
			for _, p := range ps {
				if seen[p] || visited[p] {
					continue
				}
				seen[p] = true
				next = append(next, p)
			}
		}
		for _, p := range next {
			visited[p] = true
		}
		if len(next) == 0 {
			logger.L().Debug("resolver_frontier_empty", "hop", hop)
			break
		}

		var parentUnknown []string
		for _, p := range next {
			if _, known := r.coords.Get(ctx, p); !known && wdqs.IsValidQID(p) {
				parentUnknown = append(parentUnknown, p)
			}
		}
		if err := r.fetchCoords(ctx, parentUnknown); err != nil {
			return nil, err
		}

		// 当前边界内仍未解决的子节点：按父级返回次序取首个有坐标者
		for _, child := range frontier {
			if b, ok := best[child]; ok && b.Coord != nil {
				continue
			}
			ps, _ := r.parents.Get(child)
			for _, p := range ps {
				if c, _ := r.coords.Get(ctx, p); c != nil {
					best[child] = Resolution{Coord: c, Source: SourceViaParent, Hops: hop}
					break
				}
			}
		}

		logger.L().Debug("resolver_hop_done", "hop", hop, "frontier", len(frontier), "next", len(next))
		frontier = next
	}

	for _, q := range needParents {
		res, ok := best[q]
		if !ok {
			res = Resolution{Source: SourceMissing}
		}
		out[q] = res
		metrics.ResolverPlacesTotal.WithLabelValues(string(res.Source)).Inc()
	}
	return out, nil
}

// fetchCoords：按批查询坐标并写缓存；整批先统一置"确认缺失"，命中行再回填
// 异常：查询失败直接上抛，调用链整体中止——半份坐标进缓存会让后续状态归类不可信
func (r *Resolver) fetchCoords(ctx context.Context, qids []string) error {
	for _, batch := range chunk(qids, r.placeBatch) {
		sparql := wdqs.BuildPlaceCoordQuery(batch)
		if sparql == "" {
			continue
		}
		res, err := r.q.Query(ctx, sparql)
		if err != nil {
			return fmt.Errorf("place coord query: %w", err)
		}
		for _, q := range batch {
			r.coords.SetAbsent(ctx, q)
		}
		for _, b := range res.Results.Bindings {
			placeURI, ok := b.Value("place")
			if !ok {
				metrics.RowsSkippedTotal.Inc()
				continue
			}
			qid := wdqs.URIToQID(placeURI)
			if !wdqs.IsValidQID(qid) {
				continue
			}
			if wkt, ok := b.Value("coord"); ok {
				if c := ParsePoint(wkt); c != nil {
					r.coords.SetCoord(ctx, qid, c)
				}
			}
		}
	}
	return nil
}

// fetchParents：按批查询行政上级并写缓存；保持返回行序追加
func (r *Resolver) fetchParents(ctx context.Context, qids []string) error {
	for _, batch := range chunk(qids, r.placeBatch) {
		sparql := wdqs.BuildPlaceParentQuery(batch)
		if sparql == "" {
			continue
		}
		res, err := r.q.Query(ctx, sparql)
		if err != nil {
			return fmt.Errorf("place parent query: %w", err)
		}
		for _, q := range batch {
			r.parents.MarkQueried(q)
		}
		for _, b := range res.Results.Bindings {
			placeURI, okP := b.Value("place")
			parentURI, okR := b.Value("parent")
			if !okP || !okR {
				// OPTIONAL 未命中的行只起占位作用
				continue
			}
			child := wdqs.URIToQID(placeURI)
			parent := wdqs.URIToQID(parentURI)
			if wdqs.IsValidQID(child) && wdqs.IsValidQID(parent) {
				r.parents.Append(child, parent)
			}
		}
	}
	return nil
}

// chunk：按固定大小切分
func chunk(list []string, n int) [][]string {
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
