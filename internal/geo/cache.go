package geo

import (
	"context"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"geo-enrich/internal/metrics"
)

// 文档注释：坐标缓存（内存为主，Redis 为可选二级）
// 背景：同一地点在多人物、多批次间反复出现，缓存避免重复查询；
// "查过但无坐标"记为显式缺失（nil 值），与"未查过"区分，后者才会触发网络请求。
// 约束：单线程运行期内存层即为权威；Redis 层仅用于跨运行保温，读穿/写穿，不设 TTL。
type CoordCache struct {
	mem   map[string]*Coordinate
	known map[string]bool
	rdb   *redis.Client
}

// NewCoordCache：构建坐标缓存；rdb 传 nil 时仅内存层
func NewCoordCache(rdb *redis.Client) *CoordCache {
	return &CoordCache{
		mem:   make(map[string]*Coordinate),
		known: make(map[string]bool),
		rdb:   rdb,
	}
}

const redisCoordPrefix = "geo:coord:"

// absentMarker：Redis 中的"确认缺失"标记值
const absentMarker = "-"

// Get：查询某地点坐标
// 返回：known 为 false 表示本运行内未查询过该地点；known 为 true 且 coord 为 nil 表示确认无坐标。
func (c *CoordCache) Get(ctx context.Context, qid string) (*Coordinate, bool) {
	if c.known[qid] {
		metrics.CoordCacheHitsTotal.Inc()
		return c.mem[qid], true
	}
	if c.rdb == nil {
		return nil, false
	}
	v, err := c.rdb.Get(ctx, redisCoordPrefix+qid).Result()
	if err != nil {
		metrics.RedisMissesTotal.Inc()
		return nil, false
	}
	metrics.RedisHitsTotal.Inc()
	coord := decodeCoord(v)
	c.mem[qid] = coord
	c.known[qid] = true
	return coord, true
}

// SetCoord：写入已解析坐标
func (c *CoordCache) SetCoord(ctx context.Context, qid string, coord *Coordinate) {
	c.mem[qid] = coord
	c.known[qid] = true
	if c.rdb != nil {
		c.rdb.Set(ctx, redisCoordPrefix+qid, encodeCoord(coord), 0)
	}
}

// SetAbsent：记录"查过、无坐标"
// 为什么：缺失也要占位，否则每批都会对同一批无坐标地点重复发起查询
func (c *CoordCache) SetAbsent(ctx context.Context, qid string) {
	if _, ok := c.mem[qid]; ok && c.mem[qid] != nil {
		// NOTE: 已有坐标不被缺失标记覆盖；批量查询先统一置缺失再回填命中行
		return
	}
	c.mem[qid] = nil
	c.known[qid] = true
	if c.rdb != nil {
		c.rdb.Set(ctx, redisCoordPrefix+qid, absentMarker, 0)
	}
}

// encodeCoord：坐标编码为 "lon,lat" 文本；nil 编码为缺失标记
// 约束：编码沿用线格式的经度在前次序，避免引入第二种约定
func encodeCoord(coord *Coordinate) string {
	if coord == nil {
		return absentMarker
	}
	return strconv.FormatFloat(coord.Lon, 'f', -1, 64) + "," + strconv.FormatFloat(coord.Lat, 'f', -1, 64)
}

func decodeCoord(v string) *Coordinate {
	if v == absentMarker {
		return nil
	}
	parts := strings.SplitN(v, ",", 2)
	if len(parts) != 2 {
		return nil
	}
	lon, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return nil
	}
	lat, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return nil
	}
	return &Coordinate{Lat: lat, Lon: lon}
}

// 文档注释：行政上级缓存
// 背景：P131 关系在回溯的逐跳扩张中重复访问；保留查询返回的父级次序，
// "先见先取"的判定依赖该次序，不可排序或去重改变。
type ParentCache struct {
	m     map[string][]string
	known map[string]bool
}

func NewParentCache() *ParentCache {
	return &ParentCache{m: make(map[string][]string), known: make(map[string]bool)}
}

// Get：取某地点的父级列表；known 为 false 表示未查询过
func (p *ParentCache) Get(qid string) ([]string, bool) {
	return p.m[qid], p.known[qid]
}

// MarkQueried：标记"已查询"，无父级的地点也会得到空列表占位
func (p *ParentCache) MarkQueried(qid string) {
	if !p.known[qid] {
		p.known[qid] = true
	}
}

// Append：追加一个父级，保持返回次序
func (p *ParentCache) Append(qid, parent string) {
	p.m[qid] = append(p.m[qid], parent)
	p.known[qid] = true
}
