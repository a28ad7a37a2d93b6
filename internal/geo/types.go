// 包 geo：地理富化的领域模型、坐标/上级缓存、父级回溯解析与状态归类
package geo

import (
	"strconv"
	"strings"
)

// Coordinate：纬度/经度对
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// SourceRelation：定位语句的来源属性
// 约束：四类来源不可互换——出生地/逝世地为简单事实，工作地/居住地携带时间限定与语句等级
type SourceRelation string

const (
	RelWorkLocation SourceRelation = "P937"
	RelResidence    SourceRelation = "P551"
	RelBirthPlace   SourceRelation = "P19"
	RelDeathPlace   SourceRelation = "P20"
)

// CoordSource：坐标的取得方式
type CoordSource string

const (
	SourceExact     CoordSource = "exact"
	SourceViaParent CoordSource = "via_parent"
	SourceMissing   CoordSource = "missing"
)

// Rank：语句等级
type Rank string

const (
	RankPreferred  Rank = "preferred"
	RankNormal     Rank = "normal"
	RankDeprecated Rank = "deprecated"
	RankUnknown    Rank = "unknown"
)

// Status：每人最终的地理数据质量状态
type Status string

const (
	StatusOk                      Status = "ok"
	StatusNeedsReview             Status = "needs_review"
	StatusMissingCoordinates      Status = "missing_coordinates"
	StatusMissingWikidataLocation Status = "missing_wikidata_location"
)

// QualifierTime：语句上的可选时间限定；未限定时前端按人物活跃区间全程有效处理
type QualifierTime struct {
	Start          string `json:"start,omitempty"`
	End            string `json:"end,omitempty"`
	FromQualifiers bool   `json:"from_qualifiers"`
}

// LocationStatement：一条定位语句（查询行与已解析坐标的合并结果）
type LocationStatement struct {
	Relation    SourceRelation `json:"source_property"`
	PlaceID     string         `json:"place_qid"`
	PlaceLabel  string         `json:"place_label"`
	Coord       *Coordinate    `json:"coord"`
	CoordSource CoordSource    `json:"coord_source"`
	ParentHops  int            `json:"parent_hops"`
	Time        QualifierTime  `json:"time"`
	Rank        Rank           `json:"rank"`
}

// ActiveRange：人物活跃年份区间，来自上游元数据，这里只透传
type ActiveRange struct {
	Start *int `json:"start"`
	End   *int `json:"end"`
}

// PersonGeoRecord：按 QID 键控的单人输出记录
// 约束：每个输入实体恰好产出一条记录；geo_status 是 locations 的纯函数，归类后不再单独改动
type PersonGeoRecord struct {
	ID                string              `json:"id"`
	Name              string              `json:"name"`
	WikipediaURL      string              `json:"wikipedia_url,omitempty"`
	ActiveRange       ActiveRange         `json:"active_range"`
	Status            Status              `json:"geo_status"`
	NeedsManualLookup bool                `json:"needs_manual_lookup"`
	Locations         []LocationStatement `json:"locations"`
	UnknownReason     string              `json:"unknown_reason,omitempty"`
}

// 文档注释：解析 WKT 几何点
// 背景：WDQS 以 "Point(12.4924 41.8902)" 形式返回，内部次序为 经度 纬度；
// 该反转必须原样保留，静默的经纬互换是此类管线最隐蔽的数据缺陷。
// 返回：解析失败返回 nil，调用方按"无坐标"处理。
func ParsePoint(wkt string) *Coordinate {
	i := strings.Index(wkt, "Point(")
	if i < 0 {
		return nil
	}
	inner := wkt[i+len("Point("):]
	j := strings.IndexByte(inner, ')')
	if j < 0 {
		return nil
	}
	fields := strings.Fields(inner[:j])
	if len(fields) != 2 {
		return nil
	}
	lon, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return nil
	}
	lat, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return nil
	}
	return &Coordinate{Lat: lat, Lon: lon}
}

// NormalizeRank：把 wikibase rank URI 归一为短名
// 背景：URI 以 ...#PreferredRank 等结尾；无 rank 列（直连属性来源）时返回空串由调用方补 unknown
func NormalizeRank(rankURI string) Rank {
	switch {
	case rankURI == "":
		return ""
	case strings.HasSuffix(rankURI, "PreferredRank"):
		return RankPreferred
	case strings.HasSuffix(rankURI, "NormalRank"):
		return RankNormal
	case strings.HasSuffix(rankURI, "DeprecatedRank"):
		return RankDeprecated
	default:
		return RankUnknown
	}
}
