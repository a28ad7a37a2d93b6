package geo

import (
	"context"

	"geo-enrich/internal/metrics"
	"geo-enrich/internal/wdqs"
)

// Row：人物定位查询的一行解析结果
// 背景：把松散的命名绑定在解析边界收敛为显式结构；必填列（人物/来源/地点）缺失的行在此处丢弃，
// 不让坏行进入业务逻辑深处。
type Row struct {
	PersonQID  string
	Relation   SourceRelation
	PlaceQID   string
	PlaceLabel string
	Rank       Rank
	QualStart  string
	QualEnd    string
	Coord      *Coordinate
}

// validRelations：查询中 BIND 的来源属性全集
var validRelations = map[string]SourceRelation{
	"P937": RelWorkLocation,
	"P551": RelResidence,
	"P19":  RelBirthPlace,
	"P20":  RelDeathPlace,
}

// 文档注释：解析人物定位结果集
// 约束：单行畸形不拖垮整批，静默跳过并计数；rank 列仅语句节点来源携带，缺失归 unknown。
func ParseLocationRows(res *wdqs.Result) []Row {
	rows := make([]Row, 0, len(res.Results.Bindings))
	for _, b := range res.Results.Bindings {
		personURI, okPerson := b.Value("person")
		prop, okProp := b.Value("prop")
		placeURI, okPlace := b.Value("place")
		if !okPerson || !okProp || !okPlace {
			metrics.RowsSkippedTotal.Inc()
			continue
		}
		rel, ok := validRelations[prop]
		if !ok {
			metrics.RowsSkippedTotal.Inc()
			continue
		}
		personQID := wdqs.URIToQID(personURI)
		placeQID := wdqs.URIToQID(placeURI)

		var coord *Coordinate
		if wkt, ok := b.Value("coord"); ok {
			coord = ParsePoint(wkt)
		}
		label, _ := b.Value("placeLabel")
		if label == "" {
			label = placeQID
		}
		rankURI, _ := b.Value("rank")
		rank := NormalizeRank(rankURI)
		if rank == "" {
			rank = RankUnknown
		}
		start, _ := b.Value("startTime")
		end, _ := b.Value("endTime")

		rows = append(rows, Row{
			PersonQID:  personQID,
			Relation:   rel,
			PlaceQID:   placeQID,
			PlaceLabel: label,
			Rank:       rank,
			QualStart:  start,
			QualEnd:    end,
			Coord:      coord,
		})
	}
	return rows
}

// 文档注释：定位记录构建器
// 背景：把原始行与解析器产出的坐标汇入按人键控的记录；语句仅在补挂坐标时被改写，
// 随后冻结进所属记录。
type Builder struct {
	coords  *CoordCache
	records map[string]*PersonGeoRecord
}

// NewBuilder：records 为按 QID 预建的基础记录表，构建器只追加不创建
func NewBuilder(coords *CoordCache, records map[string]*PersonGeoRecord) *Builder {
	return &Builder{coords: coords, records: records}
}

// 文档注释：收集一批行的待解析地点并回填直接坐标
// 返回：按首见次序去重后的无直接坐标地点列表，交给解析器
func (b *Builder) CollectUnresolved(ctx context.Context, rows []Row) []string {
	var pending []string
	seen := make(map[string]bool)
	for _, r := range rows {
		if r.Coord != nil {
			b.coords.SetCoord(ctx, r.PlaceQID, r.Coord)
			continue
		}
		if !seen[r.PlaceQID] {
			seen[r.PlaceQID] = true
			pending = append(pending, r.PlaceQID)
		}
	}
	return pending
}

// 文档注释：把一批行落成定位语句
// 约束：直接坐标优先；否则取解析器结果，未覆盖的地点按 missing 落档。
// 不认识的人物 QID（不在输入实体表中）直接丢弃行。
func (b *Builder) AppendStatements(rows []Row, resolved map[string]Resolution) {
	for _, r := range rows {
		rec, ok := b.records[r.PersonQID]
		if !ok {
			continue
		}
		coord := r.Coord
		source := SourceExact
		hops := 0
		if coord == nil {
			res, ok := resolved[r.PlaceQID]
			if !ok {
				res = Resolution{Source: SourceMissing}
			}
			coord, source, hops = res.Coord, res.Source, res.Hops
		}
		rec.Locations = append(rec.Locations, LocationStatement{
			Relation:    r.Relation,
			PlaceID:     r.PlaceQID,
			PlaceLabel:  r.PlaceLabel,
			Coord:       coord,
			CoordSource: source,
			ParentHops:  hops,
			Time: QualifierTime{
				Start:          r.QualStart,
				End:            r.QualEnd,
				FromQualifiers: r.QualStart != "" || r.QualEnd != "",
			},
			Rank: r.Rank,
		})
	}
}

// 文档注释：状态归类（纯函数）
// 规则：无语句 → missing_wikidata_location；有语句无坐标 → missing_coordinates；
// 仅父级回溯坐标 → needs_review（精度降级，提示可选人工修正，不阻断）；
// 存在至少一个 exact → ok。
func Classify(locations []LocationStatement) (Status, bool, string) {
	if len(locations) == 0 {
		return StatusMissingWikidataLocation, true, "no_wikidata_places"
	}
	mappable := 0
	exact := 0
	for _, l := range locations {
		if l.Coord == nil {
			continue
		}
		mappable++
		if l.CoordSource == SourceExact {
			exact++
		}
	}
	if mappable == 0 {
		return StatusMissingCoordinates, true, "places_without_coordinates"
	}
	if exact == 0 {
		return StatusNeedsReview, false, "only_parent_fallback_coordinates"
	}
	return StatusOk, false, ""
}

// 文档注释：终结单条记录：归类 + 精确去重
// 约束：去重键为 (来源属性, 地点, 限定起, 限定止)，保持首见次序；仅做精确去重，不做近似合并。
// 归类先于去重不影响结果——重复语句的坐标解析相同，存在性判定对去重不敏感。
func Finalize(rec *PersonGeoRecord) {
	status, needsLookup, reason := Classify(rec.Locations)
	rec.Status = status
	rec.NeedsManualLookup = needsLookup
	rec.UnknownReason = reason

	type dedupKey struct {
		rel        SourceRelation
		place      string
		start, end string
	}
	seen := make(map[dedupKey]bool, len(rec.Locations))
	deduped := rec.Locations[:0]
	for _, l := range rec.Locations {
		k := dedupKey{rel: l.Relation, place: l.PlaceID, start: l.Time.Start, end: l.Time.End}
		if seen[k] {
			continue
		}
		seen[k] = true
		deduped = append(deduped, l)
	}
	rec.Locations = deduped
	metrics.StatusTotal.WithLabelValues(string(status)).Inc()
}
