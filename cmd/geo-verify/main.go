// 核查工具：对输出文档做不变量检查（全覆盖、去重、坐标来源一致性、状态与原因匹配）
package main

import (
	"os"

	"github.com/joho/godotenv"

	"geo-enrich/internal/config"
	"geo-enrich/internal/geo"
	"geo-enrich/internal/input"
	"geo-enrich/internal/logger"
	"geo-enrich/internal/wdqs"
)

func main() {
	_ = godotenv.Load(".env")
	l := logger.Setup()
	cfg := config.FromEnv()

	authors, err := input.LoadAuthors(cfg.AuthorsPath)
	if err != nil {
		l.Error("authors_load_error", "err", err)
		os.Exit(1)
	}
	records, err := input.ReadOutput(cfg.OutPath)
	if err != nil {
		l.Error("output_load_error", "err", err)
		os.Exit(1)
	}

	violations := 0

	// 全覆盖：每个合法输入实体恰好一条记录，不多不少；非法 QID 在富化时即被跳过
	expected := make(map[string]bool)
	for _, a := range authors {
		if wdqs.IsValidQID(a.ID) {
			expected[a.ID] = true
		}
	}
	for qid := range expected {
		if _, ok := records[qid]; !ok {
			l.Error("verify_missing_record", "qid", qid)
			violations++
		}
	}
	for qid := range records {
		if !expected[qid] {
			l.Error("verify_unexpected_record", "qid", qid)
			violations++
		}
	}

	counts := make(map[geo.Status]int)
	for qid, rec := range records {
		counts[rec.Status]++

		// 去重不变量：(来源属性, 地点, 限定起, 限定止) 无重复
		type key struct {
			rel        geo.SourceRelation
			place      string
			start, end string
		}
		seen := make(map[key]bool)
		for _, loc := range rec.Locations {
			k := key{rel: loc.Relation, place: loc.PlaceID, start: loc.Time.Start, end: loc.Time.End}
			if seen[k] {
				l.Error("verify_duplicate_location", "qid", qid, "place", loc.PlaceID)
				violations++
			}
			seen[k] = true

			// 坐标与来源标记一致：有坐标当且仅当来源不是 missing
			if (loc.Coord != nil) != (loc.CoordSource != geo.SourceMissing) {
				l.Error("verify_coord_source_mismatch", "qid", qid, "place", loc.PlaceID, "source", loc.CoordSource)
				violations++
			}
		}

		// 状态是 locations 的纯函数：重算必须一致
		status, needsLookup, reason := geo.Classify(rec.Locations)
		if status != rec.Status || needsLookup != rec.NeedsManualLookup || reason != rec.UnknownReason {
			l.Error("verify_status_mismatch", "qid", qid, "stored", rec.Status, "computed", status)
			violations++
		}
	}

	for st, c := range counts {
		l.Info("verify_status_count", "status", st, "count", c)
	}
	if violations > 0 {
		l.Error("verify_failed", "violations", violations)
		os.Exit(1)
	}
	l.Info("verify_ok", "records", len(records))
}
