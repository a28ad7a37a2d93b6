// 调试工具：对单个 QID 执行人物定位查询并打印解析后的行，定位数据缺失问题时使用
package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/joho/godotenv"

	"geo-enrich/internal/config"
	"geo-enrich/internal/geo"
	"geo-enrich/internal/logger"
	"geo-enrich/internal/wdqs"
)

func main() {
	_ = godotenv.Load(".env")
	l := logger.Setup()
	if len(os.Args) < 2 {
		l.Error("usage", "args", "wdqs-debug <QID>")
		os.Exit(2)
	}
	qid := os.Args[1]
	if !wdqs.IsValidQID(qid) {
		l.Error("bad_qid", "qid", qid)
		os.Exit(2)
	}

	cfg := config.FromEnv()
	client := wdqs.NewClient(cfg.Endpoint, cfg.Sleep, cfg.Timeout, wdqs.RetryPolicy{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.Sleep,
	})

	res, err := client.Query(context.Background(), wdqs.BuildPeopleLocationsQuery([]string{qid}))
	if err != nil {
		l.Error("query_error", "err", err)
		os.Exit(1)
	}
	rows := geo.ParseLocationRows(res)
	l.Info("rows_parsed", "raw", len(res.Results.Bindings), "parsed", len(rows))

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for _, r := range rows {
		_ = enc.Encode(r)
	}
}
