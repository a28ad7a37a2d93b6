// 程序入口：读取配置、初始化依赖并驱动地理富化批处理；业务逻辑在 internal 各包
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"geo-enrich/internal/config"
	"geo-enrich/internal/enrich"
	"geo-enrich/internal/geo"
	"geo-enrich/internal/input"
	"geo-enrich/internal/logger"
	"geo-enrich/internal/metrics"
	"geo-enrich/internal/snapshot"
	"geo-enrich/internal/store"
	"geo-enrich/internal/utils"
	"geo-enrich/internal/wdqs"
)

func main() {
	_ = godotenv.Load(".env")
	l := logger.Setup()
	cfg := config.FromEnv()
	l.Info("geo_enrich_start", "authors", cfg.AuthorsPath, "out", cfg.OutPath, "batch", cfg.EntityBatchSize, "parent_hops", cfg.ParentHops)

	// 可选指标监听：批处理运行期间暴露 /metrics 供抓取
	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			l.Info("metrics_listening", "addr", cfg.MetricsAddr)
			_ = http.ListenAndServe(cfg.MetricsAddr, mux)
		}()
	}

	// 中断时允许当前批完成落快照后退出；批间续跑由快照存储保证
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	authors, err := input.LoadAuthors(cfg.AuthorsPath)
	if err != nil {
		l.Error("authors_load_error", "err", err)
		os.Exit(1)
	}
	l.Info("authors_loaded", "count", len(authors))

	var snaps snapshot.Store
	var st *store.Store
	if cfg.SnapshotBackend == "pg" || cfg.PersistPG {
		db, err := utils.OpenPostgresFromEnv()
		if err != nil {
			l.Error("db_open_error", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			l.Error("db_ping_error", "err", err)
			os.Exit(1)
		}
		if err := store.EnsureSchema(db); err != nil {
			l.Error("schema_error", "err", err)
			os.Exit(1)
		}
		st = store.AttachDB(db)
		l.Info("db_open_ok")
	}
	if cfg.SnapshotBackend == "pg" {
		snaps = snapshot.NewPGStore(st.DB(), cfg.RunLabel)
		l.Info("snapshot_backend", "backend", "pg", "run", cfg.RunLabel)
	} else {
		fsStore, err := snapshot.NewFSStore(cfg.CacheDir)
		if err != nil {
			l.Error("cache_dir_error", "dir", cfg.CacheDir, "err", err)
			os.Exit(1)
		}
		snaps = fsStore
		l.Info("snapshot_backend", "backend", "fs", "dir", cfg.CacheDir)
	}

	coords := geo.NewCoordCache(nil)
	if cfg.CoordCacheRedis {
		rc := utils.OpenRedisFromEnv()
		if err := rc.Ping(ctx).Err(); err != nil {
			l.Warn("redis_ping_error", "err", err)
		} else {
			coords = geo.NewCoordCache(rc)
			l.Info("coord_cache_redis_ok")
		}
	}
	parents := geo.NewParentCache()

	client := wdqs.NewClient(cfg.Endpoint, cfg.Sleep, cfg.Timeout, wdqs.RetryPolicy{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.Sleep,
	})
	resolver := geo.NewResolver(client, coords, parents, cfg.PlaceBatchSize, cfg.ParentHops)
	runner := enrich.NewRunner(client, snaps, coords, parents, resolver, cfg.EntityBatchSize)

	records, err := runner.Run(ctx, authors)
	if err != nil {
		l.Error("run_failed", "err", err)
		os.Exit(1)
	}

	if err := input.WriteOutput(cfg.OutPath, records); err != nil {
		l.Error("output_write_error", "path", cfg.OutPath, "err", err)
		os.Exit(1)
	}
	if st != nil && cfg.PersistPG {
		if err := st.SaveRecords(ctx, records); err != nil {
			l.Error("records_persist_error", "err", err)
			os.Exit(1)
		}
	}

	l.Info("geo_enrich_done", "out", cfg.OutPath, "records", len(records))
	enrich.LogSummary(records)
}
