// 包 store：PostgreSQL 访问层，承载批次快照表与最终人物记录的持久化
package store

import (
	"context"
	"database/sql"
	"encoding/json"

	_ "github.com/lib/pq"

	"geo-enrich/internal/geo"
	"geo-enrich/internal/logger"
)

// Store：数据库访问入口，持有连接池
type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

// Open：使用 DSN 打开数据库连接并配置连接池参数
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// 文档注释：建表
// 背景：批处理工具按需自建表，省去独立迁移步骤；IF NOT EXISTS 幂等，重复启动无副作用。
// 约束：记录表按 QID 主键 UPSERT，整条 JSON 入 record 列——消费方是前端展示层，不需要列级查询。
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS _geo_batch_snapshots (
            run_label   TEXT NOT NULL,
            batch_index INT  NOT NULL,
            raw         JSONB NOT NULL,
            updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
            PRIMARY KEY (run_label, batch_index)
        )`,
		`CREATE TABLE IF NOT EXISTS _geo_person_records (
            qid        TEXT PRIMARY KEY,
            geo_status TEXT NOT NULL,
            record     JSONB NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
	}
	for _, q := range stmts {
		if _, err := db.Exec(q); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_ensure_ok")
	return nil
}

// 文档注释：持久化最终记录集
// 背景：与输出 JSON 文档并行的可选落库，便于后续按状态筛查待人工复核的人物。
func (s *Store) SaveRecords(ctx context.Context, records map[string]*geo.PersonGeoRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO _geo_person_records(qid, geo_status, record)
        VALUES($1,$2,$3)
        ON CONFLICT (qid) DO UPDATE SET geo_status=EXCLUDED.geo_status, record=EXCLUDED.record, updated_at=now()`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for qid, rec := range records {
		raw, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, qid, string(rec.Status), raw); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	logger.L().Info("records_persisted", "count", len(records))
	return nil
}

// CountByStatus：按状态统计已落库记录，供核查工具使用
func (s *Store) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT geo_status, COUNT(1) FROM _geo_person_records GROUP BY geo_status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var st string
		var c int
		if err := rows.Scan(&st, &c); err != nil {
			return nil, err
		}
		out[st] = c
	}
	return out, rows.Err()
}
