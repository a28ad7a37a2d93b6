package snapshot

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"geo-enrich/internal/logger"
	"geo-enrich/internal/metrics"
	"geo-enrich/internal/wdqs"
)

// 文档注释：PostgreSQL 快照存储
// 背景：多机或容器化运行时本地缓存目录不可靠，快照落库让续跑不依赖宿主文件系统；
// run_label 区分不同输入集的运行，避免批次号冲突。
// 约束：UPSERT 语义，重复保存同批次以新换旧；行内整份 JSON，一次写入天然原子。
type PGStore struct {
	db  *sql.DB
	run string
}

// NewPGStore：表结构由 store.EnsureSchema 统一建立，这里只持有连接
func NewPGStore(db *sql.DB, runLabel string) *PGStore {
	return &PGStore{db: db, run: runLabel}
}

func (s *PGStore) Load(batch int) (*wdqs.Result, bool, error) {
	var raw []byte
	row := s.db.QueryRow("SELECT raw FROM _geo_batch_snapshots WHERE run_label=$1 AND batch_index=$2", s.run, batch)
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var res wdqs.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, false, fmt.Errorf("snapshot %d corrupt: %w", batch, err)
	}
	metrics.SnapshotLoadsTotal.Inc()
	logger.L().Debug("snapshot_pg_load", "run", s.run, "batch", batch)
	return &res, true, nil
}

func (s *PGStore) Save(batch int, res *wdqs.Result) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO _geo_batch_snapshots(run_label, batch_index, raw)
        VALUES($1,$2,$3)
        ON CONFLICT (run_label, batch_index) DO UPDATE SET raw=EXCLUDED.raw, updated_at=now()`,
		s.run, batch, raw)
	if err != nil {
		return err
	}
	metrics.SnapshotSavesTotal.Inc()
	logger.L().Debug("snapshot_pg_save", "run", s.run, "batch", batch, "bytes", len(raw))
	return nil
}
