package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"geo-enrich/internal/logger"
	"geo-enrich/internal/metrics"
	"geo-enrich/internal/wdqs"
)

// 文档注释：文件系统快照存储（默认实现）
// 背景：每批一个 JSON 文件，命名含零填充批次号便于目录内排序查看；
// 写入走临时文件加重命名，进程在写入中途被打断不会留下半份文件。
type FSStore struct {
	dir string
}

// NewFSStore：确保目录存在并返回实例
func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FSStore{dir: dir}, nil
}

func (s *FSStore) path(batch int) string {
	return filepath.Join(s.dir, fmt.Sprintf("people_locations_%04d.json", batch))
}

func (s *FSStore) Load(batch int) (*wdqs.Result, bool, error) {
	b, err := os.ReadFile(s.path(batch))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var res wdqs.Result
	if err := json.Unmarshal(b, &res); err != nil {
		return nil, false, fmt.Errorf("snapshot %d corrupt: %w", batch, err)
	}
	metrics.SnapshotLoadsTotal.Inc()
	logger.L().Debug("snapshot_fs_load", "batch", batch, "rows", len(res.Results.Bindings))
	return &res, true, nil
}

func (s *FSStore) Save(batch int, res *wdqs.Result) error {
	b, err := json.Marshal(res)
	if err != nil {
		return err
	}
	fp := s.path(batch)
	tmp := fp + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, fp); err != nil {
		return err
	}
	metrics.SnapshotSavesTotal.Inc()
	logger.L().Debug("snapshot_fs_save", "batch", batch, "bytes", len(b))
	return nil
}
