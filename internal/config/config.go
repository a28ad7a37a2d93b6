// 包 config：集中读取批处理运行参数，避免各命令行工具重复解析环境变量
package config

import (
	"os"
	"strconv"
	"time"
)

// 文档注释：运行配置
// 背景：与上游脚本链共享 .env；默认值面向 WDQS 公共端点的公平使用策略，调大前需确认配额。
// 约束：EntityBatchSize 与 PlaceBatchSize 上限不同——人物定位查询按行更宽更重，因此批量更大但列多；
// 地点坐标/上级查询行窄，按 50 切分以控制单次响应体积。
type Config struct {
	AuthorsPath     string
	OutPath         string
	CacheDir        string
	EntityBatchSize int
	PlaceBatchSize  int
	ParentHops      int
	Sleep           time.Duration
	MaxRetries      int
	Endpoint        string
	Timeout         time.Duration
	SnapshotBackend string
	RunLabel        string
	PersistPG       bool
	CoordCacheRedis bool
	MetricsAddr     string
}

// FromEnv：从环境变量构建配置，未设置项取默认值
// 为什么：沿用各工具"直接读环境变量"的部署习惯，但把解析集中到一处便于测试与复用
func FromEnv() Config {
	return Config{
		AuthorsPath:     envStr("AUTHORS_PATH", "public/data/authors.json"),
		OutPath:         envStr("OUT_PATH", "public/data/authors_geo.json"),
		CacheDir:        envStr("CACHE_DIR", "cache"),
		EntityBatchSize: envInt("ENTITY_BATCH_SIZE", 200),
		PlaceBatchSize:  envInt("PLACE_BATCH_SIZE", 50),
		ParentHops:      envInt("PARENT_HOPS", 3),
		Sleep:           time.Duration(envInt("WDQS_SLEEP_MS", 200)) * time.Millisecond,
		MaxRetries:      envInt("WDQS_MAX_RETRIES", 3),
		Endpoint:        envStr("WDQS_ENDPOINT", "https://query.wikidata.org/sparql"),
		Timeout:         time.Duration(envInt("WDQS_TIMEOUT_S", 120)) * time.Second,
		SnapshotBackend: envStr("SNAPSHOT_BACKEND", "fs"),
		RunLabel:        envStr("RUN_LABEL", "default"),
		PersistPG:       envBool("PERSIST_PG", false),
		CoordCacheRedis: envBool("COORD_CACHE_REDIS", false),
		MetricsAddr:     os.Getenv("METRICS_ADDR"),
	}
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}
