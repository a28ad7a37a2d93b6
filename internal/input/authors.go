// 包 input：上游人物元数据文档的加载与最终输出文档的写入
package input

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"geo-enrich/internal/geo"
)

// 文档注释：上游人物记录
// 背景：authors.json 由元数据抽取链路产出；连接键是 id（QID），不是名称——
// 名称存在同名与转写差异，QID 才是稳定标识。
// 约束：start/end 为展示年份（可为负的公元前年份），可缺省；本工具只透传不解析。
type Author struct {
	ID           string `json:"id"`
	Content      string `json:"content"`
	WikipediaURL string `json:"wikipedia_url,omitempty"`
	Start        *int   `json:"start"`
	End          *int   `json:"end"`
}

// LoadAuthors：读取并校验上游文档
// 异常：非数组为致命错误；数组内单条缺 id 由调用方过滤（不在此处丢弃，便于统计告警）
func LoadAuthors(path string) ([]Author, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var probe any
	if err := json.Unmarshal(b, &probe); err != nil {
		return nil, fmt.Errorf("authors document: %w", err)
	}
	if _, ok := probe.([]any); !ok {
		return nil, errors.New("authors document must be a JSON array")
	}
	var authors []Author
	if err := json.Unmarshal(b, &authors); err != nil {
		return nil, fmt.Errorf("authors document: %w", err)
	}
	return authors, nil
}

// 文档注释：写出按 QID 键控的最终文档
// 背景：与快照同样走临时文件加重命名；缩进输出便于人工抽查与 diff 复核。
// 约束：encoding/json 对 map 键排序，两次相同输入的运行产出字节一致，支撑幂等性验收。
func WriteOutput(path string, records map[string]*geo.PersonGeoRecord) error {
	b, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(b, '\n'), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadOutput：读回输出文档，供核查工具使用
func ReadOutput(path string) (map[string]*geo.PersonGeoRecord, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records map[string]*geo.PersonGeoRecord
	if err := json.Unmarshal(b, &records); err != nil {
		return nil, fmt.Errorf("output document: %w", err)
	}
	return records, nil
}
