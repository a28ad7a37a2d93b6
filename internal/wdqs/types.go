// 包 wdqs：Wikidata Query Service 的查询客户端与 SPARQL 构造，离线批处理的唯一外部数据源
package wdqs

// 文档注释：SPARQL JSON 结果结构
// 背景：对齐 application/sparql-results+json 约定，仅解析本方案需要的 bindings 部分；
// 每个单元格为 {type,value}，缺失列直接不出现在行中。
// 约束：不在此处做字段校验；必填列缺失由上层按行丢弃（坏行不应拖垮整批）。
type Result struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results struct {
		Bindings []Binding `json:"bindings"`
	} `json:"results"`
}

// Binding：一行命名绑定
type Binding map[string]Cell

// Cell：单个绑定值；Datatype/Lang 仅在字面量携带时出现
type Cell struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
	Lang     string `json:"xml:lang,omitempty"`
}

// Value：安全取出某列的值
// 背景：行内列可选，统一通过 ok 判定存在性，避免空指针式判断散落在业务代码
func (b Binding) Value(key string) (string, bool) {
	c, ok := b[key]
	if !ok || c.Value == "" {
		return "", false
	}
	return c.Value, true
}
