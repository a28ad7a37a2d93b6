package wdqs

import (
	"strings"
)

// 文档注释：QID 格式校验
// 背景：非法标识符在拼入 VALUES 前过滤掉，避免触发远端语法错误；合法形式为 Q 加纯数字。
func IsValidQID(qid string) bool {
	qid = strings.TrimSpace(qid)
	if len(qid) < 2 || qid[0] != 'Q' {
		return false
	}
	for i := 1; i < len(qid); i++ {
		if qid[i] < '0' || qid[i] > '9' {
			return false
		}
	}
	return true
}

// URIToQID：从实体 URI 截取末段 QID
// 约束：仅做路径截断，合法性由调用方按需再验
func URIToQID(uri string) string {
	if i := strings.LastIndexByte(uri, '/'); i >= 0 {
		return uri[i+1:]
	}
	return uri
}

// wdValues：将合法 QID 列表拼为 VALUES 子句内容（wd:Qxxx 按行排列）
func wdValues(qids []string) string {
	var sb strings.Builder
	for _, q := range qids {
		q = strings.TrimSpace(q)
		if !IsValidQID(q) {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n    ")
		}
		sb.WriteString("wd:")
		sb.WriteString(q)
	}
	return sb.String()
}

// 文档注释：人物定位主查询
// 背景：四类来源中 P937/P551 走语句节点以取 rank 与 P580/P582 时间限定，P19/P20 为简单事实走直连属性；
// 地点坐标（P625）与英文标签在同一查询内可选取出，减少一跳往返。
// 约束：VALUES 批量受上层批大小控制；传入全非法时返回空串，调用方跳过该批。
func BuildPeopleLocationsQuery(qids []string) string {
	values := wdValues(qids)
	if values == "" {
		return ""
	}
	return `
PREFIX wd: <http://www.wikidata.org/entity/>
PREFIX wdt: <http://www.wikidata.org/prop/direct/>
PREFIX p: <http://www.wikidata.org/prop/>
PREFIX ps: <http://www.wikidata.org/prop/statement/>
PREFIX pq: <http://www.wikidata.org/prop/qualifier/>
PREFIX wikibase: <http://wikiba.se/ontology#>
PREFIX bd: <http://www.bigdata.com/rdf#>

SELECT ?person ?prop ?place ?rank ?startTime ?endTime ?coord ?placeLabel
WHERE {
  VALUES ?person {
    ` + values + `
  }

  {
    ?person p:P937 ?st .
    ?st ps:P937 ?place .
    BIND("P937" AS ?prop)
    OPTIONAL { ?st pq:P580 ?startTime }
    OPTIONAL { ?st pq:P582 ?endTime }
    OPTIONAL { ?st wikibase:rank ?rank }
  }
  UNION
  {
    ?person p:P551 ?st .
    ?st ps:P551 ?place .
    BIND("P551" AS ?prop)
    OPTIONAL { ?st pq:P580 ?startTime }
    OPTIONAL { ?st pq:P582 ?endTime }
    OPTIONAL { ?st wikibase:rank ?rank }
  }
  UNION
  {
    ?person wdt:P19 ?place .
    BIND("P19" AS ?prop)
  }
  UNION
  {
    ?person wdt:P20 ?place .
    BIND("P20" AS ?prop)
  }

  OPTIONAL { ?place wdt:P625 ?coord }

  SERVICE wikibase:label {
    bd:serviceParam wikibase:language "en".
    ?place rdfs:label ?placeLabel .
  }
}
`
}

// BuildPlaceCoordQuery：批量取地点坐标（P625，可选）
// 背景：行窄量大，批大小独立于人物查询；OPTIONAL 保证无坐标地点也返回行，以便显式缓存"确认缺失"。
func BuildPlaceCoordQuery(qids []string) string {
	values := wdValues(qids)
	if values == "" {
		return ""
	}
	return `
PREFIX wd: <http://www.wikidata.org/entity/>
PREFIX wdt: <http://www.wikidata.org/prop/direct/>

SELECT ?place ?coord WHERE {
  VALUES ?place {
    ` + values + `
  }
  OPTIONAL { ?place wdt:P625 ?coord }
}
`
}

// BuildPlaceParentQuery：批量取行政隶属上级（P131，可选，可多值）
func BuildPlaceParentQuery(qids []string) string {
	values := wdValues(qids)
	if values == "" {
		return ""
	}
	return `
PREFIX wd: <http://www.wikidata.org/entity/>
PREFIX wdt: <http://www.wikidata.org/prop/direct/>

SELECT ?place ?parent WHERE {
  VALUES ?place {
    ` + values + `
  }
  OPTIONAL { ?place wdt:P131 ?parent }
}
`
}
