package wdqs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"geo-enrich/internal/logger"
	"geo-enrich/internal/metrics"
)

// DefaultEndpoint：WDQS 公共端点
const DefaultEndpoint = "https://query.wikidata.org/sparql"

// userAgent：公共端点要求可识别的 UA 并附联系方式
const userAgent = "AncientAuthorsGeoTimeline/0.1 (research; contact: github.com/ikkota)"

// ErrRetriesExhausted：重试预算耗尽后的终态错误；整批失败，由上层中止本次运行
var ErrRetriesExhausted = errors.New("wdqs: retries exhausted")

// 文档注释：非 200 响应错误
// 背景：除 429 以外的 HTTP 错误不重试——半途/畸形结果一旦进入缓存会污染后续批次，宁可立即失败。
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("wdqs: http %d: %s", e.Status, e.Body)
}

// 文档注释：显式重试策略
// 背景：主查询与上级回溯共用同一套退避规则；429 有不低于 RateLimitFloor 的下限，
// 瞬时网络错误按基础间隔指数退避。
// 参数：MaxRetries 为总尝试次数；BaseDelay 同时是调用间固定延时与退避基数。
type RetryPolicy struct {
	MaxRetries     int
	BaseDelay      time.Duration
	RateLimitFloor time.Duration
}

// rateLimitWait：429 退避时长，attempt 从 0 计
func (p RetryPolicy) rateLimitWait(attempt int) time.Duration {
	d := p.BaseDelay * (1 << (attempt + 2))
	if d < p.RateLimitFloor {
		return p.RateLimitFloor
	}
	return d
}

// transientWait：瞬时错误退避时长
func (p RetryPolicy) transientWait(attempt int) time.Duration {
	return p.BaseDelay * (1 << (attempt + 1))
}

// 文档注释：WDQS 查询客户端
// 背景：查询以请求体提交（application/sparql-query），避免大 VALUES 批次撞 URL 长度上限；
// 每次成功调用后阻塞 sleep 固定间隔，单线程顺序请求以尊重端点的公平使用策略。
type Client struct {
	endpoint string
	httpc    *http.Client
	sleep    time.Duration
	retry    RetryPolicy
}

// NewClient：构建客户端
// 参数：endpoint 为空时使用公共端点；sleep 为调用间延时；timeout 作用于单次 HTTP 往返。
func NewClient(endpoint string, sleep time.Duration, timeout time.Duration, retry RetryPolicy) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if retry.MaxRetries <= 0 {
		retry.MaxRetries = 3
	}
	if retry.RateLimitFloor <= 0 {
		retry.RateLimitFloor = 10 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		httpc:    &http.Client{Timeout: timeout},
		sleep:    sleep,
		retry:    retry,
	}
}

// 文档注释：执行一次 SPARQL 查询（带重试）
// 异常分层：429 计入尝试并按高下限退避；连接/超时类错误按基础退避重试；
// 其他非 200 直接返回 HTTPError（终态）；预算耗尽返回 ErrRetriesExhausted。
// 约束：成功路径在返回前 sleep 固定间隔，该延时是阻塞语义的一部分，不做异步化。
func (c *Client) Query(ctx context.Context, sparql string) (*Result, error) {
	var lastErr error
	for attempt := 0; attempt < c.retry.MaxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(sparql))
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Content-Type", "application/sparql-query")
		req.Header.Set("Accept", "application/sparql-results+json")

		t0 := time.Now()
		metrics.WDQSRequestsTotal.Inc()
		resp, err := c.httpc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			wait := c.retry.transientWait(attempt)
			logger.L().Warn("wdqs_transient_error", "attempt", attempt+1, "max", c.retry.MaxRetries, "wait_ms", wait.Milliseconds(), "err", err)
			metrics.WDQSRetriesTotal.Inc()
			lastErr = err
			if !sleepCtx(ctx, wait) {
				return nil, ctx.Err()
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			drain(resp)
			wait := c.retry.rateLimitWait(attempt)
			logger.L().Warn("wdqs_rate_limited", "attempt", attempt+1, "wait_ms", wait.Milliseconds())
			metrics.WDQSRateLimitedTotal.Inc()
			lastErr = &HTTPError{Status: resp.StatusCode}
			if !sleepCtx(ctx, wait) {
				return nil, ctx.Err()
			}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
			resp.Body.Close()
			herr := &HTTPError{Status: resp.StatusCode, Body: string(body)}
			logger.L().Error("wdqs_http_error", "status", resp.StatusCode, "body", string(body))
			metrics.WDQSFailTotal.Inc()
			return nil, herr
		}

		var out Result
		err = json.NewDecoder(resp.Body).Decode(&out)
		resp.Body.Close()
		if err != nil {
			logger.L().Error("wdqs_decode_error", "err", err)
			metrics.WDQSFailTotal.Inc()
			return nil, err
		}
		metrics.WDQSDurationMs.Observe(float64(time.Since(t0).Milliseconds()))
		logger.L().Debug("wdqs_query_ok", "rows", len(out.Results.Bindings), "duration_ms", time.Since(t0).Milliseconds())
		if c.sleep > 0 {
			if !sleepCtx(ctx, c.sleep) {
				return nil, ctx.Err()
			}
		}
		return &out, nil
	}
	metrics.WDQSFailTotal.Inc()
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, c.retry.MaxRetries, lastErr)
}

// sleepCtx：可取消的阻塞等待；返回 false 表示上下文已取消
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// drain：读尽并关闭响应体，保证连接复用
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}
