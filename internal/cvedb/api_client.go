package cvedb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"ShodanGT/internal/model"
	"ShodanGT/internal/utils"
)

// NVDBaseURL NVD CVE API 2.0
const NVDBaseURL = "https://services.nvd.nist.gov/rest/json/cves/2.0"

// CVEAPIClient 用于从NVD API获取CVE数据的客户端
type CVEAPIClient struct {
	baseURL    string
	logger     *utils.Logger
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewCVEAPIClient 创建新的CVE API客户端；未带 API Key 时 NVD 限制为 30 秒 5 次
func NewCVEAPIClient(baseURL string) *CVEAPIClient {
	if baseURL == "" {
		baseURL = NVDBaseURL
	}
	return &CVEAPIClient{
		baseURL: baseURL,
		logger:  utils.NewLogger("cve-api-client"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
		limiter: rate.NewLimiter(rate.Every(6*time.Second), 1),
	}
}

// NVD API响应结构
type NVDResponse struct {
	ResultsPerPage  int                `json:"resultsPerPage"`
	StartIndex      int                `json:"startIndex"`
	TotalResults    int                `json:"totalResults"`
	Vulnerabilities []NVDVulnerability `json:"vulnerabilities"`
}

// NVDVulnerability NVD漏洞数据结构（只保留用到的字段）
type NVDVulnerability struct {
	CVE NVDCVE `json:"cve"`
}

type NVDCVE struct {
	ID           string           `json:"id"`
	Published    string           `json:"published"`
	LastModified string           `json:"lastModified"`
	Descriptions []NVDDescription `json:"descriptions"`
	Metrics      NVDMetrics       `json:"metrics"`
}

type NVDDescription struct {
	Lang  string `json:"lang"`
	Value string `json:"value"`
}

type NVDMetrics struct {
	CvssMetricV31 []NVDCvssMetric `json:"cvssMetricV31"`
	CvssMetricV30 []NVDCvssMetric `json:"cvssMetricV30"`
	CvssMetricV2  []NVDCvssMetric `json:"cvssMetricV2"`
}

// NVDCvssMetric v2 的 baseSeverity 在外层，v3 在 cvssData 内
type NVDCvssMetric struct {
	CvssData struct {
		Version      string  `json:"version"`
		Vector       string  `json:"vectorString"`
		BaseScore    float64 `json:"baseScore"`
		BaseSeverity string  `json:"baseSeverity"`
	} `json:"cvssData"`
	BaseSeverity string `json:"baseSeverity"`
}

// FetchCVE 按编号获取单个CVE；NVD 没有该编号时返回 nil, nil
func (client *CVEAPIClient) FetchCVE(ctx context.Context, id string) (*model.CVE, error) {
	if client.limiter != nil {
		if err := client.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	reqURL := client.baseURL + "?cveId=" + url.QueryEscape(id)
	client.logger.Debug("请求URL: %s", reqURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("User-Agent", "ShodanGT/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := client.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API返回错误: %s, 响应: %s", resp.Status, truncate(string(body), 200))
	}

	var nvdResponse NVDResponse
	if err := json.Unmarshal(body, &nvdResponse); err != nil {
		return nil, fmt.Errorf("解析JSON失败: %w", err)
	}

	for _, vuln := range nvdResponse.Vulnerabilities {
		if vuln.CVE.ID == id {
			cve := client.convertNVDToCVE(vuln)
			return &cve, nil
		}
	}
	return nil, nil
}

// convertNVDToCVE 将NVD API响应转换为内部CVE模型
func (client *CVEAPIClient) convertNVDToCVE(vuln NVDVulnerability) model.CVE {
	cve := model.CVE{
		ID: vuln.CVE.ID,
	}

	// 提取英文描述
	for _, desc := range vuln.CVE.Descriptions {
		if desc.Lang == "en" {
			cve.Description = desc.Value
			break
		}
	}

	// 提取CVSS分数和严重性，优先 v3.1
	metrics := vuln.CVE.Metrics
	if len(metrics.CvssMetricV31) > 0 {
		cve.CVSSScore = metrics.CvssMetricV31[0].CvssData.BaseScore
		cve.CVSSSeverity = metrics.CvssMetricV31[0].CvssData.BaseSeverity
	} else if len(metrics.CvssMetricV30) > 0 {
		cve.CVSSScore = metrics.CvssMetricV30[0].CvssData.BaseScore
		cve.CVSSSeverity = metrics.CvssMetricV30[0].CvssData.BaseSeverity
	} else if len(metrics.CvssMetricV2) > 0 {
		cve.CVSSScore = metrics.CvssMetricV2[0].CvssData.BaseScore
		cve.CVSSSeverity = metrics.CvssMetricV2[0].BaseSeverity
	}

	if published, err := time.Parse("2006-01-02T15:04:05.000", vuln.CVE.Published); err == nil {
		cve.Published = published
	}
	if modified, err := time.Parse("2006-01-02T15:04:05.000", vuln.CVE.LastModified); err == nil {
		cve.Modified = modified
	}

	return cve
}

// RefreshMissing 把本地缺失的CVE从NVD补齐，返回新增条数；单个失败只记录日志
func (client *CVEAPIClient) RefreshMissing(ctx context.Context, db *CVEDatabase, ids []string) (int, error) {
	missing, err := db.MissingIDs(ids)
	if err != nil {
		return 0, err
	}
	if len(missing) == 0 {
		return 0, nil
	}

	client.logger.Info("从NVD补充 %d 个CVE...", len(missing))

	added := 0
	for _, id := range missing {
		cve, err := client.FetchCVE(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return added, ctx.Err()
			}
			client.logger.Warn("获取 %s 失败: %v", id, err)
			continue
		}
		if cve == nil {
			client.logger.Debug("NVD中没有 %s", id)
			continue
		}
		if err := db.InsertCVE(*cve); err != nil {
			client.logger.Warn("保存 %s 失败: %v", id, err)
			continue
		}
		added++
	}

	if err := db.RecordUpdate("NVD API 2.0", added); err != nil {
		client.logger.Warn("记录更新历史失败: %v", err)
	}
	return added, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
