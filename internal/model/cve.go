package model

import "time"

// CVE 本地漏洞库中的一条记录
type CVE struct {
	ID           string    `json:"id" db:"cve_id"`
	Description  string    `json:"description" db:"description"`
	CVSSScore    float64   `json:"cvss_score" db:"cvss_score"`
	CVSSSeverity string    `json:"cvss_severity" db:"cvss_severity"`
	Published    time.Time `json:"published" db:"published"`
	Modified     time.Time `json:"modified" db:"modified"`
}

// CVEStat 汇总中某个 CVE 的影响面
type CVEStat struct {
	ID       string  `json:"id"`
	Hosts    int     `json:"hosts"`
	Score    float64 `json:"cvss_score,omitempty"`
	Severity string  `json:"cvss_severity,omitempty"`
	Known    bool    `json:"known"`
}
