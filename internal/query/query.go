package query

import (
	"strings"

	"ShodanGT/internal/model"
)

// CountryConstraint 固定的国家限定，所有查询都以它开头
const CountryConstraint = `country:"GT"`

// CountryCode 输出行中的国家后缀
const CountryCode = "GT"

const forbiddenToken = "org:"

// ForbiddenFilterMessage 过滤条件包含 org: 时的提示
const ForbiddenFilterMessage = "El uso de filtros por organización (org:) está prohibido para este proyecto."

// ValidateFilter 去掉首尾空白，不区分大小写地拒绝任何包含 org: 的过滤条件
func ValidateFilter(raw string) (string, error) {
	f := strings.TrimSpace(raw)
	if strings.Contains(strings.ToLower(f), forbiddenToken) {
		return "", model.E(model.KindForbiddenFilter, ForbiddenFilterMessage, nil)
	}
	return f, nil
}

// Build 拼接最终查询；filter 必须已经过 ValidateFilter
func Build(filter string) string {
	if filter == "" {
		return CountryConstraint
	}
	return CountryConstraint + " " + filter
}
