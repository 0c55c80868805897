package model

import (
	"encoding/json"
	"math"
	"net/netip"
	"sort"
	"strconv"
	"strings"
)

// Placeholder 缺失字段的显示值
const Placeholder = "-"

// HostMatch Shodan 返回的单条 banner，字段全部可选
type HostMatch struct {
	IPStr      string          `json:"ip_str,omitempty"`
	IP         json.RawMessage `json:"ip,omitempty"`
	Port       json.RawMessage `json:"port,omitempty"`
	Transport  string          `json:"transport,omitempty"`
	Hostnames  []string        `json:"hostnames,omitempty"`
	Product    string          `json:"product,omitempty"`
	Shodan     *ShodanMeta     `json:"_shodan,omitempty"`
	Org        string          `json:"org,omitempty"`
	Location   *Location       `json:"location,omitempty"`
	City       string          `json:"city,omitempty"`
	RegionCode string          `json:"region_code,omitempty"`
	ASN        json.RawMessage `json:"asn,omitempty"`
	Timestamp  string          `json:"timestamp,omitempty"`
	LastUpdate string          `json:"last_update,omitempty"`
	Vulns      json.RawMessage `json:"vulns,omitempty"`
}

// ShodanMeta banner 中的 _shodan 子对象
type ShodanMeta struct {
	Module string `json:"module,omitempty"`
}

// Location banner 中的 location 子对象
type Location struct {
	City        string `json:"city,omitempty"`
	RegionCode  string `json:"region_code,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
}

// IPAddress 依次取 ip_str、ip；整数形式的 ip 转为点分十进制
func (m HostMatch) IPAddress() (string, bool) {
	if m.IPStr != "" {
		return m.IPStr, true
	}
	raw := rawScalar(m.IP)
	if raw == "" {
		return "", false
	}
	if n, err := strconv.ParseUint(raw, 10, 32); err == nil {
		addr := netip.AddrFrom4([4]byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)})
		return addr.String(), true
	}
	return raw, true
}

// PortNumber 端口号；数字字符串也接受，其他形式返回 false
func (m HostMatch) PortNumber() (int, bool) {
	raw := rawScalar(m.Port)
	if raw == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// HasPort port 字段是否存在（无论能否转换为整数）
func (m HostMatch) HasPort() bool {
	return rawScalar(m.Port) != ""
}

// PortText 用于显示的端口
func (m HostMatch) PortText() string {
	if n, ok := m.PortNumber(); ok {
		return strconv.Itoa(n)
	}
	if raw := rawScalar(m.Port); raw != "" {
		return raw
	}
	return Placeholder
}

func (m HostMatch) TransportName() string {
	return orPlaceholder(m.Transport)
}

func (m HostMatch) HostnameList() string {
	names := make([]string, 0, len(m.Hostnames))
	for _, h := range m.Hostnames {
		if h != "" {
			names = append(names, h)
		}
	}
	if len(names) == 0 {
		return Placeholder
	}
	return strings.Join(names, ",")
}

// ServiceName product 优先，其次 _shodan.module
func (m HostMatch) ServiceName() string {
	if m.Product != "" {
		return m.Product
	}
	if m.Shodan != nil {
		return orPlaceholder(m.Shodan.Module)
	}
	return Placeholder
}

func (m HostMatch) OrgName() string {
	return orPlaceholder(m.Org)
}

// CityName location.city 优先，其次旧版顶层 city
func (m HostMatch) CityName() string {
	if m.Location != nil && m.Location.City != "" {
		return m.Location.City
	}
	return orPlaceholder(m.City)
}

// Region location.region_code 优先，其次旧版顶层 region_code
func (m HostMatch) Region() string {
	if m.Location != nil && m.Location.RegionCode != "" {
		return m.Location.RegionCode
	}
	return orPlaceholder(m.RegionCode)
}

func (m HostMatch) ASNumber() string {
	return orPlaceholder(rawScalar(m.ASN))
}

// Seen timestamp 优先，其次 last_update
func (m HostMatch) Seen() string {
	if m.Timestamp != "" {
		return m.Timestamp
	}
	return orPlaceholder(m.LastUpdate)
}

// CVEIDs vulns 为对象时返回排序后的键
func (m HostMatch) CVEIDs() ([]string, bool) {
	if len(m.Vulns) == 0 {
		return nil, false
	}
	var vulns map[string]json.RawMessage
	if err := json.Unmarshal(m.Vulns, &vulns); err != nil || vulns == nil {
		return nil, false
	}
	ids := make([]string, 0, len(vulns))
	for id := range vulns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, true
}

// CVEList 用于显示的 CVE 列表；vulns 为空对象时返回空串
func (m HostMatch) CVEList() string {
	ids, ok := m.CVEIDs()
	if !ok {
		return Placeholder
	}
	return strings.Join(ids, ", ")
}

// rawScalar 把 JSON 标量还原为文本；null、空串、对象和数组视为缺失
func rawScalar(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	switch s[0] {
	case '"':
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return ""
		}
		return str
	case '{', '[':
		return ""
	case 't', 'f':
		return ""
	}
	return s
}

func orPlaceholder(v string) string {
	if v == "" {
		return Placeholder
	}
	return v
}
