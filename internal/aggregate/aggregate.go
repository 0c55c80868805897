// Package aggregate 汇总一次搜索中看到的唯一 IP 以及每个端口上的唯一 IP。
package aggregate

import (
	"sort"

	"ShodanGT/internal/model"
)

// State 一次运行的汇总状态，只由抓取流程写入
type State struct {
	Total   int
	IPs     map[string]struct{}
	PortIPs map[int]map[string]struct{}
	CVEIPs  map[string]map[string]struct{}

	// OnBadPort port 字段存在但无法转换为整数时回调，该条记录跳过端口统计
	OnBadPort func(ip string, m model.HostMatch)
}

func NewState() *State {
	return &State{
		IPs:     make(map[string]struct{}),
		PortIPs: make(map[int]map[string]struct{}),
		CVEIPs:  make(map[string]map[string]struct{}),
	}
}

// Add 记录一条结果；没有 IP 的结果只计入总数
func (s *State) Add(m model.HostMatch) {
	s.Total++

	ip, ok := m.IPAddress()
	if !ok {
		return
	}
	s.IPs[ip] = struct{}{}

	if port, ok := m.PortNumber(); ok {
		addTo(s.PortIPs, port, ip)
	} else if m.HasPort() && s.OnBadPort != nil {
		s.OnBadPort(ip, m)
	}

	if ids, ok := m.CVEIDs(); ok {
		for _, id := range ids {
			addTo(s.CVEIPs, id, ip)
		}
	}
}

func addTo[K comparable](m map[K]map[string]struct{}, key K, ip string) {
	set, ok := m[key]
	if !ok {
		set = make(map[string]struct{})
		m[key] = set
	}
	set[ip] = struct{}{}
}

// UniqueIPs 唯一 IP 数
func (s *State) UniqueIPs() int {
	return len(s.IPs)
}

// PortCount 某端口上的唯一 IP 数
type PortCount struct {
	Port int `json:"port"`
	IPs  int `json:"ips"`
}

// Ports 按端口号升序返回每个端口的唯一 IP 数
func (s *State) Ports() []PortCount {
	ports := make([]PortCount, 0, len(s.PortIPs))
	for port, set := range s.PortIPs {
		ports = append(ports, PortCount{Port: port, IPs: len(set)})
	}
	sort.Slice(ports, func(i, j int) bool {
		return ports[i].Port < ports[j].Port
	})
	return ports
}

// CVEs 按受影响 IP 数降序（相同时按编号升序）返回 CVE 统计，limit<=0 表示全部
func (s *State) CVEs(limit int) []model.CVEStat {
	stats := make([]model.CVEStat, 0, len(s.CVEIPs))
	for id, set := range s.CVEIPs {
		stats = append(stats, model.CVEStat{ID: id, Hosts: len(set)})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Hosts != stats[j].Hosts {
			return stats[i].Hosts > stats[j].Hosts
		}
		return stats[i].ID < stats[j].ID
	})
	if limit > 0 && len(stats) > limit {
		stats = stats[:limit]
	}
	return stats
}
