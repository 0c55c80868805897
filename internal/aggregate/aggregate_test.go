package aggregate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ShodanGT/internal/model"
)

func match(t *testing.T, raw string) model.HostMatch {
	t.Helper()
	var m model.HostMatch
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

func TestThreeRecordScenario(t *testing.T) {
	s := NewState()
	s.Add(match(t, `{"ip_str":"1.2.3.4","port":80}`))
	s.Add(match(t, `{"ip_str":"1.2.3.4","port":443}`))
	s.Add(match(t, `{"ip_str":"5.6.7.8","port":80}`))

	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.UniqueIPs())
	assert.Equal(t, []PortCount{{Port: 80, IPs: 2}, {Port: 443, IPs: 1}}, s.Ports())
}

func TestAddIsIdempotentPerIPPort(t *testing.T) {
	m := match(t, `{"ip_str":"10.0.0.1","port":22}`)

	once := NewState()
	once.Add(m)

	twice := NewState()
	twice.Add(m)
	twice.Add(m)

	assert.Equal(t, once.UniqueIPs(), twice.UniqueIPs())
	assert.Equal(t, once.Ports(), twice.Ports())
	assert.Equal(t, 2, twice.Total)
}

func TestRecordWithoutIPOnlyCounts(t *testing.T) {
	s := NewState()
	s.Add(match(t, `{"port":80,"vulns":{"CVE-2020-1":{}}}`))

	assert.Equal(t, 1, s.Total)
	assert.Zero(t, s.UniqueIPs())
	assert.Empty(t, s.Ports())
	assert.Empty(t, s.CVEs(0))
}

func TestRecordWithoutPortAddsIPOnly(t *testing.T) {
	s := NewState()
	s.Add(match(t, `{"ip_str":"1.1.1.1"}`))

	assert.Equal(t, 1, s.UniqueIPs())
	assert.Empty(t, s.Ports())
}

func TestBadPortSkipsPortStep(t *testing.T) {
	s := NewState()
	var reported []string
	s.OnBadPort = func(ip string, m model.HostMatch) {
		reported = append(reported, ip)
	}
	s.Add(match(t, `{"ip_str":"1.1.1.1","port":"abc"}`))

	assert.Equal(t, 1, s.UniqueIPs())
	assert.Empty(t, s.Ports())
	assert.Equal(t, []string{"1.1.1.1"}, reported)
}

func TestPortSetsSubsetOfGlobal(t *testing.T) {
	s := NewState()
	s.Add(match(t, `{"ip_str":"1.1.1.1","port":21}`))
	s.Add(match(t, `{"ip":"2.2.2.2","port":"21"}`))
	s.Add(match(t, `{"ip":50529027,"port":8080}`))

	for port, set := range s.PortIPs {
		for ip := range set {
			_, ok := s.IPs[ip]
			assert.True(t, ok, "port %d ip %s", port, ip)
		}
	}
	assert.Equal(t, []PortCount{{Port: 21, IPs: 2}, {Port: 8080, IPs: 1}}, s.Ports())
}

func TestCVEStats(t *testing.T) {
	s := NewState()
	s.Add(match(t, `{"ip_str":"1.1.1.1","port":80,"vulns":{"CVE-2021-1":{},"CVE-2020-5":{}}}`))
	s.Add(match(t, `{"ip_str":"2.2.2.2","port":80,"vulns":{"CVE-2021-1":{}}}`))
	s.Add(match(t, `{"ip_str":"2.2.2.2","port":443,"vulns":{"CVE-2021-1":{}}}`))

	stats := s.CVEs(0)
	require.Len(t, stats, 2)
	assert.Equal(t, "CVE-2021-1", stats[0].ID)
	assert.Equal(t, 2, stats[0].Hosts)
	assert.Equal(t, "CVE-2020-5", stats[1].ID)
	assert.Equal(t, 1, stats[1].Hosts)

	assert.Len(t, s.CVEs(1), 1)
}
