package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) HostMatch {
	t.Helper()
	var m HostMatch
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

func TestIPAddressFallback(t *testing.T) {
	ip, ok := decode(t, `{"ip_str":"1.2.3.4","ip":16909061}`).IPAddress()
	assert.True(t, ok)
	assert.Equal(t, "1.2.3.4", ip)

	ip, ok = decode(t, `{"ip_str":"","ip":16909060}`).IPAddress()
	assert.True(t, ok)
	assert.Equal(t, "1.2.3.4", ip)

	ip, ok = decode(t, `{"ip":"5.6.7.8"}`).IPAddress()
	assert.True(t, ok)
	assert.Equal(t, "5.6.7.8", ip)

	_, ok = decode(t, `{"ip":null,"port":80}`).IPAddress()
	assert.False(t, ok)
}

func TestPortNumber(t *testing.T) {
	n, ok := decode(t, `{"port":443}`).PortNumber()
	assert.True(t, ok)
	assert.Equal(t, 443, n)

	n, ok = decode(t, `{"port":"8080"}`).PortNumber()
	assert.True(t, ok)
	assert.Equal(t, 8080, n)

	m := decode(t, `{"port":"http"}`)
	_, ok = m.PortNumber()
	assert.False(t, ok)
	assert.True(t, m.HasPort())
	assert.Equal(t, "http", m.PortText())

	m = decode(t, `{}`)
	assert.False(t, m.HasPort())
	assert.Equal(t, Placeholder, m.PortText())
}

func TestFieldFallbacks(t *testing.T) {
	m := decode(t, `{
		"_shodan": {"module": "https"},
		"city": "Jalapa",
		"region_code": "JA",
		"last_update": "2024-01-01T00:00:00",
		"asn": 14754
	}`)
	assert.Equal(t, "https", m.ServiceName())
	assert.Equal(t, "Jalapa", m.CityName())
	assert.Equal(t, "JA", m.Region())
	assert.Equal(t, "2024-01-01T00:00:00", m.Seen())
	assert.Equal(t, "14754", m.ASNumber())

	m = decode(t, `{
		"product": "nginx",
		"_shodan": {"module": "http"},
		"location": {"city": "Guatemala City", "region_code": "GU"},
		"city": "old",
		"timestamp": "2025-02-03T04:05:06.000000",
		"last_update": "old",
		"asn": "AS6568"
	}`)
	assert.Equal(t, "nginx", m.ServiceName())
	assert.Equal(t, "Guatemala City", m.CityName())
	assert.Equal(t, "GU", m.Region())
	assert.Equal(t, "2025-02-03T04:05:06.000000", m.Seen())
	assert.Equal(t, "AS6568", m.ASNumber())
}

func TestPlaceholders(t *testing.T) {
	m := decode(t, `{"hostnames": [], "location": {}}`)
	assert.Equal(t, Placeholder, m.TransportName())
	assert.Equal(t, Placeholder, m.HostnameList())
	assert.Equal(t, Placeholder, m.ServiceName())
	assert.Equal(t, Placeholder, m.OrgName())
	assert.Equal(t, Placeholder, m.CityName())
	assert.Equal(t, Placeholder, m.Region())
	assert.Equal(t, Placeholder, m.ASNumber())
	assert.Equal(t, Placeholder, m.Seen())
	assert.Equal(t, Placeholder, m.CVEList())
}

func TestHostnameList(t *testing.T) {
	m := decode(t, `{"hostnames": ["a.gt", "b.com.gt"]}`)
	assert.Equal(t, "a.gt,b.com.gt", m.HostnameList())
}

func TestCVEListSorted(t *testing.T) {
	m := decode(t, `{"vulns": {"CVE-2021-1": {}, "CVE-2020-5": {}}}`)
	assert.Equal(t, "CVE-2020-5, CVE-2021-1", m.CVEList())

	ids, ok := m.CVEIDs()
	assert.True(t, ok)
	assert.Equal(t, []string{"CVE-2020-5", "CVE-2021-1"}, ids)
}

func TestCVEListNotAMapping(t *testing.T) {
	assert.Equal(t, Placeholder, decode(t, `{"vulns": ["CVE-2021-1"]}`).CVEList())
	assert.Equal(t, Placeholder, decode(t, `{"vulns": null}`).CVEList())
	assert.Equal(t, "", decode(t, `{"vulns": {}}`).CVEList())
}

func TestExitCodes(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 2, ExitCode(E(KindForbiddenFilter, "x", nil)))
	assert.Equal(t, 3, ExitCode(E(KindConfiguration, "x", nil)))
	assert.Equal(t, 4, ExitCode(E(KindAPI, "x", nil)))
	assert.Equal(t, 5, ExitCode(E(KindUnexpected, "x", nil)))
	assert.Equal(t, 2, ExitCode(E(KindUsage, "", assert.AnError)))
	assert.Equal(t, 5, ExitCode(assert.AnError))
}
