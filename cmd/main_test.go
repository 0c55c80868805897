package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ShodanGT/internal/cvedb"
	"ShodanGT/internal/model"
)

var student = []string{"--carne", "2020-1234", "--nombre", "Ana López", "--curso", "Redes", "--seccion", "A"}

func withKey(name string) (string, bool) {
	if name == "SHODAN_API_KEY" {
		return "test-key", true
	}
	return "", false
}

func noKey(string) (string, bool) { return "", false }

// writeConfig 指向测试服务器并关闭限速
func writeConfig(t *testing.T, baseURL string, extra string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shodangt.yaml")
	content := fmt.Sprintf("shodan:\n  base_url: %q\n  rate_limit: -1\n  retries: 0\n%s", baseURL, extra)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func runCLI(lookup func(string) (string, bool), args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(append(args, student...), lookup, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestForbiddenFilterExitsBeforeAnything(t *testing.T) {
	code, stdout, stderr := runCLI(withKey, "--filter", "ORG:Tigo")
	assert.Equal(t, 2, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "Error: El uso de filtros por organización (org:) está prohibido para este proyecto.")
}

func TestMissingAPIKey(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	code, stdout, stderr := runCLI(noKey, "--config", writeConfig(t, server.URL, ""))
	assert.Equal(t, 3, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "No se encontró SHODAN_API_KEY en variables de entorno.")
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestUnreadableConfig(t *testing.T) {
	code, stdout, _ := runCLI(withKey, "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Equal(t, 3, code)
	assert.Empty(t, stdout)
}

func TestUsageErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"--carne", "1"}, withKey, &stdout, &stderr)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "Error: ")

	code, _, stderr2 := runCLI(withKey, "--cve-refresh")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr2, "--cve-db")
}

func TestHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 0, run([]string{"--help"}, noKey, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "--carne")
}

func TestAPIErrorAfterTwoRecordsStillSummarizes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, `country:"GT" port:22`, r.URL.Query().Get("query"))
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprint(w, `{"total": 500, "matches": [
				{"ip_str": "1.1.1.1", "port": 22, "transport": "tcp"},
				{"ip_str": "2.2.2.2", "port": 22, "transport": "tcp"}
			]}`)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error": "Invalid API key"}`)
	}))
	defer server.Close()

	code, stdout, stderr := runCLI(withKey, "-f", "port:22", "-n", "10", "--config", writeConfig(t, server.URL, ""))
	assert.Equal(t, 4, code)
	assert.Contains(t, stderr, "Shodan API error: Invalid API key")

	assert.Contains(t, stdout, "BÚSQUEDA SHODAN PARA GUATEMALA")
	assert.Contains(t, stdout, "[1.1.1.1:22]  proto=tcp")
	assert.Contains(t, stdout, "[2.2.2.2:22]  proto=tcp")
	assert.Contains(t, stdout, "Total resultados : 2\n")
	assert.Contains(t, stdout, "IPs únicas       : 2\n")
	assert.Contains(t, stdout, "  - puerto 22    -> 2 IPs\n")
	assert.Contains(t, stdout, "Sección : A\n")
}

func TestMalformedResponseIsUnexpected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"matches": [`)
	}))
	defer server.Close()

	code, stdout, stderr := runCLI(withKey, "--config", writeConfig(t, server.URL, ""))
	assert.Equal(t, 5, code)
	assert.Contains(t, stderr, "Error inesperado")
	assert.Contains(t, stdout, "  (sin datos)\n")
}

func TestBoundedRunWithCVEIndex(t *testing.T) {
	var pages int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&pages, 1)
		fmt.Fprint(w, `{"total": 3, "matches": [
			{"ip_str": "1.1.1.1", "port": 443, "vulns": {"CVE-2021-44228": {}}},
			{"ip_str": "1.1.1.1", "port": 80},
			{"ip_str": "2.2.2.2", "port": 80, "vulns": {"CVE-2021-44228": {}, "CVE-2020-1": {}}}
		]}`)
	}))
	defer server.Close()

	dbPath := filepath.Join(t.TempDir(), "cve.db")
	db, err := cvedb.NewCVEDatabase(dbPath)
	require.NoError(t, err)
	require.NoError(t, db.InsertCVE(model.CVE{ID: "CVE-2021-44228", CVSSScore: 10, CVSSSeverity: "CRITICAL"}))
	require.NoError(t, db.Close())

	cfg := writeConfig(t, server.URL, fmt.Sprintf("cve:\n  database: %q\n", dbPath))
	code, stdout, stderr := runCLI(withKey, "-n", "3", "--config", cfg)
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, int32(1), atomic.LoadInt32(&pages))

	assert.Contains(t, stdout, "Total resultados : 3\n")
	assert.Contains(t, stdout, "IPs únicas       : 2\n")
	assert.Less(t, strings.Index(stdout, "puerto 80 "), strings.Index(stdout, "puerto 443 "))
	assert.Contains(t, stdout, "  - puerto 80    -> 2 IPs\n")
	assert.Contains(t, stdout, "  - puerto 443   -> 1 IPs\n")
	assert.Contains(t, stdout, "CVE-2021-44228  -> 2 IPs  CVSS 10.0 CRITICAL")
	assert.Contains(t, stdout, "CVE-2020-1      -> 1 IPs  -")
}
