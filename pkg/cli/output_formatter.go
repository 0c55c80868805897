package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"ShodanGT/internal/aggregate"
	"ShodanGT/internal/model"
	"ShodanGT/internal/query"
)

// Report 汇总输出所需的全部数据
type Report struct {
	Query   string
	State   *aggregate.State
	CVEs    []model.CVEStat
	Student model.Student
}

type OutputFormatter struct {
	format string
	out    io.Writer
	now    func() time.Time
}

func NewOutputFormatter(format string, out io.Writer) *OutputFormatter {
	return &OutputFormatter{
		format: strings.ToLower(format),
		out:    out,
		now:    time.Now,
	}
}

func (of *OutputFormatter) isJSON() bool {
	return of.format == "json"
}

// PrintHeader 搜索开始前的标题；JSON 模式下不输出
func (of *OutputFormatter) PrintHeader(q string) {
	if of.isJSON() {
		return
	}
	fmt.Fprintln(of.out, strings.Repeat("#", 80))
	fmt.Fprintln(of.out, "BÚSQUEDA SHODAN PARA GUATEMALA")
	fmt.Fprintf(of.out, "Query: %s\n", q)
	fmt.Fprintln(of.out, strings.Repeat("#", 80))
}

// matchLine 单条结果的规范化字段
type matchLine struct {
	IP        string `json:"ip"`
	Port      string `json:"port"`
	Transport string `json:"proto"`
	Hostnames string `json:"hostnames"`
	Service   string `json:"svc"`
	Org       string `json:"org"`
	City      string `json:"city"`
	Region    string `json:"region"`
	Country   string `json:"country"`
	ASN       string `json:"asn"`
	Time      string `json:"time"`
	CVEs      string `json:"cves"`
}

func newMatchLine(m model.HostMatch) matchLine {
	ip, ok := m.IPAddress()
	if !ok {
		ip = model.Placeholder
	}
	return matchLine{
		IP:        ip,
		Port:      m.PortText(),
		Transport: m.TransportName(),
		Hostnames: m.HostnameList(),
		Service:   m.ServiceName(),
		Org:       m.OrgName(),
		City:      m.CityName(),
		Region:    m.Region(),
		Country:   query.CountryCode,
		ASN:       m.ASNumber(),
		Time:      m.Seen(),
		CVEs:      m.CVEList(),
	}
}

// PrintMatch 输出一条结果，缺失字段显示占位符，从不失败
func (of *OutputFormatter) PrintMatch(m model.HostMatch) {
	line := newMatchLine(m)

	if of.isJSON() {
		of.writeJSON(struct {
			Type string `json:"type"`
			matchLine
		}{"match", line})
		return
	}

	fmt.Fprintf(of.out, "[%s:%s]  proto=%s  hostnames=%s  svc=%s  org=%s  loc=%s/%s/%s  asn=%s  time=%s  cves=%s\n",
		line.IP, line.Port, line.Transport, line.Hostnames, line.Service, line.Org,
		line.City, line.Region, line.Country, line.ASN, line.Time, line.CVEs)
}

// PrintSummary 汇总和学生信息，抓取失败时同样输出
func (of *OutputFormatter) PrintSummary(report Report) {
	state := report.State
	if state == nil {
		state = aggregate.NewState()
	}
	generated := of.now().UTC().Format("2006-01-02T15:04:05.000000") + "Z"

	if of.isJSON() {
		of.writeJSON(struct {
			Type      string                `json:"type"`
			Generated string                `json:"generated"`
			Query     string                `json:"query"`
			Total     int                   `json:"total"`
			UniqueIPs int                   `json:"unique_ips"`
			Ports     []aggregate.PortCount `json:"ports"`
			CVEs      []model.CVEStat       `json:"cves,omitempty"`
			Student   model.Student         `json:"student"`
		}{
			Type:      "summary",
			Generated: generated,
			Query:     report.Query,
			Total:     state.Total,
			UniqueIPs: state.UniqueIPs(),
			Ports:     state.Ports(),
			CVEs:      report.CVEs,
			Student:   report.Student,
		})
		return
	}

	var b strings.Builder
	b.WriteString("\n" + strings.Repeat("=", 80) + "\n")
	b.WriteString("RESUMEN\n")
	fmt.Fprintf(&b, "Fecha de ejecución: %s\n", generated)
	fmt.Fprintf(&b, "Filtro usado     : %s\n", report.Query)
	fmt.Fprintf(&b, "Total resultados : %d\n", state.Total)
	fmt.Fprintf(&b, "IPs únicas       : %d\n", state.UniqueIPs())

	b.WriteString("\nIPs por puerto abierto (únicas por puerto):\n")
	ports := state.Ports()
	if len(ports) == 0 {
		b.WriteString("  (sin datos)\n")
	}
	for _, p := range ports {
		fmt.Fprintf(&b, "  - puerto %-5d -> %d IPs\n", p.Port, p.IPs)
	}

	if len(report.CVEs) > 0 {
		b.WriteString("\nCVE más frecuentes (IPs afectadas):\n")
		w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
		for _, cve := range report.CVEs {
			fmt.Fprintf(w, "  - %s\t-> %d IPs\t%s\n", cve.ID, cve.Hosts, cvssText(cve))
		}
		w.Flush()
	}

	b.WriteString("\n" + strings.Repeat("-", 80) + "\n")
	b.WriteString("DATOS DEL ESTUDIANTE\n")
	fmt.Fprintf(&b, "Carne   : %s\n", report.Student.Carne)
	fmt.Fprintf(&b, "Nombre  : %s\n", report.Student.Nombre)
	fmt.Fprintf(&b, "Curso   : %s\n", report.Student.Curso)
	fmt.Fprintf(&b, "Sección : %s\n", report.Student.Seccion)
	b.WriteString(strings.Repeat("-", 80) + "\n")

	io.WriteString(of.out, b.String())
}

// cvssText 本地 CVE 库中没有记录时显示占位符
func cvssText(cve model.CVEStat) string {
	if !cve.Known {
		return model.Placeholder
	}
	severity := cve.Severity
	if severity == "" {
		severity = model.Placeholder
	}
	return fmt.Sprintf("CVSS %.1f %s", cve.Score, severity)
}

func (of *OutputFormatter) writeJSON(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		fmt.Fprintf(of.out, "{\"type\":\"error\",\"error\":%q}\n", err.Error())
		return
	}
	of.out.Write(append(data, '\n'))
}
