package cvedb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ShodanGT/internal/model"
	"ShodanGT/internal/utils"

	_ "github.com/mattn/go-sqlite3"
)

// CVEDatabase 本地 CVE 索引，汇总时用来补充 CVSS 分数和严重程度
type CVEDatabase struct {
	db     *sql.DB
	path   string
	logger *utils.Logger
}

func NewCVEDatabase(dbPath string) (*CVEDatabase, error) {
	logger := utils.NewLogger("cvedb")

	// 确保目录存在
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建数据库目录失败: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	cvedb := &CVEDatabase{
		db:     db,
		path:   dbPath,
		logger: logger,
	}

	if err := cvedb.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化数据表失败: %w", err)
	}

	return cvedb, nil
}

func (cd *CVEDatabase) initTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cves (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cve_id TEXT UNIQUE NOT NULL,
		description TEXT,
		cvss_score REAL,
		cvss_severity TEXT,
		published DATE,
		modified DATE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS update_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		last_update TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		source TEXT,
		records_added INTEGER
	);
	`

	_, err := cd.db.Exec(schema)
	return err
}

// InsertCVE 插入或覆盖一条 CVE
func (cd *CVEDatabase) InsertCVE(cve model.CVE) error {
	_, err := cd.db.Exec(`
		INSERT OR REPLACE INTO cves
		(cve_id, description, cvss_score, cvss_severity, published, modified)
		VALUES (?, ?, ?, ?, ?, ?)`,
		cve.ID, cve.Description, cve.CVSSScore, cve.CVSSSeverity,
		cve.Published, cve.Modified,
	)
	return err
}

// LookupCVEs 按编号批量查询，不存在的编号不出现在结果中
func (cd *CVEDatabase) LookupCVEs(ids []string) (map[string]model.CVE, error) {
	found := make(map[string]model.CVE, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := cd.db.Query(`
		SELECT cve_id, description, cvss_score, cvss_severity
		FROM cves
		WHERE cve_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var cve model.CVE
		var description, severity sql.NullString
		var score sql.NullFloat64
		if err := rows.Scan(&cve.ID, &description, &score, &severity); err != nil {
			cd.logger.Debug("读取CVE记录失败: %v", err)
			continue
		}
		cve.Description = description.String
		cve.CVSSScore = score.Float64
		cve.CVSSSeverity = severity.String
		found[cve.ID] = cve
	}

	return found, rows.Err()
}

// Annotate 用本地记录补充 CVE 统计
func (cd *CVEDatabase) Annotate(stats []model.CVEStat) ([]model.CVEStat, error) {
	ids := make([]string, len(stats))
	for i, s := range stats {
		ids[i] = s.ID
	}

	known, err := cd.LookupCVEs(ids)
	if err != nil {
		return stats, err
	}

	out := make([]model.CVEStat, len(stats))
	for i, s := range stats {
		if cve, ok := known[s.ID]; ok {
			s.Known = true
			s.Score = cve.CVSSScore
			s.Severity = cve.CVSSSeverity
		}
		out[i] = s
	}
	return out, nil
}

// MissingIDs 返回本地没有记录的编号，保持原顺序
func (cd *CVEDatabase) MissingIDs(ids []string) ([]string, error) {
	known, err := cd.LookupCVEs(ids)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// RecordUpdate 记录一次更新
func (cd *CVEDatabase) RecordUpdate(source string, added int) error {
	_, err := cd.db.Exec(`
		INSERT INTO update_history (source, records_added)
		VALUES (?, ?)`,
		source, added,
	)
	return err
}

// GetCveCount 获取CVE总数
func (cd *CVEDatabase) GetCveCount() (int, error) {
	var count int
	err := cd.db.QueryRow("SELECT COUNT(*) FROM cves").Scan(&count)
	return count, err
}

func (cd *CVEDatabase) Close() error {
	return cd.db.Close()
}
