package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"ShodanGT/internal/model"
)

// APIKeyEnv API Key 所在的环境变量
const APIKeyEnv = "SHODAN_API_KEY"

// Config 可选的 YAML 配置文件，只提供默认值；命令行显式给出的参数优先
type Config struct {
	Shodan struct {
		BaseURL   string  `yaml:"base_url"`
		RateLimit float64 `yaml:"rate_limit"`
		Retries   *int    `yaml:"retries"`
	} `yaml:"shodan"`

	Search struct {
		MaxResults int `yaml:"max_results"`
		Timeout    int `yaml:"timeout"`
	} `yaml:"search"`

	Output struct {
		Format string `yaml:"format"`
	} `yaml:"output"`

	CVE struct {
		Database string `yaml:"database"`
		NVDURL   string `yaml:"nvd_url"`
	} `yaml:"cve"`
}

// Load 读取配置文件；path 为空时返回空配置
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, model.E(model.KindConfiguration, "No se pudo leer el archivo de configuración", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, model.E(model.KindConfiguration, fmt.Sprintf("Archivo de configuración inválido %s", path), err)
	}
	if cfg.Output.Format != "" && cfg.Output.Format != "text" && cfg.Output.Format != "json" {
		return nil, model.E(model.KindConfiguration, fmt.Sprintf("Formato de salida desconocido: %s", cfg.Output.Format), nil)
	}
	return cfg, nil
}

// Apply 把配置文件中的值填入未在命令行显式设置的选项
func (c *Config) Apply(opts *model.SearchOptions, changed func(flag string) bool) {
	if c.Search.MaxResults > 0 && !changed("max-results") {
		opts.MaxResults = c.Search.MaxResults
	}
	if c.Search.Timeout > 0 && !changed("timeout") {
		opts.Timeout = c.Search.Timeout
	}
	if c.Output.Format != "" && !changed("format") {
		opts.OutputFormat = c.Output.Format
	}
	if c.CVE.Database != "" && !changed("cve-db") {
		opts.CVEDatabase = c.CVE.Database
	}
}

// APIKey 从环境变量读取 API Key，缺失时返回配置错误
func APIKey(lookup func(string) (string, bool)) (string, error) {
	key, ok := lookup(APIKeyEnv)
	if !ok || key == "" {
		return "", model.E(model.KindConfiguration, fmt.Sprintf("No se encontró %s en variables de entorno.", APIKeyEnv), nil)
	}
	return key, nil
}
