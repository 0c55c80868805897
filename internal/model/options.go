package model

import "time"

// Student 报告末尾回显的学生信息，不做校验
type Student struct {
	Carne   string `json:"carne"`
	Nombre  string `json:"nombre"`
	Curso   string `json:"curso"`
	Seccion string `json:"seccion"`
}

// SearchOptions 命令行选项
type SearchOptions struct {
	Filter       string
	MaxResults   int
	All          bool
	Timeout      int
	OutputFormat string // text, json
	ConfigFile   string
	CVEDatabase  string
	CVERefresh   bool
	Verbose      bool
	Student      Student
}

// TimeoutDuration 单次请求超时
func (o SearchOptions) TimeoutDuration() time.Duration {
	return time.Duration(o.Timeout) * time.Second
}
