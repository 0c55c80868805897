package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"ShodanGT/internal/model"
)

// ErrHelp 用户只请求了帮助信息，帮助文本已经输出
var ErrHelp = errors.New("help requested")

type Parser struct {
	Options model.SearchOptions

	cmd    *cobra.Command
	parsed bool
}

func NewParser(stdout, stderr io.Writer) *Parser {
	p := &Parser{}

	p.cmd = &cobra.Command{
		Use:   "shodangt --carne <carné> --nombre <nombre> --curso <curso> --seccion <sección> [opciones]",
		Short: "Búsqueda Shodan enfocada en Guatemala con resumen por puerto (sin org:).",
		Example: `  shodangt -f 'port:22' -n 50 --carne 2020-1234 --nombre "Ana López" --curso Redes --seccion A
  shodangt -f 'city:"Jalapa"' --all --carne 2020-1234 --nombre "Ana López" --curso Redes --seccion A`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			p.parsed = true
			return p.validate()
		},
	}
	p.cmd.SetOut(stdout)
	p.cmd.SetErr(stderr)
	p.cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return model.E(model.KindUsage, "", err)
	})

	flags := p.cmd.Flags()
	flags.SortFlags = false
	flags.StringVarP(&p.Options.Filter, "filter", "f", "", `Filtro Shodan adicional, p.ej.: city:"Jalapa"  (NO se permite org:)`)
	flags.IntVarP(&p.Options.MaxResults, "max-results", "n", 200, "Máximo de resultados a recuperar.")
	flags.BoolVar(&p.Options.All, "all", false, "Recorrer todos los resultados (cursor). Ojo con rate limits.")
	flags.IntVar(&p.Options.Timeout, "timeout", 60, "Timeout de cada petición HTTP en segundos.")

	flags.StringVar(&p.Options.Student.Carne, "carne", "", "Número de carné.")
	flags.StringVar(&p.Options.Student.Nombre, "nombre", "", "Nombre completo.")
	flags.StringVar(&p.Options.Student.Curso, "curso", "", "Curso.")
	flags.StringVar(&p.Options.Student.Seccion, "seccion", "", "Sección.")

	flags.StringVar(&p.Options.OutputFormat, "format", "text", "Formato de salida (text, json).")
	flags.StringVar(&p.Options.ConfigFile, "config", "", "Archivo YAML con valores por defecto.")
	flags.StringVar(&p.Options.CVEDatabase, "cve-db", "", "Base SQLite local de CVE para el resumen.")
	flags.BoolVar(&p.Options.CVERefresh, "cve-refresh", false, "Completar desde NVD los CVE que falten en --cve-db.")
	flags.BoolVarP(&p.Options.Verbose, "verbose", "v", false, "Mostrar información de depuración.")

	for _, name := range []string{"carne", "nombre", "curso", "seccion"} {
		_ = p.cmd.MarkFlagRequired(name)
	}

	return p
}

// Parse 解析参数；-h 时返回 ErrHelp，其余参数错误均为 KindUsage
func (p *Parser) Parse(args []string) error {
	if args == nil {
		args = []string{}
	}
	p.cmd.SetArgs(args)

	if err := p.cmd.Execute(); err != nil {
		var kindErr *model.Error
		if errors.As(err, &kindErr) {
			return err
		}
		return model.E(model.KindUsage, "", err)
	}
	if !p.parsed {
		return ErrHelp
	}
	return nil
}

// Changed 参数是否在命令行中显式给出
func (p *Parser) Changed(name string) bool {
	return p.cmd.Flags().Changed(name)
}

// Usage 简短用法提示
func (p *Parser) Usage() string {
	return fmt.Sprintf("Uso: %s\nUse -h para ver la ayuda completa.", p.cmd.UseLine())
}

func (p *Parser) validate() error {
	p.Options.OutputFormat = strings.ToLower(p.Options.OutputFormat)
	switch p.Options.OutputFormat {
	case "text", "json":
	default:
		return model.E(model.KindUsage, fmt.Sprintf("formato de salida desconocido: %s", p.Options.OutputFormat), nil)
	}
	if p.Options.MaxResults < 0 {
		return model.E(model.KindUsage, "--max-results no puede ser negativo", nil)
	}
	if p.Options.Timeout <= 0 {
		return model.E(model.KindUsage, "--timeout debe ser mayor que 0", nil)
	}
	return nil
}
