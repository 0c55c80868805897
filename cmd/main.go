package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"ShodanGT/internal/config"
	"ShodanGT/internal/cvedb"
	"ShodanGT/internal/fetch"
	"ShodanGT/internal/model"
	"ShodanGT/internal/query"
	"ShodanGT/internal/shodan"
	"ShodanGT/internal/utils"
	"ShodanGT/pkg/cli"
)

// 汇总中最多列出的 CVE 数
const topCVEs = 10

func main() {
	os.Exit(run(os.Args[1:], os.LookupEnv, os.Stdout, os.Stderr))
}

func run(args []string, lookupEnv func(string) (string, bool), stdout, stderr io.Writer) int {
	utils.SetOutput(stderr)

	// 解析命令行参数
	parser := cli.NewParser(stdout, stderr)
	if err := parser.Parse(args); err != nil {
		if errors.Is(err, cli.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		fmt.Fprintln(stderr, parser.Usage())
		return model.ExitCode(err)
	}

	options := parser.Options
	utils.SetVerbose(options.Verbose)
	logger := utils.NewLogger("main")

	// 过滤条件校验，失败时不产生任何其他输出
	filter, err := query.ValidateFilter(options.Filter)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return model.ExitCode(err)
	}
	q := query.Build(filter)

	cfg, err := config.Load(options.ConfigFile)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return model.ExitCode(err)
	}
	cfg.Apply(&options, parser.Changed)

	if options.CVERefresh && options.CVEDatabase == "" {
		fmt.Fprintln(stderr, "Error: --cve-refresh requiere --cve-db")
		return model.KindUsage.ExitCode()
	}

	apiKey, err := config.APIKey(lookupEnv)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return model.ExitCode(err)
	}

	clientOpts := []shodan.Option{
		shodan.WithTimeout(options.TimeoutDuration()),
		shodan.WithBaseURL(cfg.Shodan.BaseURL),
	}
	if cfg.Shodan.RateLimit != 0 {
		clientOpts = append(clientOpts, shodan.WithRateLimit(cfg.Shodan.RateLimit))
	}
	if cfg.Shodan.Retries != nil {
		clientOpts = append(clientOpts, shodan.WithRetries(*cfg.Shodan.Retries))
	}
	client := shodan.NewClient(apiKey, clientOpts...)

	mode := fetch.ModeBounded
	if options.All {
		mode = fetch.ModeStreaming
	}
	logger.Debug("查询: %s, 策略: %s, 上限: %d, 超时: %d秒", q, mode, options.MaxResults, options.Timeout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	formatter := cli.NewOutputFormatter(options.OutputFormat, stdout)
	formatter.PrintHeader(q)

	driver := fetch.NewDriver(formatter)
	state, fetchErr := driver.Run(ctx, fetch.NewSource(mode, client, q, options.MaxResults))
	if fetchErr != nil {
		// 已输出的结果保留，继续打印部分汇总
		fmt.Fprintln(stderr, fetchErr)
		logger.Debug("抓取状态: %s, 已处理 %d 条", driver.Status(), state.Total)
	}

	formatter.PrintSummary(cli.Report{
		Query:   q,
		State:   state,
		CVEs:    cveSummary(ctx, options, cfg, state.CVEs(topCVEs), logger),
		Student: options.Student,
	})

	return model.ExitCode(fetchErr)
}

// cveSummary 配置了本地 CVE 库时补充 CVSS 信息；任何失败只记录警告
func cveSummary(ctx context.Context, options model.SearchOptions, cfg *config.Config, stats []model.CVEStat, logger *utils.Logger) []model.CVEStat {
	if len(stats) == 0 || options.CVEDatabase == "" {
		return stats
	}

	cveDB, err := cvedb.NewCVEDatabase(options.CVEDatabase)
	if err != nil {
		logger.Warn("初始化CVE数据库失败: %v", err)
		return stats
	}
	defer cveDB.Close()

	if options.CVERefresh {
		ids := make([]string, len(stats))
		for i, s := range stats {
			ids[i] = s.ID
		}
		added, err := cvedb.NewCVEAPIClient(cfg.CVE.NVDURL).RefreshMissing(ctx, cveDB, ids)
		if err != nil {
			logger.Warn("更新CVE数据库失败: %v", err)
		} else {
			logger.Info("CVE数据库新增 %d 条记录", added)
		}
	}

	annotated, err := cveDB.Annotate(stats)
	if err != nil {
		logger.Warn("查询CVE信息失败: %v", err)
		return stats
	}
	return annotated
}
