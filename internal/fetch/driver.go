// Package fetch 驱动一次搜索：从结果序列逐条取出记录，先输出再汇总。
package fetch

import (
	"context"
	"errors"
	"io"

	"ShodanGT/internal/aggregate"
	"ShodanGT/internal/model"
	"ShodanGT/internal/shodan"
	"ShodanGT/internal/utils"
)

// Status 抓取状态
type Status int

const (
	StatusIdle Status = iota
	StatusFetching
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusFetching:
		return "fetching"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "idle"
	}
}

// MatchPrinter 每条结果到达时立即调用
type MatchPrinter interface {
	PrintMatch(m model.HostMatch)
}

// Driver 单线程抓取驱动，汇总状态只由它写入
type Driver struct {
	printer MatchPrinter
	status  Status
	logger  *utils.Logger
}

func NewDriver(printer MatchPrinter) *Driver {
	return &Driver{
		printer: printer,
		status:  StatusIdle,
		logger:  utils.NewLogger("fetch"),
	}
}

func (d *Driver) Status() Status {
	return d.status
}

// Run 消费 source 直到结束；失败时仍返回已汇总的部分结果
func (d *Driver) Run(ctx context.Context, source Source) (*aggregate.State, error) {
	state := aggregate.NewState()
	state.OnBadPort = func(ip string, m model.HostMatch) {
		d.logger.Warn("端口无法转换为整数，跳过端口统计: ip=%s port=%s", ip, m.PortText())
	}

	d.status = StatusFetching
	for {
		m, err := source.Next(ctx)
		if errors.Is(err, io.EOF) {
			d.status = StatusCompleted
			d.logger.Debug("抓取完成，共 %d 条结果", state.Total)
			return state, nil
		}
		if err != nil {
			d.status = StatusFailed
			return state, classify(err)
		}

		if d.printer != nil {
			d.printer.PrintMatch(m)
		}
		state.Add(m)
	}
}

// classify 把客户端错误映射到 API 错误或意外错误
func classify(err error) error {
	var apiErr *shodan.APIError
	if errors.As(err, &apiErr) {
		return model.E(model.KindAPI, "Shodan API error", err)
	}
	return model.E(model.KindUnexpected, "Error inesperado", err)
}
