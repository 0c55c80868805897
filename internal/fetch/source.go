package fetch

import (
	"context"
	"io"

	"ShodanGT/internal/model"
	"ShodanGT/internal/shodan"
)

// Source 惰性的结果序列，结束时返回 io.EOF
type Source interface {
	Next(ctx context.Context) (model.HostMatch, error)
}

// Searcher 分页查询接口，由 *shodan.Client 实现
type Searcher interface {
	Search(ctx context.Context, query string, page int) (*shodan.SearchResult, error)
}

// Cursorer 游标查询接口，由 *shodan.Client 实现
type Cursorer interface {
	SearchCursor(query string) *shodan.Cursor
}

// Mode 抓取策略
type Mode int

const (
	// ModeBounded 分页抓取，达到上限或遇到空页时停止
	ModeBounded Mode = iota
	// ModeStreaming 用游标遍历全部结果，没有上限（可能很慢并消耗大量额度）
	ModeStreaming
)

func (m Mode) String() string {
	if m == ModeStreaming {
		return "streaming"
	}
	return "bounded"
}

// Client 同时支持两种策略的查询客户端
type Client interface {
	Searcher
	Cursorer
}

// NewSource 按策略创建结果序列
func NewSource(mode Mode, client Client, query string, maxResults int) Source {
	if mode == ModeStreaming {
		return NewCursorSource(client, query)
	}
	return NewPagedSource(client, query, maxResults)
}

// PagedSource 从第 1 页开始逐页请求，累计达到 max 条后停止，必要时在页中间截断
type PagedSource struct {
	searcher Searcher
	query    string
	max      int
	page     int
	fetched  int
	buf      []model.HostMatch
	done     bool
}

func NewPagedSource(searcher Searcher, query string, max int) *PagedSource {
	return &PagedSource{searcher: searcher, query: query, max: max, page: 1}
}

func (p *PagedSource) Next(ctx context.Context) (model.HostMatch, error) {
	if p.done || p.fetched >= p.max {
		p.done = true
		return model.HostMatch{}, io.EOF
	}
	if len(p.buf) == 0 {
		res, err := p.searcher.Search(ctx, p.query, p.page)
		if err != nil {
			return model.HostMatch{}, err
		}
		p.page++
		if len(res.Matches) == 0 {
			p.done = true
			return model.HostMatch{}, io.EOF
		}
		p.buf = res.Matches
	}
	m := p.buf[0]
	p.buf = p.buf[1:]
	p.fetched++
	return m, nil
}

// Pages 已请求的页数
func (p *PagedSource) Pages() int {
	return p.page - 1
}

// CursorSource 包装客户端游标
type CursorSource struct {
	cursor *shodan.Cursor
}

func NewCursorSource(c Cursorer, query string) *CursorSource {
	return &CursorSource{cursor: c.SearchCursor(query)}
}

func (c *CursorSource) Next(ctx context.Context) (model.HostMatch, error) {
	return c.cursor.Next(ctx)
}
