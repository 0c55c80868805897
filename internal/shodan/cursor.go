package shodan

import (
	"context"
	"fmt"
	"io"
	"time"

	"ShodanGT/internal/model"
)

// Cursor 逐条遍历查询的全部结果
//
// 第一页决定总页数 ceil(total/100)；之后每页失败会重试，连续失败超过
// retries 次时返回 "Retry limit reached" 的 *APIError。第一页失败不重试。
type Cursor struct {
	client     *Client
	query      string
	page       int
	totalPages int
	buf        []model.HostMatch
	started    bool
	err        error
}

// SearchCursor 返回一个惰性游标，调用 Next 时才发请求
func (c *Client) SearchCursor(query string) *Cursor {
	return &Cursor{client: c, query: query, page: 1}
}

// Next 返回下一条结果，遍历结束时返回 io.EOF
func (cur *Cursor) Next(ctx context.Context) (model.HostMatch, error) {
	for len(cur.buf) == 0 {
		if cur.err != nil {
			return model.HostMatch{}, cur.err
		}
		if err := cur.fill(ctx); err != nil {
			cur.err = err
			return model.HostMatch{}, err
		}
	}
	m := cur.buf[0]
	cur.buf = cur.buf[1:]
	return m, nil
}

func (cur *Cursor) fill(ctx context.Context) error {
	if !cur.started {
		res, err := cur.client.Search(ctx, cur.query, cur.page)
		if err != nil {
			return err
		}
		cur.started = true
		cur.totalPages = (res.Total + PageSize - 1) / PageSize
		cur.buf = res.Matches
		cur.page++
		return nil
	}

	if cur.page > cur.totalPages {
		return io.EOF
	}

	tries := 0
	for {
		res, err := cur.client.Search(ctx, cur.query, cur.page)
		if err == nil {
			cur.buf = res.Matches
			cur.page++
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if tries >= cur.client.retries {
			return &APIError{Message: fmt.Sprintf("Retry limit reached (%d)", cur.client.retries)}
		}
		tries++
		cur.client.logger.Warn("第%d页请求失败，第%d次重试: %v", cur.page, tries, err)

		select {
		case <-time.After(cur.client.retryDelay(tries)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
