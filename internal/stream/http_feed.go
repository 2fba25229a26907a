package stream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

const defaultReadTimeout = 30 * time.Second

// RequestFunc 为每次连接构造新的请求。
type RequestFunc func(ctx context.Context) (*http.Request, error)

// HTTPFeed 是按行分隔的 HTTP 长连接行情源（application/x-json-stream）。
type HTTPFeed struct {
	name        string
	client      *http.Client
	newRequest  RequestFunc
	readTimeout time.Duration
}

func NewHTTPFeed(name string, client *http.Client, newRequest RequestFunc, readTimeout time.Duration) *HTTPFeed {
	if client == nil {
		client = &http.Client{Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: 15 * time.Second,
			IdleConnTimeout:       90 * time.Second,
		}}
	}
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}
	return &HTTPFeed{name: name, client: client, newRequest: newRequest, readTimeout: readTimeout}
}

func (f *HTTPFeed) Name() string { return f.name }

func (f *HTTPFeed) Connect(ctx context.Context) (Conn, error) {
	req, err := f.newRequest(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		resp.Body.Close()
		return nil, ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, snippet)
	}
	return newLineConn(resp.Body, f.readTimeout), nil
}

// lineConn 在读静默超过 timeout 时关闭底层 body，使阻塞中的读取返回。
// 计时只覆盖 Next 内的等待，调用方处理上一条记录的耗时不计入。
type lineConn struct {
	body     io.ReadCloser
	reader   *bufio.Reader
	timeout  time.Duration
	timer    *time.Timer
	timedOut atomic.Bool
	once     sync.Once
}

func newLineConn(body io.ReadCloser, timeout time.Duration) *lineConn {
	return &lineConn{body: body, reader: bufio.NewReaderSize(body, 64*1024), timeout: timeout}
}

func (c *lineConn) expire() {
	c.timedOut.Store(true)
	c.body.Close()
}

func (c *lineConn) arm() {
	if c.timer == nil {
		c.timer = time.AfterFunc(c.timeout, c.expire)
		return
	}
	c.timer.Reset(c.timeout)
}

func (c *lineConn) Next() ([]byte, error) {
	c.arm()
	line, err := c.reader.ReadBytes('\n')
	c.timer.Stop()
	if err != nil {
		if c.timedOut.Load() {
			return nil, ErrReadTimeout
		}
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return line, nil
		}
		return nil, err
	}
	return line, nil
}

func (c *lineConn) Close() error {
	var err error
	c.once.Do(func() {
		if c.timer != nil {
			c.timer.Stop()
		}
		err = c.body.Close()
	})
	return err
}
