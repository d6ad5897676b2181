package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jlaffaye/ftp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("lib/fetch")

// MaxAttempts is the transport retry ceiling. Retries are immediate; after
// the ceiling is exhausted the source is recorded as failed and the caller
// gets "no data this run" rather than an error.
const MaxAttempts = 10

// FTPConn is the subset of an FTP control connection the client needs.
// Satisfied by serverConn wrapping github.com/jlaffaye/ftp.
type FTPConn interface {
	Login(user, password string) error
	Retr(path string) (io.ReadCloser, error)
	Quit() error
}

// FTPDialer opens a control connection to addr ("host:port").
type FTPDialer func(addr string) (FTPConn, error)

type serverConn struct {
	conn *ftp.ServerConn
}

func (s serverConn) Login(user, password string) error {
	return s.conn.Login(user, password)
}

func (s serverConn) Retr(path string) (io.ReadCloser, error) {
	return s.conn.Retr(path)
}

func (s serverConn) Quit() error {
	return s.conn.Quit()
}

func DialFTP(addr string) (FTPConn, error) {
	conn, err := ftp.Dial(addr, ftp.DialWithTimeout(time.Second*30))
	if err != nil {
		return nil, err
	}
	return serverConn{conn: conn}, nil
}

type Client struct {
	http     *resty.Client
	dialFTP  FTPDialer
	failures []string
}

func NewClient() *Client {
	return &Client{
		http:    resty.New().SetTimeout(time.Second * 60),
		dialFTP: DialFTP,
	}
}

// NewClientWithDialer is used by tests to substitute the FTP transport.
func NewClientWithDialer(dial FTPDialer) *Client {
	c := NewClient()
	c.dialFTP = dial
	return c
}

// Failures returns the sources that exhausted the retry ceiling since the
// last Reset, sorted for stable reporting.
func (c *Client) Failures() []string {
	out := make([]string, len(c.failures))
	copy(out, c.failures)
	sort.Strings(out)
	return out
}

func (c *Client) Reset() {
	c.failures = nil
}

func (c *Client) recordFailure(source string) {
	c.failures = append(c.failures, source)
}

// GetHTTP performs a GET with bounded immediate retry. On exhaustion it
// returns (nil, nil): absent data is not a fatal condition for ingestion.
func (c *Client) GetHTTP(ctx context.Context, link string, query url.Values) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "GetHTTP")
	defer span.End()
	span.SetAttributes(attribute.String("url", link))

	req := c.http.R().SetContext(ctx)
	if query != nil {
		req.SetQueryParamsFromValues(query)
	}

	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		slog.InfoContext(ctx, "fetching url", "url", link, "attempt", attempt)

		res, err := req.Get(link)
		if err == nil && res.IsSuccess() {
			return res.Body(), nil
		}
		if err != nil {
			slog.WarnContext(ctx, "fetch attempt failed", "url", link, "attempt", attempt, "err", err)
			span.RecordError(err)
		} else {
			slog.WarnContext(ctx, "fetch attempt failed", "url", link, "attempt", attempt, "status", res.StatusCode())
		}
	}

	span.SetStatus(codes.Error, "retry ceiling exhausted")
	slog.ErrorContext(ctx, "fetch abandoned", "url", link, "attempts", MaxAttempts)
	c.recordFailure(link)
	return nil, nil
}

// GetFTP retrieves a remote file over anonymous FTP with the same bounded
// retry and failure-list contract as GetHTTP.
func (c *Client) GetFTP(ctx context.Context, host, path string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "GetFTP")
	defer span.End()
	source := fmt.Sprintf("ftp://%s/%s", host, path)
	span.SetAttributes(attribute.String("source", source))

	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		slog.InfoContext(ctx, "fetching ftp file", "source", source, "attempt", attempt)

		data, err := c.retrOnce(host, path)
		if err == nil {
			return data, nil
		}
		slog.WarnContext(ctx, "ftp attempt failed", "source", source, "attempt", attempt, "err", err)
		span.RecordError(err)
	}

	span.SetStatus(codes.Error, "retry ceiling exhausted")
	slog.ErrorContext(ctx, "fetch abandoned", "source", source, "attempts", MaxAttempts)
	c.recordFailure(source)
	return nil, nil
}

func (c *Client) retrOnce(host, path string) ([]byte, error) {
	conn, err := c.dialFTP(host)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	defer conn.Quit()

	err = conn.Login("anonymous", "anonymous")
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	body, err := conn.Retr(path)
	if err != nil {
		return nil, fmt.Errorf("retr: %w", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return data, nil
}

// NextPage is returned by a page callback: the query parameters of the
// continuation, or ok=false when the listing is complete.
type NextPage struct {
	Query url.Values
	Ok    bool
}

// FollowPages fetches a listing page and keeps following the continuation
// the callback extracts from each page. The loop is bounded by the page
// limit so a pathological continuation cycle cannot run away.
func (c *Client) FollowPages(ctx context.Context, link string, query url.Values, limit int, next func(page []byte) NextPage) ([][]byte, error) {
	ctx, span := tracer.Start(ctx, "FollowPages")
	defer span.End()

	var pages [][]byte
	for i := 0; i < limit; i++ {
		page, err := c.GetHTTP(ctx, link, query)
		if err != nil {
			return pages, err
		}
		if page == nil {
			// source recorded as failed; whatever was accumulated stands
			return pages, nil
		}
		pages = append(pages, page)

		continuation := next(page)
		if !continuation.Ok {
			return pages, nil
		}
		query = continuation.Query
	}

	slog.WarnContext(ctx, "pagination limit reached", "url", link, "limit", limit)
	return pages, nil
}
