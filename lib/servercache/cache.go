// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

package servercache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/harm-foundation/harm/lib/clock"
	"github.com/harm-foundation/harm/lib/netutil"
	"github.com/harm-foundation/harm/lib/schema"
)

var (
	// ErrFetchFailed wraps every failure to fetch the server list:
	// transport errors, non-2xx statuses, and undecodable bodies.
	ErrFetchFailed = errors.New("server list fetch failed")

	// ErrDisabled is returned by Refresh and FetchPage while the
	// config store has no value.
	ErrDisabled = errors.New("server list unavailable until config is loaded")

	// ErrSuperseded is returned by Refresh when the cache was
	// invalidated, or a later refresh finished first, while the fetch
	// was in flight. The result was discarded.
	ErrSuperseded = errors.New("server list fetch superseded")
)

// Status describes the cached entry returned by Read.
type Status int

const (
	// Pending means there is no page to show: the config is not
	// loaded, or no fetch has succeeded since the last invalidation.
	Pending Status = iota
	// Fresh means the page is the result of the latest fetch against
	// the configured port.
	Fresh
	// Stale means the page is being revalidated, the last refresh
	// failed, or the configured port has changed since the fetch.
	Stale
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// ConfigSource supplies the config the cache is gated on.
// configstore.Store satisfies it.
type ConfigSource interface {
	Read() (schema.AppConfig, bool)
}

// Options configures a Cache. The zero value is usable.
type Options struct {
	// Client performs the requests. Defaults to a client with a 10s
	// timeout.
	Client *http.Client

	// Host is the address the daemon API listens on. Defaults to
	// 127.0.0.1.
	Host string

	// PageSize is sent as the limit query parameter. Zero leaves the
	// daemon's default.
	PageSize int

	// Retry bounds retries of transport errors and 5xx responses.
	// A zero Attempts selects DefaultRetryPolicy.
	Retry RetryPolicy

	// Clock drives retry waits. Defaults to clock.Real().
	Clock clock.Clock

	Logger *slog.Logger
}

// Cache is the single "servers" entry. Safe for concurrent use.
type Cache struct {
	source   ConfigSource
	client   *http.Client
	host     string
	pageSize int
	retry    RetryPolicy
	clock    clock.Clock
	logger   *slog.Logger

	mu         sync.Mutex
	entry      *entry
	err        error
	refreshing int
	// generation is bumped by Invalidate.
	generation uint64
	// started is the sequence number of the last Refresh to begin;
	// applied is that of the last one whose result was installed.
	started uint64
	applied uint64
}

type entry struct {
	page      schema.ServerListPage
	port      int
	fetchedAt time.Time
}

// New returns an empty Cache reading its api_port from source.
func New(source ConfigSource, options Options) *Cache {
	if options.Client == nil {
		options.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if options.Host == "" {
		options.Host = "127.0.0.1"
	}
	if options.Retry.Attempts == 0 {
		options.Retry = DefaultRetryPolicy
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}
	return &Cache{
		source:   source,
		client:   options.Client,
		host:     options.Host,
		pageSize: options.PageSize,
		retry:    options.Retry,
		clock:    options.Clock,
		logger:   options.Logger,
	}
}

// Read returns the cached page and its status. It never makes a
// request. The error is the last refresh failure, if the entry is not
// Fresh because of one.
func (c *Cache) Read() (schema.ServerListPage, Status, error) {
	config, loaded := c.source.Read()
	if !loaded {
		return schema.ServerListPage{}, Pending, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entry == nil {
		return schema.ServerListPage{}, Pending, c.err
	}
	page := clonePage(c.entry.page)
	if c.err != nil {
		return page, Stale, c.err
	}
	if c.refreshing > 0 || c.entry.port != config.APIPort {
		return page, Stale, nil
	}
	return page, Fresh, nil
}

// Port returns the api_port the cached page was fetched from, and
// false when nothing is cached.
func (c *Cache) Port() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entry == nil {
		return 0, false
	}
	return c.entry.port, true
}

// FetchedAt returns when the cached page was fetched, per the cache's
// clock. Zero when nothing is cached.
func (c *Cache) FetchedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entry == nil {
		return time.Time{}
	}
	return c.entry.fetchedAt
}

// Invalidate drops the cached page and any error. Fetches in flight
// when Invalidate is called are discarded when they complete.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.entry = nil
	c.err = nil
}

// Refresh fetches the first page from the api_port of the current
// config and installs it. On failure the previous page is kept and
// Read reports it Stale alongside the error.
func (c *Cache) Refresh(ctx context.Context) (schema.ServerListPage, error) {
	config, loaded := c.source.Read()
	if !loaded {
		return schema.ServerListPage{}, ErrDisabled
	}

	c.mu.Lock()
	c.started++
	sequence := c.started
	generation := c.generation
	c.refreshing++
	c.mu.Unlock()

	page, err := c.fetch(ctx, config.APIPort, "")

	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshing--
	if generation != c.generation || sequence < c.applied {
		c.logger.Debug("discarding superseded server list fetch",
			"port", config.APIPort,
			"error", err,
		)
		return schema.ServerListPage{}, ErrSuperseded
	}
	c.applied = sequence

	if err != nil {
		c.err = err
		c.logger.Warn("server list refresh failed",
			"port", config.APIPort,
			"cached", c.entry != nil,
			"error", err,
		)
		return schema.ServerListPage{}, err
	}
	c.entry = &entry{
		page:      page,
		port:      config.APIPort,
		fetchedAt: c.clock.Now(),
	}
	c.err = nil
	return clonePage(page), nil
}

// FetchPage fetches the page named by token (a previous page's
// NextPage) from the current config's api_port. The result is not
// cached.
func (c *Cache) FetchPage(ctx context.Context, token string) (schema.ServerListPage, error) {
	config, loaded := c.source.Read()
	if !loaded {
		return schema.ServerListPage{}, ErrDisabled
	}
	return c.fetch(ctx, config.APIPort, token)
}

func (c *Cache) fetch(ctx context.Context, port int, token string) (schema.ServerListPage, error) {
	endpoint := c.endpoint(port, token)
	c.logger.Debug("fetching server list", "url", endpoint)

	onRetry := func(attempt int, err error, wait time.Duration) {
		c.logger.Warn("server list fetch failed, retrying",
			"attempt", attempt,
			"wait", wait,
			"error", err,
		)
	}
	page, err := retry(ctx, c.clock, c.retry, onRetry, func() (schema.ServerListPage, error) {
		return c.fetchOnce(ctx, endpoint)
	})
	if err != nil {
		return schema.ServerListPage{}, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	return page, nil
}

func (c *Cache) endpoint(port int, token string) string {
	query := url.Values{}
	if c.pageSize > 0 {
		query.Set("limit", strconv.Itoa(c.pageSize))
	}
	if token != "" {
		query.Set("page_token", token)
	}
	endpoint := url.URL{
		Scheme:   "http",
		Host:     net.JoinHostPort(c.host, strconv.Itoa(port)),
		Path:     "/servers",
		RawQuery: query.Encode(),
	}
	return endpoint.String()
}

func (c *Cache) fetchOnce(ctx context.Context, endpoint string) (schema.ServerListPage, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return schema.ServerListPage{}, permanent(err)
	}
	request.Header.Set("Accept", "application/json")

	response, err := c.client.Do(request)
	if err != nil {
		if ctx.Err() != nil {
			return schema.ServerListPage{}, permanent(err)
		}
		return schema.ServerListPage{}, err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		err := fmt.Errorf("GET /servers: HTTP %d: %s", response.StatusCode, netutil.ErrorBody(response.Body))
		if response.StatusCode >= 500 {
			return schema.ServerListPage{}, err
		}
		return schema.ServerListPage{}, permanent(err)
	}

	var page schema.ServerListPage
	if err := netutil.DecodeResponse(response.Body, &page); err != nil {
		return schema.ServerListPage{}, permanent(fmt.Errorf("decoding server list: %w", err))
	}
	return page, nil
}

func clonePage(page schema.ServerListPage) schema.ServerListPage {
	clone := schema.ServerListPage{NextPage: page.NextPage}
	if page.Data != nil {
		clone.Data = make([]schema.ServerSummary, len(page.Data))
		copy(clone.Data, page.Data)
	}
	return clone
}
