// Package woocommerce fetches pages of a WooCommerce REST collection.
package woocommerce

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aluiziolira/woo-export/config"
	"github.com/aluiziolira/woo-export/models"
	"github.com/gocolly/colly/v2"
)

// Client wraps a synchronous colly collector bound to one store and collection.
type Client struct {
	site       config.Site
	endpoint   string
	collector  *colly.Collector
	authHeader string
}

// NewClient builds a client for site reading collection (e.g. "products").
func NewClient(site config.Site, cfg *config.Config, collection string) (*Client, error) {
	parsed, err := url.Parse(site.SiteURL)
	if err != nil {
		return nil, fmt.Errorf("parse site url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("site url must include a host")
	}
	if collection == "" {
		return nil, fmt.Errorf("collection cannot be empty")
	}
	version := site.APIVersion
	if version == "" {
		version = "v3"
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Hostname()),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	c := &Client{
		site:      site,
		endpoint:  strings.TrimSuffix(site.SiteURL, "/") + "/wp-json/wc/" + version + "/" + collection,
		collector: collector,
	}
	if !site.QueryStringAuth {
		creds := site.ConsumerKey + ":" + site.ConsumerSecret
		c.authHeader = "Basic " + base64.StdEncoding.EncodeToString([]byte(creds))
	}
	c.configureHandlers()
	return c, nil
}

// Endpoint returns the collection URL without query parameters.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// WithTransport replaces the HTTP transport, mainly for tests.
func (c *Client) WithTransport(rt http.RoundTripper) {
	c.collector.WithTransport(rt)
}

func (c *Client) configureHandlers() {
	c.collector.OnRequest(func(r *colly.Request) {
		r.Ctx.Put("start", time.Now())
	})

	c.collector.OnResponse(func(r *colly.Response) {
		r.Ctx.Put("status", r.StatusCode)
		r.Ctx.Put("body", r.Body)
		if start, ok := r.Request.Ctx.GetAny("start").(time.Time); ok {
			slog.Debug("page response",
				slog.String("url", r.Request.URL.String()),
				slog.Int("status", r.StatusCode),
				slog.Duration("duration", time.Since(start)),
			)
		}
	})

	c.collector.OnError(func(r *colly.Response, err error) {
		if r == nil || r.Ctx == nil {
			return
		}
		r.Ctx.Put("status", r.StatusCode)
		r.Ctx.Put("body", r.Body)
	})
}

// FetchPage requests one page of the collection. It returns *TransportError when
// the page cannot be retrieved or decoded and *APIError when the store answers
// with an error status.
func (c *Client) FetchPage(ctx context.Context, page, perPage int) ([]models.Record, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, &TransportError{Kind: KindCancelled, Page: page, Err: err}
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("per_page", strconv.Itoa(perPage))
	if c.site.QueryStringAuth {
		query.Set("consumer_key", c.site.ConsumerKey)
		query.Set("consumer_secret", c.site.ConsumerSecret)
	}

	hdr := http.Header{}
	hdr.Set("Accept", "application/json")
	if c.authHeader != "" {
		hdr.Set("Authorization", c.authHeader)
	}

	reqCtx := colly.NewContext()
	err := c.collector.Request(http.MethodGet, c.endpoint+"?"+query.Encode(), nil, reqCtx, hdr)

	status, _ := reqCtx.GetAny("status").(int)
	body, _ := reqCtx.GetAny("body").([]byte)

	if status >= http.StatusBadRequest {
		return nil, newAPIError(page, status, body, err)
	}
	if err != nil {
		return nil, &TransportError{Kind: classifyTransport(err), Page: page, Err: err}
	}

	var records []models.Record
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, &TransportError{Kind: KindDecode, Page: page, Err: fmt.Errorf("decode page body: %w", err)}
	}
	return records, nil
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newAPIError(page, status int, body []byte, cause error) *APIError {
	apiErr := &APIError{StatusCode: status, Page: page, Err: cause}
	if cause == nil {
		apiErr.Err = errors.New(http.StatusText(status))
	}

	var payload errorPayload
	if len(body) > 0 && json.Unmarshal(body, &payload) == nil {
		apiErr.Code = payload.Code
		apiErr.Message = payload.Message
	}
	return apiErr
}
