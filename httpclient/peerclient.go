// Package httpclient is the engine's HTTP Peer Client (C5): the three call
// patterns used to pull a snapshot off another database node's file
// server -- list, HEAD-with-md5, and GET-with-timeout -- each wrapped in a
// bounded retry with backoff.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/vortexdb/snaptransfer/internal/xerr"
)

const (
	maxAttempts     = 3
	baseBackoff     = time.Second
	listTimeout     = 15 * time.Second
	statTimeout     = 10 * time.Second
	minDownloadTime = 10 * time.Second
)

// PeerClient talks to a single remote node's "/api/_tablet/_download"
// endpoint, authenticated by a per-transfer token.
type PeerClient struct {
	httpClient *http.Client
	baseURL    string // http://host:port/api/_tablet/_download?token=...

	// LowSpeedLimitKBps bounds the slowest acceptable transfer rate; it
	// drives the per-file download timeout the same way curl's
	// CURLOPT_LOW_SPEED_LIMIT does.
	LowSpeedLimitKBps int64
}

// NewPeerClient builds a client against host:port using token, matching
// the peer HTTP base URL convention in §6 of the design.
func NewPeerClient(host string, port int, token string) *PeerClient {
	return &PeerClient{
		httpClient:        &http.Client{},
		baseURL:           fmt.Sprintf("http://%s:%d/api/_tablet/_download?token=%s", host, port, url.QueryEscape(token)),
		LowSpeedLimitKBps: 200,
	}
}

func withRetry(ctx context.Context, op func() error) error {
	bo := backoff.WithMaxRetries(backoff.NewConstantBackOff(baseBackoff), maxAttempts-1)
	return backoff.Retry(func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		return op()
	}, backoff.WithContext(bo, ctx))
}

// List returns the newline-separated file names the peer reports for
// remoteDir, with whitespace-only entries filtered out.
func (c *PeerClient) List(ctx context.Context, remoteDir string) ([]string, error) {
	reqURL := fmt.Sprintf("%s&file=%s", c.baseURL, remoteDir)
	var body string
	err := withRetry(ctx, func() error {
		cctx, cancel := context.WithTimeout(ctx, listTimeout)
		defer cancel()
		b, err := c.get(cctx, reqURL)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, xerr.Wrap(xerr.KindIO, err, "list peer files at %s", remoteDir)
	}

	var names []string
	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		names = append(names, line)
	}
	return names, nil
}

// Stat returns the declared content length and MD5 for a remote file.
// Declared MD5 may be empty for back-compat with older peers.
func (c *PeerClient) Stat(ctx context.Context, remotePath string) (size int64, md5 string, err error) {
	reqURL := fmt.Sprintf("%s&file=%s&acquire_md5=true", c.baseURL, remotePath)
	err = withRetry(ctx, func() error {
		cctx, cancel := context.WithTimeout(ctx, statTimeout)
		defer cancel()

		req, e := http.NewRequestWithContext(cctx, http.MethodHead, reqURL, nil)
		if e != nil {
			return backoff.Permanent(e)
		}
		resp, e := c.httpClient.Do(req)
		if e != nil {
			return e
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("peer HEAD %s: status %d", remotePath, resp.StatusCode)
		}
		if cl := resp.Header.Get("Content-Length"); cl != "" {
			n, e2 := strconv.ParseInt(cl, 10, 64)
			if e2 != nil {
				return backoff.Permanent(e2)
			}
			size = n
		}
		md5 = resp.Header.Get("Content-MD5")
		return nil
	})
	if err != nil {
		return 0, "", xerr.Wrap(xerr.KindIO, err, "stat peer file %s", remotePath)
	}
	return size, md5, nil
}

// downloadTimeout mirrors the source's size-derived floor: proportional
// to size at the configured low-speed limit, never below minDownloadTime.
func (c *PeerClient) downloadTimeout(size int64) time.Duration {
	limit := c.LowSpeedLimitKBps
	if limit <= 0 {
		limit = 1
	}
	secs := size / limit / 1024
	d := time.Duration(secs) * time.Second
	if d < minDownloadTime {
		return minDownloadTime
	}
	return d
}

// Download streams remotePath (with optional channel query param, e.g.
// "ingest_binlog") to localPath, timing out per downloadTimeout(size).
func (c *PeerClient) Download(ctx context.Context, remotePath, localPath string, size int64, channel string) error {
	reqURL := fmt.Sprintf("%s&file=%s", c.baseURL, remotePath)
	if channel != "" {
		reqURL += "&channel=" + url.QueryEscape(channel)
	}
	timeout := c.downloadTimeout(size)

	return withRetry(ctx, func() error {
		cctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(cctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("peer GET %s: status %d", remotePath, resp.StatusCode)
		}

		out, err := os.Create(localPath)
		if err != nil {
			return backoff.Permanent(xerr.Wrap(xerr.KindIO, err, "create %s", localPath))
		}
		defer out.Close()

		if _, err := io.Copy(out, resp.Body); err != nil {
			return err
		}
		return nil
	})
}

func (c *PeerClient) get(ctx context.Context, reqURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", backoff.Permanent(err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("peer GET %s: status %d", reqURL, resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
