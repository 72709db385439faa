package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"github.com/datallboy/bossfetch/internal/domain"
	"github.com/datallboy/bossfetch/internal/engine"
	"github.com/datallboy/bossfetch/internal/infra/config"
)

var (
	ErrNotFound     = errors.New("remote file not found")
	ErrForbidden    = errors.New("access forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrServerError  = errors.New("server error")
	ErrTruncated    = errors.New("transfer truncated")
	ErrInvalidPath  = errors.New("path escapes the mirror root")
)

type Options struct {
	// URLPrefix is the server base URL, without a trailing slash.
	URLPrefix string
	// Timeout bounds one whole transfer. Zero means no limit.
	Timeout time.Duration
	// LocalRoot is the mirror root when it is a plain directory.
	LocalRoot string
}

// Client downloads items into a bucket. A Client is used by one worker at a
// time and must not be shared.
type Client struct {
	http       *http.Client
	bucket     *blob.Bucket
	opts       Options
	ownsBucket bool
}

func NewClient(bucket *blob.Bucket, opts Options) *Client {
	return &Client{
		http: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
			Timeout: opts.Timeout,
		},
		bucket: bucket,
		opts:   opts,
	}
}

// URL returns the remote URL of item.
func (c *Client) URL(item domain.RemoteItem) string {
	return c.opts.URLPrefix + "/" + item.Key()
}

// LocalPath maps item into the directory tree rooted at root. It returns ""
// when the mirror is not a plain directory or item is not a valid path.
func LocalPath(root string, item domain.RemoteItem) string {
	if root == "" || IsBucketURL(root) || !validPath(item) {
		return ""
	}
	return filepath.Join(root, filepath.FromSlash(item.Key()))
}

// validPath rejects empty keys and . or .. segments.
func validPath(item domain.RemoteItem) bool {
	key := item.Key()
	if key == "" {
		return false
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "." || seg == ".." {
			return false
		}
	}
	return true
}

// Stat returns the size of the mirrored copy of item, and false when
// there is none.
func (c *Client) Stat(ctx context.Context, item domain.RemoteItem) (int64, bool, error) {
	attrs, err := c.bucket.Attributes(ctx, item.Key())
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return 0, false, nil
		}
		return 0, false, err
	}
	return attrs.Size, true, nil
}

// Fetch mirrors item and returns its size. An item that is already present
// is not downloaded again. A cancelled ctx aborts the transfer and leaves no
// partial object behind.
func (c *Client) Fetch(ctx context.Context, item domain.RemoteItem) (int64, error) {
	if !validPath(item) {
		return 0, &domain.TransferError{Item: item, Err: ErrInvalidPath}
	}

	size, ok, err := c.Stat(ctx, item)
	if err != nil {
		return 0, &domain.TransferError{Item: item, Err: fmt.Errorf("stat local copy: %w", err)}
	}
	if ok {
		return size, nil
	}

	n, err := c.download(ctx, item)
	if err != nil {
		return 0, &domain.TransferError{Item: item, Err: err}
	}
	return n, nil
}

func (c *Client) download(ctx context.Context, item domain.RemoteItem) (int64, error) {
	url := c.URL(item)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if err := checkStatusCode(resp.StatusCode); err != nil {
		return 0, fmt.Errorf("GET %s: %w (%s)", url, err, resp.Status)
	}

	// Cancelling the writer's context before Close discards the object
	wctx, abort := context.WithCancel(ctx)
	defer abort()

	w, err := c.bucket.NewWriter(wctx, item.Key(), &blob.WriterOptions{
		ContentType: resp.Header.Get("Content-Type"),
	})
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", item.Key(), err)
	}

	n, err := io.Copy(w, resp.Body)
	if err == nil && resp.ContentLength >= 0 && n != resp.ContentLength {
		err = fmt.Errorf("%w: got %d of %d bytes", ErrTruncated, n, resp.ContentLength)
	}
	if err != nil {
		abort()
		_ = w.Close()
		return 0, fmt.Errorf("download %s: %w", url, err)
	}

	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("write %s: %w", item.Key(), err)
	}

	return n, nil
}

// Close releases idle connections and, for clients built by a Factory,
// the bucket.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	if c.ownsBucket {
		return c.bucket.Close()
	}
	return nil
}

func checkStatusCode(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusForbidden:
		return ErrForbidden
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code >= 500:
		return ErrServerError
	default:
		return fmt.Errorf("unexpected status code: %d", code)
	}
}

// OptionsFrom builds client options from the mirror config section.
func OptionsFrom(cfg config.MirrorConfig) Options {
	return Options{
		URLPrefix: strings.TrimRight(cfg.URLPrefix, "/"),
		Timeout:   cfg.Timeout,
		LocalRoot: cfg.LocalRoot,
	}
}

// Open builds a client for cfg that owns a freshly opened bucket.
func Open(ctx context.Context, cfg config.MirrorConfig) (*Client, error) {
	bkt, err := OpenBucket(ctx, cfg.LocalRoot)
	if err != nil {
		return nil, err
	}
	c := NewClient(bkt, OptionsFrom(cfg))
	c.ownsBucket = true
	return c, nil
}

// Factory returns an engine.MirrorFactory that opens a fresh bucket and HTTP
// client for every worker.
func Factory(ctx context.Context, cfg config.MirrorConfig) engine.MirrorFactory {
	return func() (engine.Mirror, error) {
		c, err := Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}
