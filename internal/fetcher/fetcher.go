package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/dshills/docindex-mcp/pkg/types"
)

const (
	// DefaultDocumentRoot is where local documents are looked up and downloads are stored
	DefaultDocumentRoot = "path/to/documents"

	// DefaultTimeout bounds a single download
	DefaultTimeout = 2 * time.Minute

	// DefaultMaxBytes caps the size of a downloaded document
	DefaultMaxBytes = 100 << 20
)

// Config holds fetcher configuration
type Config struct {
	DocumentRoot string
	// RatePerSecond limits downloads; 0 means unlimited
	RatePerSecond float64
	Burst         int
	Timeout       time.Duration
	MaxBytes      int64
	Client        *http.Client
}

// Fetcher resolves document references to local files
type Fetcher struct {
	root     string
	client   *http.Client
	limiter  *rate.Limiter
	maxBytes int64
}

// New creates a fetcher
func New(cfg Config) *Fetcher {
	root := cfg.DocumentRoot
	if root == "" {
		root = DefaultDocumentRoot
	}

	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	burst := cfg.Burst
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
		if burst <= 0 {
			burst = 1
		}
	}

	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	return &Fetcher{
		root:     root,
		client:   client,
		limiter:  rate.NewLimiter(limit, burst),
		maxBytes: maxBytes,
	}
}

// DocumentRoot returns the directory documents resolve into
func (f *Fetcher) DocumentRoot() string {
	return f.root
}

// IsURL reports whether ref is downloaded rather than looked up locally
func IsURL(ref string) bool {
	return strings.HasPrefix(ref, "http")
}

// Resolve returns the local path for ref. URLs are downloaded into the document
// root under their base name; anything else is looked up there by base name.
func (f *Fetcher) Resolve(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%w: empty document reference", types.ErrIO)
	}

	if IsURL(ref) {
		return f.download(ctx, ref)
	}

	name := filepath.Base(ref)
	if !validName(name) {
		return "", fmt.Errorf("%w: invalid document name %q", types.ErrIO, ref)
	}
	local := filepath.Join(f.root, name)
	if _, err := os.Stat(local); err != nil {
		return "", fmt.Errorf("%w: document %s: %v", types.ErrIO, local, err)
	}
	return local, nil
}

// LocalPath returns where ref resolves without touching the network or disk
func (f *Fetcher) LocalPath(ref string) (string, error) {
	name, err := baseName(strings.TrimSpace(ref))
	if err != nil {
		return "", err
	}
	return filepath.Join(f.root, name), nil
}

func baseName(ref string) (string, error) {
	name := filepath.Base(ref)
	if IsURL(ref) {
		u, err := url.Parse(ref)
		if err != nil {
			return "", fmt.Errorf("%w: invalid url %q: %v", types.ErrIO, ref, err)
		}
		name = path.Base(u.Path)
	}
	if !validName(name) {
		return "", fmt.Errorf("%w: cannot derive a file name from %q", types.ErrIO, ref)
	}
	return name, nil
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." && name != "/" && name != string(filepath.Separator)
}

func (f *Fetcher) download(ctx context.Context, rawURL string) (string, error) {
	name, err := baseName(rawURL)
	if err != nil {
		return "", err
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: build request for %s: %v", types.ErrIO, rawURL, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: download %s: %v", types.ErrIO, rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: download %s: status %d", types.ErrIO, rawURL, resp.StatusCode)
	}

	if err := os.MkdirAll(f.root, 0o755); err != nil {
		return "", fmt.Errorf("%w: create document root: %v", types.ErrIO, err)
	}

	dest := filepath.Join(f.root, name)
	if err := writeAtomic(dest, io.LimitReader(resp.Body, f.maxBytes+1), f.maxBytes); err != nil {
		return "", fmt.Errorf("%w: save %s: %v", types.ErrIO, dest, err)
	}
	return dest, nil
}

var errTooLarge = errors.New("document exceeds size limit")

// writeAtomic writes r to a temp file next to dest and renames it into place
func writeAtomic(dest string, r io.Reader, maxBytes int64) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	n, err := io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	if n > maxBytes {
		return fmt.Errorf("%w: more than %d bytes", errTooLarge, maxBytes)
	}
	return os.Rename(tmp.Name(), dest)
}
