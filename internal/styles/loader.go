package styles

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wozniakbe/minimal-x/internal/metrics"
)

//go:embed css/*.css
var bundled embed.FS

// Bundled returns the text of a stylesheet shipped with the binary.
func Bundled(name string) (string, error) {
	b, err := bundled.ReadFile("css/" + name + ".css")
	if err != nil {
		return "", fmt.Errorf("reading bundled stylesheet %q: %w", name, err)
	}
	return string(b), nil
}

// Default remote locations of the two stylesheets.
const (
	DefaultMainURL  = "https://raw.githubusercontent.com/typefully/minimal-twitter/main/css/main.css"
	DefaultBrandURL = "https://raw.githubusercontent.com/typefully/minimal-twitter/main/css/typefully.css"
	DefaultTimeout  = 5 * time.Second
)

// ErrTimeout is reported when a remote stylesheet does not arrive in time.
var ErrTimeout = errors.New("request timeout")

// StatusError is a non-success HTTP response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Code)
}

// Environment tells the loader whether it runs from an unpacked development
// build, in which case remote sheets are not fetched.
type Environment interface {
	IsDevelopment(ctx context.Context) bool
}

// Mode is a fixed Environment.
type Mode string

const (
	Production  Mode = "production"
	Development Mode = "development"
)

func (m Mode) IsDevelopment(context.Context) bool {
	return m == Development
}

// Loader installs the page's stylesheets.
type Loader struct {
	Installer   Installer
	Environment Environment
	Client      *http.Client
	MainURL     string
	BrandURL    string
	Timeout     time.Duration
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
}

type remote struct {
	name string
	url  string
	text string
	err  error
}

// LoadAll installs the bundled sheets, then, outside development, fetches the
// two remote sheets concurrently and installs whatever arrived as one
// "external" sheet after them. It performs no retries and never fails.
func (l *Loader) LoadAll(ctx context.Context) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}

	for _, name := range []string{Main, Brand} {
		css, err := Bundled(name)
		if err != nil {
			logger.Error("bundled stylesheet missing", "name", name, "error", err)
			continue
		}
		if err := l.Installer.Install(ctx, name, css); err != nil {
			logger.Warn("failed to install stylesheet", "name", name, "error", err)
		}
	}

	if l.Environment != nil && l.Environment.IsDevelopment(ctx) {
		logger.Info("development mode, not adding remote stylesheets")
		return
	}

	remotes := []*remote{
		{name: Main, url: l.MainURL},
		{name: Brand, url: l.BrandURL},
	}

	var g errgroup.Group
	for _, r := range remotes {
		if r.url == "" {
			r.err = errors.New("no URL configured")
			continue
		}
		g.Go(func() error {
			r.text, r.err = l.fetch(ctx, r.url)
			return nil
		})
	}
	g.Wait()

	var parts []string
	for _, r := range remotes {
		if r.err != nil {
			logger.Warn("failed to fetch remote stylesheet, using local version", "name", r.name, "url", r.url, "error", r.err)
			l.Metrics.StylesheetFetch(r.name, fetchResult(r.err))
			continue
		}
		l.Metrics.StylesheetFetch(r.name, "ok")
		if r.text != "" {
			parts = append(parts, r.text)
		}
	}

	combined := strings.Join(parts, "\n\n")
	if combined == "" {
		return
	}
	if err := l.Installer.Install(ctx, External, combined); err != nil {
		logger.Warn("failed to install stylesheet", "name", External, "error", err)
	}
}

// fetch GETs url, giving up after the loader's timeout. The trimmed body is
// returned.
func (l *Loader) fetch(ctx context.Context, url string) (string, error) {
	timeout := l.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", ErrTimeout
		}
		return "", fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{URL: url, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", ErrTimeout
		}
		return "", fmt.Errorf("reading %s: %w", url, err)
	}
	return strings.TrimSpace(string(body)), nil
}

func fetchResult(err error) string {
	var se *StatusError
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.As(err, &se):
		return "status"
	default:
		return "error"
	}
}
