package render

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/devgenius/artifact-gateway/internal/validate"
)

const (
	DefaultKrokiURL  = "https://kroki.io"
	DefaultCacheSize = 128
	defaultTimeout   = 30 * time.Second
)

// Formats are the output formats Kroki renders Structurizr into.
var Formats = []string{"svg", "png", "pdf", "jpeg"}

var contentTypes = map[string]string{
	"svg":  "image/svg+xml",
	"png":  "image/png",
	"pdf":  "application/pdf",
	"jpeg": "image/jpeg",
}

var (
	ErrUnsupportedFormat = errors.New("unsupported diagram format")
	// ErrNotWorkspace means the cleaned DSL does not start with "workspace".
	ErrNotWorkspace = errors.New("dsl must start with a workspace block")
	// ErrUpstream wraps transport failures and non-200 answers from Kroki.
	ErrUpstream = errors.New("kroki request failed")
)

// Diagram is a rendered image.
type Diagram struct {
	Format      string
	ContentType string
	Data        []byte
}

// Kroki renders Structurizr DSL through a Kroki server. Results are cached
// by format and payload.
type Kroki struct {
	baseURL    string
	httpClient *http.Client
	cache      *lru.Cache[string, *Diagram]
	logger     *slog.Logger
}

type KrokiOption func(*Kroki)

func WithKrokiURL(u string) KrokiOption {
	return func(k *Kroki) {
		if u != "" {
			k.baseURL = strings.TrimSuffix(u, "/")
		}
	}
}

func WithHTTPClient(c *http.Client) KrokiOption {
	return func(k *Kroki) { k.httpClient = c }
}

func WithLogger(l *slog.Logger) KrokiOption {
	return func(k *Kroki) { k.logger = l }
}

// NewKroki builds a client with an LRU of cacheSize entries
// (DefaultCacheSize when not positive).
func NewKroki(cacheSize int, opts ...KrokiOption) (*Kroki, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, *Diagram](cacheSize)
	if err != nil {
		return nil, err
	}
	k := &Kroki{
		baseURL: DefaultKrokiURL,
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cache:  cache,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k, nil
}

// Encode compresses dsl with zlib at the best compression level and encodes
// it as URL-safe base64, the payload format of Kroki GET requests.
func Encode(dsl string) (string, error) {
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return "", err
	}
	if _, err := zw.Write([]byte(dsl)); err != nil {
		return "", err
	}
	if err := zw.Close(); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(buf.Bytes()), nil
}

// URL returns the Kroki GET address for dsl in format.
func (k *Kroki) URL(dsl, format string) (string, error) {
	if !slices.Contains(Formats, format) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	payload, err := Encode(dsl)
	if err != nil {
		return "", err
	}
	return k.baseURL + "/structurizr/" + format + "/" + payload, nil
}

// Render cleans dsl, then renders it. An empty format means svg.
func (k *Kroki) Render(ctx context.Context, dsl, format string) (*Diagram, error) {
	if format == "" {
		format = "svg"
	}
	cleaned := validate.CleanDSL(dsl)
	if !strings.HasPrefix(cleaned, "workspace") {
		return nil, ErrNotWorkspace
	}
	u, err := k.URL(cleaned, format)
	if err != nil {
		return nil, err
	}
	if d, ok := k.cache.Get(u); ok {
		return d, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := k.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read kroki response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(body))
		if len(msg) > 512 {
			msg = msg[:512]
		}
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, msg)
	}

	d := &Diagram{Format: format, ContentType: contentTypes[format], Data: body}
	k.cache.Add(u, d)
	k.logger.DebugContext(ctx, "rendered diagram",
		slog.String("format", format),
		slog.Int("bytes", len(body)),
	)
	return d, nil
}
