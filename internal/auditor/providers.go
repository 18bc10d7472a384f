package auditor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"authgateway/internal/platform/config"
)

// Provider names accepted by the registry.
const (
	ProviderConsole = "console"
	ProviderHTTP    = "http"
	ProviderNull    = "null"
	ProviderTest    = "test"
)

// Options carries the collaborators providers may need.
type Options struct {
	Logger *slog.Logger
	Client *http.Client
}

func newProvider(conf config.Auditor, opts Options) (Auditor, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	switch conf.Provider {
	case ProviderConsole:
		return &Console{logger: logger}, nil
	case ProviderHTTP:
		return NewHTTP(conf.Endpoint, opts.Client, logger)
	case ProviderNull:
		return Null{}, nil
	case ProviderTest:
		return NewRecorder(), nil
	default:
		return nil, fmt.Errorf("unsupported auditor provider %q", conf.Provider)
	}
}

// Null discards records and never has an opinion.
type Null struct{}

func (Null) Audit(context.Context, Record) (int, bool) { return 0, false }

// Console logs each record and never has an opinion.
type Console struct {
	logger *slog.Logger
}

func (c *Console) Audit(ctx context.Context, record Record) (int, bool) {
	payload, _ := json.Marshal(record)
	c.logger.InfoContext(ctx, "request audit", "record", string(payload))
	return 0, false
}

// HTTP posts each record as JSON to a configured endpoint. Auditing is
// fire-and-confirm: a transport error or an unexpected response denies the
// request with a 500 override rather than silently allowing it.
type HTTP struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewHTTP builds the HTTP auditor. An endpoint is mandatory.
func NewHTTP(endpoint string, client *http.Client, logger *slog.Logger) (*HTTP, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("http auditor needs an endpoint to POST to")
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{endpoint: endpoint, client: client, logger: logger}, nil
}

func (h *HTTP) Audit(ctx context.Context, record Record) (int, bool) {
	payload, err := json.Marshal(record)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to encode audit record, denying request", "error", err)
		return http.StatusInternalServerError, true
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(payload))
	if err != nil {
		return http.StatusInternalServerError, true
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to audit a request, denying it", "error", err)
		return http.StatusInternalServerError, true
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		h.logger.ErrorContext(ctx, "failed to audit a request, denying it",
			"status", resp.StatusCode,
		)
		return http.StatusInternalServerError, true
	}
	return 0, false
}

// Recorder is the test auditor: it captures every submitted record and
// returns a scripted override, no opinion by default.
type Recorder struct {
	mu       sync.Mutex
	records  []Record
	override int
	hasOp    bool
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Audit(_ context.Context, record Record) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return r.override, r.hasOp
}

// Records returns a copy of everything audited so far.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// SetOverride scripts the status the recorder returns from now on.
func (r *Recorder) SetOverride(status int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.override = status
	r.hasOp = true
}

// ClearOverride reverts the recorder to having no opinion.
func (r *Recorder) ClearOverride() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.override = 0
	r.hasOp = false
}
