package auditor

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authgateway/internal/authz"
	"authgateway/internal/platform/config"
	"authgateway/internal/session"
)

func testRecord() Record {
	sess := session.Session{Allowed: false, Email: "abc@example.com", ID: "1234", User: "abc"}
	result := authz.Result{Allowed: false, Reason: "Session not valid"}
	return NewRecord("https", "app.example.com", "/secret", sess, result, time.Now())
}

func TestNewRecordSetsAllFields(t *testing.T) {
	now := time.Date(2021, 4, 5, 6, 7, 8, 0, time.UTC)
	sess := session.Session{Allowed: true, Email: "abc@example.com", ID: "1234", User: "abc"}
	result := authz.Result{Allowed: true, Reason: "Found valid session"}

	record := NewRecord("https", "app.example.com", "/page?x=1", sess, result, now)

	assert.Equal(t, Record{
		Email:     "abc@example.com",
		Protocol:  "https",
		Resource:  "https://app.example.com/page?x=1",
		Reason:    "Found valid session",
		Result:    ResultAllow,
		SessionID: "1234",
		Timestamp: now.UnixMilli(),
		User:      "abc",
	}, record)
}

func TestNewRecordDeniedResult(t *testing.T) {
	record := testRecord()
	assert.Equal(t, ResultDeny, record.Result)
	assert.False(t, record.Whitelisted)
}

func TestNullHasNoOpinion(t *testing.T) {
	status, ok := Null{}.Audit(context.Background(), testRecord())
	assert.False(t, ok)
	assert.Zero(t, status)
}

func TestConsoleHasNoOpinion(t *testing.T) {
	c := &Console{logger: slog.Default()}
	status, ok := c.Audit(context.Background(), testRecord())
	assert.False(t, ok)
	assert.Zero(t, status)
}

func TestHTTPRequiresAnEndpoint(t *testing.T) {
	_, err := NewHTTP("", nil, slog.Default())
	require.Error(t, err)
}

func TestHTTPPostsRecordAndHasNoOpinionOn2xx(t *testing.T) {
	var posted Record
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, jsonDecode(r, &posted))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	h, err := NewHTTP(srv.URL, srv.Client(), slog.Default())
	require.NoError(t, err)

	record := testRecord()
	status, ok := h.Audit(context.Background(), record)

	assert.False(t, ok)
	assert.Zero(t, status)
	assert.Equal(t, record, posted)
}

func TestHTTPNon2xxDenies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	h, err := NewHTTP(srv.URL, srv.Client(), slog.Default())
	require.NoError(t, err)

	status, ok := h.Audit(context.Background(), testRecord())
	assert.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, status)
}

func TestHTTPNetworkErrorDenies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	h, err := NewHTTP(srv.URL, nil, slog.Default())
	require.NoError(t, err)

	status, ok := h.Audit(context.Background(), testRecord())
	assert.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, status)
}

func TestRecorderCapturesAndScripts(t *testing.T) {
	r := NewRecorder()

	status, ok := r.Audit(context.Background(), testRecord())
	assert.False(t, ok)
	assert.Zero(t, status)

	r.SetOverride(403)
	status, ok = r.Audit(context.Background(), testRecord())
	assert.True(t, ok)
	assert.Equal(t, 403, status)

	r.ClearOverride()
	_, ok = r.Audit(context.Background(), testRecord())
	assert.False(t, ok)

	assert.Len(t, r.Records(), 3)
}

func TestRegistryLifecycle(t *testing.T) {
	reg := NewRegistry()

	assert.Panics(t, func() { reg.Instance() }, "access before init is a usage error")

	err := reg.Init(config.Auditor{Provider: "bogus"}, Options{})
	require.Error(t, err, "unknown provider is a configuration error")

	require.NoError(t, reg.Init(config.Auditor{Provider: ProviderNull}, Options{}))
	assert.IsType(t, Null{}, reg.Instance())

	err = reg.Init(config.Auditor{Provider: ProviderConsole}, Options{})
	require.Error(t, err, "re-init over a non-test provider is refused")

	reg.Reset()
	_, ok := reg.Instance().(Null)
	assert.True(t, ok, "reset only clears test providers")
}

func TestRegistryResetClearsTestProvider(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Init(config.Auditor{Provider: ProviderTest}, Options{}))
	require.IsType(t, &Recorder{}, reg.Instance())

	reg.Reset()
	assert.Panics(t, func() { reg.Instance() })

	require.NoError(t, reg.Init(config.Auditor{Provider: ProviderNull}, Options{}))
}

func TestRegistryHTTPNeedsEndpoint(t *testing.T) {
	reg := NewRegistry()
	err := reg.Init(config.Auditor{Provider: ProviderHTTP}, Options{})
	require.Error(t, err)
}

func jsonDecode(r *http.Request, out any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}
