package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hanko-field/catalog/internal/platform/requestctx"
)

func TestParseCloudTraceContext(t *testing.T) {
	sc, ok := parseCloudTraceContext("105445aa7843bc8bf206b12000100000/1;o=1")
	if !ok {
		t.Fatalf("expected header to parse")
	}
	if sc.TraceID().String() != "105445aa7843bc8bf206b12000100000" || sc.SpanID().String() != "0000000000000001" || !sc.IsSampled() {
		t.Fatalf("unexpected span context %v", sc)
	}

	for _, bad := range []string{"", "nope", "zz/1;o=1", "105445aa7843bc8bf206b12000100000/abc", "105445aa7843bc8bf206b12000100000/0"} {
		if _, ok := parseCloudTraceContext(bad); ok {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestFormatCloudTraceHeaderRoundTrip(t *testing.T) {
	info := requestctx.TraceInfo{TraceID: "105445aa7843bc8bf206b12000100000", SpanID: "00000000000000ff", Sampled: true}
	if got := formatCloudTraceHeader(info); got != "105445aa7843bc8bf206b12000100000/255;o=1" {
		t.Fatalf("unexpected header %q", got)
	}
	if got := cloudTraceResource(requestctx.TraceInfo{ProjectID: "p", TraceID: "t"}); got != "projects/p/traces/t" {
		t.Fatalf("unexpected resource %q", got)
	}
}

func TestRecoveryMiddlewareWritesEnvelope(t *testing.T) {
	handler := RecoveryMiddleware(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestSanitizeString(t *testing.T) {
	if got := sanitizeString("GET\x00\n/x", 10); got != "GET/x" {
		t.Fatalf("unexpected %q", got)
	}
	if got := sanitizeString("abcdef", 3); got != "abc" {
		t.Fatalf("unexpected %q", got)
	}
}
