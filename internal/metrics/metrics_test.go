package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "files", "200"))
	RecordHTTPRequest("GET", "files", 200, 10*time.Millisecond)
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "files", "200"))
	if after-before != 1 {
		t.Errorf("Expected counter to increase by 1, got %v", after-before)
	}
}

func TestRecordUpstreamCall(t *testing.T) {
	RecordUpstreamCall("send_file", nil, time.Second)
	RecordUpstreamCall("send_file", errors.New("boom"), time.Second)
	if got := testutil.ToFloat64(upstreamCallsTotal.WithLabelValues("send_file", "error")); got < 1 {
		t.Errorf("Expected error counter >= 1, got %v", got)
	}
}

func TestRecordLoginAndUpload(t *testing.T) {
	RecordLogin("success")
	RecordUpload(42)
	if got := testutil.ToFloat64(loginsTotal.WithLabelValues("success")); got < 1 {
		t.Errorf("Expected login counter >= 1, got %v", got)
	}
	if got := testutil.ToFloat64(uploadBytesTotal); got < 42 {
		t.Errorf("Expected upload bytes >= 42, got %v", got)
	}
}
