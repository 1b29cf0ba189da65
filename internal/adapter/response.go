package adapter

import (
	"math"
	"strconv"

	"github.com/go-resty/resty/v2"
)

// Weave protocol response headers.
const (
	headerBackoff        = "X-Weave-Backoff"
	headerRetryAfter     = "Retry-After"
	headerTimestamp      = "X-Weave-Timestamp"
	headerRecords        = "X-Weave-Records"
	headerQuotaRemaining = "X-Weave-Quota-Remaining"
	headerAlert          = "X-Weave-Alert"

	headerIfUnmodifiedSince = "X-If-Unmodified-Since"
)

// ServerResponse is the protocol-level metadata of one storage server
// response: timestamps, record counts, quota and any server-requested
// backoff. It is populated for every response that reached the server,
// including error responses, so flow-control headers always propagate.
type ServerResponse struct {
	StatusCode int

	// Timestamp is the server clock (ms) when the response was generated;
	// zero when the header was absent.
	Timestamp int64

	// BackoffSeconds and RetryAfterSeconds are the raw values of the two
	// throttling headers; zero when absent.
	BackoffSeconds    int64
	RetryAfterSeconds int64

	// Records is the X-Weave-Records count, -1 when absent.
	Records int64

	// QuotaRemaining is the remaining quota in kilobytes, -1 when absent.
	QuotaRemaining int64

	// Alert is the human-readable X-Weave-Alert message, if any.
	Alert string
}

// BackoffMillis returns the effective server-requested delay in
// milliseconds: the larger of the two throttling headers. Zero means the
// server requested no backoff.
func (r *ServerResponse) BackoffMillis() int64 {
	backoff := r.BackoffSeconds
	if r.RetryAfterSeconds > backoff {
		backoff = r.RetryAfterSeconds
	}
	return backoff * 1000
}

// parseServerResponse extracts the protocol headers from a resty response.
func parseServerResponse(resp *resty.Response) *ServerResponse {
	sr := &ServerResponse{
		StatusCode:     resp.StatusCode(),
		Records:        -1,
		QuotaRemaining: -1,
		Alert:          resp.Header().Get(headerAlert),
	}

	if v := resp.Header().Get(headerTimestamp); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil {
			sr.Timestamp = int64(math.Round(secs * 1000))
		}
	}
	if v := resp.Header().Get(headerBackoff); v != "" {
		if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
			sr.BackoffSeconds = secs
		}
	}
	if v := resp.Header().Get(headerRetryAfter); v != "" {
		if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
			sr.RetryAfterSeconds = secs
		}
	}
	if v := resp.Header().Get(headerRecords); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			sr.Records = n
		}
	}
	if v := resp.Header().Get(headerQuotaRemaining); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			sr.QuotaRemaining = n
		}
	}

	return sr
}

// millisToDecimalSeconds renders a millisecond timestamp in the server's
// decimal-seconds header format.
func millisToDecimalSeconds(ms int64) string {
	return strconv.FormatFloat(float64(ms)/1000, 'f', 2, 64)
}
