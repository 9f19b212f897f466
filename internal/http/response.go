package http

import (
	"time"
)

// TimingInfo holds the phases of a single request as seen by httptrace
type TimingInfo struct {
	DNSLookupTime    time.Duration
	TCPConnectTime   time.Duration
	TLSHandshakeTime time.Duration

	// TimeToFirstByte runs from the start of Do to the first response byte
	TimeToFirstByte time.Duration

	// ConnReused is true when the request went out on a pooled connection
	ConnReused bool
}

// ConnectTime is the time spent setting up a new connection. It is zero for
// reused connections.
func (t TimingInfo) ConnectTime() time.Duration {
	if t.ConnReused {
		return 0
	}
	return t.DNSLookupTime + t.TCPConnectTime + t.TLSHandshakeTime
}

// Response represents an HTTP response whose body has been fully read
type Response struct {
	StatusCode int
	Timing     TimingInfo
	Body       []byte
}

// BytesReceived returns the size of the response body
func (r *Response) BytesReceived() int64 {
	return int64(len(r.Body))
}
