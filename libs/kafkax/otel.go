package kafkax

import (
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/propagation"
)

// InjectTraceStrings writes a stored traceparent/tracestate pair onto headers. The outbox
// keeps them as columns so the publisher can continue the trace of the original request.
func InjectTraceStrings(headers []kafka.Header, traceparent, tracestate string) []kafka.Header {
	carrier := &headerCarrier{headers: headers}
	if traceparent != "" {
		carrier.Set("traceparent", traceparent)
	}
	if tracestate != "" {
		carrier.Set("tracestate", tracestate)
	}
	return carrier.headers
}

type headerCarrier struct {
	headers []kafka.Header
}

func (c *headerCarrier) Get(key string) string {
	return HeaderValue(c.headers, key)
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.headers))
	for _, h := range c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}

func (c *headerCarrier) Set(key, value string) {
	for i := range c.headers {
		if c.headers[i].Key == key {
			c.headers[i].Value = []byte(value)
			return
		}
	}
	c.headers = append(c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

var _ propagation.TextMapCarrier = (*headerCarrier)(nil)
