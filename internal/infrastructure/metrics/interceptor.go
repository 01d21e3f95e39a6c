package metrics

import (
	"context"
	"time"

	"google.golang.org/grpc"
)

// RequestRecorder receives per-method request statistics.
// Both Collector and PrometheusExporter implement it.
type RequestRecorder interface {
	RecordRequest(method string)
	RecordDuration(method string, durationSeconds float64)
	RecordError(method string)
}

// UnaryServerInterceptor returns a gRPC interceptor that records metrics for each request.
// Nil recorders are skipped.
func UnaryServerInterceptor(recorders ...RequestRecorder) grpc.UnaryServerInterceptor {
	active := make([]RequestRecorder, 0, len(recorders))
	for _, r := range recorders {
		if r != nil && !isNilPointer(r) {
			active = append(active, r)
		}
	}

	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		method := info.FullMethod

		for _, r := range active {
			r.RecordRequest(method)
		}

		resp, err := handler(ctx, req)

		duration := time.Since(start).Seconds()
		for _, r := range active {
			r.RecordDuration(method, duration)
			if err != nil {
				r.RecordError(method)
			}
		}

		return resp, err
	}
}

func isNilPointer(r RequestRecorder) bool {
	switch v := r.(type) {
	case *Collector:
		return v == nil
	case *PrometheusExporter:
		return v == nil
	}
	return false
}
