package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/asakaida/kanmon/internal/infrastructure/config"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestNewWithWriter(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.LogConfig
		wantLevel logrus.Level
		wantErr   bool
	}{
		{"defaults", config.LogConfig{}, logrus.InfoLevel, false},
		{"debug text", config.LogConfig{Level: "debug", Format: "text"}, logrus.DebugLevel, false},
		{"warn json", config.LogConfig{Level: "warn", Format: "JSON"}, logrus.WarnLevel, false},
		{"bad level", config.LogConfig{Level: "loud"}, 0, true},
		{"bad format", config.LogConfig{Format: "xml"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewWithWriter(&tt.cfg, &bytes.Buffer{})
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewWithWriter() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if logger.GetLevel() != tt.wantLevel {
				t.Errorf("level = %v, want %v", logger.GetLevel(), tt.wantLevel)
			}
		})
	}
}

func TestNewWithWriter_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(&config.LogConfig{Level: "info", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("NewWithWriter() error = %v", err)
	}

	logger.WithField("operation", "deleteUser").Info("denied")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if line["operation"] != "deleteUser" || line["msg"] != "denied" {
		t.Errorf("unexpected log line %v", line)
	}
}

type headerCapture struct {
	grpc.ServerTransportStream
	header metadata.MD
}

func (h *headerCapture) Method() string { return "/kanmon.v1.PermissionService/Check" }

func (h *headerCapture) SetHeader(md metadata.MD) error {
	h.header = metadata.Join(h.header, md)
	return nil
}

func TestUnaryServerInterceptor(t *testing.T) {
	info := &grpc.UnaryServerInfo{FullMethod: "/kanmon.v1.PermissionService/Check"}

	tests := []struct {
		name       string
		incomingID string
		handlerErr error
		wantLevel  logrus.Level
	}{
		{"generated id", "", nil, logrus.InfoLevel},
		{"propagated id", "req-123", nil, logrus.InfoLevel},
		{"client error logs at info", "", status.Error(codes.PermissionDenied, "access denied"), logrus.InfoLevel},
		{"server fault logs at error", "", status.Error(codes.Unavailable, "registry unavailable"), logrus.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, hook := test.NewNullLogger()
			stream := &headerCapture{}
			ctx := grpc.NewContextWithServerTransportStream(context.Background(), stream)
			if tt.incomingID != "" {
				ctx = metadata.NewIncomingContext(ctx, metadata.Pairs(RequestIDKey, tt.incomingID))
			}

			var scoped logrus.FieldLogger
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				scoped = FromContext(ctx, nil)
				return "ok", tt.handlerErr
			}

			_, err := UnaryServerInterceptor(logger)(ctx, nil, info, handler)
			if err != tt.handlerErr {
				t.Fatalf("error = %v, want %v", err, tt.handlerErr)
			}
			if scoped == nil {
				t.Error("handler context has no request logger")
			}

			ids := stream.header.Get(RequestIDKey)
			if len(ids) != 1 || ids[0] == "" {
				t.Fatalf("response header %s = %v", RequestIDKey, ids)
			}
			if tt.incomingID != "" && ids[0] != tt.incomingID {
				t.Errorf("request id = %q, want %q", ids[0], tt.incomingID)
			}

			entry := hook.LastEntry()
			if entry == nil {
				t.Fatal("nothing logged")
			}
			if entry.Level != tt.wantLevel {
				t.Errorf("level = %v, want %v", entry.Level, tt.wantLevel)
			}
			if entry.Data["request_id"] != ids[0] {
				t.Errorf("logged request_id = %v, want %v", entry.Data["request_id"], ids[0])
			}
			if !strings.HasSuffix(entry.Data["method"].(string), "/Check") {
				t.Errorf("logged method = %v", entry.Data["method"])
			}
		})
	}
}

func TestFromContext_Fallback(t *testing.T) {
	fallback := logrus.New()
	if got := FromContext(context.Background(), fallback); got != fallback {
		t.Error("FromContext() did not return the fallback")
	}
}
