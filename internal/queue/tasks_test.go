package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/hibiken/asynq"
)

func TestHandlersRejectInvalidPayload(t *testing.T) {
	// A handler must fail before touching the database when the payload
	// is not valid JSON, so a bare Worker is enough here.
	w := &Worker{logger: slog.Default()}

	tests := []struct {
		name     string
		taskType string
		handler  func(context.Context, *asynq.Task) error
	}{
		{"analyze report", TypeAnalyzeReport, w.handleAnalyzeReport},
		{"enrich report", TypeEnrichReport, w.handleEnrichReport},
		{"generate export", TypeGenerateExport, w.handleGenerateExport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := asynq.NewTask(tt.taskType, []byte("{not json"))
			err := tt.handler(context.Background(), task)
			if err == nil {
				t.Fatal("expected error for malformed payload")
			}
			if !strings.Contains(err.Error(), "invalid task payload") {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestPayloadFieldNames(t *testing.T) {
	// Handlers decode with the same JSON keys the enqueue methods write.
	tests := []struct {
		name    string
		raw     string
		decode  func([]byte) (string, error)
		wantKey string
	}{
		{
			name: "analyze payload",
			raw:  `{"folio":"DEN_A1B2C3D4E5F60718","enqueued_at":123}`,
			decode: func(b []byte) (string, error) {
				var p AnalyzeReportPayload
				err := json.Unmarshal(b, &p)
				return p.Folio, err
			},
			wantKey: "DEN_A1B2C3D4E5F60718",
		},
		{
			name: "enrich payload",
			raw:  `{"folio":"DEN_D4E5F6A7B8C90132","trace_id":"abc","span_id":"def","enqueued_at":456}`,
			decode: func(b []byte) (string, error) {
				var p EnrichReportPayload
				err := json.Unmarshal(b, &p)
				return p.Folio, err
			},
			wantKey: "DEN_D4E5F6A7B8C90132",
		},
		{
			name: "export payload",
			raw:  `{"export_id":"3f1f4bd2-9c6a-4f6e-8a38-6a2e9c1b7d42","enqueued_at":789}`,
			decode: func(b []byte) (string, error) {
				var p GenerateExportPayload
				err := json.Unmarshal(b, &p)
				return p.ExportID, err
			},
			wantKey: "3f1f4bd2-9c6a-4f6e-8a38-6a2e9c1b7d42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := tt.decode([]byte(tt.raw))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if key != tt.wantKey {
				t.Errorf("decoded key = %q, want %q", key, tt.wantKey)
			}
		})
	}
}
