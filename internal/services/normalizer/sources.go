package normalizer

import (
	"fmt"
	"time"

	"github.com/meterwise/costops/internal/models"
)

// mapDirectAPI handles payloads reported straight from an application that
// calls provider APIs itself.
func mapDirectAPI(payload map[string]any) (*rawMetric, error) {
	provider := stringField(payload, "provider")
	model := stringField(payload, "model")
	if provider == "" || model == "" {
		return nil, fmt.Errorf("direct-api payload missing provider or model")
	}

	return &rawMetric{
		Provider:       provider,
		ModelID:        model,
		RequestID:      stringField(payload, "request_id"),
		ProjectID:      stringField(payload, "project_id"),
		Region:         stringField(payload, "region"),
		Timestamp:      timeField(payload, "timestamp"),
		TokensInput:    intField(payload, "input_tokens"),
		TokensOutput:   intField(payload, "output_tokens"),
		TokensTotal:    intField(payload, "total_tokens"),
		LatencyMs:      int(intField(payload, "latency_ms")),
		PromptText:     stringField(payload, "prompt_text"),
		CompletionText: stringField(payload, "completion_text"),
		Metadata:       metadataField(payload, "metadata"),
	}, nil
}

// mapObservabilityStream handles span-attribute payloads exported by tracing
// pipelines; field names follow the llm.* semantic conventions.
func mapObservabilityStream(payload map[string]any) (*rawMetric, error) {
	provider := stringField(payload, "llm.provider")
	model := stringField(payload, "llm.model")
	if provider == "" || model == "" {
		return nil, fmt.Errorf("observability payload missing llm.provider or llm.model")
	}

	return &rawMetric{
		Provider:     provider,
		ModelID:      model,
		RequestID:    stringField(payload, "trace.id"),
		ProjectID:    stringField(payload, "service.name"),
		Region:       stringField(payload, "cloud.region"),
		Timestamp:    timeField(payload, "ts"),
		TokensInput:  intField(payload, "llm.usage.prompt_tokens"),
		TokensOutput: intField(payload, "llm.usage.completion_tokens"),
		TokensTotal:  intField(payload, "llm.usage.total_tokens"),
		LatencyMs:    int(intField(payload, "duration_ms")),
		Metadata:     metadataField(payload, "attributes"),
	}, nil
}

// mapEdgeAgent handles the compact payloads emitted by on-host collection
// agents.
func mapEdgeAgent(payload map[string]any) (*rawMetric, error) {
	provider := stringField(payload, "prov")
	model := stringField(payload, "mdl")
	if provider == "" || model == "" {
		return nil, fmt.Errorf("edge-agent payload missing prov or mdl")
	}

	return &rawMetric{
		Provider:     provider,
		ModelID:      model,
		RequestID:    stringField(payload, "req"),
		ProjectID:    stringField(payload, "agent_id"),
		Region:       stringField(payload, "region"),
		Timestamp:    timeField(payload, "ts"),
		TokensInput:  intField(payload, "tok_in"),
		TokensOutput: intField(payload, "tok_out"),
		TokensTotal:  intField(payload, "tok_total"),
		Metadata:     metadataField(payload, "meta"),
	}, nil
}

// mapBatchImport handles rows from batch file uploads (provider export
// files replayed through the pipeline).
func mapBatchImport(payload map[string]any) (*rawMetric, error) {
	provider := stringField(payload, "provider")
	model := stringField(payload, "model")
	if provider == "" || model == "" {
		return nil, fmt.Errorf("batch-import row missing provider or model")
	}

	return &rawMetric{
		Provider:     provider,
		ModelID:      model,
		RequestID:    stringField(payload, "request_id"),
		ProjectID:    stringField(payload, "project"),
		Region:       stringField(payload, "region"),
		Timestamp:    timeField(payload, "timestamp"),
		TokensInput:  intField(payload, "prompt_tokens"),
		TokensOutput: intField(payload, "completion_tokens"),
		TokensTotal:  intField(payload, "total_tokens"),
		Metadata:     metadataField(payload, "metadata"),
	}, nil
}

func stringField(payload map[string]any, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

// intField tolerates the numeric types JSON decoding produces.
func intField(payload map[string]any, key string) int64 {
	switch v := payload[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// timeField accepts RFC3339 strings and unix-second numbers.
func timeField(payload map[string]any, key string) time.Time {
	switch v := payload[key].(type) {
	case string:
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			return ts
		}
		if ts, err := time.Parse("2006-01-02", v); err == nil {
			return ts
		}
	case float64:
		return time.Unix(int64(v), 0).UTC()
	case int64:
		return time.Unix(v, 0).UTC()
	case time.Time:
		return v
	}
	return time.Time{}
}

func metadataField(payload map[string]any, key string) models.Metadata {
	if v, ok := payload[key].(map[string]any); ok {
		return models.Metadata(v)
	}
	return nil
}
