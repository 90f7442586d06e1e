package observability

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func TestNewSampler(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{1, "AlwaysOnSampler"},
		{2, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{-1, "AlwaysOffSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	}

	for _, tt := range tests {
		desc := newSampler(tt.ratio).Description()
		if !strings.HasPrefix(desc, "ParentBased{") {
			t.Errorf("ratio %v: expected a parent based sampler, got %s", tt.ratio, desc)
		}
		if !strings.Contains(desc, "root:"+tt.want) {
			t.Errorf("ratio %v: expected root sampler %s, got %s", tt.ratio, tt.want, desc)
		}
	}
}

func TestIdentityResource(t *testing.T) {
	res, err := Identity{Service: "taskplane-agent", Version: "1.2.3", InstanceID: "agent-7"}.resource(context.Background())
	if err != nil {
		t.Fatalf("resource: %v", err)
	}

	set := res.Set()
	for key, want := range map[attribute.Key]string{
		semconv.ServiceNameKey:       "taskplane-agent",
		semconv.ServiceVersionKey:    "1.2.3",
		semconv.ServiceInstanceIDKey: "agent-7",
	} {
		v, ok := set.Value(key)
		if !ok || v.AsString() != want {
			t.Errorf("%s = %q, want %q", key, v.AsString(), want)
		}
	}
}

func TestIdentityResource_OmitsEmptyFields(t *testing.T) {
	res, err := Identity{Service: "taskplane-controller"}.resource(context.Background())
	if err != nil {
		t.Fatalf("resource: %v", err)
	}
	if _, ok := res.Set().Value(semconv.ServiceInstanceIDKey); ok {
		t.Error("expected no instance id attribute")
	}
}

func TestInitTracer_RequiresEndpoint(t *testing.T) {
	if _, err := InitTracer(context.Background(), TracingConfig{Identity: Identity{Service: "svc"}}); err == nil {
		t.Error("expected an error without an endpoint")
	}
}

func TestInitTracer_SampleRatio(t *testing.T) {
	tests := []struct {
		name        string
		ratio       float64
		wantSampled bool
	}{
		{"Keep Everything", 1, true},
		{"Drop Everything", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// The gRPC connection is lazy, so an unreachable collector does not fail init.
			shutdown, err := InitTracer(context.Background(), TracingConfig{
				Identity:    Identity{Service: "taskplane-test"},
				Endpoint:    "localhost:4317",
				SampleRatio: tt.ratio,
				Insecure:    true,
			})
			if err != nil {
				t.Fatalf("InitTracer failed: %v", err)
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_ = shutdown(ctx)
			}()

			_, span := otel.Tracer("test").Start(context.Background(), "claim")
			defer span.End()

			if got := span.SpanContext().IsSampled(); got != tt.wantSampled {
				t.Errorf("sampled = %v, want %v", got, tt.wantSampled)
			}
		})
	}
}
