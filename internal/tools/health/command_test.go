package health

import (
	"slices"
	"testing"

	probes "github.com/sandeepkv93/credential-auth/internal/health"
)

func TestResultDetails(t *testing.T) {
	got := resultDetails([]probes.CheckResult{
		{Name: "db", Healthy: true, LatencyMS: 2},
		{Name: "redis", Healthy: false, Error: "dial tcp: refused", LatencyMS: 1000},
	})
	want := []string{"db: ok (2ms)", "redis: failed (1000ms): dial tcp: refused"}
	if !slices.Equal(got, want) {
		t.Fatalf("resultDetails() = %v, want %v", got, want)
	}
}
