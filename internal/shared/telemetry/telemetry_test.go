package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSampler(t *testing.T) {
	tests := []struct {
		ratio float64
		root  string
	}{
		{0, "root:AlwaysOnSampler"},
		{1, "root:AlwaysOnSampler"},
		{-0.5, "root:AlwaysOnSampler"},
		{0.25, "root:TraceIDRatioBased{0.25}"},
	}

	for _, tt := range tests {
		desc := sampler(tt.ratio).Description()
		assert.Contains(t, desc, "ParentBased", "ratio %v", tt.ratio)
		assert.Contains(t, desc, tt.root, "ratio %v", tt.ratio)
	}
}
