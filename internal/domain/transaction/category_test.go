package transaction

import "testing"

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", Uncategorized},
		{"   ", Uncategorized},
		{"Food and Drink", "dining"},
		{"RIDESHARE", "transport"},
		{" Streaming ", "entertainment"},
		{"Pet Supplies", "pet supplies"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizeCategory(tt.in); got != tt.want {
				t.Errorf("NormalizeCategory(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
