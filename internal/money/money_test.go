package money

import "testing"

func TestFormat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{in: 30, want: "30.00"},
		{in: 0, want: "0.00"},
		{in: 0.1 + 0.2, want: "0.30"},
		{in: 12.345, want: "12.35"},
		{in: 1234.5, want: "1234.50"},
	}

	for _, tt := range tests {
		if got := Format(tt.in); got != tt.want {
			t.Fatalf("Format(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
