package benor

import (
	"fmt"
	"testing"
)

func TestQuorumSize(t *testing.T) {
	tests := []struct {
		n, f int
		want int
	}{
		{n: 1, f: 0, want: 1},
		{n: 3, f: 1, want: 2},
		{n: 4, f: 1, want: 3},
		{n: 5, f: 2, want: 3},
		{n: 7, f: 3, want: 4},
		{n: 10, f: 4, want: 6},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d,f=%d", tt.n, tt.f), func(t *testing.T) {
			if got := QuorumSize(tt.n, tt.f); got != tt.want {
				t.Errorf("QuorumSize(%d, %d) = %d; want %d", tt.n, tt.f, got, tt.want)
			}
		})
	}
}

func TestSuperMajority(t *testing.T) {
	for f := 0; f < 5; f++ {
		if got := SuperMajority(f); got != f+1 {
			t.Errorf("SuperMajority(%d) = %d; want %d", f, got, f+1)
		}
	}
}

func TestMaxFaulty(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{n: 0, want: 0},
		{n: 1, want: 0},
		{n: 2, want: 0},
		{n: 3, want: 1},
		{n: 4, want: 1},
		{n: 5, want: 2},
		{n: 10, want: 4},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d", tt.n), func(t *testing.T) {
			if got := MaxFaulty(tt.n); got != tt.want {
				t.Errorf("MaxFaulty(%d) = %d; want %d", tt.n, got, tt.want)
			}
		})
	}
}
