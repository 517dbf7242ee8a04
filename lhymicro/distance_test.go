package lhymicro

import "testing"

func TestDistance(t *testing.T) {
	tests := []struct {
		v    int
		want string
	}{
		{0, ""},
		{1, "a"},
		{25, "y"},
		{26, "|a"},
		{51, "|z"},
		{52, "052"},
		{254, "254"},
		{255, "z"},
		{256, "za"},
		{510, "zz"},
		{765, "zzz"},
	}
	for _, tc := range tests {
		if got := string(Distance(tc.v)); got != tc.want {
			t.Errorf("Distance(%d) = %q, want %q", tc.v, got, tc.want)
		}
	}
}

func TestDistancePanicsOnNegative(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Distance(-1) did not panic")
		}
	}()
	Distance(-1)
}
