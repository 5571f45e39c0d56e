package format

import "testing"

func TestPrice(t *testing.T) {
	cases := map[float64]string{
		150:    "150",
		120:    "120",
		12.5:   "12.5",
		0:      "0",
		999.99: "999.99",
	}
	for in, want := range cases {
		if got := Price(in); got != want {
			t.Errorf("Price(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Fatalf("unexpected %q", got)
	}
	if got := Truncate("велосипед", 5); got != "вело…" {
		t.Fatalf("unexpected %q", got)
	}
	if got := Truncate("x", 0); got != "" {
		t.Fatalf("unexpected %q", got)
	}
}
