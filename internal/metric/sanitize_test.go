package metric

import "testing"

func TestRenderValueMapping(t *testing.T) {
	cases := []struct {
		val  string
		want string
	}{
		{"", "0"},
		{"off", "0"},
		{"f", "0"},
		{"(disabled)", "0"},
		{"on", "1"},
		{"t", "1"},
		{"NaN", "NaN"},
		{"42", "42"},
		{"-7", "-7"},
		{"3.14", "3.14"},
		{"some_enum_value", "1"},
	}

	for _, c := range cases {
		got := renderValue("tag", "name", c.val)
		if got != c.want {
			t.Errorf("renderValue(%q) = %q, want %q", c.val, got, c.want)
		}
	}
}

func TestSafeKeyReplacesInteriorDots(t *testing.T) {
	got := safeKey("log.min.duration")
	want := "log_min_duration"
	if got != want {
		t.Errorf("safeKey = %q, want %q", got, want)
	}
}

func TestSafeKeyDropsTrailingDot(t *testing.T) {
	got := safeKey("archive.")
	want := "archive"
	if got != want {
		t.Errorf("safeKey = %q, want %q", got, want)
	}
}

func TestSafeKeyEmptyStaysEmpty(t *testing.T) {
	if got := safeKey(""); got != "" {
		t.Errorf("safeKey(\"\") = %q, want empty", got)
	}
}

func TestSafeKeyIsIdempotent(t *testing.T) {
	inputs := []string{"a.b.c", "a.", "a..", "a...", ".", "plain", ""}

	for _, in := range inputs {
		once := safeKey(in)
		twice := safeKey(once)
		if once != twice {
			t.Errorf("safeKey not idempotent for %q: once=%q twice=%q", in, once, twice)
		}
	}
}
