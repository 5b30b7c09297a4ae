package slug_test

import (
	"testing"

	"studysync/internal/platform/slug"
)

func TestMake(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"De Kat op de Mat":  "de-kat-op-de-mat",
		"  Één ding  ":      "een-ding",
		"Les 3: café-praat": "les-3-cafe-praat",
		"!!!":               "untitled",
	}
	for in, want := range cases {
		if got := slug.Make(in); got != want {
			t.Fatalf("Make(%q)=%q want %q", in, got, want)
		}
	}
}

func TestFilename(t *testing.T) {
	t.Parallel()
	if got := slug.Filename("De Kat", "_export.json"); got != "de-kat_export.json" {
		t.Fatalf("unexpected filename %q", got)
	}
}
