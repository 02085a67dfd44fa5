package sourcefactory

import (
	"testing"

	"github.com/gaby/logstream/internal/source"
)

func TestInferFormat(t *testing.T) {
	cases := []struct {
		input source.Input
		want  Format
	}{
		{source.Input{Kind: source.InputURL, URL: "http://example.com/log.bag"}, FormatBag},
		{source.Input{Kind: source.InputURL, URL: "http://example.com/log.mcap"}, FormatMCAP},
		{source.Input{Kind: source.InputFile}, FormatMCAP},
	}
	for _, c := range cases {
		if got := inferFormat(c.input); got != c.want {
			t.Errorf("inferFormat(%+v) = %v, want %v", c.input, got, c.want)
		}
	}
}

func TestMustFormat(t *testing.T) {
	if f, err := MustFormat("bag"); err != nil || f != FormatBag {
		t.Fatalf("MustFormat(bag) = %v, %v", f, err)
	}
	if _, err := MustFormat("xyz"); err == nil {
		t.Fatalf("expected error for unrecognized format")
	}
}
