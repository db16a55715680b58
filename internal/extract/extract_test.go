package extract

import (
	"errors"
	"reflect"
	"testing"
)

func TestAll(t *testing.T) {
	tests := []struct {
		name string
		text string
		tag  string
		want []string
	}{
		{
			name: "inline fence",
			text: "hello ```dsl\nworkspace{}\n``` bye",
			tag:  "dsl",
			want: []string{"workspace{}"},
		},
		{
			name: "multiple blocks in order",
			text: "a\n```xml\n<one/>\n```\nb\n```xml\n<two/>\n```\n",
			tag:  "xml",
			want: []string{"<one/>", "<two/>"},
		},
		{
			name: "other tags skipped",
			text: "```yaml\nA: 1\n```\n```xml\n<x/>\n```",
			tag:  "xml",
			want: []string{"<x/>"},
		},
		{
			name: "tag is case insensitive",
			text: "```XML\n<x/>\n```",
			tag:  "xml",
			want: []string{"<x/>"},
		},
		{
			name: "tag prefix does not match",
			text: "```xmlish\n<x/>\n```\n```xml\n<y/>\n```",
			tag:  "xml",
			want: []string{"<y/>"},
		},
		{
			name: "empty tag takes any block",
			text: "```\nplain\n```\n```go\ncode\n```",
			tag:  "",
			want: []string{"plain", "code"},
		},
		{
			name: "multiline body keeps indentation",
			text: "```dsl\nworkspace {\n    model {}\n}\n```",
			tag:  "dsl",
			want: []string{"workspace {\n    model {}\n}"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := All(tt.text, tt.tag)
			if err != nil {
				t.Fatalf("All() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("All() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNotFound(t *testing.T) {
	for _, text := range []string{"", "no code here", "```xml\nunterminated", "```yaml\nA: 1\n```"} {
		if _, err := First(text, "xml"); !errors.Is(err, ErrNotFound) {
			t.Errorf("First(%q) error = %v, want ErrNotFound", text, err)
		}
		if _, err := All(text, "xml"); !errors.Is(err, ErrNotFound) {
			t.Errorf("All(%q) error = %v, want ErrNotFound", text, err)
		}
	}
}

func TestExtractIsIdempotent(t *testing.T) {
	text := "Here you go:\n```xml\n<mxGraphModel><root></root></mxGraphModel>\n```\nDone."
	first, err := First(text, "xml")
	if err != nil {
		t.Fatal(err)
	}
	again, err := First("```xml\n"+first+"\n```", "xml")
	if err != nil {
		t.Fatal(err)
	}
	if again != first {
		t.Errorf("re-extraction = %q, want %q", again, first)
	}
}

func TestBlocksStopsEarly(t *testing.T) {
	text := "```x\n1\n```\n```x\n2\n```\n```x\n3\n```"
	var got []string
	for b := range Blocks(text, "x") {
		got = append(got, b)
		if len(got) == 2 {
			break
		}
	}
	if !reflect.DeepEqual(got, []string{"1", "2"}) {
		t.Errorf("got %v", got)
	}
}
