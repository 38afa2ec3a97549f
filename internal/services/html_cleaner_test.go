package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTMLCleaner_Clean(t *testing.T) {
	cleaner := NewHTMLCleaner()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain text untouched", input: "  Go > Java, 3 < 5  ", want: "  Go > Java, 3 < 5  "},
		{name: "line breaks", input: "first<br>second<br/>third", want: "first\nsecond\nthird"},
		{name: "list items", input: "<ul><li>Go</li><li>Rust</li></ul>", want: "- Go\n- Rust"},
		{name: "scripts dropped", input: "<div>keep</div><script>alert(1)</script>", want: "keep"},
		{name: "entities decoded", input: "<p>R&amp;D &gt; sales</p>", want: "R&D > sales"},
		{name: "blank lines collapsed", input: "<p>a</p><p></p><p></p><p></p><p>b</p>", want: "a\n\nb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleaner.Clean(tt.input))
		})
	}
}
