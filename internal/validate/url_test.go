package validate

import "testing"

func TestURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "empty", input: "", want: false},
		{name: "whitespace", input: "   \t", want: false},
		{name: "words", input: "not a url", want: false},
		{name: "relative path", input: "/relative/path", want: false},
		{name: "no scheme", input: "example.com", want: false},
		{name: "ftp scheme", input: "ftp://example.com", want: false},
		{name: "missing host", input: "https://", want: false},
		{name: "opaque", input: "https:example.com", want: false},
		{name: "bad escape", input: "https://example.com/%zz", want: false},
		{name: "https", input: "https://example.com", want: true},
		{name: "http with path", input: "http://docs.example.com/guide?x=1", want: true},
		{name: "uppercase scheme", input: "HTTPS://example.com", want: true},
		{name: "padded", input: "  https://example.com  ", want: true},
		{name: "port", input: "http://localhost:8080", want: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := URL(tt.input); got != tt.want {
				t.Fatalf("URL(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
