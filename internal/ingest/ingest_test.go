package ingest

import "testing"

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"already utf8", "/usr/share/café/menu.txt", "/usr/share/café/menu.txt"},
		{"ascii", "/usr/bin/ls", "/usr/bin/ls"},
		{"latin1 fallback", "/usr/share/caf\xe9/menu.txt", "/usr/share/café/menu.txt"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := normalizeName(c.in); got != c.want {
				t.Errorf("normalizeName(%q) = %q, want %q", c.in, got, c.want)
			}
		})
	}
}

func TestLooksLikeText(t *testing.T) {
	if !looksLikeText([]byte("hello, world\n")) {
		t.Error("plain ASCII should look like text")
	}
	if looksLikeText([]byte{0x00, 0x01, 0x02, 'E', 'L', 'F'}) {
		t.Error("bytes with an embedded NUL should not look like text")
	}
	if looksLikeText([]byte{0xff, 0xfe, 0x00}) {
		t.Error("invalid UTF-8 should not look like text")
	}
}

func TestLooksLikePython(t *testing.T) {
	if !looksLikePython("/usr/lib/python3.9/site-packages/foo.py", nil) {
		t.Error("a .py extension should be recognized regardless of content")
	}
	if !looksLikePython("/usr/bin/frobnicate", []byte("#!/usr/bin/python3\nimport sys\n")) {
		t.Error("a python shebang should be recognized")
	}
	if looksLikePython("/usr/bin/frobnicate", []byte("#!/bin/sh\necho hi\n")) {
		t.Error("a shell shebang should not be recognized as python")
	}
}
