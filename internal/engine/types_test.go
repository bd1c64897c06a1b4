package engine

import "testing"

func TestExcludedURL(t *testing.T) {
	cases := []struct {
		url  string
		want bool
	}{
		{"https://example.com", false},
		{"http://example.com/path", false},
		{"about:blank", true},
		{"about:config", true},
		{"ABOUT:CONFIG", true},
		{"chrome://settings", true},
		{"chrome-extension://abc/popup.html", true},
		{"moz-extension://abc/popup.html", true},
		{"edge://flags", true},
		{"view-source:https://example.com", true},
		{"", true},
		{"   ", true},
		{"ftp://example.com", false},
	}
	for _, tc := range cases {
		if got := excludedURL(tc.url); got != tc.want {
			t.Fatalf("excludedURL(%q) = %v, want %v", tc.url, got, tc.want)
		}
	}
}
