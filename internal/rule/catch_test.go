package rule

import "testing"

func TestCatchResolvePrecedence(t *testing.T) {
	c := Catch{"404": "not_found.yaml", "4xx": "client_error.yaml", "default": "fallback.yaml"}

	if got, ok := c.Resolve("404", "4xx", false); !ok || got != "not_found.yaml" {
		t.Fatalf("exact match: got %q, %v", got, ok)
	}
	if got, ok := c.Resolve("418", "4xx", false); !ok || got != "client_error.yaml" {
		t.Fatalf("class match: got %q, %v", got, ok)
	}
	if got, ok := c.Resolve("", "", true); !ok || got != "fallback.yaml" {
		t.Fatalf("timeout falls through to default: got %q, %v", got, ok)
	}
	if got, ok := c.Resolve("", "", false); !ok || got != "fallback.yaml" {
		t.Fatalf("transport failure falls through to default: got %q, %v", got, ok)
	}
}

func TestCatchResolveNoDefault(t *testing.T) {
	c := Catch{"5xx": "server_error.yaml"}
	if _, ok := c.Resolve("200", "", false); ok {
		t.Fatal("expected no match")
	}
}

func TestStatusClass(t *testing.T) {
	cases := map[int]string{200: "", 404: "4xx", 500: "5xx", 302: ""}
	for status, want := range cases {
		if got := StatusClass(status); got != want {
			t.Errorf("StatusClass(%d) = %q, want %q", status, got, want)
		}
	}
}
