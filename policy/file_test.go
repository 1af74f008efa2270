package policy

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const samplePolicy = `
groups:
  - name: health
    exact: ["/healthz"]
    prefix: ["/metrics"]
    exempt: true
  - name: ai
    prefix: ["/api/ai/"]
    rate_limit:
      rate: 10
      window: 1m
    timeout: 30s
    auth_required: true
  - name: admin
    regex: ['^/api/cache(/.*)?$']
    auth_required: true
`

func TestParse(t *testing.T) {
	r, err := Parse([]byte(samplePolicy))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if r.Len() != 3 {
		t.Fatalf("Len = %d, want 3", r.Len())
	}

	name, pol, ok := r.Resolve("/metrics")
	if !ok || name != "health" || !pol.Exempt {
		t.Fatalf("/metrics -> %q %+v %v", name, pol, ok)
	}

	name, pol, ok = r.Resolve("/api/ai/chat")
	if !ok || name != "ai" {
		t.Fatalf("/api/ai/chat -> %q %v", name, ok)
	}
	if pol.RateLimit == nil || pol.RateLimit.Rate != 10 || pol.RateLimit.Window != time.Minute {
		t.Fatalf("ai rate limit = %+v", pol.RateLimit)
	}
	if pol.Timeout != 30*time.Second || !pol.AuthRequired {
		t.Fatalf("ai policy = %+v", pol)
	}

	if name, _, ok := r.Resolve("/api/cache"); !ok || name != "admin" {
		t.Fatalf("/api/cache -> %q %v", name, ok)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := map[string]string{
		"missing name":   "groups:\n  - exact: [\"/a\"]\n",
		"no rules":       "groups:\n  - name: a\n",
		"bad regex":      "groups:\n  - name: a\n    regex: ['(']\n",
		"bad rate":       "groups:\n  - name: a\n    exact: [\"/a\"]\n    rate_limit: {rate: 0, window: 1m}\n",
		"unknown field":  "groups:\n  - name: a\n    exact: [\"/a\"]\n    burst: 3\n",
		"bad duration":   "groups:\n  - name: a\n    exact: [\"/a\"]\n    timeout: soon\n",
		"not a document": "groups: 3\n",
		"duplicate name": "groups:\n  - name: a\n    exact: [\"/a\"]\n  - name: a\n    exact: [\"/b\"]\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "nope.yaml") {
		t.Fatalf("expected error naming the file, got %v", err)
	}
}

func TestHolder(t *testing.T) {
	var nilHolder *Holder
	if _, _, ok := nilHolder.Resolve("/x"); ok {
		t.Fatal("nil holder must resolve nothing")
	}

	h := NewHolder(nil)
	if _, _, ok := h.Resolve("/x"); ok {
		t.Fatal("empty holder must resolve nothing")
	}

	h.Store(NewResolver(Group("x").Exact("/x").Policy(Policy{})))
	if name, _, ok := h.Resolve("/x"); !ok || name != "x" {
		t.Fatalf("Resolve = %q, %v", name, ok)
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	if err := os.WriteFile(path, []byte("groups:\n  - name: a\n    exact: [\"/a\"]\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	reloaded := make(chan *Resolver, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, nil, func(r *Resolver) { reloaded <- r })
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte(samplePolicy), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case r := <-reloaded:
		if r.Len() != 3 {
			t.Fatalf("reloaded Len = %d, want 3", r.Len())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Watch returned %v", err)
	}
}
