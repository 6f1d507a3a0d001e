package report

import (
	"strings"
	"testing"
	"time"
)

func TestRenderIncludesObjectsAndCounts(t *testing.T) {
	snap := Snapshot{
		Taken:          time.Now(),
		ComponentCount: 3,
		MessagesSent:   5,
		Objects: []ObjectSnapshot{
			{ID: 1, Components: []string{"Person", "Job"}},
		},
	}
	html, err := Render(snap)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(html, "World snapshot") {
		t.Errorf("rendered HTML missing heading: %s", html)
	}
	if !strings.Contains(html, "Person") || !strings.Contains(html, "Job") {
		t.Errorf("rendered HTML missing component names: %s", html)
	}
}
