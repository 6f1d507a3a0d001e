// Package report renders a human-readable snapshot of a cistron.World
// as HTML. It is a pure observer: it walks a Snapshot value the caller
// assembles from ordinary bus subscriptions, never the World itself,
// keeping the core library free of any reporting dependency.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/yuin/goldmark"
)

// ObjectSnapshot describes one object's live components for reporting
// purposes.
type ObjectSnapshot struct {
	ID         int
	Components []string
}

// Snapshot is the input to Render: a point-in-time view of world state
// assembled by the caller (see cmd/cistron-demo).
type Snapshot struct {
	Taken          time.Time
	Objects        []ObjectSnapshot
	MessagesSent   int
	ComponentCount int
}

// Render produces an HTML fragment summarizing snap.
func Render(snap Snapshot) (string, error) {
	var md strings.Builder
	fmt.Fprintf(&md, "# World snapshot\n\n")
	fmt.Fprintf(&md, "Taken %s. %s components across %s objects, %s messages sent.\n\n",
		humanize.Time(snap.Taken),
		humanize.Comma(int64(snap.ComponentCount)),
		humanize.Comma(int64(len(snap.Objects))),
		humanize.Comma(int64(snap.MessagesSent)),
	)
	for _, obj := range snap.Objects {
		fmt.Fprintf(&md, "- Object %d: %s\n", obj.ID, strings.Join(obj.Components, ", "))
	}

	var html bytes.Buffer
	if err := goldmark.Convert([]byte(md.String()), &html); err != nil {
		return "", fmt.Errorf("render world snapshot: %w", err)
	}
	return html.String(), nil
}
