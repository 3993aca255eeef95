package vcrefresh

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
)

type row struct{ name, text string }

func page(header string, rows ...row) string {
	var b strings.Builder
	b.WriteString(`<html><head></head><body><h1 data-refresh="header">`)
	b.WriteString(header)
	b.WriteString(`</h1><ul data-refresh-scope="list">`)
	for _, r := range rows {
		b.WriteString(`<li data-refresh="` + r.name + `">` + r.text + `</li>`)
	}
	b.WriteString(`</ul></body></html>`)
	return b.String()
}

func table(rows ...row) string {
	var b strings.Builder
	b.WriteString(`<html><head></head><body><table data-refresh-scope="grid">`)
	for _, r := range rows {
		b.WriteString(`<tr data-refresh="` + r.name + `"><td>` + r.text + `</td></tr>`)
	}
	b.WriteString(`</table></body></html>`)
	return b.String()
}

func refresh(t *testing.T, oldHTML, newHTML string) string {
	t.Helper()
	prev := buildHTML(t, oldHTML)
	cur := buildHTML(t, newHTML)
	var buf bytes.Buffer
	if _, err := NewEngine().WriteTo(&buf, cur, prev); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	return buf.String()
}

func TestPatchRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		oldHTML string
		newHTML string
	}{
		{
			name:    "Unchanged",
			oldHTML: page("T", row{"a", "A"}),
			newHTML: page("T", row{"a", "A"}),
		},
		{
			name:    "Row update",
			oldHTML: page("T", row{"a", "A"}, row{"b", "B"}),
			newHTML: page("T", row{"a", "A"}, row{"b", "B2"}),
		},
		{
			name:    "Insert in the middle",
			oldHTML: page("T", row{"a", "A"}, row{"c", "C"}),
			newHTML: page("T", row{"a", "A"}, row{"b", "B"}, row{"c", "C"}),
		},
		{
			name:    "Insert at head",
			oldHTML: page("T", row{"b", "B"}),
			newHTML: page("T", row{"a", "A"}, row{"b", "B"}),
		},
		{
			name:    "Insert into empty scope",
			oldHTML: page("T"),
			newHTML: page("T", row{"a", "A"}, row{"b", "B"}),
		},
		{
			name:    "Delete",
			oldHTML: page("T", row{"a", "A"}, row{"b", "B"}, row{"c", "C"}),
			newHTML: page("T", row{"a", "A"}, row{"c", "C"}),
		},
		{
			name:    "Insert update and delete",
			oldHTML: page("T", row{"a", "A"}, row{"b", "B"}, row{"c", "C"}),
			newHTML: page("T", row{"x", "X"}, row{"a", "A"}, row{"b", "B2"}, row{"d", "D"}),
		},
		{
			name:    "Header change",
			oldHTML: page("T", row{"a", "A"}),
			newHTML: page("New title", row{"a", "A"}),
		},
		{
			name:    "Scope wrapper change",
			oldHTML: page("T", row{"a", "A"}),
			newHTML: strings.Replace(page("T", row{"a", "A"}, row{"b", "B"}), `<ul data-refresh-scope="list">`, `<ul data-refresh-scope="list" class="dense">`, 1),
		},
		{
			name:    "Table row update",
			oldHTML: table(row{"a", "A"}, row{"b", "B"}),
			newHTML: table(row{"a", "A"}, row{"b", "B2"}),
		},
		{
			name:    "Table insert in the middle",
			oldHTML: table(row{"a", "A"}, row{"c", "C"}),
			newHTML: table(row{"a", "A"}, row{"b", "B"}, row{"c", "C"}),
		},
		{
			name:    "Table insert at head",
			oldHTML: table(row{"b", "B"}),
			newHTML: table(row{"a", "A"}, row{"b", "B"}),
		},
		{
			name:    "Table insert into empty table",
			oldHTML: table(),
			newHTML: table(row{"a", "A"}, row{"b", "B"}),
		},
		{
			name:    "Table delete",
			oldHTML: table(row{"a", "A"}, row{"b", "B"}),
			newHTML: table(row{"a", "A"}),
		},
		{
			name:    "Table insert update and delete",
			oldHTML: table(row{"a", "A"}, row{"b", "B"}, row{"c", "C"}),
			newHTML: table(row{"x", "X"}, row{"a", "A"}, row{"b", "B2"}, row{"d", "D"}),
		},
		{
			name:    "Nested region in unchanged row",
			oldHTML: page("T", row{"a", `A <span data-refresh="a-count">1</span>`}),
			newHTML: page("T", row{"a", `A <span data-refresh="a-count">2</span>`}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delta := refresh(t, tt.oldHTML, tt.newHTML)
			patched, err := Patch(tt.oldHTML, delta, "")
			if err != nil {
				t.Fatalf("Patch() error = %v\nrefresh: %s", err, delta)
			}

			wantDoc, _ := ParseHTML(tt.newHTML)
			wantStr, _ := RenderNode(wantDoc)
			if patched != wantStr {
				t.Errorf("RoundTrip failed.\nWant: %s\nGot:  %s\nRefresh: %s", wantStr, patched, delta)
			}
		})
	}
}

func TestPatchManyChangesReplacesScope(t *testing.T) {
	var oldRows, newRows []row
	for i := 0; i < 60; i++ {
		name := fmt.Sprintf("r%d", i)
		oldRows = append(oldRows, row{name, "old"})
		newRows = append(newRows, row{name, "new"})
	}
	oldHTML, newHTML := page("T", oldRows...), page("T", newRows...)

	delta := refresh(t, oldHTML, newHTML)
	if !strings.Contains(delta, `vcrefresh.scopeReplaced("list")`) {
		t.Fatalf("expected a scope replacement, got %s", delta)
	}
	patched, err := Patch(oldHTML, delta, "")
	if err != nil {
		t.Fatal(err)
	}
	wantDoc, _ := ParseHTML(newHTML)
	wantStr, _ := RenderNode(wantDoc)
	if patched != wantStr {
		t.Errorf("Want: %s\nGot:  %s", wantStr, patched)
	}
}

func TestPatchCustomNamespace(t *testing.T) {
	oldHTML := page("T", row{"a", "A"})
	newHTML := page("T", row{"b", "B"})
	prev, cur := buildHTML(t, oldHTML), buildHTML(t, newHTML)

	var buf bytes.Buffer
	e := NewEngine(WithEncoder(ScriptEncoder{Namespace: "app"}))
	if _, err := e.WriteTo(&buf, cur, prev); err != nil {
		t.Fatal(err)
	}
	patched, err := Patch(oldHTML, buf.String(), "app")
	if err != nil {
		t.Fatal(err)
	}
	wantDoc, _ := ParseHTML(newHTML)
	wantStr, _ := RenderNode(wantDoc)
	if patched != wantStr {
		t.Errorf("Want: %s\nGot:  %s", wantStr, patched)
	}
}

func TestPatchErrors(t *testing.T) {
	base := page("T", row{"a", "A"})
	tests := []struct {
		name    string
		refresh string
		want    error
	}{
		{"Unanchored text", `hello`, ErrUnanchoredContent},
		{"Unanchored element", `<p>intro</p>`, ErrUnanchoredContent},
		{"Unknown region", `<div data-refresh="nope">x</div>`, nil},
		{"Malformed instruction", `<script>vcrefresh.scopeChanged("list"</script>`, nil},
		{"Insert not rendered", `<script>vcrefresh.scopeChanged("list",[[null,"z"]],null);</script>`, nil},
		{"Rows without insert", `<ul data-refresh-scope="list"><li data-refresh="z">Z</li></ul>`, nil},
		{"Delete unknown row", `<script>vcrefresh.scopeChanged("list",null,["zzz"]);</script>`, nil},
		{"Unknown method", `<script>vcrefresh.explode("list");</script>`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Patch(base, tt.refresh, "")
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPatchIgnoresForeignScripts(t *testing.T) {
	base := page("T", row{"a", "A"})
	patched, err := Patch(base, `<script>console.log("hi")</script>`, "")
	if err != nil {
		t.Fatal(err)
	}
	wantDoc, _ := ParseHTML(base)
	wantStr, _ := RenderNode(wantDoc)
	if patched != wantStr {
		t.Errorf("foreign script changed the document: %s", patched)
	}
}
