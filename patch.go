package vcrefresh

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrUnanchoredContent is returned by Patch when a refresh carries markup
// outside any region, which happens when the page root itself changed.
var ErrUnanchoredContent = errors.New("refresh content outside any region")

// ParseHTML parses a full document.
func ParseHTML(content string) (*html.Node, error) {
	return html.Parse(strings.NewReader(content))
}

// RenderNode converts a node tree back to a string.
func RenderNode(n *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Patch applies a refresh written by an Engine using a ScriptEncoder with
// the given namespace to the markup the client currently shows, and
// returns the updated document. Regions are matched by name across the
// whole document, so region names must be unique within the page.
//
// Patch is the reference consumer of the refresh protocol:
//   - a region element replaces the element of the same name
//   - a scoped wrapper replaces its rows in place; rows the client does
//     not have wait for a scopeChanged insertion
//   - scopeReplaced swaps the whole scoped element
//   - scopeChanged applies inserts left to right, then deletes
func Patch(baseHTML, refresh, namespace string) (string, error) {
	if namespace == "" {
		namespace = DefaultScriptNamespace
	}
	doc, err := ParseHTML(baseHTML)
	if err != nil {
		return "", fmt.Errorf("failed to parse base HTML: %w", err)
	}
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(refresh), body)
	if err != nil {
		return "", fmt.Errorf("failed to parse refresh: %w", err)
	}

	pending := make(map[string]*html.Node) // wrappers awaiting their instruction
	for _, n := range nodes {
		switch {
		case n.Type == html.ElementNode && n.DataAtom == atom.Script:
			if err := applyScript(doc, n, namespace, pending); err != nil {
				return "", err
			}
		case n.Type == html.ElementNode && regionName(n) != "":
			if err := applyRegion(doc, n, pending); err != nil {
				return "", err
			}
		case n.Type == html.TextNode && strings.TrimSpace(n.Data) == "":
		case n.Type == html.CommentNode:
		default:
			return "", fmt.Errorf("%w: %s", ErrUnanchoredContent, describe(n))
		}
	}
	// wrappers with updates only carry no instruction
	for scope, wrapper := range pending {
		inserted, err := applyRows(doc, scope, wrapper)
		if err != nil {
			return "", err
		}
		if len(inserted) > 0 {
			return "", fmt.Errorf("scope %q: rows rendered without insert instruction", scope)
		}
	}
	return RenderNode(doc)
}

func regionName(n *html.Node) string {
	if v := getAttr(n, AttrScope); v != "" {
		return v
	}
	return getAttr(n, AttrRegion)
}

func isScopeElement(n *html.Node) bool {
	return getAttr(n, AttrScope) != ""
}

func applyRegion(doc, n *html.Node, pending map[string]*html.Node) error {
	name := regionName(n)
	if findRegion(doc, name) == nil {
		return fmt.Errorf("region %q not found in base document", name)
	}
	if isScopeElement(n) {
		pending[name] = n
		return nil
	}
	replaceNode(findRegion(doc, name), n)
	return nil
}

// applyRows replaces the rows of scope that the wrapper carries and
// returns the ones the document does not have yet, by name.
func applyRows(doc *html.Node, scope string, wrapper *html.Node) (map[string]*html.Node, error) {
	target := findRegion(doc, scope)
	if target == nil {
		return nil, fmt.Errorf("scope %q not found in base document", scope)
	}
	inserted := make(map[string]*html.Node)
	for _, row := range rowsOf(wrapper) {
		rowName := regionName(row)
		if old := findRow(target, rowName); old != nil {
			replaceNode(old, row)
		} else {
			inserted[rowName] = row
		}
	}
	return inserted, nil
}

func applyScript(doc, n *html.Node, namespace string, pending map[string]*html.Node) error {
	if n.FirstChild == nil || n.FirstChild.Type != html.TextNode {
		return nil
	}
	text := strings.TrimSpace(n.FirstChild.Data)
	if !strings.HasPrefix(text, namespace+".") {
		return nil
	}
	call := strings.TrimSuffix(strings.TrimPrefix(text, namespace+"."), ";")
	open, closing := strings.IndexByte(call, '('), strings.LastIndexByte(call, ')')
	if open < 0 || closing < open {
		return fmt.Errorf("malformed instruction %q", text)
	}
	var args []json.RawMessage
	if err := json.Unmarshal([]byte("["+call[open+1:closing]+"]"), &args); err != nil {
		return fmt.Errorf("malformed instruction arguments %q: %w", text, err)
	}
	if len(args) == 0 {
		return fmt.Errorf("instruction %q has no scope", text)
	}
	var scope string
	if err := json.Unmarshal(args[0], &scope); err != nil {
		return fmt.Errorf("malformed scope in %q: %w", text, err)
	}
	target := findRegion(doc, scope)
	if target == nil {
		return fmt.Errorf("scope %q not found in base document", scope)
	}

	switch method := call[:open]; method {
	case "scopeReplaced":
		wrapper := pending[scope]
		if wrapper == nil {
			return fmt.Errorf("scopeReplaced for %q without its markup", scope)
		}
		replaceNode(target, wrapper)
		delete(pending, scope)
		return nil

	case "scopeChanged":
		wrapper := pending[scope]
		delete(pending, scope)
		rows := map[string]*html.Node{}
		if wrapper != nil {
			var err error
			if rows, err = applyRows(doc, scope, wrapper); err != nil {
				return err
			}
		}
		if len(args) != 3 {
			return fmt.Errorf("scopeChanged for %q: want 3 arguments, got %d", scope, len(args))
		}
		var inserts [][2]*string
		var deletes []string
		if err := json.Unmarshal(args[1], &inserts); err != nil {
			return fmt.Errorf("malformed inserts for %q: %w", scope, err)
		}
		if err := json.Unmarshal(args[2], &deletes); err != nil {
			return fmt.Errorf("malformed deletes for %q: %w", scope, err)
		}
		for _, ins := range inserts {
			if ins[1] == nil {
				return fmt.Errorf("insert without row name in %q", scope)
			}
			row := rows[*ins[1]]
			if row == nil {
				return fmt.Errorf("inserted row %q was not rendered", *ins[1])
			}
			if err := insertRow(target, ins[0], row); err != nil {
				return fmt.Errorf("scope %q: %w", scope, err)
			}
		}
		for _, name := range deletes {
			old := findRow(target, name)
			if old == nil {
				return fmt.Errorf("scope %q: delete of unknown row %q", scope, name)
			}
			old.Parent.RemoveChild(old)
		}
		return nil

	default:
		return fmt.Errorf("unknown instruction %q", method)
	}
}

func insertRow(scope *html.Node, after *string, row *html.Node) error {
	if row.Parent != nil {
		row.Parent.RemoveChild(row)
	}
	if after != nil {
		prev := findRow(scope, *after)
		if prev == nil {
			return fmt.Errorf("insert after unknown row %q", *after)
		}
		prev.Parent.InsertBefore(row, prev.NextSibling)
		return nil
	}
	if first := firstRow(scope); first != nil {
		first.Parent.InsertBefore(row, first)
		return nil
	}
	rowContainer(scope).AppendChild(row)
	return nil
}

// rowContainer returns the element an empty scope's first row goes into.
// Table rows live in a tbody, which the parser adds implicitly.
func rowContainer(scope *html.Node) *html.Node {
	if scope.DataAtom != atom.Table {
		return scope
	}
	var body *html.Node
	for c := scope.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Tbody {
			body = c
		}
	}
	if body == nil {
		body = &html.Node{Type: html.ElementNode, Data: "tbody", DataAtom: atom.Tbody}
		scope.AppendChild(body)
	}
	return body
}

func replaceNode(old, n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
	old.Parent.InsertBefore(n, old)
	old.Parent.RemoveChild(old)
}

// findRegion does a depth-first search for the element named name.
func findRegion(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode && regionName(n) == name {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findRegion(c, name); found != nil {
			return found
		}
	}
	return nil
}

func findRow(scope *html.Node, name string) *html.Node {
	for _, row := range rowsOf(scope) {
		if regionName(row) == name {
			return row
		}
	}
	return nil
}

func firstRow(scope *html.Node) *html.Node {
	if rows := rowsOf(scope); len(rows) > 0 {
		return rows[0]
	}
	return nil
}

// rowsOf returns the rows of a scope: its nearest region descendants.
// Elements the parser puts between a scope and its rows, such as tbody,
// are looked through. Regions nested inside a row are not rows.
func rowsOf(scope *html.Node) []*html.Node {
	var rows []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			if regionName(c) != "" {
				rows = append(rows, c)
				continue
			}
			walk(c)
		}
	}
	walk(scope)
	return rows
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func describe(n *html.Node) string {
	if n.Type == html.ElementNode {
		return "<" + n.Data + ">"
	}
	s := strings.TrimSpace(n.Data)
	if len(s) > 32 {
		s = s[:32] + "..."
	}
	return fmt.Sprintf("%q", s)
}
