package vcrefresh

import (
	"errors"
	"fmt"
	"io"

	"golang.org/x/net/html"
)

// Attributes recognized by BuildFromHTML.
const (
	AttrRegion = "data-refresh"        // plain region
	AttrScope  = "data-refresh-scope"  // scoped region (row group)
	AttrAlways = "data-refresh-always" // region rendered on every refresh
)

// DefaultRootName names the buffer BuildFromHTML wraps the document in.
const DefaultRootName = "page"

type buildConfig struct {
	rootName string
	treeOpts []TreeOption
}

type BuildOption func(*buildConfig)

// WithRootName overrides DefaultRootName.
func WithRootName(name string) BuildOption {
	return func(c *buildConfig) { c.rootName = name }
}

// WithTreeOptions passes options through to NewTree.
func WithTreeOptions(opts ...TreeOption) BuildOption {
	return func(c *buildConfig) { c.treeOpts = append(c.treeOpts, opts...) }
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "keygen": true, "link": true,
	"meta": true, "param": true, "source": true, "track": true, "wbr": true,
}

type openElement struct {
	tag    string
	region bool
}

// BuildFromHTML tokenizes annotated markup into a finished Tree. Each token
// becomes one fragment, byte for byte. An element carrying AttrRegion or
// AttrScope becomes a buffer spanning its start tag through its end tag.
// Misnested end tags close the elements opened after the matching one.
func BuildFromHTML(r io.Reader, opts ...BuildOption) (*Tree, error) {
	cfg := buildConfig{rootName: DefaultRootName}
	for _, opt := range opts {
		opt(&cfg)
	}

	t := NewTree(cfg.treeOpts...)
	t.Push(cfg.rootName, Plain)

	var elems []openElement
	z := html.NewTokenizer(r)
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if errors.Is(z.Err(), io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to tokenize HTML: %w", z.Err())
		}
		// Raw is overwritten by TagName and TagAttr
		raw := Fragment(append([]byte(nil), z.Raw()...))

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			tag := string(name)
			region, kind, err := regionOf(z, hasAttr)
			if err != nil {
				return nil, fmt.Errorf("<%s>: %w", tag, err)
			}
			if region != "" {
				if err := checkRegion(t, region, kind); err != nil {
					return nil, fmt.Errorf("<%s %q>: %w", tag, region, err)
				}
				t.Push(region, kind)
			}
			t.Append(raw)
			if tt == html.SelfClosingTagToken || voidElements[tag] {
				if region != "" {
					t.Pop()
				}
				continue
			}
			elems = append(elems, openElement{tag: tag, region: region != ""})

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			match := -1
			for i := len(elems) - 1; i >= 0; i-- {
				if elems[i].tag == tag {
					match = i
					break
				}
			}
			if match < 0 {
				t.Append(raw)
				continue
			}
			for len(elems)-1 > match {
				if elems[len(elems)-1].region {
					t.Pop()
				}
				elems = elems[:len(elems)-1]
			}
			t.Append(raw)
			if elems[match].region {
				t.Pop()
			}
			elems = elems[:match]

		default:
			t.Append(raw)
		}
	}

	for i := len(elems) - 1; i >= 0; i-- {
		if elems[i].region {
			t.Pop()
		}
	}
	t.Pop()
	t.Finish()
	return t, nil
}

func regionOf(z *html.Tokenizer, hasAttr bool) (string, Kind, error) {
	var (
		name  string
		found bool
		kind  Kind
	)
	for hasAttr {
		var key, val []byte
		key, val, hasAttr = z.TagAttr()
		switch string(key) {
		case AttrRegion:
			name, found = string(val), true
		case AttrScope:
			name, found = string(val), true
			kind |= Scoped
		case AttrAlways:
			kind |= AlwaysRender
		}
	}
	if !found {
		return "", Plain, nil
	}
	if name == "" {
		return "", Plain, ErrEmptyRegionName
	}
	return name, kind, nil
}

// checkRegion turns the tree's precondition panics into errors for
// markup that would trigger them.
func checkRegion(t *Tree, name string, kind Kind) error {
	parent := t.Top()
	if !t.IsScope(parent) {
		return nil
	}
	if kind&Scoped != 0 {
		return ErrNestedScope
	}
	if _, dup := t.ScopeChild(parent, name); dup {
		return ErrDuplicateRegion
	}
	return nil
}
