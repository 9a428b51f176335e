package ooxml

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

type tokenKind uint8

const (
	tokStart tokenKind = iota
	tokEnd
	tokText
	tokOther
)

type token struct {
	kind   tokenKind
	lo, hi int
	// text is the decoded character data of a tokText.
	text  string
	cdata bool
	// depth is the number of open elements around a tokText.
	depth int
	dirty bool
	repl  []byte
}

// Tree is a parsed XML part. Bytes re-emits the source verbatim except for the
// character data and tags that were edited.
type Tree struct {
	src   []byte
	toks  []token
	tail  int
	root  *Element
	dirty bool
}

// Element is one element of a Tree. Name.Space holds the resolved namespace URI.
type Element struct {
	Name     xml.Name
	Parent   *Element
	Children []*Element

	prefix     string
	tree       *Tree
	depth      int
	start, end int
}

// Parse tokenizes src without normalising it.
func Parse(src []byte) (*Tree, error) {
	t := &Tree{src: src}
	dec := xml.NewDecoder(bytes.NewReader(src))

	var stack []*Element
	var scopes []map[string]string
	lo := 0
	for {
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		hi := int(dec.InputOffset())
		idx := len(t.toks)

		switch v := tok.(type) {
		case xml.StartElement:
			bind := map[string]string{}
			for _, a := range v.Attr {
				switch {
				case a.Name.Space == "xmlns":
					bind[a.Name.Local] = a.Value
				case a.Name.Space == "" && a.Name.Local == "xmlns":
					bind[""] = a.Value
				}
			}
			scopes = append(scopes, bind)
			el := &Element{
				Name:   xml.Name{Space: resolve(scopes, v.Name.Space), Local: v.Name.Local},
				prefix: v.Name.Space,
				tree:   t,
				depth:  len(stack) + 1,
				start:  idx,
			}
			if n := len(stack); n > 0 {
				el.Parent = stack[n-1]
				el.Parent.Children = append(el.Parent.Children, el)
			} else if t.root == nil {
				t.root = el
			}
			stack = append(stack, el)
			t.toks = append(t.toks, token{kind: tokStart, lo: lo, hi: hi})

		case xml.EndElement:
			n := len(stack)
			if n == 0 {
				return nil, fmt.Errorf("unexpected end element </%s> at byte %d", v.Name.Local, lo)
			}
			top := stack[n-1]
			if top.prefix != v.Name.Space || top.Name.Local != v.Name.Local {
				return nil, fmt.Errorf("element <%s> closed by </%s> at byte %d", top.qname(), v.Name.Local, lo)
			}
			top.end = idx
			stack = stack[:n-1]
			scopes = scopes[:n-1]
			t.toks = append(t.toks, token{kind: tokEnd, lo: lo, hi: hi})

		case xml.CharData:
			t.toks = append(t.toks, token{
				kind:  tokText,
				lo:    lo,
				hi:    hi,
				text:  string(v),
				cdata: bytes.HasPrefix(src[lo:hi], []byte("<![CDATA[")),
				depth: len(stack),
			})

		default:
			t.toks = append(t.toks, token{kind: tokOther, lo: lo, hi: hi})
		}
		lo = hi
	}
	if len(stack) > 0 {
		return nil, fmt.Errorf("unexpected end of document inside <%s>", stack[len(stack)-1].qname())
	}
	if t.root == nil {
		return nil, errors.New("no root element")
	}
	t.tail = lo
	return t, nil
}

func resolve(scopes []map[string]string, prefix string) string {
	for i := len(scopes) - 1; i >= 0; i-- {
		if uri, ok := scopes[i][prefix]; ok {
			return uri
		}
	}
	return ""
}

// Root returns the document element.
func (t *Tree) Root() *Element { return t.root }

// Changed reports whether any edit was made.
func (t *Tree) Changed() bool { return t.dirty }

// Bytes serialises the tree.
func (t *Tree) Bytes() []byte {
	if !t.dirty {
		return t.src
	}
	var b bytes.Buffer
	b.Grow(len(t.src) + 64)
	for _, tk := range t.toks {
		if tk.dirty {
			b.Write(tk.repl)
			continue
		}
		b.Write(t.src[tk.lo:tk.hi])
	}
	b.Write(t.src[t.tail:])
	return b.Bytes()
}

// Segment is one run of character data inside the document element: element text
// and the text trailing a child element alike.
type Segment struct {
	tree *Tree
	idx  int
}

// Segments lists every character-data run inside the document element in document order.
func (t *Tree) Segments() []Segment {
	var out []Segment
	for i, tk := range t.toks {
		if tk.kind == tokText && tk.depth > 0 {
			out = append(out, Segment{tree: t, idx: i})
		}
	}
	return out
}

func (s Segment) Text() string { return s.tree.toks[s.idx].text }

// Set replaces the segment's text. Unchanged text is a no-op.
func (s Segment) Set(text string) {
	s.tree.setText(s.idx, text)
}

func (t *Tree) setText(idx int, text string) {
	tk := &t.toks[idx]
	if tk.text == text {
		return
	}
	tk.text = text
	tk.repl = encodeText(text, tk.cdata)
	tk.dirty = true
	t.dirty = true
}

func encodeText(s string, cdata bool) []byte {
	if cdata && !strings.Contains(s, "]]>") {
		return []byte("<![CDATA[" + s + "]]>")
	}
	var b bytes.Buffer
	for _, r := range s {
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '\r':
			b.WriteString("&#xD;")
		default:
			b.WriteRune(r)
		}
	}
	return b.Bytes()
}

func (e *Element) qname() string {
	if e.prefix == "" {
		return e.Name.Local
	}
	return e.prefix + ":" + e.Name.Local
}

// Is reports whether e has the given namespace URI and local name.
func (e *Element) Is(space, local string) bool {
	return e.Name.Space == space && e.Name.Local == local
}

// Find returns e and its descendants with the given name, in document order.
func (e *Element) Find(space, local string) []*Element {
	var out []*Element
	var walk func(*Element)
	walk = func(n *Element) {
		if n.Is(space, local) {
			out = append(out, n)
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(e)
	return out
}

// Descendants is Find without e itself.
func (e *Element) Descendants(space, local string) []*Element {
	var out []*Element
	for _, c := range e.Children {
		out = append(out, c.Find(space, local)...)
	}
	return out
}

// ChildrenNamed returns the direct children with the given name.
func (e *Element) ChildrenNamed(space, local string) []*Element {
	var out []*Element
	for _, c := range e.Children {
		if c.Is(space, local) {
			out = append(out, c)
		}
	}
	return out
}

// NextSibling returns the following element under the same parent, or nil.
func (e *Element) NextSibling() *Element {
	if e.Parent == nil {
		return nil
	}
	sib := e.Parent.Children
	for i, c := range sib {
		if c == e && i+1 < len(sib) {
			return sib[i+1]
		}
	}
	return nil
}

// Text concatenates the element's direct character data.
func (e *Element) Text() string {
	var b strings.Builder
	for _, i := range e.textTokens() {
		b.WriteString(e.tree.toks[i].text)
	}
	return b.String()
}

// SetText replaces the element's direct character data. The first run takes the
// whole value and any further runs are emptied; an empty element gains a run.
func (e *Element) SetText(text string) {
	runs := e.textTokens()
	if len(runs) > 0 {
		e.tree.setText(runs[0], text)
		for _, i := range runs[1:] {
			e.tree.setText(i, "")
		}
		return
	}
	if text == "" {
		return
	}
	t := e.tree
	start, end := &t.toks[e.start], &t.toks[e.end]
	if end.hi == end.lo {
		// Self-closing: reopen the start tag and synthesise the end tag.
		raw := bytes.TrimRight(t.src[start.lo:start.hi], "/>")
		raw = bytes.TrimRight(raw, " \t\r\n")
		start.repl = append(append([]byte(nil), raw...), '>')
		start.dirty = true
		end.repl = append(encodeText(text, false), "</"+e.qname()+">"...)
	} else {
		end.repl = append(encodeText(text, false), t.src[end.lo:end.hi]...)
	}
	end.dirty = true
	t.dirty = true
}

func (e *Element) textTokens() []int {
	var out []int
	for i := e.start + 1; i < e.end; i++ {
		if tk := e.tree.toks[i]; tk.kind == tokText && tk.depth == e.depth {
			out = append(out, i)
		}
	}
	return out
}
