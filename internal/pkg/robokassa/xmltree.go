package robokassa

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Element is a parsed XML node. Namespace declarations and namespaced attributes are dropped.
type Element struct {
	Name     string
	Attrs    []Param
	Children []*Element
	Text     string
}

// ParseXML reads a whole document into an Element tree.
func ParseXML(data []byte) (*Element, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true

	var (
		root  *Element
		stack []*Element
		text  []*strings.Builder
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &Element{Name: t.Name.Local}
			for _, a := range t.Attr {
				if a.Name.Space != "" || a.Name.Local == "xmlns" {
					continue
				}
				el.Attrs = append(el.Attrs, Param{Key: a.Name.Local, Value: a.Value})
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("xml: multiple root elements")
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			}
			stack = append(stack, el)
			text = append(text, &strings.Builder{})
		case xml.CharData:
			if len(stack) > 0 {
				text[len(text)-1].Write(t)
			}
		case xml.EndElement:
			el := stack[len(stack)-1]
			el.Text = strings.TrimSpace(text[len(text)-1].String())
			stack = stack[:len(stack)-1]
			text = text[:len(text)-1]
		}
	}

	if root == nil {
		return nil, fmt.Errorf("xml: empty document")
	}
	return root, nil
}

// Kind tags a Value.
type Kind int

const (
	KindScalar Kind = iota
	KindObject
	KindArray
)

// textKey holds character data of an element that also has attributes or children.
const textKey = "#text"

// Value is a normalized tree node: a scalar, an ordered object or an array.
type Value struct {
	Kind   Kind
	Scalar string
	Keys   []string
	Object map[string]Value
	Array  []Value
}

func scalar(s string) Value { return Value{Kind: KindScalar, Scalar: s} }

func newObject() Value { return Value{Kind: KindObject, Object: map[string]Value{}} }

func (v *Value) set(key string, val Value) {
	if _, ok := v.Object[key]; !ok {
		v.Keys = append(v.Keys, key)
	}
	v.Object[key] = val
}

// Get returns the child at key of an object value.
func (v Value) Get(key string) (Value, bool) {
	if v.Kind != KindObject {
		return Value{}, false
	}
	child, ok := v.Object[key]
	return child, ok
}

// Interface converts the tree to map[string]any, []any and string. Empty scalars become nil,
// so an empty element decodes into either a string or a struct.
func (v Value) Interface() any {
	switch v.Kind {
	case KindObject:
		m := make(map[string]any, len(v.Object))
		for k, child := range v.Object {
			m[k] = child.Interface()
		}
		return m
	case KindArray:
		arr := make([]any, len(v.Array))
		for i, child := range v.Array {
			arr[i] = child.Interface()
		}
		return arr
	}
	if v.Scalar == "" {
		return nil
	}
	return v.Scalar
}

type normalizeOptions struct {
	repeated map[string]bool
}

// NormalizeOption configures Normalize.
type NormalizeOption func(*normalizeOptions)

// Repeated marks element names that are collections: they normalize to an array even when
// they occur once.
func Repeated(names ...string) NormalizeOption {
	return func(o *normalizeOptions) {
		for _, n := range names {
			o.repeated[n] = true
		}
	}
}

// Normalize flattens the tree into {root.Name: value}. Attributes become plain keys next to
// child elements; on a name collision the element wins.
func Normalize(root *Element, opts ...NormalizeOption) Value {
	o := normalizeOptions{repeated: map[string]bool{}}
	for _, opt := range opts {
		opt(&o)
	}
	out := newObject()
	out.set(root.Name, o.element(root))
	return out
}

func (o *normalizeOptions) element(e *Element) Value {
	if len(e.Attrs) == 0 && len(e.Children) == 0 {
		return scalar(e.Text)
	}

	v := newObject()
	for _, a := range e.Attrs {
		v.set(a.Key, scalar(a.Value))
	}

	var order []string
	groups := map[string][]Value{}
	for _, child := range e.Children {
		if _, seen := groups[child.Name]; !seen {
			order = append(order, child.Name)
		}
		groups[child.Name] = append(groups[child.Name], o.element(child))
	}
	for _, name := range order {
		vals := groups[name]
		if len(vals) == 1 && !o.repeated[name] {
			v.set(name, vals[0])
			continue
		}
		v.set(name, Value{Kind: KindArray, Array: vals})
	}

	if e.Text != "" {
		if _, taken := v.Object[textKey]; !taken {
			v.set(textKey, scalar(e.Text))
		}
	}
	return v
}
