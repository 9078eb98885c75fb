// Package bundle reads and writes the compiler's input: method trees, the
// values their free names had when captured, and the methods to compile.
package bundle

import (
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"

	"github.com/thiremani/clift/ast"
	"github.com/thiremani/clift/compiler"
	"github.com/thiremani/clift/types"
)

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic("bundle: failed to create CBOR enc mode: " + err.Error())
	}
	encMode = em
}

// Class declares a user class. Super names a builtin class or one declared
// earlier; empty means Object.
type Class struct {
	Name  string `cbor:"name"`
	Super string `cbor:"super,omitempty"`
}

// Tree is the body of a method. Class is empty for a standalone block.
type Tree struct {
	Class string `cbor:"class,omitempty"`
	Name  string `cbor:"name"`
	Root  *Node  `cbor:"root"`
}

// Entry names a method to compile.
type Entry struct {
	Class string `cbor:"class,omitempty"`
	Name  string `cbor:"name"`
}

// Bundle is a set of trees and the methods to compile from them. A decoded
// bundle is a compiler.Source and a compiler.Oracle.
type Bundle struct {
	ClassDefs []Class `cbor:"classes,omitempty"`
	Trees     []Tree  `cbor:"trees"`
	Entries   []Entry `cbor:"entries"`

	classes []*types.Class
	trees   compiler.Trees
	values  compiler.Values
	refs    map[compiler.ArrayObject]int
}

// Add encodes root as the tree of class#name. values holds the captured
// values of its nodes and may be nil.
func (b *Bundle) Add(class, name string, root ast.Node, values compiler.Values) error {
	if b.refs == nil {
		b.refs = map[compiler.ArrayObject]int{}
	}
	n, err := (&encoder{values: values, refs: b.refs}).node(root)
	if err != nil {
		return errors.Wrapf(err, "encode %s", compiler.Entry{Class: class, Name: name})
	}
	b.Trees = append(b.Trees, Tree{Class: class, Name: name, Root: n})
	return nil
}

// AddEntry marks class#name for compilation.
func (b *Bundle) AddEntry(class, name string) {
	b.Entries = append(b.Entries, Entry{Class: class, Name: name})
}

// Marshal encodes the bundle. Equal bundles encode to equal bytes.
func (b *Bundle) Marshal() ([]byte, error) {
	return encMode.Marshal(b)
}

// Decode decodes a bundle and rebuilds its trees.
func Decode(data []byte) (*Bundle, error) {
	var b Bundle
	if err := cbor.Unmarshal(data, &b); err != nil {
		return nil, errors.Wrap(err, "bundle: unmarshal")
	}
	if err := b.build(); err != nil {
		return nil, err
	}
	return &b, nil
}

// ReadFile decodes the bundle stored at path.
func ReadFile(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read %s", path)
	}
	b, err := Decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return b, nil
}

func (b *Bundle) build() error {
	known := map[string]*types.Class{}
	for _, c := range builtinClasses {
		known[c.Name()] = c
	}
	b.classes = nil
	for _, c := range b.ClassDefs {
		if _, ok := known[c.Name]; ok || c.Name == "" {
			return errors.Errorf("bundle: bad class name %q", c.Name)
		}
		super := types.Object
		if c.Super != "" {
			s, ok := known[c.Super]
			if !ok {
				return errors.Errorf("bundle: unknown superclass %s of %s", c.Super, c.Name)
			}
			super = s
		}
		cls := types.NewClass(c.Name, super)
		known[c.Name] = cls
		b.classes = append(b.classes, cls)
	}

	d := &decoder{classes: known, values: compiler.Values{}}
	b.trees = compiler.Trees{}
	for _, t := range b.Trees {
		e := compiler.Entry{Class: t.Class, Name: t.Name}
		if _, dup := b.trees[e]; dup {
			return errors.Errorf("bundle: duplicate tree %s", e)
		}
		root, err := d.node(t.Root)
		if err != nil {
			return errors.Wrapf(err, "bundle: tree %s", e)
		}
		if root == nil {
			return errors.Errorf("bundle: tree %s has no root", e)
		}
		b.trees[e] = ast.Link(root)
	}
	b.values = d.values
	return nil
}

// Resolve returns the decoded tree of e.
func (b *Bundle) Resolve(e compiler.Entry) (ast.Node, bool) {
	n, ok := b.trees[e]
	return n, ok
}

// ValueOf returns the captured value of a decoded node.
func (b *Bundle) ValueOf(n ast.Node) (any, bool) {
	v, ok := b.values[n]
	return v, ok
}

// Classes returns the declared user classes.
func (b *Bundle) Classes() []*types.Class { return b.classes }

// EntryPoints returns the methods to compile.
func (b *Bundle) EntryPoints() []compiler.Entry {
	out := make([]compiler.Entry, len(b.Entries))
	for i, e := range b.Entries {
		out[i] = compiler.Entry{Class: e.Class, Name: e.Name}
	}
	return out
}
