package compiler

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/thiremani/clift/types"
)

const PREFIX = "$" // separates the tokens of a signature

var typeTokens = map[*types.Class]string{
	types.Integer: "I32",
	types.Float:   "F64",
	types.Float32: "F32",
	types.String:  "Str",
}

// Mangle encodes an exported function as
//
//	$<name>$P<n> { $<param> } $O<m> [ $<result> ]
//
// where a result of Void has m == 0 and an array is $Ptr$1$<elem>.
func Mangle(name string, mt *types.Method) (string, error) {
	if mt.DynParams {
		return "", fmt.Errorf("cannot mangle %s: dynamic parameters", name)
	}
	var b strings.Builder
	b.WriteString(PREFIX + name)
	b.WriteString(PREFIX + "P" + strconv.Itoa(len(mt.Params)))
	for _, p := range mt.Params {
		if err := mangleType(&b, p); err != nil {
			return "", fmt.Errorf("cannot mangle %s: %w", name, err)
		}
	}
	if types.Void.Equal(mt.Ret) {
		b.WriteString(PREFIX + "O0")
		return b.String(), nil
	}
	b.WriteString(PREFIX + "O1")
	if err := mangleType(&b, mt.Ret); err != nil {
		return "", fmt.Errorf("cannot mangle %s: %w", name, err)
	}
	return b.String(), nil
}

func mangleType(b *strings.Builder, t types.Type) error {
	if c, ok := types.As[*types.Composite](t); ok && c.Class == types.Array {
		b.WriteString(PREFIX + "Ptr" + PREFIX + "1")
		return mangleType(b, c.ElementType())
	}
	tok, ok := typeTokens[t.Exact()]
	if !ok {
		return fmt.Errorf("no C type for %s", t.Name())
	}
	b.WriteString(PREFIX + tok)
	return nil
}

// Unmangle decodes a string produced by Mangle.
func Unmangle(s string) (name string, mt *types.Method, err error) {
	if len(s) == 0 || s[0] != '$' {
		return "", nil, fmt.Errorf("invalid mangled string: missing leading '$'")
	}
	name, pos := readToken(s, 0)
	if name == "" {
		return "", nil, fmt.Errorf("invalid mangled string: empty name")
	}
	p, pos, err := readTagCount(s, pos, 'P')
	if err != nil {
		return "", nil, fmt.Errorf("missing P<count>: %w", err)
	}
	params := make([]types.Type, p)
	for i := range params {
		if params[i], pos, err = parseTypeFrom(s, pos); err != nil {
			return "", nil, err
		}
	}
	r, pos, err := readTagCount(s, pos, 'O')
	if err != nil {
		return "", nil, fmt.Errorf("missing O<count>: %w", err)
	}
	var ret types.Type = types.Void
	switch r {
	case 0:
	case 1:
		if ret, pos, err = parseTypeFrom(s, pos); err != nil {
			return "", nil, err
		}
	default:
		return "", nil, fmt.Errorf("O count must be 0 or 1, got %d", r)
	}
	if pos != len(s) {
		return "", nil, fmt.Errorf("trailing characters at %d", pos)
	}
	return name, types.NewMethod(nil, params, ret), nil
}

// parseTypeFrom parses a single type starting at s[pos] == '$' and returns
// the index after it.
func parseTypeFrom(s string, pos int) (types.Type, int, error) {
	if pos >= len(s) || s[pos] != '$' {
		return nil, pos, fmt.Errorf("parse error: expected '$' at %d", pos)
	}
	tok, next := readToken(s, pos)
	switch tok {
	case "":
		return nil, next, fmt.Errorf("parse error: empty token at %d", pos)
	case "Ptr":
		cnt, npos, err := readCount(s, next)
		if err != nil {
			return nil, npos, fmt.Errorf("Ptr missing count: %w", err)
		}
		if cnt != 1 {
			return nil, npos, fmt.Errorf("Ptr count must be 1, got %d", cnt)
		}
		elem, nnext, err := parseTypeFrom(s, npos)
		if err != nil {
			return nil, nnext, err
		}
		return types.ArrayOf(elem), nnext, nil
	}
	for c, t := range typeTokens {
		if t == tok {
			return c, next, nil
		}
	}
	return nil, next, fmt.Errorf("unknown type tag: %q", tok)
}

// readToken reads the token that starts at s[pos], where s[pos] == '$'.
// It returns the token and the index of the next '$' or the end.
func readToken(s string, pos int) (string, int) {
	i := pos + 1
	j := i
	for j < len(s) && s[j] != '$' {
		j++
	}
	return s[i:j], j
}

// readCount reads a numeric token such as "3" or "N3".
func readCount(s string, pos int) (int, int, error) {
	if pos >= len(s) {
		return 0, pos, fmt.Errorf("missing count token")
	}
	tok, next := readToken(s, pos)
	if tok == "" {
		return 0, next, fmt.Errorf("missing count token")
	}
	start := 0
	if !unicode.IsDigit(rune(tok[0])) {
		start = 1
	}
	if start >= len(tok) {
		return 0, next, fmt.Errorf("malformed count token: %q", tok)
	}
	val, err := strconv.Atoi(tok[start:])
	if err != nil {
		return 0, next, fmt.Errorf("invalid count in %q: %v", tok, err)
	}
	return val, next, nil
}

// readTagCount expects a tag token like "P" or "O" fused with digits ("P3").
func readTagCount(s string, pos int, tag rune) (int, int, error) {
	if pos >= len(s) {
		return 0, pos, fmt.Errorf("missing %c token", tag)
	}
	tok, next := readToken(s, pos)
	if tok == "" {
		return 0, next, fmt.Errorf("missing %c token", tag)
	}
	if rune(tok[0]) != tag {
		return 0, next, fmt.Errorf("expected %c token, got %q", tag, tok)
	}
	if len(tok) > 1 {
		val, err := strconv.Atoi(tok[1:])
		if err != nil {
			return 0, next, fmt.Errorf("invalid %c count in %q: %v", tag, tok, err)
		}
		return val, next, nil
	}
	return readCount(s, next)
}
