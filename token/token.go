package token

import (
	"fmt"
	"strconv"
)

type TokenType int

const (
	ILLEGAL TokenType = iota
	EOF

	literal_beg
	// Identifiers + literals
	IDENT  // add, foobar, x, y, ...
	CONST  // Int, Foo
	IVAR   // @data
	GVAR   // $stdout
	LABEL  // name:
	INT    // 1343456
	FLOAT  // 123.45
	STRING // "abc"
	SYMBOL // :abc
	literal_end

	keyword_beg
	DEF
	DO
	IF
	UNLESS
	ELSIF
	ELSE
	WHILE
	UNTIL
	FOR
	RETURN
	BREAK
	NEXT
	BEGIN
	RESCUE
	MODULE
	CLASS
	LAMBDA
	keyword_end

	operator_beg
	// Operators and delimiters
	ASSIGN // =
	NOT    // !
	UMINUS // -@
	UPLUS  // +@

	arith_beg
	ADD // +
	SUB // -
	MUL // *
	QUO // /
	REM // %
	POW // **
	arith_end

	AND // &
	OR  // |
	XOR // ^
	SHL // <<
	SHR // >>

	LAND // &&
	LOR  // ||

	ADD_ASSIGN // +=
	SUB_ASSIGN // -=
	MUL_ASSIGN // *=
	QUO_ASSIGN // /=
	REM_ASSIGN // %=

	DOT2 // ..
	DOT3 // ...

	TERNARY // ?:

	LPAREN // (
	LBRACK // [
	LBRACE // {
	COMMA  // ,
	PERIOD // .
	SCOPE  // ::

	RPAREN // )
	RBRACK // ]
	RBRACE // }
	operator_end

	comparison_beg
	EQL // ==
	LSS // <
	GTR // >

	NEQ // !=
	LEQ // <=
	GEQ // >=
	comparison_end

	NEWLINE
)

var tokens = [...]string{
	ILLEGAL: "ILLEGAL",
	EOF:     "EOF",

	IDENT:  "IDENT",
	CONST:  "CONST",
	IVAR:   "IVAR",
	GVAR:   "GVAR",
	LABEL:  "LABEL",
	INT:    "INT",
	FLOAT:  "FLOAT",
	STRING: "STRING",
	SYMBOL: "SYMBOL",

	DEF:    "def",
	DO:     "do",
	IF:     "if",
	UNLESS: "unless",
	ELSIF:  "elsif",
	ELSE:   "else",
	WHILE:  "while",
	UNTIL:  "until",
	FOR:    "for",
	RETURN: "return",
	BREAK:  "break",
	NEXT:   "next",
	BEGIN:  "begin",
	RESCUE: "rescue",
	MODULE: "module",
	CLASS:  "class",
	LAMBDA: "->",

	ASSIGN: "=",
	NOT:    "!",
	UMINUS: "-@",
	UPLUS:  "+@",

	ADD: "+",
	SUB: "-",
	MUL: "*",
	QUO: "/",
	REM: "%",
	POW: "**",

	AND: "&",
	OR:  "|",
	XOR: "^",
	SHL: "<<",
	SHR: ">>",

	LAND: "&&",
	LOR:  "||",

	ADD_ASSIGN: "+=",
	SUB_ASSIGN: "-=",
	MUL_ASSIGN: "*=",
	QUO_ASSIGN: "/=",
	REM_ASSIGN: "%=",

	DOT2: "..",
	DOT3: "...",

	TERNARY: "?:",

	LPAREN: "(",
	LBRACK: "[",
	LBRACE: "{",
	COMMA:  ",",
	PERIOD: ".",
	SCOPE:  "::",

	RPAREN: ")",
	RBRACK: "]",
	RBRACE: "}",

	EQL: "==",
	LSS: "<",
	GTR: ">",

	NEQ: "!=",
	LEQ: "<=",
	GEQ: ">=",

	NEWLINE: "\n",
}

var operators = func() map[string]TokenType {
	m := make(map[string]TokenType)
	for i := operator_beg + 1; i < comparison_end; i++ {
		if i == operator_end || i == comparison_beg || i == arith_beg || i == arith_end {
			continue
		}
		m[tokens[i]] = i
	}
	return m
}()

var keywords = func() map[string]TokenType {
	m := make(map[string]TokenType)
	for i := keyword_beg + 1; i < keyword_end; i++ {
		m[tokens[i]] = i
	}
	return m
}()

// LookupOperator returns the operator token type for op, or ILLEGAL.
func LookupOperator(op string) TokenType {
	if t, ok := operators[op]; ok {
		return t
	}
	return ILLEGAL
}

// LookupKeyword returns the keyword token type for kw, or ILLEGAL.
func LookupKeyword(kw string) TokenType {
	if t, ok := keywords[kw]; ok {
		return t
	}
	return ILLEGAL
}

// Token is a lexical element together with its source position.
type Token struct {
	FileName string
	Type     TokenType
	Literal  string
	Line     int
	Column   int
}

// Op returns a token for operator op placed at pos.
func Op(op string, pos Token) Token {
	pos.Type = LookupOperator(op)
	pos.Literal = op
	return pos
}

func (t Token) IsComparison() bool {
	return comparison_beg < t.Type && comparison_end > t.Type
}

func (t Token) IsArithmetic() bool {
	return arith_beg < t.Type && arith_end > t.Type
}

func (t Token) IsLogical() bool {
	return t.Type == LAND || t.Type == LOR
}

func (t Token) IsCompoundAssign() bool {
	return ADD_ASSIGN <= t.Type && t.Type <= REM_ASSIGN
}

// Position formats the token location as file:line:column, omitting
// unknown parts.
func (t Token) Position() string {
	if t.FileName == "" && t.Line == 0 {
		return "?"
	}
	if t.Column == 0 {
		return fmt.Sprintf("%s:%d", t.FileName, t.Line)
	}
	return fmt.Sprintf("%s:%d:%d", t.FileName, t.Line, t.Column)
}

func (t Token) String() string {
	return t.Type.String()
}

func (tokenType TokenType) String() string {
	s := ""
	if 0 <= tokenType && tokenType < TokenType(len(tokens)) {
		s = tokens[tokenType]
	}

	if s == "" {
		s = "token(" + strconv.Itoa(int(tokenType)) + ")"
	}

	return s
}

// CompileError reports a failure of one compiler pass at a source location.
// Group names the pass: "syntax", "type" or "codegen".
type CompileError struct {
	Token Token
	Group string
	Msg   string
}

func (e *CompileError) Error() string {
	if e.Group == "" {
		return fmt.Sprintf("%s: %s", e.Token.Position(), e.Msg)
	}
	return fmt.Sprintf("%s: %s error: %s", e.Token.Position(), e.Group, e.Msg)
}
