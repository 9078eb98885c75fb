package syntax

import "github.com/thiremani/clift/ast"

// C returns the grammar of the subset that compiles to C. Every node of an
// accepted tree is tagged, either with a user type (expr, stmnt, typedecl,
// return_type, ...) or with its kind name.
func C() *Grammar {
	expr := Tag("expr")
	exprs := Tag("exprs")
	stmnt := Tag("stmnt")
	ident := Kind(ast.IdentifierKind)
	constRef := Or(Kind(ast.ConstKind), Kind(ast.ConstPathRefKind))
	arrayof := Tag("arrayof")

	return New(
		Define("expr", Or(
			Kind(ast.NameKind), Kind(ast.NumberKind), Kind(ast.BinaryKind), Kind(ast.UnaryKind),
			Kind(ast.ConstPathRefKind), Kind(ast.StringLiteralKind), Kind(ast.ArrayRefKind),
			Kind(ast.ParenKind), Tag("typedecl"), Tag("method_call"))),
		Define("exprs", Or(Kind(ast.ExprsKind), stmnt)),
		Define("stmnt", Or(expr, Kind(ast.ReturnKind), Kind(ast.ForLoopKind), Kind(ast.LoopKind),
			Kind(ast.ConditionalKind), Kind(ast.BreakKind))),

		ForKind(ast.NameKind, Fields()),
		ForKind(ast.ConstKind, Kind(ast.NameKind)),
		ForKind(ast.NumberKind, Fields()),
		ForKind(ast.SymbolLiteralKind, Nil),
		ForKind(ast.GlobalVariableKind, Nil),
		ForKind(ast.ReservedKind, Nil),
		ForKind(ast.InstanceVariableKind, Fields()),
		ForKind(ast.StringLiteralKind, Fields()),
		ForKind(ast.ConstPathRefKind, Fields(F("scope", Opt(constRef)), F("name", Kind(ast.ConstKind)))),

		ForKind(ast.BinaryKind, Fields(F("left", expr), F("op", Symbol), F("right", expr))),
		ForKind(ast.UnaryKind, Fields(F("op", Symbol), F("operand", expr))),
		ForKind(ast.ArrayRefKind, Fields(F("array", expr), F("indexes", Array(expr)))),
		ForKind(ast.ParenKind, Fields(F("expression", expr))),

		ForKind(ast.ReturnKind, Fields(F("values", Or(expr, Nil)))),
		ForKind(ast.BreakKind, Fields(F("values", Nil))),
		ForKind(ast.ForLoopKind, Fields(F("vars", Kind(ast.IdentifierKind)), F("set", Kind(ast.DotsKind)),
			F("body", exprs))),
		ForKind(ast.LoopKind, Fields(F("op", Symbol), F("cond", expr), F("body", exprs))),
		ForKind(ast.ConditionalKind, Fields(F("op", Symbol), F("cond", expr), F("then", exprs),
			F("all_elsif", Array(Pair(expr, exprs))), F("else", Opt(exprs)))),

		Define("method_call", With(Kind(ast.CallKind),
			F("receiver", Opt(expr)), F("op", Opt(Symbol)), F("name", Kind(ast.NameKind)),
			F("args", Array(expr)), F("block_arg", Nil), F("block", Opt(Kind(ast.BlockKind))))),

		Define("arrayof_name", With(ident, F("name", Lit("arrayof")))),
		Define("arrayof", With(Kind(ast.CallKind),
			F("receiver", Nil), F("op", Nil), F("name", Tag("arrayof_name")),
			F("args", Array(expr)), F("block_arg", Nil), F("block", Nil))),
		Define("typedecl_name", With(ident, F("name", Lit("typedecl")))),
		Define("typedecl", With(Kind(ast.CallKind),
			F("name", Tag("typedecl_name")), F("args", Array(Tag("typedecl_hash"))))),
		Define("typedecl_hash", With(Kind(ast.HashLiteralKind),
			F("pairs", Array(Pair(Kind(ast.LabelKind), Tag("label_value")))))),
		Define("label_value", Or(constRef, arrayof, Kind(ast.StringLiteralKind))),
		Define("return_type", With(Kind(ast.UnaryKind), F("operand", Or(constRef, arrayof)))),

		Define("func_body", Or(Tag("return_type"), stmnt,
			With(Kind(ast.ExprsKind), F("expressions", Array(Opt(Tag("return_type")), stmnt))))),
		ForKind(ast.ExprsKind, Fields(F("expressions", Array(stmnt)))),

		ForKind(ast.ParametersKind, Fields(
			F("params", Array(ident)),
			F("optionals", Nil),
			F("rest_of_params", Nil),
			F("params_after_rest", Nil),
			F("keywords", Nil),
			F("rest_of_keywords", Nil),
			F("block_param", Nil))),
		ForKind(ast.BlockKind, With(Kind(ast.ParametersKind), F("body", Tag("func_body")), F("rescue", Nil))),
		ForKind(ast.DefKind, With(Kind(ast.ParametersKind), F("singular", Nil), F("name", ident),
			F("body", Tag("func_body")), F("rescue", Nil))),
		ForKind(ast.ProgramKind, Fields(F("elements", Array(exprs)))),
	)
}
