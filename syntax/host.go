package syntax

import "github.com/thiremani/clift/ast"

// Host returns the grammar of the full host expression language.
func Host() *Grammar {
	expr := Tag("expr")
	exprs := Tag("exprs")
	ident := Kind(ast.IdentifierKind)
	constRef := Or(Kind(ast.ConstKind), Kind(ast.ConstPathRefKind))

	return New(
		Define("expr", Or(
			Kind(ast.NameKind), Kind(ast.NumberKind), Kind(ast.SuperKind), Kind(ast.BinaryKind),
			Kind(ast.UnaryKind), Kind(ast.SymbolLiteralKind), Kind(ast.ConstPathRefKind),
			Kind(ast.StringLiteralKind), Kind(ast.ArrayLiteralKind), Kind(ast.ParenKind),
			Kind(ast.CallKind), Kind(ast.ArrayRefKind), Kind(ast.HashLiteralKind),
			Kind(ast.ReturnKind), Kind(ast.ForLoopKind), Kind(ast.LoopKind),
			Kind(ast.ConditionalKind), Kind(ast.BreakKind), Kind(ast.LambdaKind),
			Kind(ast.BeginEndKind), Kind(ast.DefKind), Kind(ast.ModuleDefKind))),
		Define("exprs", Or(Kind(ast.ExprsKind), expr)),

		ForKind(ast.NameKind, Fields(F("name", String))),
		ForKind(ast.NumberKind, Fields(F("value", Numeric))),
		ForKind(ast.SuperKind, Fields()),
		ForKind(ast.IdentifierKind, Kind(ast.NameKind)),
		ForKind(ast.SymbolLiteralKind, Fields(F("name", String))),
		ForKind(ast.VariableCallKind, Kind(ast.NameKind)),
		ForKind(ast.InstanceVariableKind, Kind(ast.NameKind)),
		ForKind(ast.GlobalVariableKind, Kind(ast.NameKind)),
		ForKind(ast.LabelKind, Kind(ast.NameKind)),
		ForKind(ast.ReservedKind, Kind(ast.NameKind)),
		ForKind(ast.ConstKind, Kind(ast.NameKind)),
		ForKind(ast.BinaryKind, Fields(F("left", expr), F("op", Symbol), F("right", expr))),
		ForKind(ast.ArrayRefKind, Fields(F("array", expr), F("indexes", Array(expr)))),
		ForKind(ast.AssignKind, Kind(ast.BinaryKind)),
		ForKind(ast.DotsKind, Kind(ast.BinaryKind)),
		ForKind(ast.UnaryKind, Fields(F("op", Symbol), F("operand", expr))),
		ForKind(ast.ConstPathRefKind, Fields(F("scope", Opt(constRef)), F("name", Kind(ast.ConstKind)))),
		ForKind(ast.StringLiteralKind, Fields(F("value", String))),
		ForKind(ast.ArrayLiteralKind, Fields(F("elements", Array(expr)))),
		ForKind(ast.ParenKind, Fields(F("expression", expr))),
		ForKind(ast.HashLiteralKind, Fields(F("pairs", Array(Pair(expr, expr))))),
		ForKind(ast.ReturnKind, Fields(F("values", Array(expr)))),
		ForKind(ast.BreakKind, Fields(F("op", Symbol), F("values", Array(expr)))),
		ForKind(ast.ForLoopKind, Fields(F("vars", Array(ident)), F("set", expr), F("body", exprs))),
		ForKind(ast.LoopKind, Fields(F("op", Symbol), F("cond", expr), F("body", exprs))),
		ForKind(ast.ConditionalKind, Fields(F("op", Symbol), F("cond", expr), F("then", exprs),
			F("all_elsif", Array(Pair(expr, exprs))), F("else", Opt(exprs)))),
		ForKind(ast.ParametersKind, Fields(
			F("params", Array(ident)),
			F("optionals", Array(Pair(ident, expr))),
			F("rest_of_params", Opt(ident)),
			F("params_after_rest", Array(ident)),
			F("keywords", Array(Pair(Kind(ast.LabelKind), expr))),
			F("rest_of_keywords", Opt(ident)),
			F("block_param", Opt(ident)))),
		ForKind(ast.BlockKind, With(Kind(ast.ParametersKind), F("body", exprs))),
		ForKind(ast.LambdaKind, Kind(ast.BlockKind)),
		ForKind(ast.CallKind, Fields(F("receiver", Opt(expr)), F("op", Opt(Symbol)),
			F("name", ident), F("args", Array(expr)), F("block_arg", Opt(expr)),
			F("block", Opt(Kind(ast.BlockKind))))),
		ForKind(ast.CommandKind, Kind(ast.CallKind)),
		ForKind(ast.ExprsKind, Fields(F("expressions", Array(expr)))),
		ForKind(ast.RescueKind, Fields(F("types", Array(constRef)), F("parameter", Opt(ident)),
			F("body", Opt(exprs)), F("nested_rescue", Opt(Kind(ast.RescueKind))),
			F("else", Opt(exprs)), F("ensure", Opt(exprs)))),
		ForKind(ast.BeginEndKind, Fields(F("body", exprs), F("rescue", Opt(Kind(ast.RescueKind))))),
		ForKind(ast.DefKind, With(Kind(ast.ParametersKind), F("singular", Opt(expr)),
			F("name", ident), F("body", exprs), F("rescue", Opt(Kind(ast.RescueKind))))),
		ForKind(ast.ModuleDefKind, Fields(F("name", constRef), F("body", exprs),
			F("rescue", Opt(Kind(ast.RescueKind))))),
		ForKind(ast.ClassDefKind, With(Kind(ast.ModuleDefKind), F("superclass", Opt(constRef)))),
		ForKind(ast.ProgramKind, Fields(F("elements", Array(exprs)))),
	)
}
