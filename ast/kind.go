package ast

// Kind identifies the concrete shape of a node. Kinds form a single
// inheritance chain rooted at NodeKind; a rule registered for a kind also
// applies to every kind below it unless a more specific rule exists.
type Kind int

const (
	NodeKind Kind = iota
	NameKind
	IdentifierOrCallKind
	IdentifierKind
	VariableCallKind
	ConstKind
	ReservedKind
	LabelKind
	InstanceVariableKind
	GlobalVariableKind
	NumberKind
	StringLiteralKind
	SymbolLiteralKind
	SuperKind
	BinaryKind
	DotsKind
	AssignKind
	UnaryKind
	ParenKind
	ArrayLiteralKind
	HashLiteralKind
	ConstPathRefKind
	ArrayRefKind
	CallKind
	CommandKind
	ConditionalKind
	LoopKind
	ForLoopKind
	ReturnKind
	BreakKind
	ExprsKind
	ParametersKind
	BlockKind
	LambdaKind
	DefKind
	RescueKind
	BeginEndKind
	ModuleDefKind
	ClassDefKind
	ProgramKind
	numKinds
)

type kindInfo struct {
	name   string
	parent Kind
}

var kinds = [numKinds]kindInfo{
	NodeKind:             {"Node", NodeKind},
	NameKind:             {"Name", NodeKind},
	IdentifierOrCallKind: {"IdentifierOrCall", NameKind},
	IdentifierKind:       {"Identifier", IdentifierOrCallKind},
	VariableCallKind:     {"VariableCall", IdentifierOrCallKind},
	ConstKind:            {"Const", NameKind},
	ReservedKind:         {"Reserved", NameKind},
	LabelKind:            {"Label", NameKind},
	InstanceVariableKind: {"InstanceVariable", NameKind},
	GlobalVariableKind:   {"GlobalVariable", NameKind},
	NumberKind:           {"Number", NodeKind},
	StringLiteralKind:    {"StringLiteral", NodeKind},
	SymbolLiteralKind:    {"SymbolLiteral", NodeKind},
	SuperKind:            {"Super", NodeKind},
	BinaryKind:           {"Binary", NodeKind},
	DotsKind:             {"Dots", BinaryKind},
	AssignKind:           {"Assign", BinaryKind},
	UnaryKind:            {"Unary", NodeKind},
	ParenKind:            {"Paren", NodeKind},
	ArrayLiteralKind:     {"ArrayLiteral", NodeKind},
	HashLiteralKind:      {"HashLiteral", NodeKind},
	ConstPathRefKind:     {"ConstPathRef", NodeKind},
	ArrayRefKind:         {"ArrayRef", NodeKind},
	CallKind:             {"Call", NodeKind},
	CommandKind:          {"Command", CallKind},
	ConditionalKind:      {"Conditional", NodeKind},
	LoopKind:             {"Loop", NodeKind},
	ForLoopKind:          {"ForLoop", NodeKind},
	ReturnKind:           {"Return", NodeKind},
	BreakKind:            {"Break", NodeKind},
	ExprsKind:            {"Exprs", NodeKind},
	ParametersKind:       {"Parameters", NodeKind},
	BlockKind:            {"Block", ParametersKind},
	LambdaKind:           {"Lambda", BlockKind},
	DefKind:              {"Def", ParametersKind},
	RescueKind:           {"Rescue", NodeKind},
	BeginEndKind:         {"BeginEnd", NodeKind},
	ModuleDefKind:        {"ModuleDef", NodeKind},
	ClassDefKind:         {"ClassDef", ModuleDefKind},
	ProgramKind:          {"Program", NodeKind},
}

var kindNames = func() map[string]Kind {
	m := make(map[string]Kind, numKinds)
	for k := NodeKind; k < numKinds; k++ {
		m[kinds[k].name] = k
	}
	return m
}()

func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return "Kind(?)"
	}
	return kinds[k].name
}

// Parent returns the next kind up the chain. The root kind has none.
func (k Kind) Parent() (Kind, bool) {
	if k <= NodeKind || k >= numKinds {
		return NodeKind, false
	}
	return kinds[k].parent, true
}

// IsA reports whether k is super or one of its descendants.
func (k Kind) IsA(super Kind) bool {
	for {
		if k == super {
			return true
		}
		p, ok := k.Parent()
		if !ok {
			return false
		}
		k = p
	}
}

// KindByName looks a kind up by its name, e.g. "Binary".
func KindByName(name string) (Kind, bool) {
	k, ok := kindNames[name]
	return k, ok
}
