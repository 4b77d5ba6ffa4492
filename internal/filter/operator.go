package filter

// Operator is a canonical operator from the closed filter grammar.
//
// Comparison operators use their symbolic form ("=", "<=", ...); the others
// use their keyword. Client tokens are mapped to an Operator by Canonicalize.
type Operator string

const (
	OpEq         Operator = "="
	OpNeq        Operator = "!="
	OpLt         Operator = "<"
	OpLte        Operator = "<="
	OpGt         Operator = ">"
	OpGte        Operator = ">="
	OpLike       Operator = "like"
	OpStartsWith Operator = "startswith"
	OpContains   Operator = "contains"
	OpEndsWith   Operator = "endswith"
	OpIn         Operator = "in"
	OpNin        Operator = "nin"
	OpAnd        Operator = "and"
	OpOr         Operator = "or"
)

// Contract describes the value shape an operator accepts.
type Contract int

const (
	// ContractPrimitive requires a string or number.
	ContractPrimitive Contract = iota + 1

	// ContractArrayOfPrimitive requires an array whose elements are primitive.
	ContractArrayOfPrimitive

	// ContractLogicalArray requires an array or object of nested filters.
	ContractLogicalArray
)

// String returns the contract name.
func (c Contract) String() string {
	switch c {
	case ContractPrimitive:
		return "Primitive"
	case ContractArrayOfPrimitive:
		return "ArrayOfPrimitive"
	case ContractLogicalArray:
		return "LogicalArray"
	default:
		return "Unknown"
	}
}

var shorthand = map[string]Operator{
	"eq":  OpEq,
	"neq": OpNeq,
	"lt":  OpLt,
	"lte": OpLte,
	"gt":  OpGt,
	"gte": OpGte,
}

var contracts = map[Operator]Contract{
	OpEq:         ContractPrimitive,
	OpNeq:        ContractPrimitive,
	OpLt:         ContractPrimitive,
	OpLte:        ContractPrimitive,
	OpGt:         ContractPrimitive,
	OpGte:        ContractPrimitive,
	OpLike:       ContractPrimitive,
	OpStartsWith: ContractPrimitive,
	OpContains:   ContractPrimitive,
	OpEndsWith:   ContractPrimitive,
	OpIn:         ContractArrayOfPrimitive,
	OpNin:        ContractArrayOfPrimitive,
	OpAnd:        ContractLogicalArray,
	OpOr:         ContractLogicalArray,
}

// Canonicalize maps a client token to its canonical operator.
// Shorthand tokens (eq, neq, lt, lte, gt, gte) map to their symbols;
// symbolic and keyword operators pass through. Matching is case-sensitive.
func Canonicalize(token string) (Operator, bool) {
	if op, ok := shorthand[token]; ok {
		return op, true
	}
	op := Operator(token)
	if _, ok := contracts[op]; ok {
		return op, true
	}
	return "", false
}

// IsOperator reports whether token names an operator.
func IsOperator(token string) bool {
	_, ok := Canonicalize(token)
	return ok
}

// IsLogicalToken reports whether token is "and" or "or".
func IsLogicalToken(token string) bool {
	return token == string(OpAnd) || token == string(OpOr)
}

// ValueContract returns the value shape op accepts.
func ValueContract(op Operator) (Contract, bool) {
	c, ok := contracts[op]
	return c, ok
}

// IsLogical reports whether op combines nested filters.
func (op Operator) IsLogical() bool {
	return op == OpAnd || op == OpOr
}

// Boolean joins a predicate to the predicates before it.
type Boolean string

const (
	And Boolean = "and"
	Or  Boolean = "or"
)
