// Package expr implements the Expr filter's compute core: a postfix
// stack-language lexer and parser, an expression tree with algebraic
// optimization passes, lowering to a small register bytecode, and a
// scalar interpreter that evaluates one plane of output per invocation.
package expr

import (
	"strconv"
	"strings"
)

// OpType is a node's opcode in the expression tree and, after lowering,
// an instruction's opcode in the bytecode program.
type OpType int

const (
	OpLoad OpType = iota // loads input clip Imm.ClipIndex at the current pixel
	OpConstant

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpFMA // fused multiply-add; Imm.FMAVariant selects the sign pattern
	OpMax
	OpMin
	OpSqrt
	OpAbs
	OpNeg

	OpNot
	OpAnd
	OpOr
	OpXor
	OpCmp // comparison kind in Imm.Cmp

	OpExp
	OpLog
	OpPow
	OpSin
	OpCos

	OpTernary
	OpMux // meta-node packaging the ternary's then/else branches as one child pair
)

func (t OpType) String() string {
	switch t {
	case OpLoad:
		return "load"
	case OpConstant:
		return "constant"
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpFMA:
		return "fma"
	case OpMax:
		return "max"
	case OpMin:
		return "min"
	case OpSqrt:
		return "sqrt"
	case OpAbs:
		return "abs"
	case OpNeg:
		return "neg"
	case OpNot:
		return "not"
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	case OpXor:
		return "xor"
	case OpCmp:
		return "cmp"
	case OpExp:
		return "exp"
	case OpLog:
		return "log"
	case OpPow:
		return "pow"
	case OpSin:
		return "sin"
	case OpCos:
		return "cos"
	case OpTernary:
		return "?"
	case OpMux:
		return "mux"
	default:
		return "unknown"
	}
}

// numOperands is the arity table the parser validates the stack against
// before popping operands for each opcode.
var numOperands = map[OpType]int{
	OpLoad: 0, OpConstant: 0,
	OpAdd: 2, OpSub: 2, OpMul: 2, OpDiv: 2, OpFMA: 3,
	OpMax: 2, OpMin: 2, OpSqrt: 1, OpAbs: 1, OpNeg: 1,
	OpNot: 1, OpAnd: 2, OpOr: 2, OpXor: 2, OpCmp: 2,
	OpExp: 1, OpLog: 1, OpPow: 2, OpSin: 1, OpCos: 1,
	OpTernary: 3, OpMux: 2,
}

// CmpKind selects the comparison predicate an OpCmp node evaluates.
type CmpKind int

const (
	CmpLT CmpKind = iota
	CmpGT
	CmpEQ
	CmpGE
	CmpLE
)

// FMAVariant selects the sign pattern of a fused multiply-add:
// FMADD = a*b+c, FMSUB = a*b-c, FNMADD = -(a*b)+c, FNMSUB = -(a*b)-c.
type FMAVariant int

const (
	FMADD FMAVariant = iota
	FMSUB
	FNMADD
	FNMSUB
)

// Imm is an opcode's immediate operand; only the field relevant to Op is
// meaningful.
type Imm struct {
	ClipIndex int
	Const     float64
	Cmp       CmpKind
	FMA       FMAVariant
}

// token is a decoded lexical unit: either a simple opcode, a dup/swap
// stack operation (resolved away during tree construction), or a literal.
type token struct {
	op      OpType
	imm     Imm
	isDup   bool
	isSwap  bool
	stackOp int // depth argument for dup/swap
}

var simpleTokens = map[string]token{
	"+":    {op: OpAdd},
	"-":    {op: OpSub},
	"*":    {op: OpMul},
	"/":    {op: OpDiv},
	"sqrt": {op: OpSqrt},
	"abs":  {op: OpAbs},
	"max":  {op: OpMax},
	"min":  {op: OpMin},
	"<":    {op: OpCmp, imm: Imm{Cmp: CmpLT}},
	">":    {op: OpCmp, imm: Imm{Cmp: CmpGT}},
	"=":    {op: OpCmp, imm: Imm{Cmp: CmpEQ}},
	">=":   {op: OpCmp, imm: Imm{Cmp: CmpGE}},
	"<=":   {op: OpCmp, imm: Imm{Cmp: CmpLE}},
	"and":  {op: OpAnd},
	"or":   {op: OpOr},
	"xor":  {op: OpXor},
	"not":  {op: OpNot},
	"?":    {op: OpTernary},
	"exp":  {op: OpExp},
	"log":  {op: OpLog},
	"pow":  {op: OpPow},
	"sin":  {op: OpSin},
	"cos":  {op: OpCos},
	"dup":  {isDup: true, stackOp: 0},
	"swap": {isSwap: true, stackOp: 1},
}

// tokenize splits a whitespace-delimited expression into raw token
// strings, collapsing runs of whitespace.
func tokenize(expr string) []string {
	return strings.Fields(expr)
}

// decodeToken classifies one raw token: a fixed operator, a clip-letter
// load, a dupN/swapN stack operation, or a numeric literal.
func decodeToken(tok string) (token, error) {
	if t, ok := simpleTokens[tok]; ok {
		return t, nil
	}

	if len(tok) == 1 && tok[0] >= 'a' && tok[0] <= 'z' {
		c := tok[0]
		var idx int
		if c >= 'x' {
			idx = int(c - 'x')
		} else {
			idx = int(c-'a') + 3
		}
		return token{op: OpLoad, imm: Imm{ClipIndex: idx}}, nil
	}

	if strings.HasPrefix(tok, "dup") || strings.HasPrefix(tok, "swap") {
		prefix := 3
		isSwap := false
		if strings.HasPrefix(tok, "swap") {
			prefix = 4
			isSwap = true
		}
		rest := tok[prefix:]
		if rest != "" {
			n, err := strconv.Atoi(rest)
			if err != nil || n < 0 {
				return token{}, newUnknownToken(tok)
			}
			return token{isDup: !isSwap, isSwap: isSwap, stackOp: n}, nil
		}
	}

	f, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return token{}, newUnknownToken(tok)
	}
	return token{op: OpConstant, imm: Imm{Const: f}}, nil
}
