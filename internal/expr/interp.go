package expr

import "math"

// Program is a compiled expression: a register-renamed instruction list
// plus the register holding the final result.
type Program struct {
	Instrs   []Instruction
	Result   int
	NumRegs  int
	NumClips int
}

// Compile lexes, parses, optimizes, and lowers a postfix expression into
// an executable Program. numInputs bounds which clip letters the source
// may legally reference.
func Compile(source string, numInputs int) (*Program, error) {
	root, err := Build(source, numInputs)
	if err != nil {
		return nil, err
	}
	root, err = Optimize(root)
	if err != nil {
		return nil, err
	}
	instrs, result := lower(root)
	renamed, resultReg, numRegs := renameRegisters(instrs, result)
	return &Program{Instrs: renamed, Result: resultReg, NumRegs: numRegs, NumClips: numInputs}, nil
}

// Eval runs the program for one pixel, given that pixel's per-clip input
// values already promoted to float64, and returns the unclamped result.
func (p *Program) Eval(inputs []float64) float64 {
	regs := make([]float64, p.NumRegs)
	for _, ins := range p.Instrs {
		regs[ins.Dst] = execOne(ins, regs, inputs)
	}
	if p.Result < 0 {
		return 0
	}
	return regs[p.Result]
}

func execOne(ins Instruction, regs []float64, inputs []float64) float64 {
	src := func(i int) float64 {
		if ins.Src[i] < 0 {
			return 0
		}
		return regs[ins.Src[i]]
	}

	switch ins.Op {
	case OpLoad:
		return inputs[ins.Imm.ClipIndex]
	case OpConstant:
		return ins.Imm.Const
	case OpAdd:
		return src(0) + src(1)
	case OpSub:
		return src(0) - src(1)
	case OpMul:
		return src(0) * src(1)
	case OpDiv:
		return src(0) / src(1)
	case OpFMA:
		return evalFMA(ins.Imm.FMA, src(0), src(1), src(2))
	case OpMax:
		return math.Max(src(0), src(1))
	case OpMin:
		return math.Min(src(0), src(1))
	case OpSqrt:
		return math.Sqrt(src(0))
	case OpAbs:
		return math.Abs(src(0))
	case OpNeg:
		return -src(0)
	case OpNot:
		return boolf(!truthy(src(0)))
	case OpAnd:
		return boolf(truthy(src(0)) && truthy(src(1)))
	case OpOr:
		return boolf(truthy(src(0)) || truthy(src(1)))
	case OpXor:
		return boolf(truthy(src(0)) != truthy(src(1)))
	case OpCmp:
		return boolf(evalCmp(ins.Imm.Cmp, src(0), src(1)))
	case OpExp:
		return math.Exp(src(0))
	case OpLog:
		return math.Log(src(0))
	case OpPow:
		return math.Pow(src(0), src(1))
	case OpSin:
		return math.Sin(src(0))
	case OpCos:
		return math.Cos(src(0))
	case OpTernary:
		if truthy(src(0)) {
			return src(1)
		}
		return src(2)
	default:
		return 0
	}
}

func evalCmp(kind CmpKind, a, b float64) bool {
	switch kind {
	case CmpLT:
		return a < b
	case CmpGT:
		return a > b
	case CmpEQ:
		return a == b
	case CmpGE:
		return a >= b
	case CmpLE:
		return a <= b
	default:
		return false
	}
}

func evalFMA(variant FMAVariant, a, b, c float64) float64 {
	switch variant {
	case FMADD:
		return a*b + c
	case FMSUB:
		return a*b - c
	case FNMADD:
		return -(a * b) + c
	case FNMSUB:
		return -(a * b) - c
	default:
		return a*b + c
	}
}

// evalUnary/evalBinary support constant folding in the optimizer, sharing
// the same evaluation semantics the interpreter uses.
func evalUnary(op OpType, a float64) float64 {
	switch op {
	case OpSqrt:
		return math.Sqrt(a)
	case OpAbs:
		return math.Abs(a)
	case OpNeg:
		return -a
	case OpNot:
		return boolf(!truthy(a))
	case OpExp:
		return math.Exp(a)
	case OpLog:
		return math.Log(a)
	case OpSin:
		return math.Sin(a)
	case OpCos:
		return math.Cos(a)
	default:
		return a
	}
}

func evalBinary(op OpType, imm Imm, a, b float64) float64 {
	switch op {
	case OpAdd:
		return a + b
	case OpSub:
		return a - b
	case OpMul:
		return a * b
	case OpDiv:
		return a / b
	case OpMax:
		return math.Max(a, b)
	case OpMin:
		return math.Min(a, b)
	case OpAnd:
		return boolf(truthy(a) && truthy(b))
	case OpOr:
		return boolf(truthy(a) || truthy(b))
	case OpXor:
		return boolf(truthy(a) != truthy(b))
	case OpPow:
		return math.Pow(a, b)
	case OpCmp:
		return boolf(evalCmp(imm.Cmp, a, b))
	default:
		return a
	}
}
