package expr

// Instruction is one bytecode op: Src holds the (already register-
// renamed) operand registers in evaluation order, -1 where unused, and
// Dst is the register the result is written to.
type Instruction struct {
	Op  OpType
	Imm Imm
	Src []int
	Dst int
}

// lower performs the post-order traversal that turns an optimized
// expression tree into a straight-line instruction list: one instruction
// per distinct value, in the order its operands become available. Mux
// meta-nodes are never emitted as instructions; Ternary reads straight
// through to their then/else children. FMA nodes read straight through
// their Mul operand's two children rather than emitting a separate
// multiply, since the fusion pass only fires when that product has no
// other consumer.
func lower(root *Node) ([]Instruction, int) {
	var instrs []Instruction
	reg := map[*Node]int{}

	var visit func(n *Node) int
	visit = func(n *Node) int {
		if n == nil {
			return -1
		}
		if r, ok := reg[n]; ok {
			return r
		}

		var srcs []int
		switch n.Op {
		case OpTernary:
			cond := visit(n.Left)
			then := visit(n.Right.Left)
			els := visit(n.Right.Right)
			srcs = []int{cond, then, els}
		case OpFMA:
			a := visit(n.Left.Left)
			b := visit(n.Left.Right)
			c := visit(n.Right)
			srcs = []int{a, b, c}
		default:
			l := visit(n.Left)
			r := visit(n.Right)
			if r >= 0 {
				srcs = []int{l, r}
			} else if l >= 0 {
				srcs = []int{l}
			}
		}

		dst := len(instrs)
		instrs = append(instrs, Instruction{Op: n.Op, Imm: n.Imm, Src: srcs, Dst: dst})
		reg[n] = dst
		return dst
	}

	result := visit(root)
	return instrs, result
}

// renameRegisters reassigns the virtual registers lower produced (one per
// instruction, in emission order) to a smaller set of physical registers,
// reusing a register as soon as its last use has been executed. This
// bounds live registers to roughly the original expression's maximum
// stack depth rather than its total instruction count.
func renameRegisters(instrs []Instruction, result int) ([]Instruction, int, int) {
	n := len(instrs)
	lastUse := make([]int, n)
	for i := range lastUse {
		lastUse[i] = -1
	}
	for i, ins := range instrs {
		for _, s := range ins.Src {
			if s >= 0 {
				lastUse[s] = i
			}
		}
	}
	if result >= 0 {
		lastUse[result] = n // keep the final result's register alive past the last instruction
	}

	mapping := make([]int, n)
	var free []int
	nextPhysical := 0
	out := make([]Instruction, n)

	for i, ins := range instrs {
		newSrc := make([]int, len(ins.Src))
		for j, s := range ins.Src {
			if s < 0 {
				newSrc[j] = -1
				continue
			}
			newSrc[j] = mapping[s]
		}

		var dst int
		if len(free) > 0 {
			dst = free[len(free)-1]
			free = free[:len(free)-1]
		} else {
			dst = nextPhysical
			nextPhysical++
		}
		mapping[ins.Dst] = dst
		out[i] = Instruction{Op: ins.Op, Imm: ins.Imm, Src: newSrc, Dst: dst}

		for _, s := range ins.Src {
			if s >= 0 && lastUse[s] == i {
				free = append(free, mapping[s])
				lastUse[s] = -1 // free once even when ins reads s more than once
			}
		}
	}

	resultReg := -1
	if result >= 0 {
		resultReg = mapping[result]
	}
	return out, resultReg, nextPhysical
}
