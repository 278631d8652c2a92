package expr

import "testing"

func TestLowerEmitsOneInstructionPerDistinctValue(t *testing.T) {
	root, err := Build("x y +", 2)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	root, err = Optimize(root)
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	instrs, result := lower(root)
	if len(instrs) != 3 {
		t.Fatalf("got %d instructions, want 3 (load x, load y, add)", len(instrs))
	}
	if instrs[result].Op != OpAdd {
		t.Fatalf("result instruction is %v, want OpAdd", instrs[result].Op)
	}
}

func TestLowerSharesDedupedSubtrees(t *testing.T) {
	root, err := Build("x y + x y + *", 2)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	root, err = Optimize(root)
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	instrs, result := lower(root)
	// load x, load y, add, multiply(add,add) — the shared add is emitted once.
	if len(instrs) != 4 {
		t.Fatalf("got %d instructions, want 4, instrs=%+v", len(instrs), instrs)
	}
	mulIns := instrs[result]
	if mulIns.Op != OpMul || mulIns.Src[0] != mulIns.Src[1] {
		t.Fatalf("expected multiply to read the same register twice, got %+v", mulIns)
	}
}

func TestLowerTernaryReadsThroughMux(t *testing.T) {
	root, err := Build("x 0 > y z ?", 3)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	root, err = Optimize(root)
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	instrs, result := lower(root)
	for _, ins := range instrs {
		if ins.Op == OpMux {
			t.Fatalf("Mux must never be emitted as an instruction: %+v", instrs)
		}
	}
	if instrs[result].Op != OpTernary {
		t.Fatalf("got %v, want OpTernary", instrs[result].Op)
	}
	if len(instrs[result].Src) != 3 {
		t.Fatalf("ternary instruction must carry 3 operands (cond, then, else), got %+v", instrs[result])
	}
}

func TestRenameRegistersReusesFreedSlots(t *testing.T) {
	// Four independent loads combined pairwise then summed: the naive
	// virtual-register count is large, but at no point are more than a
	// couple of values live at once.
	root, err := Build("x y + z a + +", 4)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	root, err = Optimize(root)
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	instrs, result := lower(root)
	renamed, resultReg, numRegs := renameRegisters(instrs, result)

	if numRegs > len(instrs) {
		t.Fatalf("renaming must never use more physical registers than virtual ones: got %d for %d instrs", numRegs, len(instrs))
	}
	if resultReg < 0 || resultReg >= numRegs {
		t.Fatalf("result register %d out of range [0,%d)", resultReg, numRegs)
	}
	for _, ins := range renamed {
		if ins.Dst >= numRegs {
			t.Fatalf("instruction writes out-of-range register: %+v", ins)
		}
		for _, s := range ins.Src {
			if s >= numRegs {
				t.Fatalf("instruction reads out-of-range register: %+v", ins)
			}
		}
	}
}

func TestRenameRegistersKeepsResultAliveToEnd(t *testing.T) {
	root, err := Build("x y +", 2)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	instrs, result := lower(root)
	renamed, resultReg, _ := renameRegisters(instrs, result)
	last := renamed[len(renamed)-1]
	if last.Dst != resultReg {
		t.Fatalf("expected the final instruction to write the result register: last=%+v resultReg=%d", last, resultReg)
	}
}
