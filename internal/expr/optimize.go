package expr

import (
	"fmt"
	"math"
	"sort"
)

const maxOptimizationIterations = 1000

// Optimize applies the algebraic rewrite passes to a fixpoint: constant
// folding, algebraic identities, comparison/ternary simplification,
// additive/multiplicative term normalization, value numbering (structural
// hash-consing), and fused-multiply-add detection. It re-runs the whole
// pass set until nothing changes, guarding against a non-terminating
// rewrite with a hard iteration cap.
func Optimize(root *Node) (*Node, error) {
	for i := 0; i < maxOptimizationIterations; i++ {
		changed := false

		root, changed = simplify(root)

		var vnChanged bool
		root, vnChanged = assignValueNumbers(root)
		changed = changed || vnChanged

		// normalizeChains rebuilds +/- and ·// chains from scratch, which
		// can introduce fresh duplicate nodes for subtrees that were
		// already shared (e.g. a term appearing in two different
		// products) — value numbers are reassigned once more so
		// countUses/fuseFMA below see those duplicates unified back into
		// one pointer, the same way the teacher's FMA fusion relies on
		// hash-consing having already run.
		var ncChanged bool
		root, ncChanged = normalizeChains(root)
		changed = changed || ncChanged

		var vn2Changed bool
		root, vn2Changed = assignValueNumbers(root)
		changed = changed || vn2Changed

		uses := countUses(root)
		var fused bool
		root, fused = fuseFMA(root, uses)
		changed = changed || fused

		if !changed {
			return root, nil
		}
	}
	return nil, &OptimizationDidNotConverge{Iterations: maxOptimizationIterations}
}

// simplify applies constant folding and local algebraic identities
// post-order, returning the rewritten tree and whether anything changed.
func simplify(n *Node) (*Node, bool) {
	if n == nil {
		return nil, false
	}

	changed := false
	if n.Left != nil {
		var c bool
		n.Left, c = simplify(n.Left)
		changed = changed || c
	}
	if n.Right != nil {
		var c bool
		n.Right, c = simplify(n.Right)
		changed = changed || c
	}

	if repl, ok := foldConstant(n); ok {
		return repl, true
	}
	if repl, ok := applyIdentity(n); ok {
		return repl, true
	}
	if repl, ok := simplifyComparison(n); ok {
		return repl, true
	}
	if repl, ok := canonicalizeCommutative(n); ok {
		return repl, true
	}
	return n, changed
}

// canonicalizeCommutative moves a constant left operand of a commutative
// op to the right, the local rewrite feeding term canonicalization below
// (comparisons are deliberately excluded: reordering a<b changes its
// meaning).
func canonicalizeCommutative(n *Node) (*Node, bool) {
	switch n.Op {
	case OpAdd, OpMul, OpMin, OpMax, OpAnd, OpOr, OpXor:
		if isConst(n.Left) && !isConst(n.Right) {
			return newNode(n.Op, n.Imm, n.Right, n.Left), true
		}
	}
	return n, false
}

func isConst(n *Node) bool   { return n != nil && n.Op == OpConstant }
func constOf(v float64) *Node { return newNode(OpConstant, Imm{Const: v}, nil, nil) }

func truthy(v float64) bool { return v > 0 }
func boolf(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// foldConstant evaluates n directly when every operand it needs is a
// constant leaf.
func foldConstant(n *Node) (*Node, bool) {
	switch n.Op {
	case OpConstant, OpLoad, OpMux:
		return n, false
	case OpSqrt, OpAbs, OpNeg, OpNot, OpExp, OpLog, OpSin, OpCos:
		if !isConst(n.Left) {
			return n, false
		}
		a := n.Left.Imm.Const
		return constOf(evalUnary(n.Op, a)), true
	case OpAdd, OpSub, OpMul, OpDiv, OpMax, OpMin, OpAnd, OpOr, OpXor, OpPow, OpCmp:
		if !isConst(n.Left) || !isConst(n.Right) {
			return n, false
		}
		a, b := n.Left.Imm.Const, n.Right.Imm.Const
		return constOf(evalBinary(n.Op, n.Imm, a, b)), true
	case OpTernary:
		if !isConst(n.Left) {
			return n, false
		}
		if truthy(n.Left.Imm.Const) {
			return n.Right.Left, true // then branch
		}
		return n.Right.Right, true // else branch
	}
	return n, false
}

// applyIdentity rewrites a subset of the algebraic identities named in
// the filter's source-language contract.
func applyIdentity(n *Node) (*Node, bool) {
	switch n.Op {
	case OpMul:
		if isConst(n.Right) && n.Right.Imm.Const == 0 {
			return constOf(0), true
		}
		if isConst(n.Left) && n.Left.Imm.Const == 0 {
			return constOf(0), true
		}
		if isConst(n.Right) && n.Right.Imm.Const == 1 {
			return n.Left, true
		}
		if isConst(n.Left) && n.Left.Imm.Const == 1 {
			return n.Right, true
		}
	case OpDiv:
		if isConst(n.Left) && n.Left.Imm.Const == 0 {
			return constOf(0), true
		}
		if isConst(n.Right) && n.Right.Imm.Const == 1 {
			return n.Left, true
		}
	case OpAdd:
		if isConst(n.Right) && n.Right.Imm.Const == 0 {
			return n.Left, true
		}
		if isConst(n.Left) && n.Left.Imm.Const == 0 {
			return n.Right, true
		}
	case OpSub:
		if isConst(n.Right) && n.Right.Imm.Const == 0 {
			return n.Left, true
		}
	case OpPow:
		if isConst(n.Right) && n.Right.Imm.Const == 1 {
			return n.Left, true
		}
		if isConst(n.Right) && n.Right.Imm.Const == 0 {
			return constOf(1), true
		}
	case OpLog:
		if n.Left.Op == OpExp {
			return n.Left.Left, true
		}
	case OpExp:
		if n.Left.Op == OpLog {
			return n.Left.Left, true
		}
	case OpTernary:
		if isConst(n.Left) {
			if n.Left.Imm.Const == 0 {
				return n.Right.Right, true
			}
			if n.Left.Imm.Const == 1 {
				return n.Right.Left, true
			}
		}
		// !(a<b) → a≥b as a standalone identity, and !a?x:y → a?y:x.
		if n.Left.Op == OpNot {
			return newNode(OpTernary, Imm{}, n.Left.Left, newNode(OpMux, Imm{}, n.Right.Right, n.Right.Left)), true
		}
		if n.Left.Op == OpCmp && n.Left.Imm.Cmp == CmpLE {
			flipped := newNode(OpCmp, Imm{Cmp: CmpGT}, n.Left.Left, n.Left.Right)
			return newNode(OpTernary, Imm{}, flipped, newNode(OpMux, Imm{}, n.Right.Right, n.Right.Left)), true
		}
	case OpNot:
		if n.Left.Op == OpCmp {
			complement, ok := complementCmp(n.Left.Imm.Cmp)
			if ok {
				return newNode(OpCmp, Imm{Cmp: complement}, n.Left.Left, n.Left.Right), true
			}
		}
	}
	return n, false
}

// complementCmp returns the comparison kind whose result is always the
// logical negation of kind, when one single-opcode complement exists.
func complementCmp(kind CmpKind) (CmpKind, bool) {
	switch kind {
	case CmpLT:
		return CmpGE, true
	case CmpGE:
		return CmpLT, true
	case CmpGT:
		return CmpLE, true
	case CmpLE:
		return CmpGT, true
	default:
		return 0, false // EQ has no single-opcode complement in this instruction set
	}
}

// simplifyComparison folds same-operand comparisons/ternaries and
// recognizes min/max written as a ternary over a comparison.
func simplifyComparison(n *Node) (*Node, bool) {
	switch n.Op {
	case OpCmp:
		if structEqual(n.Left, n.Right) {
			switch n.Imm.Cmp {
			case CmpLT, CmpGT:
				return constOf(0), true
			default: // EQ, GE, LE
				return constOf(1), true
			}
		}
	case OpTernary:
		thenV, elseV := n.Right.Left, n.Right.Right
		if structEqual(thenV, elseV) {
			return thenV, true
		}
		if n.Left.Op == OpCmp {
			a, b, kind := n.Left.Left, n.Left.Right, n.Left.Imm.Cmp
			switch {
			case kind == CmpLT && structEqual(thenV, a) && structEqual(elseV, b):
				return newNode(OpMin, Imm{}, a, b), true
			case kind == CmpLT && structEqual(thenV, b) && structEqual(elseV, a):
				return newNode(OpMax, Imm{}, a, b), true
			case kind == CmpGT && structEqual(thenV, a) && structEqual(elseV, b):
				return newNode(OpMax, Imm{}, a, b), true
			case kind == CmpGT && structEqual(thenV, b) && structEqual(elseV, a):
				return newNode(OpMin, Imm{}, a, b), true
			}
		}
	}
	return n, false
}

// structEqual reports whether two subtrees compute the same value: same
// opcode, same immediate, and structurally equal children.
func structEqual(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Op != b.Op {
		return false
	}
	if a.Op == OpConstant {
		return a.Imm.Const == b.Imm.Const
	}
	if a.Op == OpLoad {
		return a.Imm.ClipIndex == b.Imm.ClipIndex
	}
	if a.Op == OpCmp && a.Imm.Cmp != b.Imm.Cmp {
		return false
	}
	return structEqual(a.Left, b.Left) && structEqual(a.Right, b.Right)
}

// structKey builds a string uniquely identifying n's shape for hash-consing,
// assuming children have already been numbered.
func structKey(n *Node) string {
	left, right := -1, -1
	if n.Left != nil {
		left = n.Left.ValueNum
	}
	if n.Right != nil {
		right = n.Right.ValueNum
	}
	switch n.Op {
	case OpConstant:
		return fmt.Sprintf("const:%v", n.Imm.Const)
	case OpLoad:
		return fmt.Sprintf("load:%d", n.Imm.ClipIndex)
	case OpCmp:
		return fmt.Sprintf("cmp:%d:%d,%d", n.Imm.Cmp, left, right)
	default:
		return fmt.Sprintf("%d:%d,%d", n.Op, left, right)
	}
}

// assignValueNumbers performs a post-order structural hash-consing pass:
// equal sub-trees (by structKey) are unified into one shared node and
// receive the same value number. Mux meta-nodes are numbered but never
// unified, since they are a lowering convenience rather than a computed
// value.
func assignValueNumbers(root *Node) (*Node, bool) {
	canon := map[string]*Node{}
	next := 0
	changed := false

	var visit func(n *Node) *Node
	visit = func(n *Node) *Node {
		if n == nil {
			return nil
		}
		n.Left = visit(n.Left)
		n.Right = visit(n.Right)

		if n.Op == OpMux {
			if n.ValueNum != next {
				changed = true
			}
			n.ValueNum = next
			next++
			return n
		}

		key := structKey(n)
		if existing, ok := canon[key]; ok {
			if existing != n {
				changed = true
			}
			return existing
		}
		n.ValueNum = next
		next++
		canon[key] = n
		return n
	}
	return visit(root), changed
}

// countUses returns, for every node reachable from root, how many times
// it appears as some other node's child — its use count after sharing.
func countUses(root *Node) map[*Node]int {
	counts := map[*Node]int{}
	visited := map[*Node]bool{}

	var visit func(n *Node)
	visit = func(n *Node) {
		if n == nil || visited[n] {
			return
		}
		visited[n] = true
		if n.Left != nil {
			counts[n.Left]++
			visit(n.Left)
		}
		if n.Right != nil {
			counts[n.Right]++
			visit(n.Right)
		}
	}
	visit(root)
	return counts
}

// fuseFMA replaces Add/Sub nodes whose multiply operand is used exactly
// once (no other consumer of that product) with a fused multiply-add
// node. Only the additive and left-operand-subtractive forms are pattern
// matched here; the interpreter still supports all four sign variants so
// a future fusion rule can emit them.
func fuseFMA(n *Node, uses map[*Node]int) (*Node, bool) {
	if n == nil {
		return nil, false
	}
	changed := false
	if n.Left != nil {
		var c bool
		n.Left, c = fuseFMA(n.Left, uses)
		changed = changed || c
	}
	if n.Right != nil {
		var c bool
		n.Right, c = fuseFMA(n.Right, uses)
		changed = changed || c
	}

	switch n.Op {
	case OpAdd:
		if n.Left.Op == OpMul && uses[n.Left] <= 1 {
			return newNode(OpFMA, Imm{FMA: FMADD}, n.Left, n.Right), true
		}
		if n.Right.Op == OpMul && uses[n.Right] <= 1 {
			return newNode(OpFMA, Imm{FMA: FMADD}, n.Right, n.Left), true
		}
	case OpSub:
		if n.Left.Op == OpMul && uses[n.Left] <= 1 {
			return newNode(OpFMA, Imm{FMA: FMSUB}, n.Left, n.Right), true
		}
	}
	return n, changed
}

// basePower is one base/exponent factor of a normalized product, sorted
// into canonical order within the product or additive term it belongs to.
type basePower struct {
	base *Node
	exp  float64
}

// termCategory buckets a node for canonical ordering: complex subtrees
// sort before memory loads, which sort before constants (grounded on the
// original engine's ExponentMap::CanonicalCompare).
func termCategory(n *Node) int {
	switch n.Op {
	case OpConstant:
		return 2
	case OpLoad:
		return 1
	default:
		return 0
	}
}

// termLess is the strict total order canonical chains are sorted by:
// category first, then clip index for loads, value for constants, and
// value number (hash-consed identity) for everything else.
func termLess(a, b *Node) bool {
	if a == b {
		return false
	}
	ca, cb := termCategory(a), termCategory(b)
	if ca != cb {
		return ca < cb
	}
	switch ca {
	case 1:
		return a.Imm.ClipIndex < b.Imm.ClipIndex
	case 2:
		return a.Imm.Const < b.Imm.Const
	default:
		return a.ValueNum < b.ValueNum
	}
}

func powerLess(a, b basePower) bool {
	if a.base != b.base {
		return termLess(a.base, b.base)
	}
	return a.exp < b.exp
}

// termLexLess orders two terms (each a sorted base/exponent list)
// lexicographically by their factors, shorter-prefix-wins on a tie —
// the comparator additive-sequence canonicalization sorts by.
func termLexLess(a, b []basePower) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if powerLess(a[i], b[i]) {
			return true
		}
		if powerLess(b[i], a[i]) {
			return false
		}
	}
	return len(a) < len(b)
}

func samePowers(a, b []basePower) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].base != b[i].base || a[i].exp != b[i].exp {
			return false
		}
	}
	return true
}

// productResult accumulates a flattened ·// chain: order lists each
// distinct base in first-encounter order, exps holds its net exponent,
// occurOrd lists every leaf occurrence (with repeats) in encounter order
// for the canonical-order check, and leaves/divs count the raw factor
// occurrences and division operators seen before any combining.
type productResult struct {
	order    []*Node
	exps     map[*Node]float64
	coeff    float64
	leaves   int
	divs     int
	occurOrd []*Node
}

// flattenProduct decomposes a ·//^const chain into base/exponent
// contributions, folding constant factors into coeff, grounded on the
// original engine's ExponentMap expansion of MUL/DIV/POW-by-constant.
func flattenProduct(n *Node, sign float64, res *productResult) {
	switch {
	case isConst(n):
		res.coeff *= math.Pow(n.Imm.Const, sign)
	case n.Op == OpMul:
		flattenProduct(n.Left, sign, res)
		flattenProduct(n.Right, sign, res)
	case n.Op == OpDiv:
		res.divs++
		flattenProduct(n.Left, sign, res)
		flattenProduct(n.Right, -sign, res)
	case n.Op == OpPow && isConst(n.Right):
		flattenProduct(n.Left, sign*n.Right.Imm.Const, res)
	default:
		if _, seen := res.exps[n]; !seen {
			res.order = append(res.order, n)
		}
		res.exps[n] += sign
		res.leaves++
		res.occurOrd = append(res.occurOrd, n)
	}
}

func sortedPowers(order []*Node, exps map[*Node]float64) []basePower {
	var out []basePower
	for _, b := range order {
		if e := exps[b]; e != 0 {
			out = append(out, basePower{base: b, exp: e})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return termLess(out[i].base, out[j].base) })
	return out
}

// buildProduct rebuilds a sorted base/exponent list (plus scalar
// coefficient) into a tree, with any coefficient other than 1 moved to
// the right per the canonicalization rule.
func buildProduct(powers []basePower, coeff float64) *Node {
	var head *Node
	for _, p := range powers {
		term := powNode(p.base, p.exp)
		if head == nil {
			head = term
		} else {
			head = newNode(OpMul, Imm{}, head, term)
		}
	}
	if coeff == 1 {
		if head == nil {
			return constOf(1)
		}
		return head
	}
	if head == nil {
		return constOf(coeff)
	}
	return newNode(OpMul, Imm{}, head, constOf(coeff))
}

func powNode(base *Node, exp float64) *Node {
	if exp == 1 {
		return base
	}
	return newNode(OpPow, Imm{}, base, constOf(exp))
}

func isCanonicalOrder(occur []*Node) bool {
	for i := 1; i < len(occur); i++ {
		if termLess(occur[i], occur[i-1]) {
			return false
		}
	}
	return true
}

// normalizeMultiplicativeChain gathers n's entire ·// chain into a
// base/exponent map and only rebuilds it when doing so is an actual
// improvement: the distinct factors plus one slot for the coefficient
// number fewer than the leaf occurrences (like terms combined), the
// factors aren't already in canonical order, or a
// division is present (grounded on
// analyzeMultiplicativeExpression's `numTerms() < origNumTerms ||
// !isCanonical() || numDivs` test — an already-minimal, already-ordered
// product such as x*x is left untouched rather than rewritten to x**2).
func normalizeMultiplicativeChain(n *Node) (*Node, bool) {
	res := &productResult{exps: map[*Node]float64{}, coeff: 1}
	flattenProduct(n, 1, res)

	distinct := 0
	for _, b := range res.order {
		if res.exps[b] != 0 {
			distinct++
		}
	}
	numTerms := distinct + 1
	canonical := isCanonicalOrder(res.occurOrd)

	if numTerms >= res.leaves && canonical && res.divs == 0 {
		return n, false
	}
	return buildProduct(sortedPowers(res.order, res.exps), res.coeff), true
}

// addTerm is one +/- separated term of an additive chain: a product
// (its base/exponent factors, already sorted) times a scalar coefficient.
type addTerm struct {
	powers []basePower
	coeff  float64
}

type additiveResult struct {
	terms  []*addTerm
	scalar float64
	leaves int
}

// flattenAdditive decomposes a +/- chain into terms, each term itself
// flattened as a product so "2*x + x" combines into a single term.
func flattenAdditive(n *Node, sign float64, res *additiveResult) {
	switch {
	case isConst(n):
		res.scalar += sign * n.Imm.Const
		res.leaves++
	case n.Op == OpAdd:
		flattenAdditive(n.Left, sign, res)
		flattenAdditive(n.Right, sign, res)
	case n.Op == OpSub:
		flattenAdditive(n.Left, sign, res)
		flattenAdditive(n.Right, -sign, res)
	default:
		res.leaves++
		pr := &productResult{exps: map[*Node]float64{}, coeff: 1}
		flattenProduct(n, 1, pr)
		powers := sortedPowers(pr.order, pr.exps)
		if len(powers) == 0 {
			res.scalar += sign * pr.coeff
			return
		}
		res.terms = append(res.terms, &addTerm{powers: powers, coeff: sign * pr.coeff})
	}
}

// combineLikeAdditiveTerms merges terms with identical factors, keeping
// each surviving term at its first-occurrence position, and drops any
// term whose combined coefficient canceled to zero.
func combineLikeAdditiveTerms(terms []*addTerm) []*addTerm {
	var out []*addTerm
	for _, t := range terms {
		merged := false
		for _, o := range out {
			if samePowers(t.powers, o.powers) {
				o.coeff += t.coeff
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, &addTerm{powers: t.powers, coeff: t.coeff})
		}
	}
	var nonzero []*addTerm
	for _, t := range out {
		if t.coeff != 0 {
			nonzero = append(nonzero, t)
		}
	}
	return nonzero
}

func isCanonicalTermOrder(terms []*addTerm) bool {
	for i := 1; i < len(terms); i++ {
		if termLexLess(terms[i].powers, terms[i-1].powers) {
			return false
		}
	}
	return true
}

func buildAdditive(terms []*addTerm, scalar float64) *Node {
	var head *Node
	for _, t := range terms {
		term := buildProduct(t.powers, t.coeff)
		if head == nil {
			head = term
		} else {
			head = newNode(OpAdd, Imm{}, head, term)
		}
	}
	if scalar == 0 {
		if head == nil {
			return constOf(0)
		}
		return head
	}
	if head == nil {
		return constOf(scalar)
	}
	return newNode(OpAdd, Imm{}, head, constOf(scalar))
}

// normalizeAdditiveChain is analyzeAdditiveExpression's gather/combine/
// canonicalize/emit cycle: rebuild only when like terms actually combine
// or the term order isn't already canonical.
func normalizeAdditiveChain(n *Node) (*Node, bool) {
	res := &additiveResult{}
	flattenAdditive(n, 1, res)
	combined := combineLikeAdditiveTerms(res.terms)

	numTerms := len(combined) + 1
	canonical := isCanonicalTermOrder(combined)

	if numTerms >= res.leaves && canonical {
		return n, false
	}
	sort.SliceStable(combined, func(i, j int) bool {
		return termLexLess(combined[i].powers, combined[j].powers)
	})
	return buildAdditive(combined, res.scalar), true
}

// normalizeChains walks the tree bottom-up, rewriting every +/- and
// ·// chain it finds into its canonical combined/sorted form. A chain
// nested inside a larger chain of the same kind is normalized twice —
// once on its own, then again when the enclosing chain re-flattens
// through it — which is harmless: both produce the same canonical
// result, so the second pass is simply a no-op.
func normalizeChains(n *Node) (*Node, bool) {
	if n == nil {
		return nil, false
	}
	changed := false
	if n.Left != nil {
		var c bool
		n.Left, c = normalizeChains(n.Left)
		changed = changed || c
	}
	if n.Right != nil {
		var c bool
		n.Right, c = normalizeChains(n.Right)
		changed = changed || c
	}

	switch n.Op {
	case OpAdd, OpSub:
		if r, ok := normalizeAdditiveChain(n); ok {
			return r, true
		}
	case OpMul, OpDiv:
		if r, ok := normalizeMultiplicativeChain(n); ok {
			return r, true
		}
	}
	return n, changed
}
