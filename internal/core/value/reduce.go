package value

import (
	"sort"
	"strings"

	"github.com/mpvl/unique"

	cerrors "github.com/archetype-run/archetype/internal/core/errors"
)

// MaxReduceVars bounds the number of distinct atomic propositions a
// reduce/sub call will brute-force over; spec §4.1 requires this bound
// be signaled as a FormatError, not silently truncated.
const MaxReduceVars = 14

// atomSet accumulates distinct propositional atoms (an atom is any
// subexpression that is not itself a structural ||/&&/! connective) in
// first-appearance order, keyed by their printed text so syntactically
// identical atoms collapse to one truth variable.
type atomSet struct {
	atoms []Expr
	index map[string]int
}

func newAtomSet() *atomSet { return &atomSet{index: map[string]int{}} }

func (s *atomSet) collect(e Expr) {
	switch x := e.(type) {
	case *Binary:
		if x.Op == OpOr || x.Op == OpAnd {
			s.collect(x.L)
			s.collect(x.R)
			return
		}
	case *Unary:
		if x.Op == OpNot {
			s.collect(x.X)
			return
		}
	}
	key := printExpr(e, 0)
	if _, ok := s.index[key]; !ok {
		s.index[key] = len(s.atoms)
		s.atoms = append(s.atoms, e)
	}
}

// evalBool walks e, resolving connectives structurally and looking every
// atom's truth value up in assignment.
func evalBool(e Expr, atoms *atomSet, assignment []bool) bool {
	switch x := e.(type) {
	case *Binary:
		if x.Op == OpOr {
			return evalBool(x.L, atoms, assignment) || evalBool(x.R, atoms, assignment)
		}
		if x.Op == OpAnd {
			return evalBool(x.L, atoms, assignment) && evalBool(x.R, atoms, assignment)
		}
	case *Unary:
		if x.Op == OpNot {
			return !evalBool(x.X, atoms, assignment)
		}
	}
	idx := atoms.index[printExpr(e, 0)]
	return assignment[idx]
}

// term is a partial assignment over an atomSet: term[i] is 1 (true),
// 0 (false) or -1 (don't care) for atom i.
type term []int8

func (t term) covers(minterm int) bool {
	for i, v := range t {
		if v == -1 {
			continue
		}
		bit := (minterm >> uint(i)) & 1
		if int8(bit) != v {
			return false
		}
	}
	return true
}

func (t term) key() string {
	var b strings.Builder
	for _, v := range t {
		switch v {
		case -1:
			b.WriteByte('-')
		case 0:
			b.WriteByte('0')
		case 1:
			b.WriteByte('1')
		}
	}
	return b.String()
}

func combine(a, b term) (term, bool) {
	diff := -1
	out := make(term, len(a))
	for i := range a {
		if a[i] == b[i] {
			out[i] = a[i]
			continue
		}
		if a[i] == -1 || b[i] == -1 {
			return nil, false
		}
		if diff != -1 {
			return nil, false
		}
		diff = i
		out[i] = -1
	}
	return out, diff != -1
}

// quineMcCluskey reduces the set of true minterms (each a bitmask over n
// atoms) to an essential-prime-implicant cover. The cover is not
// guaranteed globally minimal (Petrick's method is approximated by a
// deterministic greedy selection), but it is deterministic and sound.
func quineMcCluskey(minterms []int, n int) []term {
	if len(minterms) == 0 {
		return nil
	}
	if len(minterms) == 1<<uint(n) {
		return []term{make(term, n, n)} // all don't-care: tautology
	}
	groups := map[int][]term{}
	for _, m := range minterms {
		t := make(term, n)
		ones := 0
		for i := 0; i < n; i++ {
			bit := int8((m >> uint(i)) & 1)
			t[i] = bit
			ones += int(bit)
		}
		groups[ones] = append(groups[ones], t)
	}

	var primes []term
	used := map[string]bool{}
	for {
		next := map[int][]term{}
		seen := map[string]bool{}
		combinedAny := false
		keys := sortedIntKeys(groups)
		for gi := 0; gi < len(keys)-1; gi++ {
			g1, g2 := groups[keys[gi]], groups[keys[gi+1]]
			for _, a := range g1 {
				for _, b := range g2 {
					if out, ok := combine(a, b); ok {
						used[a.key()] = true
						used[b.key()] = true
						combinedAny = true
						k := out.key()
						if !seen[k] {
							seen[k] = true
							ones := countOnes(out)
							next[ones] = append(next[ones], out)
						}
					}
				}
			}
		}
		for _, g := range groups {
			for _, t := range g {
				if !used[t.key()] {
					primes = append(primes, t)
				}
			}
		}
		if !combinedAny {
			break
		}
		groups = next
		used = map[string]bool{}
	}
	return dedupTerms(primes, minterms, n)
}

func sortedIntKeys(m map[int][]term) []int {
	ks := make([]int, 0, len(m))
	for k := range m {
		ks = append(ks, k)
	}
	sort.Ints(ks)
	return ks
}

func countOnes(t term) int {
	n := 0
	for _, v := range t {
		if v == 1 {
			n++
		}
	}
	return n
}

// dedupTerms deduplicates prime implicants and greedily selects an
// essential cover of minterms, processing candidates in a fixed
// deterministic order (by key) so the result is reproducible.
func dedupTerms(primes []term, minterms []int, n int) []term {
	keys := make([]string, len(primes))
	byKey := map[string]term{}
	for i, t := range primes {
		k := t.key()
		keys[i] = k
		byKey[k] = t
	}
	unique.Strings(&keys)

	remaining := map[int]bool{}
	for _, m := range minterms {
		remaining[m] = true
	}

	var cover []term
	for len(remaining) > 0 {
		bestKey := ""
		bestCount := -1
		for _, k := range keys {
			t := byKey[k]
			count := 0
			for m := range remaining {
				if t.covers(m) {
					count++
				}
			}
			if count > bestCount {
				bestCount = count
				bestKey = k
			}
		}
		if bestCount <= 0 {
			break
		}
		t := byKey[bestKey]
		cover = append(cover, t)
		for m := range remaining {
			if t.covers(m) {
				delete(remaining, m)
			}
		}
	}
	sort.Slice(cover, func(i, j int) bool { return cover[i].key() < cover[j].key() })
	return cover
}

// atomLiteralText renders atom under the given truth assignment, applying
// the synthetic-equality collapse: `x == true` prints as `x`, `x == false`
// prints as `!x` (spec §4.1's literal() rule).
func atomLiteralText(atom Expr, truthy bool) string {
	if b, ok := atom.(*Binary); ok && b.Op == OpEq {
		if rl, ok := b.R.(*Lit); ok && rl.V.Kind() == BoolKind {
			eqTrue := rl.V.b
			want := truthy == eqTrue
			x := printExpr(b.L, 4)
			if want {
				return x
			}
			return "!" + x
		}
	}
	if truthy {
		return printExpr(atom, 4)
	}
	return "!" + printExpr(atom, 4)
}

func termToString(t term, atoms []Expr) string {
	var lits []string
	for i, v := range t {
		if v == -1 {
			continue
		}
		lits = append(lits, atomLiteralText(atoms[i], v == 1))
	}
	if len(lits) == 0 {
		return "true"
	}
	sort.Strings(lits)
	return strings.Join(lits, " && ")
}

// Reduce converts e into a sum-of-products over its free atomic terms and
// minimizes it with a Quine–McCluskey-style prime-implicant cover (spec
// §4.1). Pure-literal expressions (no unresolved atoms reachable under
// NoLookup) are evaluated directly first.
func (e *Expression) Reduce() (*Expression, error) {
	if v, err := e.Eval(nil); err == nil {
		b, _ := v.AsBool()
		if b {
			return Parse("true")
		}
		return Parse("false")
	}

	atoms := newAtomSet()
	atoms.collect(e.root)
	n := len(atoms.atoms)
	if n > MaxReduceVars {
		return nil, &cerrors.ParseError{Text: e.src, Reason: "too many free variables to reduce"}
	}

	var minterms []int
	total := 1 << uint(n)
	for m := 0; m < total; m++ {
		assignment := make([]bool, n)
		for i := 0; i < n; i++ {
			assignment[i] = (m>>uint(i))&1 == 1
		}
		if evalBool(e.root, atoms, assignment) {
			minterms = append(minterms, m)
		}
	}

	if len(minterms) == 0 {
		return Parse("false")
	}
	cover := quineMcCluskey(minterms, n)
	if len(cover) == 0 {
		return Parse("false")
	}

	var products []string
	for _, t := range cover {
		products = append(products, termToString(t, atoms.atoms))
	}
	unique.Strings(&products)

	canonical := strings.Join(products, " || ")
	return Parse(canonical)
}

// Sub implements the `A - B` operator used during variation filtering
// (spec §4.1): conjuncts of A already implied by B are replaced with
// `true`, and the result is reduced.
func Sub(a, b *Expression) (*Expression, error) {
	atoms := newAtomSet()
	atoms.collect(a.root)
	atoms.collect(b.root)
	n := len(atoms.atoms)
	if n > MaxReduceVars {
		return nil, &cerrors.ParseError{Text: a.src, Reason: "too many free variables to compute sub"}
	}

	total := 1 << uint(n)
	var aMinterms, bMinterms []int
	assignments := make([][]bool, total)
	for m := 0; m < total; m++ {
		assignment := make([]bool, n)
		for i := 0; i < n; i++ {
			assignment[i] = (m>>uint(i))&1 == 1
		}
		assignments[m] = assignment
		if evalBool(a.root, atoms, assignment) {
			aMinterms = append(aMinterms, m)
		}
		if evalBool(b.root, atoms, assignment) {
			bMinterms = append(bMinterms, m)
		}
	}
	if len(aMinterms) == 0 {
		return Parse("false")
	}
	cover := quineMcCluskey(aMinterms, n)

	bTrue := map[int]bool{}
	for _, m := range bMinterms {
		bTrue[m] = true
	}

	var products []string
	for _, t := range cover {
		pruned := make(term, n)
		copy(pruned, t)
		for i, v := range t {
			if v == -1 {
				continue
			}
			implied := true
			for m := 0; m < total; m++ {
				if !bTrue[m] {
					continue
				}
				bit := int8((m >> uint(i)) & 1)
				if bit != v {
					implied = false
					break
				}
			}
			if implied {
				pruned[i] = -1
			}
		}
		products = append(products, termToString(pruned, atoms.atoms))
	}
	unique.Strings(&products)
	canonical := strings.Join(products, " || ")
	reduced, err := Parse(canonical)
	if err != nil {
		return nil, err
	}
	return reduced.Reduce()
}
