package merge

// Merge2 drains a and b into a single sorted sequence without building
// a tournament tree: two inputs need only a single compare per step.
// Ties favor a, matching Tree's stable tie-break.
func Merge2[T any](a, b Source[T], less Less[T]) []T {
	out := make([]T, 0)
	for !a.Empty() && !b.Empty() {
		if less(b.Peek(), a.Peek()) {
			out = append(out, b.Peek())
			b.Next()
		} else {
			out = append(out, a.Peek())
			a.Next()
		}
	}
	out = drainRemainder(out, a)
	out = drainRemainder(out, b)
	return out
}

// Merge3 drains three inputs. Rather than recomputing the full
// three-way order from scratch at every step, it keeps the three heads
// in a sorted slot order and, after the winning slot's input advances,
// reinserts only that slot via at most two compares against its
// neighbors — the six possible relative orders of three elements are
// exactly the six arrangements of this three-slot array, so this is
// the cascading-compare analogue of recomputing all six orderings
// explicitly.
func Merge3[T any](a, b, c Source[T], less Less[T]) []T {
	return mergeSmall([]Source[T]{a, b, c}, less)
}

// Merge4 is Merge3's four-input counterpart, using the same
// sorted-slot cascading-compare technique.
func Merge4[T any](a, b, c, d Source[T], less Less[T]) []T {
	return mergeSmall([]Source[T]{a, b, c, d}, less)
}

// mergeSmall implements the shared cascading-compare merge used by
// Merge3 and Merge4: slots holds the live input indices in sorted
// order of current head value; each step emits slots[0] and
// reinserts its refreshed value by walking right only as far as
// necessary, which is O(1) amortized for small, fixed arities instead
// of the O(log k) a tournament tree would cost.
func mergeSmall[T any](srcs []Source[T], less Less[T]) []T {
	slots := make([]int, 0, len(srcs))
	for i, s := range srcs {
		if !s.Empty() {
			slots = append(slots, i)
		}
	}
	sortSlotsByHead(slots, srcs, less)

	out := make([]T, 0)
	for len(slots) > 0 {
		winner := slots[0]
		out = append(out, srcs[winner].Peek())
		srcs[winner].Next()
		if srcs[winner].Empty() {
			slots = slots[1:]
			continue
		}
		// reinsert the refreshed head into its sorted position among
		// the remaining slots, which are already mutually ordered.
		v := srcs[winner].Peek()
		i := 1
		for i < len(slots) && slotBefore(slots[i], srcs[slots[i]].Peek(), winner, v, less) {
			slots[i-1] = slots[i]
			i++
		}
		slots[i-1] = winner
	}
	return out
}

// slotBefore reports whether slot j (holding value vj) should sort
// ahead of slot i (holding value vi): strictly smaller wins, and on a
// tie the lower source index wins, matching Tree's stable tie-break.
func slotBefore[T any](j int, vj T, i int, vi T, less Less[T]) bool {
	if less(vj, vi) {
		return true
	}
	if less(vi, vj) {
		return false
	}
	return j < i
}

func sortSlotsByHead[T any](slots []int, srcs []Source[T], less Less[T]) {
	for i := 1; i < len(slots); i++ {
		j := i
		for j > 0 && slotBefore(slots[j], srcs[slots[j]].Peek(), slots[j-1], srcs[slots[j-1]].Peek(), less) {
			slots[j], slots[j-1] = slots[j-1], slots[j]
			j--
		}
	}
}

func drainRemainder[T any](out []T, s Source[T]) []T {
	for !s.Empty() {
		out = append(out, s.Peek())
		s.Next()
	}
	return out
}
