package core

// Ratio returns a similarity score in [0, 1] for two strings: twice the
// number of runes in matching blocks divided by the total rune count.
// Matching blocks are found Ratcliff/Obershelp style by repeatedly taking
// the longest common substring and recursing on both sides of it.  Two
// empty strings are identical.
func Ratio(a, b string) float64 {
	ar, br := []rune(a), []rune(b)
	total := len(ar) + len(br)
	if total == 0 {
		return 1.0
	}
	m := newMatcher(ar, br)
	return 2.0 * float64(m.matches()) / float64(total)
}

// autojunkMinLen is the length of b from which very frequent runes are
// ignored when anchoring matches.
const autojunkMinLen = 200

type matcher struct {
	a, b []rune
	b2j  map[rune][]int
}

func newMatcher(a, b []rune) *matcher {
	b2j := make(map[rune][]int)
	for j, r := range b {
		b2j[r] = append(b2j[r], j)
	}
	if n := len(b); n >= autojunkMinLen {
		popular := n/100 + 1
		for r, idx := range b2j {
			if len(idx) > popular {
				delete(b2j, r)
			}
		}
	}
	return &matcher{a: a, b: b, b2j: b2j}
}

// longestMatch finds the longest block a[i:i+k] == b[j:j+k] inside the
// given bounds.  Ties go to the block starting earliest in a, then in b.
func (m *matcher) longestMatch(alo, ahi, blo, bhi int) (besti, bestj, bestsize int) {
	besti, bestj = alo, blo
	j2len := map[int]int{}
	for i := alo; i < ahi; i++ {
		next := map[int]int{}
		for _, j := range m.b2j[m.a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			next[j] = k
			if k > bestsize {
				besti, bestj, bestsize = i-k+1, j-k+1, k
			}
		}
		j2len = next
	}
	return besti, bestj, bestsize
}

type span struct{ alo, ahi, blo, bhi int }

// matches sums the sizes of all matching blocks.
func (m *matcher) matches() int {
	total := 0
	queue := []span{{0, len(m.a), 0, len(m.b)}}
	for len(queue) > 0 {
		s := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		i, j, k := m.longestMatch(s.alo, s.ahi, s.blo, s.bhi)
		if k == 0 {
			continue
		}
		total += k
		if s.alo < i && s.blo < j {
			queue = append(queue, span{s.alo, i, s.blo, j})
		}
		if i+k < s.ahi && j+k < s.bhi {
			queue = append(queue, span{i + k, s.ahi, j + k, s.bhi})
		}
	}
	return total
}
