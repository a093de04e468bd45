package session

import (
	"fmt"
	"hash/fnv"
	"math/rand"

	"github.com/dummy7679/testcraft/internal/quiz"
)

// displayOrder returns the question ids of a section in display order. When
// shuffling, the permutation derives from (attempt id, section index) only:
// re-entering or re-rendering the same attempt reproduces the same order,
// while a fresh attempt draws a different one. Always a bijection over the
// section's questions; scoring keys by question id and never sees this.
func displayOrder(attemptID string, section int, qs []quiz.Question, shuffle bool) []string {
	ids := make([]string, len(qs))
	for i, q := range qs {
		ids[i] = q.ID
	}
	if !shuffle || len(ids) < 2 {
		return ids
	}
	rng := rand.New(rand.NewSource(shuffleSeed(attemptID, section)))
	out := make([]string, len(ids))
	for i, j := range rng.Perm(len(ids)) {
		out[i] = ids[j]
	}
	return out
}

func shuffleSeed(attemptID string, section int) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%d", attemptID, section)
	return int64(h.Sum64())
}
