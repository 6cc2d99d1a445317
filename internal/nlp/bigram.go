package nlp

// JoinBigrams merges adjacent token pairs that occur at least minCount times
// across the whole batch into a single "a_b" token. Merging is greedy left
// to right, so a token takes part in at most one pair.
func JoinBigrams(docs [][]string, minCount int) [][]string {
	if minCount < 1 {
		minCount = 1
	}

	counts := make(map[[2]string]int)
	for _, doc := range docs {
		for i := 0; i+1 < len(doc); i++ {
			counts[[2]string{doc[i], doc[i+1]}]++
		}
	}

	out := make([][]string, len(docs))
	for d, doc := range docs {
		joined := make([]string, 0, len(doc))
		for i := 0; i < len(doc); i++ {
			if i+1 < len(doc) && counts[[2]string{doc[i], doc[i+1]}] >= minCount {
				joined = append(joined, doc[i]+"_"+doc[i+1])
				i++
				continue
			}
			joined = append(joined, doc[i])
		}
		out[d] = joined
	}
	return out
}
