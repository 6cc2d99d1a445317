package aggregator

import (
	"bytes"
	"encoding/json"
	"slices"
	"strconv"
)

// DefaultTopN is the word cloud size used when Options.TopN is unset.
const DefaultTopN = 40

// WordCount is one word cloud entry.
type WordCount struct {
	Word  string
	Count int
}

// WordCloud is a frequency table ranked by count descending, ties broken by
// the order in which words were first seen. It marshals as a JSON object
// whose keys keep that rank.
type WordCloud []WordCount

// BuildWordCloud counts every token of every document in order and keeps the
// topN most frequent. topN <= 0 means DefaultTopN.
func BuildWordCloud(docs [][]string, topN int) WordCloud {
	if topN <= 0 {
		topN = DefaultTopN
	}

	index := make(map[string]int)
	cloud := WordCloud{}
	for _, doc := range docs {
		for _, tok := range doc {
			if i, ok := index[tok]; ok {
				cloud[i].Count++
				continue
			}
			index[tok] = len(cloud)
			cloud = append(cloud, WordCount{Word: tok, Count: 1})
		}
	}

	slices.SortStableFunc(cloud, func(a, b WordCount) int {
		return b.Count - a.Count
	})
	if len(cloud) > topN {
		cloud = cloud[:topN]
	}
	return cloud
}

// Count returns the count for word, or 0.
func (w WordCloud) Count(word string) int {
	for _, wc := range w {
		if wc.Word == word {
			return wc.Count
		}
	}
	return 0
}

// MarshalJSON encodes the cloud as {"word": count, ...} in rank order.
func (w WordCloud) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, wc := range w {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(wc.Word)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(wc.Count))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an ordered {"word": count} object.
func (w *WordCloud) UnmarshalJSON(data []byte) error {
	cloud := WordCloud{}
	err := decodeOrdered(data, func(key string, raw json.RawMessage) error {
		var n int
		if err := json.Unmarshal(raw, &n); err != nil {
			return err
		}
		cloud = append(cloud, WordCount{Word: key, Count: n})
		return nil
	})
	if err != nil {
		return err
	}
	*w = cloud
	return nil
}
