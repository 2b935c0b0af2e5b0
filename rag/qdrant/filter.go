package qdrant

import "github.com/smallnest/campusrag/rag"

type matchValue struct {
	Value any `json:"value"`
}

type fieldCondition struct {
	Key   string     `json:"key"`
	Match matchValue `json:"match"`
}

type filterJSON struct {
	Must    []fieldCondition `json:"must,omitempty"`
	MustNot []fieldCondition `json:"must_not,omitempty"`
}

func encodeFilter(f *rag.Filter) *filterJSON {
	if f.Empty() {
		return nil
	}
	return &filterJSON{
		Must:    encodeConditions(f.Must),
		MustNot: encodeConditions(f.MustNot),
	}
}

func encodeConditions(cs []rag.Condition) []fieldCondition {
	if len(cs) == 0 {
		return nil
	}
	out := make([]fieldCondition, len(cs))
	for i, c := range cs {
		out[i] = fieldCondition{Key: c.Key, Match: matchValue{Value: c.Value}}
	}
	return out
}
