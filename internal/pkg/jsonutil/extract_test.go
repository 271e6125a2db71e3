package jsonutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, true},
		{"object with prose", `前面一些分析 {"a":1} 后面一些话`, `{"a":1}`, true},
		{"fenced json", "```json\n{\"a\":1}\n```", `{"a":1}`, true},
		{"fence without language", "```\n{\"a\":1}\n```", `{"a":1}`, true},
		{"nested object", `{"a":{"b":[1,2]}}`, `{"a":{"b":[1,2]}}`, true},
		{"brace inside string", `{"a":"}"}`, `{"a":"}"}`, true},
		{"escaped quote", `{"a":"say \"hi\""}`, `{"a":"say \"hi\""}`, true},
		{"array", `结果: [1,2,3]`, `[1,2,3]`, true},
		{"unbalanced", `{"a":1`, "", false},
		{"empty", "", "", false},
		{"no json", "这里没有任何结构化内容", "", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := ExtractJSON(c.in)
			assert.Equal(t, c.ok, ok)
			assert.Equal(t, c.want, got)
		})
	}
}
