// Package tokens provides token accounting for message content. The default
// counter resolves a model identifier to an encoding family and applies a
// deterministic per-encoding estimate. Exact byte-pair tokenization lives
// behind the Counter interface so deployments can swap in a real encoder
// without touching the write path.
package tokens

import (
	"fmt"
	"sort"
	"strings"
)

// Counter counts tokens for content under a given model's encoding.
// Implementations must be deterministic for a given (content, model) pair
// and safe for concurrent use.
type Counter interface {
	Count(content, model string) (int, error)
}

// UnsupportedModelError reports a model identifier with no known encoding.
type UnsupportedModelError struct {
	Model string
}

func (e *UnsupportedModelError) Error() string {
	return fmt.Sprintf("unsupported model: %q", e.Model)
}

// encoding holds the shape parameters of one encoding family. Token counts
// are estimated as ceil(bytes/charsPerToken) with a floor of one token per
// whitespace-separated word; charsPerToken is expressed as a rational so the
// arithmetic stays integral.
type encoding struct {
	name     string
	charsNum int // bytes per token numerator
	charsDen int // bytes per token denominator
}

var encodings = map[string]encoding{
	// newer OpenAI models; denser vocabulary packs more bytes per token
	"o200k_base": {name: "o200k_base", charsNum: 9, charsDen: 2},
	// gpt-4 / gpt-3.5 family, ~4 chars per token for English text
	"cl100k_base": {name: "cl100k_base", charsNum: 4, charsDen: 1},
	// legacy completion models
	"p50k_base": {name: "p50k_base", charsNum: 4, charsDen: 1},
	"r50k_base": {name: "r50k_base", charsNum: 7, charsDen: 2},
}

// modelPrefixes maps model-name prefixes to encodings, mirroring how the
// reference tokenizer tables resolve versioned releases (e.g. gpt-4o-2024-*).
var modelPrefixes = map[string]string{
	"gpt-4o":           "o200k_base",
	"gpt-4.1":          "o200k_base",
	"chatgpt-4o":       "o200k_base",
	"o1":               "o200k_base",
	"o3":               "o200k_base",
	"o4":               "o200k_base",
	"gpt-4":            "cl100k_base",
	"gpt-3.5-turbo":    "cl100k_base",
	"gpt-35-turbo":     "cl100k_base",
	"ft:gpt-4":         "cl100k_base",
	"ft:gpt-3.5-turbo": "cl100k_base",
}

// modelExact maps full model identifiers to encodings.
var modelExact = map[string]string{
	"text-embedding-ada-002": "cl100k_base",
	"text-embedding-3-small": "cl100k_base",
	"text-embedding-3-large": "cl100k_base",
	"text-davinci-003":       "p50k_base",
	"text-davinci-002":       "p50k_base",
	"davinci":                "r50k_base",
	"curie":                  "r50k_base",
	"babbage":                "r50k_base",
	"ada":                    "r50k_base",
	"gpt2":                   "r50k_base",
}

// TableCounter is the default Counter: a model→encoding lookup table plus
// per-encoding estimation. The zero value is not usable; construct with
// NewTableCounter.
type TableCounter struct {
	exact    map[string]string
	prefixes []prefixEntry
}

type prefixEntry struct {
	prefix   string
	encoding string
}

// NewTableCounter builds a TableCounter from the built-in tables merged with
// extra model→encoding entries (typically from config). Extra entries win
// over built-ins; an extra entry naming an unknown encoding is an error.
func NewTableCounter(extra map[string]string) (*TableCounter, error) {
	exact := make(map[string]string, len(modelExact)+len(extra))
	for m, e := range modelExact {
		exact[m] = e
	}
	prefixes := make(map[string]string, len(modelPrefixes))
	for p, e := range modelPrefixes {
		prefixes[p] = e
	}
	for m, e := range extra {
		if _, ok := encodings[e]; !ok {
			return nil, fmt.Errorf("unknown encoding %q for model %q", e, m)
		}
		// a trailing '*' marks a prefix rule
		if strings.HasSuffix(m, "*") {
			prefixes[strings.TrimSuffix(m, "*")] = e
		} else {
			exact[m] = e
		}
	}
	// longest prefix first so gpt-4o wins over gpt-4
	pl := make([]prefixEntry, 0, len(prefixes))
	for p, e := range prefixes {
		pl = append(pl, prefixEntry{prefix: p, encoding: e})
	}
	sort.Slice(pl, func(i, j int) bool {
		if len(pl[i].prefix) != len(pl[j].prefix) {
			return len(pl[i].prefix) > len(pl[j].prefix)
		}
		return pl[i].prefix < pl[j].prefix
	})
	return &TableCounter{exact: exact, prefixes: pl}, nil
}

// EncodingForModel resolves the encoding for a model identifier.
func (c *TableCounter) EncodingForModel(model string) (string, error) {
	if e, ok := c.exact[model]; ok {
		return e, nil
	}
	for _, pe := range c.prefixes {
		if strings.HasPrefix(model, pe.prefix) {
			return pe.encoding, nil
		}
	}
	return "", &UnsupportedModelError{Model: model}
}

// Count returns the token count for content under the model's encoding.
// Empty content yields zero. An unrecognized model fails with
// UnsupportedModelError.
func (c *TableCounter) Count(content, model string) (int, error) {
	encName, err := c.EncodingForModel(model)
	if err != nil {
		return 0, err
	}
	if content == "" {
		return 0, nil
	}
	enc := encodings[encName]
	// ceil(bytes * den / num)
	n := (len(content)*enc.charsDen + enc.charsNum - 1) / enc.charsNum
	// every word costs at least one token
	if w := len(strings.Fields(content)); w > n {
		n = w
	}
	if n < 1 {
		n = 1
	}
	return n, nil
}
