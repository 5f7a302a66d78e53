package analysis

import "strings"

// BlockType classifies a detected element.
type BlockType string

const (
	BlockPage        BlockType = "PAGE"
	BlockLine        BlockType = "LINE"
	BlockWord        BlockType = "WORD"
	BlockKeyValueSet BlockType = "KEY_VALUE_SET"
)

// Entity types carried by key/value blocks.
const (
	EntityKey   = "KEY"
	EntityValue = "VALUE"
)

// Block is one detected element. Confidence is a percentage (0-100).
type Block struct {
	ID          string
	Type        BlockType
	Text        string
	Confidence  float64
	Page        int
	EntityTypes []string
	Children    []string
	Values      []string
}

// Result is the outcome of a job. Blocks are only populated once the job
// has finished successfully.
type Result struct {
	JobID         string
	Status        JobStatus
	StatusMessage string
	Pages         int
	Blocks        []Block
}

// KeyValue is a detected form field.
type KeyValue struct {
	Key   string
	Value string
}

// Lines returns LINE texts in reading order.
func (r Result) Lines() []string {
	var out []string
	for _, b := range r.Blocks {
		if b.Type == BlockLine && strings.TrimSpace(b.Text) != "" {
			out = append(out, b.Text)
		}
	}
	return out
}

// KeyValues resolves KEY blocks to their VALUE blocks through the word
// children of each.
func (r Result) KeyValues() []KeyValue {
	byID := make(map[string]Block, len(r.Blocks))
	for _, b := range r.Blocks {
		if b.ID != "" {
			byID[b.ID] = b
		}
	}
	var out []KeyValue
	for _, b := range r.Blocks {
		if b.Type != BlockKeyValueSet || !hasEntity(b, EntityKey) {
			continue
		}
		key := childText(byID, b)
		if key == "" {
			continue
		}
		var values []string
		for _, id := range b.Values {
			if v, ok := byID[id]; ok {
				if text := childText(byID, v); text != "" {
					values = append(values, text)
				}
			}
		}
		out = append(out, KeyValue{Key: key, Value: strings.Join(values, " ")})
	}
	return out
}

// Confidence is the mean LINE confidence scaled to 0-1, or nil without lines.
func (r Result) Confidence() *float64 {
	var sum float64
	var n int
	for _, b := range r.Blocks {
		if b.Type == BlockLine {
			sum += b.Confidence
			n++
		}
	}
	if n == 0 {
		return nil
	}
	mean := sum / float64(n) / 100
	if mean > 1 {
		mean = 1
	}
	return &mean
}

func hasEntity(b Block, entity string) bool {
	for _, e := range b.EntityTypes {
		if e == entity {
			return true
		}
	}
	return false
}

func childText(byID map[string]Block, b Block) string {
	if len(b.Children) == 0 {
		return strings.TrimSpace(b.Text)
	}
	var words []string
	for _, id := range b.Children {
		if w, ok := byID[id]; ok && w.Type == BlockWord {
			words = append(words, w.Text)
		}
	}
	return strings.TrimSpace(strings.Join(words, " "))
}
