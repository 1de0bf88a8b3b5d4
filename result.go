package mcworld

import (
	"encoding/json"

	"github.com/meigma/mcworld/internal/tree"
)

// KeyRecord is one live store key.
type KeyRecord struct {
	// Name is the key as text when it is printable ASCII, otherwise "0x"
	// followed by the lowercase hex of its bytes. Distinct keys may share
	// a Name.
	Name string `json:"name"`

	// Size is the length of the value in bytes.
	Size int `json:"size"`
}

// Result is the outcome of one extraction.
type Result struct {
	// Root holds the top-level entries of the archive tree in first-seen
	// order.
	Root []Node `json:"root"`

	// Keys holds the live store keys in ascending byte order.
	Keys []KeyRecord `json:"db_keys"`
}

// assemble packages a finished tree and key listing. Neither slice of the
// result is nil.
func assemble(b *tree.Builder, keys []KeyRecord) *Result {
	if keys == nil {
		keys = make([]KeyRecord, 0)
	}
	return &Result{Root: b.Nodes(), Keys: keys}
}

type resultJSON struct {
	Root json.RawMessage `json:"root"`
	Keys []KeyRecord     `json:"db_keys"`
}

// MarshalJSON encodes the result as {"root": [...], "db_keys": [...]},
// writing empty arrays rather than null.
func (r *Result) MarshalJSON() ([]byte, error) {
	root := r.Root
	if root == nil {
		root = []Node{}
	}
	keys := r.Keys
	if keys == nil {
		keys = []KeyRecord{}
	}
	return json.Marshal(struct {
		Root []Node      `json:"root"`
		Keys []KeyRecord `json:"db_keys"`
	}{root, keys})
}

// UnmarshalJSON decodes a result produced by MarshalJSON.
func (r *Result) UnmarshalJSON(data []byte) error {
	res, err := decodeResult(data)
	if err != nil {
		return err
	}
	*r = *res
	return nil
}

func decodeResult(data []byte) (*Result, error) {
	var raw resultJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	root := []Node{}
	if len(raw.Root) > 0 && string(raw.Root) != "null" {
		nodes, err := tree.DecodeNodes(raw.Root)
		if err != nil {
			return nil, err
		}
		root = nodes
	}
	keys := raw.Keys
	if keys == nil {
		keys = []KeyRecord{}
	}
	return &Result{Root: root, Keys: keys}, nil
}

// clone returns a copy whose slices can be modified without affecting r.
// Tree nodes are deep-copied.
func (r *Result) clone() *Result {
	return &Result{
		Root: cloneNodes(r.Root),
		Keys: append(make([]KeyRecord, 0, len(r.Keys)), r.Keys...),
	}
}

func cloneNodes(nodes []Node) []Node {
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		switch n := n.(type) {
		case *File:
			f := *n
			out = append(out, &f)
		case *Directory:
			out = append(out, &Directory{Name: n.Name, Children: cloneNodes(n.Children)})
		}
	}
	return out
}
