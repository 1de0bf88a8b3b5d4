// Package tree reconstructs a directory hierarchy from flat archive paths.
package tree

import (
	"encoding/json"
	"fmt"
)

// Node type discriminators used in the JSON encoding.
const (
	KindFile      = "file"
	KindDirectory = "directory"
)

// Node is either a *File or a *Directory.
type Node interface {
	// NodeName returns the final path segment of the node.
	NodeName() string
	isNode()
}

// File is a leaf node.
type File struct {
	Name string
	Size uint64
}

// Directory is a node holding children in first-insertion order.
type Directory struct {
	Name     string
	Children []Node
}

// NodeName implements Node.
func (f *File) NodeName() string { return f.Name }

// NodeName implements Node.
func (d *Directory) NodeName() string { return d.Name }

func (*File) isNode()      {}
func (*Directory) isNode() {}

type fileJSON struct {
	Type string `json:"type"`
	Name string `json:"name"`
	Size uint64 `json:"size"`
}

type directoryJSON struct {
	Type     string            `json:"type"`
	Name     string            `json:"name"`
	Children []json.RawMessage `json:"children"`
}

// MarshalJSON encodes the file with a "type" discriminator.
func (f *File) MarshalJSON() ([]byte, error) {
	return json.Marshal(fileJSON{Type: KindFile, Name: f.Name, Size: f.Size})
}

// MarshalJSON encodes the directory with a "type" discriminator.
// A directory without children encodes an empty array, never null.
func (d *Directory) MarshalJSON() ([]byte, error) {
	children := make([]json.RawMessage, 0, len(d.Children))
	for _, child := range d.Children {
		raw, err := json.Marshal(child)
		if err != nil {
			return nil, err
		}
		children = append(children, raw)
	}
	return json.Marshal(directoryJSON{Type: KindDirectory, Name: d.Name, Children: children})
}

// UnmarshalJSON decodes a directory and all of its descendants.
func (d *Directory) UnmarshalJSON(data []byte) error {
	var raw directoryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Type != KindDirectory {
		return fmt.Errorf("tree: expected type %q, got %q", KindDirectory, raw.Type)
	}
	children, err := decodeAll(raw.Children)
	if err != nil {
		return err
	}
	d.Name = raw.Name
	d.Children = children
	return nil
}

// UnmarshalJSON decodes a file node.
func (f *File) UnmarshalJSON(data []byte) error {
	var raw fileJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Type != KindFile {
		return fmt.Errorf("tree: expected type %q, got %q", KindFile, raw.Type)
	}
	f.Name = raw.Name
	f.Size = raw.Size
	return nil
}

// DecodeNodes decodes a JSON array of nodes.
func DecodeNodes(data []byte) ([]Node, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, err
	}
	return decodeAll(raws)
}

func decodeAll(raws []json.RawMessage) ([]Node, error) {
	nodes := make([]Node, 0, len(raws))
	for _, raw := range raws {
		node, err := decodeNode(raw)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func decodeNode(raw json.RawMessage) (Node, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}
	switch head.Type {
	case KindFile:
		f := &File{}
		if err := f.UnmarshalJSON(raw); err != nil {
			return nil, err
		}
		return f, nil
	case KindDirectory:
		d := &Directory{}
		if err := d.UnmarshalJSON(raw); err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("tree: unknown node type %q", head.Type)
	}
}
