package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/meigma/mcworld"
)

func writeJSON(w io.Writer, res *mcworld.Result) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

// writeText prints the tree with two-space indentation followed by the key
// list.
func writeText(w io.Writer, title string, res *mcworld.Result) {
	fmt.Fprintln(w, title)
	writeNodes(w, res.Root, 1)
	fmt.Fprintf(w, "db_keys (%d):\n", len(res.Keys))
	for _, k := range res.Keys {
		fmt.Fprintf(w, "  %s\t%d\n", k.Name, k.Size)
	}
}

func writeNodes(w io.Writer, nodes []mcworld.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, n := range nodes {
		switch n := n.(type) {
		case *mcworld.Directory:
			fmt.Fprintf(w, "%s%s/\n", indent, n.Name)
			writeNodes(w, n.Children, depth+1)
		case *mcworld.File:
			fmt.Fprintf(w, "%s%s\t%d\n", indent, n.Name, n.Size)
		}
	}
}
