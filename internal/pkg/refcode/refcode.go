// Package refcode issues human-facing booking references.
package refcode

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
)

type Generator struct {
	node   *snowflake.Node
	prefix string
}

// New builds a generator for the given node id (0-1023).
func New(nodeID int64, prefix string) (*Generator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	return &Generator{node: node, prefix: prefix}, nil
}

// Next returns a new reference like "BK-2F1K9XQ4ZB".
func (g *Generator) Next() string {
	return g.prefix + "-" + strings.ToUpper(g.node.Generate().Base36())
}
