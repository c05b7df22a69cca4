package publish

import (
	"context"
	"fmt"

	"github.com/malwarescan/oracle/internal/domain"
)

const jsonLDContext = "https://schema.org"

// GraphNode is one entity in the domain's entity graph: a subject and the
// triples asserted about it, across both text-extraction and
// structured-data facts.
type GraphNode struct {
	ID     string            `json:"@id"`
	Type   string            `json:"@type"`
	Fields map[string]string `json:"-"`
}

// Graph is the JSON-LD document returned by GET /v1/graph/:domain.jsonld.
type Graph struct {
	Context string          `json:"@context"`
	Graph   []map[string]interface{} `json:"@graph"`
	Nodes   []GraphNode     `json:"-"`
}

// Graph builds the entity graph for a domain from its current-revision
// facts: one node per distinct subject, with every predicate/object pair
// asserted about it folded into the node's JSON-LD fields.
func (p *Publisher) Graph(ctx context.Context, domainName string) (*Graph, error) {
	facts, err := p.store.GetFactsByDomain(ctx, domainName, "", "")
	if err != nil {
		return nil, fmt.Errorf("publish: graph: %w", err)
	}
	return buildGraph(facts), nil
}

func buildGraph(facts []domain.Fact) *Graph {
	order := make([]string, 0)
	bySubject := make(map[string]map[string]interface{})

	for _, f := range facts {
		node, ok := bySubject[f.Subject]
		if !ok {
			node = map[string]interface{}{
				"@id":   f.Subject,
				"@type": "Thing",
			}
			bySubject[f.Subject] = node
			order = append(order, f.Subject)
		}
		node[f.Predicate] = f.Object
	}

	nodes := make([]map[string]interface{}, 0, len(order))
	graphNodes := make([]GraphNode, 0, len(order))
	for _, subject := range order {
		node := bySubject[subject]
		nodes = append(nodes, node)
		graphNodes = append(graphNodes, GraphNode{ID: subject, Type: "Thing"})
	}

	return &Graph{
		Context: jsonLDContext,
		Graph:   nodes,
		Nodes:   graphNodes,
	}
}
