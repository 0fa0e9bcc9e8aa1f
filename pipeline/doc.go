// Package pipeline is the model behind the visual pipeline editor.
//
// A Graph holds nodes in insertion order and a single edge set; each node's
// depends_on list is derived from the edges, so deleting a node or an edge
// cannot leave a dangling dependency. AddConnection rejects edges that would
// close a cycle unless the graph was created with AllowCycles.
//
//	g := pipeline.New()
//	a, _ := g.AddNode(40, 40, "crawl_news")
//	b, _ := g.AddNode(260, 40, "clean_text", pipeline.WithCategory(pipeline.CategoryProcess))
//	g.AddConnection(a, b)
//	payload := g.BuildDagPayload()
//
// Export/Import round-trip the editor document as JSON or YAML; DrawWires and
// RenderSVG produce the Bezier connectors drawn between node boxes.
package pipeline
