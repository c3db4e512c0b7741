package model

import (
	"errors"
	"fmt"
)

// WorkItem is one node of the accounting work-item tree as delivered by
// the catalog. Children is recursive; a node without children is a leaf,
// and only leaves are valid link targets.
type WorkItem struct {
	ID         string     `yaml:"id"`
	Name       string     `yaml:"name"`
	FolderName string     `yaml:"folder_name"`
	FolderPath string     `yaml:"folder_path"`
	Children   []WorkItem `yaml:"children,omitempty"`
}

// IsLeaf reports whether the node has no children.
func (w WorkItem) IsLeaf() bool { return len(w.Children) == 0 }

// Directory is an arena over the work-item tree: nodes addressed by id,
// children kept as id lists. It avoids walking an unbounded recursive
// structure at lookup time and gives Leaves a stable order.
type Directory struct {
	nodes    map[string]WorkItem
	children map[string][]string
	leafIDs  []string // depth-first catalog order
}

// NewDirectory flattens the given trees into an arena. Duplicate ids are
// rejected: a catalog that maps one id to two nodes cannot be resolved
// deterministically.
func NewDirectory(roots []WorkItem) (*Directory, error) {
	d := &Directory{
		nodes:    make(map[string]WorkItem),
		children: make(map[string][]string),
	}
	for i := range roots {
		if err := d.add(roots[i]); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *Directory) add(item WorkItem) error {
	if item.ID == "" {
		return errors.New("workitem: id is required")
	}
	if _, ok := d.nodes[item.ID]; ok {
		return fmt.Errorf("workitem: duplicate id %q", item.ID)
	}

	// Store the node without its subtree; the arena owns the structure.
	flat := item
	flat.Children = nil
	d.nodes[item.ID] = flat

	if item.IsLeaf() {
		d.leafIDs = append(d.leafIDs, item.ID)
		return nil
	}
	for i := range item.Children {
		d.children[item.ID] = append(d.children[item.ID], item.Children[i].ID)
		if err := d.add(item.Children[i]); err != nil {
			return err
		}
	}
	return nil
}

// Resolve looks up a node by id.
func (d *Directory) Resolve(id string) (WorkItem, bool) {
	w, ok := d.nodes[id]
	return w, ok
}

// ResolveLeaf looks up a node by id and additionally requires it to be a
// leaf. Non-leaf nodes are not valid link targets.
func (d *Directory) ResolveLeaf(id string) (WorkItem, bool) {
	w, ok := d.nodes[id]
	if !ok || len(d.children[id]) > 0 {
		return WorkItem{}, false
	}
	return w, true
}

// Leaves returns all leaf work items in depth-first catalog order.
func (d *Directory) Leaves() []WorkItem {
	out := make([]WorkItem, 0, len(d.leafIDs))
	for _, id := range d.leafIDs {
		out = append(out, d.nodes[id])
	}
	return out
}

// LeafIDs returns the set of valid link-target ids. Used by the history
// store to purge entries whose work item no longer exists.
func (d *Directory) LeafIDs() map[string]struct{} {
	out := make(map[string]struct{}, len(d.leafIDs))
	for _, id := range d.leafIDs {
		out[id] = struct{}{}
	}
	return out
}
