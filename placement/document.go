package placement

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Document is the exchange shape of a placement network as the surrounding
// application stores it.
type Document struct {
	Nodes   []NodeDoc             `json:"nodes"`
	Edges   []EdgeDoc             `json:"edges"`
	Objects map[string]ObjectType `json:"objects,omitempty"`
}

type NodeDoc struct {
	ID                          int64    `json:"id"`
	Lon                         float64  `json:"lon"`
	Lat                         float64  `json:"lat"`
	Alt                         *float64 `json:"alt,omitempty"`
	PlacedObjectType            string   `json:"placed_object_type,omitempty"`
	IndependentContributionRate *float64 `json:"independent_contribution_rate,omitempty"`
	ContextContributionRate     *float64 `json:"context_contribution_rate,omitempty"`
}

type EdgeDoc struct {
	U    int64    `json:"u"`
	V    int64    `json:"v"`
	Type LinkKind `json:"type,omitempty"`
}

// ObjectType describes how many objects of a type are waiting to be placed.
type ObjectType struct {
	Count            int     `json:"count"`
	ContributionRate float64 `json:"contribution_rate"`
}

// Network builds a placement network from the document. A placed object needs
// both its type and independent rate; a node with only one of them is invalid.
func (d *Document) Network() (*Network, error) {
	n := NewNetwork()
	for _, node := range d.Nodes {
		p := Point{
			ID:       PointID(node.ID),
			Location: [2]float64{node.Lon, node.Lat},
			Altitude: node.Alt,
		}
		hasType, hasRate := node.PlacedObjectType != "", node.IndependentContributionRate != nil
		if hasType != hasRate {
			return nil, fmt.Errorf("%w: node %d", ErrIncompleteObject, node.ID)
		}
		if hasType {
			p.Object = &Object{
				Name:            node.PlacedObjectType,
				IndependentRate: *node.IndependentContributionRate,
				ContextRate:     node.ContextContributionRate,
			}
		}
		if err := n.AddPoint(p); err != nil {
			return nil, err
		}
	}

	for _, e := range d.Edges {
		if err := n.Link(PointID(e.U), PointID(e.V), e.Type); err != nil {
			return nil, fmt.Errorf("edge %d-%d: %w", e.U, e.V, err)
		}
	}
	return n, nil
}

// Pending expands the object type table into the list of objects to place.
// Types are emitted in name order so the result is reproducible.
func (d *Document) Pending() []Object {
	names := make([]string, 0, len(d.Objects))
	for name := range d.Objects {
		names = append(names, name)
	}
	slices.Sort(names)

	objects := []Object{}
	for _, name := range names {
		t := d.Objects[name]
		for range t.Count {
			objects = append(objects, NewObject(name, t.ContributionRate))
		}
	}
	return objects
}

// NewDocument converts a network back to the exchange shape. The object table
// is left to the caller.
func NewDocument(n *Network) *Document {
	d := &Document{
		Nodes: make([]NodeDoc, 0, n.Order()),
		Edges: make([]EdgeDoc, 0, n.Size()),
	}
	for _, id := range n.IDs() {
		p, _ := n.Point(id)
		node := NodeDoc{
			ID:  int64(id),
			Lon: p.Location.Lon(),
			Lat: p.Location.Lat(),
			Alt: p.Altitude,
		}
		if p.Object != nil {
			rate := p.Object.IndependentRate
			node.PlacedObjectType = p.Object.Name
			node.IndependentContributionRate = &rate
			node.ContextContributionRate = p.Object.ContextRate
		}
		d.Nodes = append(d.Nodes, node)
	}
	for _, l := range n.Links() {
		u, v := l.Endpoints()
		d.Edges = append(d.Edges, EdgeDoc{U: int64(u), V: int64(v), Type: l.Kind})
	}
	return d
}

func ReadDocument(r io.Reader) (*Document, error) {
	var d Document
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &d, nil
}

// ReadDocumentFile reads a JSON document, transparently decompressing files
// ending in .zst.
func ReadDocumentFile(name string) (*Document, error) {
	r, err := openReader(name)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return ReadDocument(r)
}

func WriteDocument(w io.Writer, d *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	return nil
}

func WriteDocumentFile(name string, d *Document) error {
	file, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	defer file.Close()

	if !strings.HasSuffix(name, ".zst") {
		return WriteDocument(file, d)
	}

	enc, err := zstd.NewWriter(file)
	if err != nil {
		return fmt.Errorf("can`t create zstd writer: %w", err)
	}
	if err := WriteDocument(enc, d); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

func openReader(name string) (io.ReadCloser, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("can`t open file: %w", err)
	}

	if strings.HasSuffix(name, ".zst") {
		dec, err := zstd.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("can`t create zstd reader: %w", err)
		}

		return &zstdFile{Decoder: dec, file: file}, nil
	}

	return file, nil
}

type zstdFile struct {
	*zstd.Decoder
	file *os.File
}

func (z *zstdFile) Close() error {
	z.Decoder.Close()
	return z.file.Close()
}
