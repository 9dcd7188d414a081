package crowd

import (
	"fmt"
	"io"
	"strings"
)

// Navmesh is a triangulated walkable area. Cells are counter-clockwise
// triples of vertex indices.
type Navmesh struct {
	Vertices []Vec2
	Cells    [][3]int
}

// NavmeshBuilder collects triangles and shares identical vertices.
type NavmeshBuilder struct {
	cells [][3]Vec2
}

func NewNavmeshBuilder() *NavmeshBuilder { return &NavmeshBuilder{} }

// AddCell adds a triangle, flipping it to counter-clockwise order if needed.
func (b *NavmeshBuilder) AddCell(p1, p2, p3 Vec2) *NavmeshBuilder {
	if det(sub(p2, p1), sub(p3, p1)) > 0 {
		b.cells = append(b.cells, [3]Vec2{p1, p2, p3})
	} else {
		b.cells = append(b.cells, [3]Vec2{p1, p3, p2})
	}
	return b
}

// AddQuad adds the rectangle spanned by lo and hi as two cells.
func (b *NavmeshBuilder) AddQuad(lo, hi Vec2) *NavmeshBuilder {
	return b.
		AddCell(lo, Vec2{X: hi.X, Y: lo.Y}, hi).
		AddCell(lo, Vec2{X: lo.X, Y: hi.Y}, hi)
}

func (b *NavmeshBuilder) Build() *Navmesh {
	n := &Navmesh{}
	vertex := func(p Vec2) int {
		for i, v := range n.Vertices {
			if approxEqual(v, p) {
				return i
			}
		}
		n.Vertices = append(n.Vertices, p)
		return len(n.Vertices) - 1
	}
	for _, c := range b.cells {
		n.Cells = append(n.Cells, [3]int{vertex(c[0]), vertex(c[1]), vertex(c[2])})
	}
	return n
}

// WriteOBJ writes the mesh as Wavefront OBJ with 1-based face indices.
func (n *Navmesh) WriteOBJ(w io.Writer) error {
	for _, v := range n.Vertices {
		if _, err := fmt.Fprintf(w, "v %.3f %.3f 0.0\n", v.X, v.Y); err != nil {
			return err
		}
	}
	for _, c := range n.Cells {
		if _, err := fmt.Fprintf(w, "f %d %d %d\n", c[0]+1, c[1]+1, c[2]+1); err != nil {
			return err
		}
	}
	return nil
}

func (n *Navmesh) OBJ() string {
	var b strings.Builder
	_ = n.WriteOBJ(&b)
	return b.String()
}
