package tui

import (
	"bufio"
	"strconv"
	"strings"

	"github.com/cloderic/rusty-pedestrians/internal/frame"
)

// mesh is the part of a navmesh OBJ the viewer draws.
type mesh struct {
	vertices []frame.Vec2
	faces    [][3]int
}

// parseOBJ reads "v x y z" and "f a b c" records. Face indices are 1-based
// in the text and 0-based in the result; anything unreadable is skipped.
func parseOBJ(text string) mesh {
	var m mesh
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 {
			continue
		}
		switch fields[0] {
		case "v":
			x, errX := strconv.ParseFloat(fields[1], 64)
			y, errY := strconv.ParseFloat(fields[2], 64)
			if errX != nil || errY != nil {
				continue
			}
			m.vertices = append(m.vertices, frame.Vec2{X: x, Y: y})
		case "f":
			var face [3]int
			ok := true
			for i := 0; i < 3; i++ {
				// "f 1/1/1 ..." carries texture and normal indices we ignore.
				idx, err := strconv.Atoi(strings.SplitN(fields[i+1], "/", 2)[0])
				if err != nil || idx < 1 {
					ok = false
					break
				}
				face[i] = idx - 1
			}
			if ok {
				m.faces = append(m.faces, face)
			}
		}
	}
	return m
}

// bounds returns the box around the mesh and the agents, or a unit box
// around the origin when both are empty.
func bounds(m mesh, agents []frame.AgentSnapshot) (lo, hi frame.Vec2) {
	first := true
	grow := func(p frame.Vec2, r float64) {
		if first {
			lo, hi = frame.Vec2{X: p.X - r, Y: p.Y - r}, frame.Vec2{X: p.X + r, Y: p.Y + r}
			first = false
			return
		}
		lo.X, lo.Y = min(lo.X, p.X-r), min(lo.Y, p.Y-r)
		hi.X, hi.Y = max(hi.X, p.X+r), max(hi.Y, p.Y+r)
	}
	for _, v := range m.vertices {
		grow(v, 0)
	}
	for _, a := range agents {
		grow(a.Position, a.Radius)
	}
	if first {
		return frame.Vec2{X: -1, Y: -1}, frame.Vec2{X: 1, Y: 1}
	}
	return lo, hi
}
