// Package export renders recorded runs as standalone SVG images.
package export

import (
	"fmt"
	"strings"

	"github.com/cloderic/rusty-pedestrians/internal/store"
)

var palette = []string{"#00ff88", "#ff6b6b", "#4dabf7", "#ffd43b", "#da77f2", "#63e6be"}

// RecordingToSVG draws every agent's trajectory as a polyline, with a disc at
// its last position. The y axis points up.
func RecordingToSVG(r *store.Recording, width, height int) string {
	if r == nil || len(r.Frames) == 0 {
		return ""
	}

	minX, maxX, minY, maxY := bounds(r)

	// Add padding
	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	maxX += rangeX * 0.1
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeX = maxX - minX
	rangeY = maxY - minY

	project := func(x, y float64) (float64, float64) {
		return (x - minX) / rangeX * float64(width),
			float64(height) - (y-minY)/rangeY*float64(height)
	}
	scale := float64(width) / rangeX

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height))

	last := r.Frames[len(r.Frames)-1]
	for i, a := range last {
		color := palette[i%len(palette)]
		traj := r.Trajectory(i)
		if len(traj) > 1 {
			sb.WriteString(fmt.Sprintf(`<path fill="none" stroke="%s" stroke-width="1.5" d="M`, color))
			for j, p := range traj {
				x, y := project(p.X, p.Y)
				if j == 0 {
					sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
				} else {
					sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
				}
			}
			sb.WriteString("\"/>\n")
		}
		cx, cy := project(a.Position.X, a.Position.Y)
		sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="%.1f" fill="%s"/>
`, cx, cy, a.Radius*scale, color))
	}

	sb.WriteString("</svg>")
	return sb.String()
}

func bounds(r *store.Recording) (minX, maxX, minY, maxY float64) {
	first := true
	for _, agents := range r.Frames {
		for _, a := range agents {
			lox, hix := a.Position.X-a.Radius, a.Position.X+a.Radius
			loy, hiy := a.Position.Y-a.Radius, a.Position.Y+a.Radius
			if first {
				minX, maxX, minY, maxY = lox, hix, loy, hiy
				first = false
				continue
			}
			minX, maxX = min(minX, lox), max(maxX, hix)
			minY, maxY = min(minY, loy), max(maxY, hiy)
		}
	}
	return minX, maxX, minY, maxY
}
