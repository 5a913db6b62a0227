package detection

// component is one 8-connected region of text pixels in the probability map.
type component struct {
	bounds Bounds  // in map pixels, X2/Y2 exclusive
	score  float64 // mean probability over the region's pixels
	pixels int
}

// findComponents groups the map pixels whose probability exceeds threshold
// into connected regions and scores each one.
//
// Uses flood-fill to group connected pixels. Connectivity is 8-connected
// (includes diagonals). Regions are returned in raster order of their first
// pixel, so the result is deterministic for a given map.
func findComponents(prob []float32, width, height int, threshold float32) []component {
	mask := make([][]bool, height)
	visited := make([][]bool, height)
	for y := 0; y < height; y++ {
		mask[y] = make([]bool, width)
		visited[y] = make([]bool, width)
		row := prob[y*width : (y+1)*width]
		for x, p := range row {
			mask[y][x] = p > threshold
		}
	}

	components := make([]component, 0)
	var region []Point

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if !mask[y][x] || visited[y][x] {
				continue
			}
			region = region[:0]
			floodFill(mask, visited, x, y, width, height, &region)
			components = append(components, describeRegion(region, prob, width))
		}
	}

	return components
}

func describeRegion(region []Point, prob []float32, width int) component {
	b := Bounds{X1: region[0].X, Y1: region[0].Y, X2: region[0].X + 1, Y2: region[0].Y + 1}
	var sum float64
	for _, p := range region {
		b.X1 = minInt(b.X1, p.X)
		b.Y1 = minInt(b.Y1, p.Y)
		b.X2 = maxInt(b.X2, p.X+1)
		b.Y2 = maxInt(b.Y2, p.Y+1)
		sum += float64(prob[p.Y*width+p.X])
	}
	return component{bounds: b, score: sum / float64(len(region)), pixels: len(region)}
}

// floodFill performs iterative flood-fill from a starting point.
//
// Uses a stack-based approach (not recursive) to avoid stack overflow
// on large regions. Marks visited pixels and appends them to the region.
func floodFill(mask, visited [][]bool, startX, startY, width, height int, region *[]Point) {
	stack := []Point{{X: startX, Y: startY}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.X < 0 || p.X >= width || p.Y < 0 || p.Y >= height {
			continue
		}
		if visited[p.Y][p.X] || !mask[p.Y][p.X] {
			continue
		}

		visited[p.Y][p.X] = true
		*region = append(*region, p)

		// 8-connected neighbors
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				stack = append(stack, Point{X: p.X + dx, Y: p.Y + dy})
			}
		}
	}
}
