// Package main - planner.go
//
// This file implements the PathPlanner: A* over the unbounded world grid,
// where the only blocked cells are the ones in the ObstacleSet.
//
// Search Space:
// The grid has no walls other than learned obstacles, so an unreachable
// goal would make an unbounded search run forever. The search is therefore
// confined to the bounding box of start and goal grown by SearchMargin
// tiles, and stops after MaxExpansions node expansions.
//
// Costs:
//   - Orthogonal step: 10
//   - Diagonal step:   14 (only with eight-way connectivity, and only when
//     both orthogonal cells it cuts across are free)
//
// Heuristics:
//   - four:  Manhattan distance * 10
//   - eight: octile distance (10 per straight tile, 14 per diagonal tile)
//
// Results:
//   - start == goal:    empty path (already there)
//   - path found:       cells after start, each adjacent to the previous,
//                       ending at goal
//   - no path in box:   [goal], an unverified direct hop
//
// The planner works on start's level; Z never changes within a plan.
package main

import (
	"container/heap"
)

const (
	costStraight = 10
	costDiagonal = 14
)

type gridStep struct {
	dx, dy   int
	cost     int
	diagonal bool
}

var straightSteps = [...]gridStep{
	{dx: 0, dy: -1, cost: costStraight},
	{dx: 1, dy: 0, cost: costStraight},
	{dx: 0, dy: 1, cost: costStraight},
	{dx: -1, dy: 0, cost: costStraight},
}

var diagonalSteps = [...]gridStep{
	{dx: 1, dy: -1, cost: costDiagonal, diagonal: true},
	{dx: 1, dy: 1, cost: costDiagonal, diagonal: true},
	{dx: -1, dy: 1, cost: costDiagonal, diagonal: true},
	{dx: -1, dy: -1, cost: costDiagonal, diagonal: true},
}

// PathPlanner plans hops between coordinates on one level.
type PathPlanner struct {
	diagonal      bool
	margin        int
	maxExpansions int
}

// NewPathPlanner creates a planner from the navigation settings
func NewPathPlanner(cfg NavigationConfig) *PathPlanner {
	p := &PathPlanner{
		diagonal:      cfg.Connectivity == ConnectivityEight,
		margin:        cfg.SearchMargin,
		maxExpansions: cfg.MaxExpansions,
	}
	if p.margin < 0 {
		p.margin = 0
	}
	if p.maxExpansions <= 0 {
		p.maxExpansions = 20000
	}
	return p
}

type searchBox struct {
	minX, minY, maxX, maxY int
}

func (b searchBox) contains(x, y int) bool {
	return x >= b.minX && x <= b.maxX && y >= b.minY && y <= b.maxY
}

func (p *PathPlanner) heuristic(a, b Coordinate) int {
	dx := abs(a.X - b.X)
	dy := abs(a.Y - b.Y)
	if !p.diagonal {
		return costStraight * (dx + dy)
	}
	if dx > dy {
		return costStraight*dx + (costDiagonal-costStraight)*dy
	}
	return costStraight*dy + (costDiagonal-costStraight)*dx
}

type pathNode struct {
	cell   Coordinate
	g      int
	f      int
	seq    int
	index  int
	parent *pathNode
}

type pathQueue []*pathNode

func (pq pathQueue) Len() int { return len(pq) }

// Less orders by f, then by insertion order so equal-f pops are stable.
func (pq pathQueue) Less(i, j int) bool {
	if pq[i].f != pq[j].f {
		return pq[i].f < pq[j].f
	}
	return pq[i].seq < pq[j].seq
}

func (pq pathQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *pathQueue) Push(x any) {
	n := len(*pq)
	item := x.(*pathNode)
	item.index = n
	*pq = append(*pq, item)
}

func (pq *pathQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}

// Plan returns the hops from start to goal avoiding obstacles.
func (p *PathPlanner) Plan(start, goal Coordinate, obstacles *ObstacleSet) []Coordinate {
	goal.Z = start.Z
	if start == goal {
		return []Coordinate{}
	}

	box := searchBox{
		minX: min(start.X, goal.X) - p.margin,
		minY: min(start.Y, goal.Y) - p.margin,
		maxX: max(start.X, goal.X) + p.margin,
		maxY: max(start.Y, goal.Y) + p.margin,
	}

	if end := p.astar(start, goal, box, obstacles); end != nil {
		return reconstructPath(end)
	}
	return []Coordinate{goal}
}

func (p *PathPlanner) astar(start, goal Coordinate, box searchBox, obstacles *ObstacleSet) *pathNode {
	open := &pathQueue{}
	heap.Init(open)
	seq := 0
	heap.Push(open, &pathNode{cell: start, f: p.heuristic(start, goal), seq: seq})
	gScore := map[Coordinate]int{start: 0}
	closed := make(map[Coordinate]struct{})

	expansions := 0
	for open.Len() > 0 {
		current := heap.Pop(open).(*pathNode)
		if _, seen := closed[current.cell]; seen {
			continue
		}
		closed[current.cell] = struct{}{}
		if current.cell == goal {
			return current
		}

		expansions++
		if expansions > p.maxExpansions {
			return nil
		}

		for _, step := range p.neighbors() {
			next := current.cell.Add(step.dx, step.dy)
			if !box.contains(next.X, next.Y) || obstacles.Contains(next) {
				continue
			}
			if step.diagonal && !p.canCutCorner(current.cell, step, obstacles) {
				continue
			}
			if _, seen := closed[next]; seen {
				continue
			}
			tentativeG := current.g + step.cost
			if prev, ok := gScore[next]; ok && tentativeG >= prev {
				continue
			}
			gScore[next] = tentativeG
			seq++
			heap.Push(open, &pathNode{
				cell:   next,
				g:      tentativeG,
				f:      tentativeG + p.heuristic(next, goal),
				seq:    seq,
				parent: current,
			})
		}
	}
	return nil
}

func (p *PathPlanner) neighbors() []gridStep {
	if !p.diagonal {
		return straightSteps[:]
	}
	steps := make([]gridStep, 0, len(straightSteps)+len(diagonalSteps))
	steps = append(steps, straightSteps[:]...)
	return append(steps, diagonalSteps[:]...)
}

// canCutCorner rejects diagonal steps that clip a blocked orthogonal cell.
func (p *PathPlanner) canCutCorner(from Coordinate, step gridStep, obstacles *ObstacleSet) bool {
	return !obstacles.Contains(from.Add(step.dx, 0)) && !obstacles.Contains(from.Add(0, step.dy))
}

// reconstructPath walks parents back to start and drops the start cell.
func reconstructPath(end *pathNode) []Coordinate {
	path := make([]Coordinate, 0)
	for node := end; node != nil && node.parent != nil; node = node.parent {
		path = append(path, node.cell)
	}
	for i := 0; i < len(path)/2; i++ {
		j := len(path) - 1 - i
		path[i], path[j] = path[j], path[i]
	}
	return path
}
