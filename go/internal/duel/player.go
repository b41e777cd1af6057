package duel

import (
	"sort"

	"github.com/mcdev12/pathduel/go/internal/path"
)

// Cell is a tower grid coordinate.
type Cell struct {
	X int
	Y int
}

// Tower is a placed tower.
type Tower struct {
	Type string `json:"type"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

// Player is one side's mutable duel state. Only the session touches it, under
// the session lock.
type Player struct {
	Role   Role
	Lives  int
	Money  int
	Ready  bool
	Path   *path.Path
	Towers map[Cell]string
}

func newPlayer(role Role, rules Rules, p *path.Path) *Player {
	return &Player{
		Role:   role,
		Lives:  rules.StartingLives,
		Money:  rules.StartingMoney,
		Path:   p,
		Towers: make(map[Cell]string),
	}
}

// PathView is a point-in-time copy of a path.
type PathView struct {
	Points []path.Point `json:"points"`
	Method string       `json:"method"`
	Locked bool         `json:"locked"`
}

func viewPath(p *path.Path) PathView {
	return PathView{Points: p.Points(), Method: p.Method(), Locked: p.Locked()}
}

// PlayerView is a point-in-time copy of a player.
type PlayerView struct {
	Role   Role     `json:"role"`
	Lives  int      `json:"lives"`
	Money  int      `json:"money"`
	Ready  bool     `json:"ready"`
	Towers []Tower  `json:"towers"`
	Path   PathView `json:"path"`
}

func (p *Player) view() PlayerView {
	towers := make([]Tower, 0, len(p.Towers))
	for c, t := range p.Towers {
		towers = append(towers, Tower{Type: t, X: c.X, Y: c.Y})
	}
	sort.Slice(towers, func(i, j int) bool {
		if towers[i].X != towers[j].X {
			return towers[i].X < towers[j].X
		}
		return towers[i].Y < towers[j].Y
	})
	return PlayerView{
		Role:   p.Role,
		Lives:  p.Lives,
		Money:  p.Money,
		Ready:  p.Ready,
		Towers: towers,
		Path:   viewPath(p.Path),
	}
}
