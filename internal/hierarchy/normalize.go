package hierarchy

import (
	"regexp"
	"sort"
	"strconv"
)

var digitRun = regexp.MustCompile(`\d+`)

// ============================================================
// Normalization
// ============================================================

// Normalize returns a deep copy of p with every tower's units sorted by the
// numeric suffix of their unit number, the project classified and every unit
// kind resolved. The input is never modified.
func Normalize(p *Project) *Project {
	if p == nil {
		return nil
	}

	out := *p
	if p.Type != "" {
		out.Classification = Classify(p.Type)
	}
	out.DiscountPricePerSqft = copyFloat(p.DiscountPricePerSqft)

	out.Towers = make([]Tower, len(p.Towers))
	for i, tower := range p.Towers {
		t := tower
		t.Units = make([]Unit, len(tower.Units))
		for j, u := range tower.Units {
			u.Kind = ClassifyUnit(u.Type, out.Classification)
			u.DiscountPricePerSqft = copyFloat(u.DiscountPricePerSqft)
			if u.LockExpiry != nil {
				exp := *u.LockExpiry
				u.LockExpiry = &exp
			}
			t.Units[j] = u
		}
		SortUnits(t.Units)
		out.Towers[i] = t
	}

	return &out
}

// SortUnits stably orders units by the last run of digits in their number.
// Numbers without digits go last, ordered by their raw text.
func SortUnits(units []Unit) {
	sort.SliceStable(units, func(i, j int) bool {
		ni, okI := NumericSuffix(units[i].UnitNumber)
		nj, okJ := NumericSuffix(units[j].UnitNumber)
		switch {
		case okI && okJ:
			return ni < nj
		case okI != okJ:
			return okI
		default:
			return units[i].UnitNumber < units[j].UnitNumber
		}
	})
}

// NumericSuffix extracts the last digit run of a unit number: "A-101" -> 101,
// "101B" -> 101, "TV-2" -> 2.
func NumericSuffix(unitNumber string) (int, bool) {
	runs := digitRun.FindAllString(unitNumber, -1)
	if len(runs) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(runs[len(runs)-1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// ============================================================
// Read-only views
// ============================================================

// UnitsByFloor groups a tower's units by floor, lowest floor first.
func UnitsByFloor(p *Project, towerID string) []FloorUnits {
	if p == nil {
		return nil
	}

	for _, tower := range p.Towers {
		if tower.ID != towerID {
			continue
		}
		return groupFloors(tower.Units)
	}
	return nil
}

func groupFloors(units []Unit) []FloorUnits {
	index := make(map[int]int)
	var floors []FloorUnits
	for _, u := range units {
		i, ok := index[u.FloorNumber]
		if !ok {
			i = len(floors)
			index[u.FloorNumber] = i
			floors = append(floors, FloorUnits{Floor: u.FloorNumber})
		}
		floors[i].Units = append(floors[i].Units, u)
	}

	sort.SliceStable(floors, func(i, j int) bool {
		return floors[i].Floor < floors[j].Floor
	})
	return floors
}

// FlattenedUnits lists every unit of the project in tower order.
func FlattenedUnits(p *Project) []Unit {
	if p == nil {
		return nil
	}

	var out []Unit
	for _, tower := range p.Towers {
		out = append(out, tower.Units...)
	}
	return out
}

func FindUnit(p *Project, unitID string) (Unit, bool) {
	if p == nil {
		return Unit{}, false
	}

	for _, tower := range p.Towers {
		for _, u := range tower.Units {
			if u.ID == unitID {
				return u, true
			}
		}
	}
	return Unit{}, false
}
