package engine

type PositionSide int

const (
	SideFlat PositionSide = iota
	SideLong
)

func (s PositionSide) String() string {
	if s == SideLong {
		return "LONG"
	}
	return "FLAT"
}

// PositionState is an all-in/all-out long-only account. Cash and Units are
// never both positive.
type PositionState struct {
	Cash  float64 `json:"cash"`
	Units float64 `json:"units"`
}

func (p PositionState) Side() PositionSide {
	if p.Units > 0 {
		return SideLong
	}
	return SideFlat
}

// Enter converts all cash into units at price.
func (p *PositionState) Enter(price float64) {
	p.Units = p.Cash / price
	p.Cash = 0
}

// Exit converts all units into cash at price.
func (p *PositionState) Exit(price float64) {
	p.Cash = p.Units * price
	p.Units = 0
}

// Equity marks the account at price.
func (p PositionState) Equity(price float64) float64 {
	return p.Cash + p.Units*price
}
