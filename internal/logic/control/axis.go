package control

import "fmt"

// AxisID identifies one of the two independent control channels.
type AxisID int

const (
	Axis1 AxisID = iota
	Axis2

	NumAxes = 2
)

// Axes lists every axis in control order.
var Axes = [NumAxes]AxisID{Axis1, Axis2}

func (a AxisID) String() string {
	switch a {
	case Axis1:
		return "axis1"
	case Axis2:
		return "axis2"
	default:
		return fmt.Sprintf("axis(%d)", int(a))
	}
}

// Valid reports whether a names one of the two axes.
func (a AxisID) Valid() bool {
	return a >= Axis1 && a < NumAxes
}
