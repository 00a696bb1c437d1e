package uci

import (
	"strconv"
	"strings"
)

const mateValue = 100000

type info struct {
	Depth   int
	MultiPV int
	CP      int
	Mate    int
	PV      []string
}

// parseInfo reads an "info" line carrying a score and a pv. Lines from
// secondary PVs are ignored.
func parseInfo(line string) (info, bool) {
	fields := strings.Fields(line)
	out := info{MultiPV: 1}
	scored := false
	for i := 1; i < len(fields); i++ {
		switch fields[i] {
		case "depth":
			if i+1 < len(fields) {
				out.Depth, _ = strconv.Atoi(fields[i+1])
				i++
			}
		case "multipv":
			if i+1 < len(fields) {
				out.MultiPV, _ = strconv.Atoi(fields[i+1])
				i++
			}
		case "score":
			if i+2 >= len(fields) {
				return info{}, false
			}
			v, err := strconv.Atoi(fields[i+2])
			if err != nil {
				return info{}, false
			}
			switch fields[i+1] {
			case "cp":
				out.CP = v
			case "mate":
				out.Mate = v
				out.CP = MateScore(v)
			default:
				return info{}, false
			}
			scored = true
			i += 2
		case "pv":
			if i+1 < len(fields) {
				out.PV = append([]string(nil), fields[i+1:]...)
			}
			i = len(fields)
		}
	}
	if !scored || len(out.PV) == 0 || out.MultiPV != 1 {
		return info{}, false
	}
	return out, true
}

// MateScore maps mate-in-n onto a saturating centipawn value so nearer mates
// dominate. "mate 0" means the side to move is already mated.
func MateScore(n int) int {
	switch {
	case n > 0:
		return mateValue - n
	case n < 0:
		return -mateValue - n
	default:
		return -mateValue
	}
}
