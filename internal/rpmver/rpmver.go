// Package rpmver implements RPM's version comparison algorithm
// (epoch, then version, then release, each compared by the segment
// rules documented in rpm's rpmvercmp(3)). The download orchestrator's
// package-set consolidator (spec §4.13) uses it to pick the
// highest-EVR tuple per (name, architecture).
package rpmver

// EVR is an epoch/version/release tuple. A nil Epoch is treated as
// smaller than any concrete epoch (spec §9 open question (iii)).
type EVR struct {
	Epoch   *int32
	Version string
	Release string
}

// Compare returns -1, 0, or 1 as a is less than, equal to, or greater
// than b.
func Compare(a, b EVR) int {
	if c := compareEpoch(a.Epoch, b.Epoch); c != 0 {
		return c
	}
	if c := Vercmp(a.Version, b.Version); c != 0 {
		return c
	}
	return Vercmp(a.Release, b.Release)
}

func compareEpoch(a, b *int32) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	default:
		return 0
	}
}

func isAlnum(c byte) bool {
	return isAlpha(c) || isDigit(c)
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// Vercmp compares two version (or release) strings using rpm's
// segment-by-segment algorithm: split into alternating runs of digits
// and letters (ignoring everything else, including '~' and '^'
// separators from the runs themselves), compare numeric segments
// numerically and alphabetic segments lexically, and treat a tilde as
// sorting before anything (including the end of string) and a caret as
// sorting after the end of string but before any other segment.
func Vercmp(a, b string) int {
	if a == b {
		return 0
	}
	var i, j int
	for i < len(a) && j < len(b) {
		// Skip non-alnum, non-~, non-^ separator characters in lockstep.
		for i < len(a) && !isAlnum(a[i]) && a[i] != '~' && a[i] != '^' {
			i++
		}
		for j < len(b) && !isAlnum(b[j]) && b[j] != '~' && b[j] != '^' {
			j++
		}

		// Tilde sorts before anything, even the end of a segment.
		if i < len(a) && a[i] == '~' || j < len(b) && b[j] == '~' {
			aTilde := i < len(a) && a[i] == '~'
			bTilde := j < len(b) && b[j] == '~'
			switch {
			case aTilde && bTilde:
				i++
				j++
				continue
			case aTilde:
				return -1
			default:
				return 1
			}
		}

		// Caret sorts after the end of the string but before any segment.
		aCaret := i < len(a) && a[i] == '^'
		bCaret := j < len(b) && b[j] == '^'
		if aCaret || bCaret {
			switch {
			case i == len(a):
				return -1
			case j == len(b):
				return 1
			case aCaret && bCaret:
				i++
				j++
				continue
			case aCaret:
				return -1
			default:
				return 1
			}
		}

		if i >= len(a) || j >= len(b) {
			break
		}

		var segA, segB string
		if isDigit(a[i]) {
			start := i
			for i < len(a) && isDigit(a[i]) {
				i++
			}
			segA = a[start:i]
			start = j
			for j < len(b) && isDigit(b[j]) {
				j++
			}
			segB = b[start:j]
			if segB == "" {
				// Numeric segment beats a missing (alpha-only) one.
				return 1
			}
			na := trimLeadingZeros(segA)
			nb := trimLeadingZeros(segB)
			if len(na) != len(nb) {
				if len(na) > len(nb) {
					return 1
				}
				return -1
			}
			if na != nb {
				if na > nb {
					return 1
				}
				return -1
			}
		} else {
			start := i
			for i < len(a) && isAlpha(a[i]) {
				i++
			}
			segA = a[start:i]
			start = j
			for j < len(b) && isAlpha(b[j]) {
				j++
			}
			segB = b[start:j]
			if segB == "" {
				return -1
			}
			if segA != segB {
				if segA > segB {
					return 1
				}
				return -1
			}
		}
	}

	switch {
	case i >= len(a) && j >= len(b):
		return 0
	case i >= len(a):
		// a exhausted: b wins unless what remains is a tilde run.
		if j < len(b) && b[j] == '~' {
			return 1
		}
		return -1
	default:
		if i < len(a) && a[i] == '~' {
			return -1
		}
		return 1
	}
}

func trimLeadingZeros(s string) string {
	i := 0
	for i < len(s)-1 && s[i] == '0' {
		i++
	}
	return s[i:]
}
