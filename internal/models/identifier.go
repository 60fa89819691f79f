package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Level is one scope of the plan hierarchy.
type Level byte

const (
	LevelNone Level = 0
	LevelA    Level = 'A' // workbook
	LevelB    Level = 'B' // sheet / exercise block
	LevelC    Level = 'C' // program + action code
	LevelD    Level = 'D' // product
	LevelE    Level = 'E' // public target
	LevelF    Level = 'F' // delivery plan
	LevelG    Level = 'G' // sub-action
	LevelH    Level = 'H' // stage
	LevelI    Level = 'I' // region of planning
	LevelN    Level = 'N' // product total
)

// String returns the segment letter, or "-" for LevelNone.
func (l Level) String() string {
	if l == LevelNone {
		return "-"
	}
	return string(rune(l))
}

func isLevelLetter(b byte) bool {
	switch Level(b) {
	case LevelA, LevelB, LevelC, LevelD, LevelE, LevelF, LevelG, LevelH, LevelI, LevelN:
		return true
	}
	return false
}

// Identifier is a dotted hierarchical path such as A1.B1.C2.2009.D1.F1.G3.
// The C segment carries the action code as an extra numeric segment so that
// two actions of the same program never share a node.
type Identifier string

var identifierPattern = regexp.MustCompile(
	`^A\d+(?:\.B\d+(?:\.C\d+\.\d+(?:\.D\d+(?:\.N\d+|(?:\.E\d+)?(?:\.F\d+(?:\.G\d+(?:\.H\d+(?:\.I\d+)?)?)?)?)?)?)?)?$`,
)

// ParseIdentifier validates s and returns it as an Identifier.
func ParseIdentifier(s string) (Identifier, error) {
	if !identifierPattern.MatchString(s) {
		return "", fmt.Errorf("malformed identifier: %q", s)
	}
	return Identifier(s), nil
}

// IsZero reports whether the identifier is empty.
func (id Identifier) IsZero() bool {
	return id == ""
}

// IsWellFormed reports whether the identifier follows the segment grammar.
func (id Identifier) IsWellFormed() bool {
	return identifierPattern.MatchString(string(id))
}

func (id Identifier) String() string {
	return string(id)
}

func (id Identifier) segments() []string {
	if id == "" {
		return nil
	}
	return strings.Split(string(id), ".")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Level returns the scope of the last segment.
func (id Identifier) Level() Level {
	segs := id.segments()
	if len(segs) == 0 {
		return LevelNone
	}
	last := segs[len(segs)-1]
	if isDigits(last) {
		if len(segs) >= 2 && strings.HasPrefix(segs[len(segs)-2], "C") {
			return LevelC
		}
		return LevelNone
	}
	if !isLevelLetter(last[0]) {
		return LevelNone
	}
	return Level(last[0])
}

// Parent drops the last segment. For an action identifier the program
// counter and the code are dropped together.
func (id Identifier) Parent() Identifier {
	segs := id.segments()
	n := len(segs)
	if n <= 1 {
		return ""
	}
	if isDigits(segs[n-1]) && n >= 2 && strings.HasPrefix(segs[n-2], "C") {
		return Identifier(strings.Join(segs[:n-2], "."))
	}
	return Identifier(strings.Join(segs[:n-1], "."))
}

// Ancestor walks up until it reaches the given level, the identifier itself
// included. It returns "" when the level is not on the path.
func (id Identifier) Ancestor(level Level) Identifier {
	for cur := id; cur != ""; cur = cur.Parent() {
		if cur.Level() == level {
			return cur
		}
	}
	return ""
}

// Index returns the counter of the last lettered segment (the program counter
// for an action identifier), or 0.
func (id Identifier) Index() int {
	segs := id.segments()
	for i := len(segs) - 1; i >= 0; i-- {
		s := segs[i]
		if s != "" && isLevelLetter(s[0]) {
			n, err := strconv.Atoi(s[1:])
			if err != nil {
				return 0
			}
			return n
		}
	}
	return 0
}

// Code returns the action code of the C scope on the path, or "".
func (id Identifier) Code() string {
	c := id.Ancestor(LevelC)
	segs := c.segments()
	if len(segs) == 0 || !isDigits(segs[len(segs)-1]) {
		return ""
	}
	return segs[len(segs)-1]
}

// Child appends a lettered segment.
func (id Identifier) Child(level Level, n int) Identifier {
	seg := level.String() + strconv.Itoa(n)
	if id == "" {
		return Identifier(seg)
	}
	return Identifier(string(id) + "." + seg)
}

// Base returns the program base of the C scope on the path: the action
// identifier without its code. It returns "" off a C path.
func (id Identifier) Base() Identifier {
	segs := id.Ancestor(LevelC).segments()
	if len(segs) < 2 {
		return ""
	}
	return Identifier(strings.Join(segs[:len(segs)-1], "."))
}

// WithCode appends an action code to a program base identifier.
func (id Identifier) WithCode(code string) Identifier {
	return Identifier(string(id) + "." + code)
}
