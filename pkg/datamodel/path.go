package datamodel

import (
	"fmt"
	"strings"

	"github.com/flowgate/flowgate/pkg/domain"
)

// Root is the mandatory first segment of every data model path.
const Root = "/workflow"

// Segment is one step of a parsed path: either an object key or an array
// index.
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

// Path is a parsed path expression. Grammar:
//
//	/workflow ( /segment | [index] | .field )*
//
// Segments and fields are non-empty runs of [A-Za-z0-9_-].
type Path struct {
	raw  string
	Segs []Segment
}

// String returns the original path expression.
func (p Path) String() string { return p.raw }

// HasPrefix reports whether other is a prefix of p (or equal). A write at
// a prefix path makes every extension of it readable.
func (p Path) HasPrefix(other Path) bool {
	if len(other.Segs) > len(p.Segs) {
		return false
	}
	for i, s := range other.Segs {
		if s != p.Segs[i] {
			return false
		}
	}
	return true
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '-' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// ParsePath parses a path expression, rejecting anything not rooted at
// /workflow.
func ParsePath(raw string) (Path, error) {
	if raw != Root && !strings.HasPrefix(raw, Root+"/") &&
		!strings.HasPrefix(raw, Root+"[") && !strings.HasPrefix(raw, Root+".") {
		return Path{}, domain.NewDataError(fmt.Sprintf("path must start with %s", Root), raw)
	}

	p := Path{raw: raw}
	rest := raw[len(Root):]
	for len(rest) > 0 {
		switch rest[0] {
		case '/', '.':
			i := 1
			for i < len(rest) && isIdentByte(rest[i]) {
				i++
			}
			if i == 1 {
				return Path{}, domain.NewDataError("empty path segment", raw)
			}
			p.Segs = append(p.Segs, Segment{Key: rest[1:i]})
			rest = rest[i:]
		case '[':
			i := 1
			n := 0
			for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
				n = n*10 + int(rest[i]-'0')
				i++
			}
			if i == 1 || i >= len(rest) || rest[i] != ']' {
				return Path{}, domain.NewDataError("malformed array index", raw)
			}
			p.Segs = append(p.Segs, Segment{Index: n, IsIndex: true})
			rest = rest[i+1:]
		default:
			return Path{}, domain.NewDataError(fmt.Sprintf("unexpected character %q in path", rest[0]), raw)
		}
	}
	return p, nil
}

// IsPath reports whether raw parses as a complete path expression. Used to
// recognize bare path strings embedded in operation arguments.
func IsPath(raw string) bool {
	if !strings.HasPrefix(raw, Root) {
		return false
	}
	_, err := ParsePath(raw)
	return err == nil
}
