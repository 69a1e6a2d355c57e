package fieldpath

import (
	"strconv"
	"strings"
)

var containerNames = map[string]bool{
	"to":    true,
	"from":  true,
	"value": true,
}

// Parse tokenizes a path expression into segments. It never touches a value
// tree; all failures here are MalformedPath.
func Parse(raw string) (*Path, *ResolveError) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, newErr(MalformedPath, raw, "empty expression")
	}

	if strings.HasPrefix(s, "@") {
		name := strings.TrimPrefix(s, "@.")
		if name == s || !containerNames[name] {
			return nil, newErr(MalformedPath, raw, "container paths are @.to, @.from and @.value")
		}
		return &Path{Raw: raw, Segments: []Segment{{Kind: Container, Name: name}}}, nil
	}

	// a leading "#." addresses the calldata root explicitly; it is optional
	s = strings.TrimPrefix(s, "#.")

	segments := []Segment{}
	for _, piece := range splitDots(s) {
		segs, err := parsePiece(raw, piece)
		if err != nil {
			return nil, err
		}
		segments = append(segments, segs...)
	}
	if len(segments) == 0 {
		return nil, newErr(MalformedPath, raw, "no segments")
	}
	return &Path{Raw: raw, Segments: segments}, nil
}

// splitDots splits on '.' outside of bracket groups.
func splitDots(s string) []string {
	pieces := []string{}
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
		case '.':
			if depth == 0 {
				pieces = append(pieces, s[start:i])
				start = i + 1
			}
		}
	}
	return append(pieces, s[start:])
}

func parsePiece(raw, piece string) ([]Segment, *ResolveError) {
	ident := piece
	rest := ""
	if i := strings.Index(piece, "["); i >= 0 {
		ident, rest = piece[:i], piece[i:]
	}

	segments := []Segment{}
	if ident != "" {
		if !validIdentifier(ident) {
			return nil, newErr(MalformedPath, raw, "invalid identifier %q", ident)
		}
		segments = append(segments, Segment{Kind: Field, Name: ident})
	}

	for rest != "" {
		if rest[0] != '[' {
			return nil, newErr(MalformedPath, raw, "unexpected %q after bracket group", rest)
		}
		close := strings.IndexByte(rest, ']')
		if close < 0 {
			return nil, newErr(MalformedPath, raw, "unterminated bracket group")
		}
		seg, err := parseBracket(raw, rest[1:close])
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
		rest = rest[close+1:]
	}

	if len(segments) == 0 {
		return nil, newErr(MalformedPath, raw, "empty segment")
	}
	return segments, nil
}

func parseBracket(raw, inner string) (Segment, *ResolveError) {
	if strings.Contains(inner, ":") {
		parts := strings.SplitN(inner, ":", 2)
		seg := Segment{Kind: Slice}
		if v, ok, err := parseBound(raw, parts[0]); err != nil {
			return Segment{}, err
		} else if ok {
			seg.Start = &v
		}
		if v, ok, err := parseBound(raw, parts[1]); err != nil {
			return Segment{}, err
		} else if ok {
			seg.End = &v
		}
		return seg, nil
	}

	v, err := strconv.Atoi(strings.TrimSpace(inner))
	if err != nil {
		return Segment{}, newErr(MalformedPath, raw, "invalid index %q", inner)
	}
	return Segment{Kind: Index, Idx: v}, nil
}

func parseBound(raw, s string) (int, bool, *ResolveError) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false, newErr(MalformedPath, raw, "invalid slice bound %q", s)
	}
	return v, true, nil
}

func validIdentifier(s string) bool {
	for i, r := range s {
		switch {
		case r == '_':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
