package storage

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokPunct
)

type token struct {
	kind   tokenKind
	text   string
	quoted bool
}

func (t token) keyword(kw string) bool {
	return t.kind == tokIdent && !t.quoted && strings.EqualFold(t.text, kw)
}

func (t token) punct(p string) bool {
	return t.kind == tokPunct && t.text == p
}

// fromListEnd holds the keywords that close a comma separated FROM list.
var fromListEnd = map[string]bool{
	"WHERE": true, "GROUP": true, "ORDER": true, "LIMIT": true, "HAVING": true,
	"UNION": true, "EXCEPT": true, "INTERSECT": true, "WINDOW": true,
	"SELECT": true, "VALUES": true, "RETURNING": true,
}

// Deps returns the table names referenced by q after FROM or JOIN, including
// comma separated FROM lists, in order of first appearance. Names defined by
// a WITH clause and table-valued functions are excluded, quotes are removed
// and a leading `main.` qualifier is dropped.
func (s *Store) Deps(q string) ([]string, error) {
	return Deps(q)
}

// Deps is the store-independent implementation of Store.Deps.
func Deps(q string) ([]string, error) {
	toks, err := tokenize(q)
	if err != nil {
		return nil, err
	}

	ctes := cteNames(toks)
	seen := map[string]bool{}
	var out []string
	record := func(name string) {
		key := strings.ToLower(name)
		if ctes[key] || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, name)
	}

	depth := 0
	inFrom := map[int]bool{}
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		switch {
		case t.punct("("):
			depth++
		case t.punct(")"):
			delete(inFrom, depth)
			depth--
		case t.punct(";"):
			inFrom = map[int]bool{}
		case t.keyword("FROM"), t.keyword("JOIN"):
			if t.keyword("FROM") {
				inFrom[depth] = true
			}
			if name, next, ok := tableRef(toks, i+1); ok {
				record(name)
				i = next - 1
			}
		case t.punct(","):
			if inFrom[depth] {
				if name, next, ok := tableRef(toks, i+1); ok {
					record(name)
					i = next - 1
				}
			}
		case t.kind == tokIdent && !t.quoted && fromListEnd[strings.ToUpper(t.text)]:
			delete(inFrom, depth)
		}
	}
	return out, nil
}

// tableRef reads a possibly qualified table name starting at toks[i]. It
// reports false for subqueries and table-valued function calls.
func tableRef(toks []token, i int) (string, int, bool) {
	if i >= len(toks) || toks[i].kind != tokIdent {
		return "", i, false
	}
	parts := []string{toks[i].text}
	j := i + 1
	for j+1 < len(toks) && toks[j].punct(".") && toks[j+1].kind == tokIdent {
		parts = append(parts, toks[j+1].text)
		j += 2
	}
	if j < len(toks) && toks[j].punct("(") {
		return "", i, false
	}
	if len(parts) > 1 && strings.EqualFold(parts[0], "main") {
		parts = parts[1:]
	}
	return strings.Join(parts, "."), j, true
}

// cteNames collects names bound by `name AS (` or `name (cols) AS (`.
func cteNames(toks []token) map[string]bool {
	names := map[string]bool{}
	for i := 0; i < len(toks); i++ {
		if toks[i].kind != tokIdent || toks[i].keyword("AS") {
			continue
		}
		j := i + 1
		if j < len(toks) && toks[j].punct("(") {
			// Skip a column list.
			depth := 0
			for ; j < len(toks); j++ {
				if toks[j].punct("(") {
					depth++
				} else if toks[j].punct(")") {
					depth--
					if depth == 0 {
						break
					}
				}
			}
			j++
		}
		if j+1 < len(toks) && toks[j].keyword("AS") {
			k := j + 1
			for k < len(toks) && (toks[k].keyword("NOT") || toks[k].keyword("MATERIALIZED")) {
				k++
			}
			if k < len(toks) && toks[k].punct("(") {
				names[strings.ToLower(toks[i].text)] = true
			}
		}
	}
	return names
}

func tokenize(q string) ([]token, error) {
	var toks []token
	for i := 0; i < len(q); {
		c := q[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '-' && i+1 < len(q) && q[i+1] == '-':
			for i < len(q) && q[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(q) && q[i+1] == '*':
			end := strings.Index(q[i+2:], "*/")
			if end < 0 {
				return nil, fmt.Errorf("unterminated comment in query")
			}
			i += end + 4
		case c == '\'':
			end, _, err := scanQuoted(q, i, '\'')
			if err != nil {
				return nil, err
			}
			i = end
		case c == '"' || c == '`':
			end, text, err := scanQuoted(q, i, c)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tokIdent, text: text, quoted: true})
			i = end
		case c == '[':
			end := strings.IndexByte(q[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("unterminated identifier in query")
			}
			toks = append(toks, token{kind: tokIdent, text: q[i+1 : i+end], quoted: true})
			i += end + 1
		case isIdentStart(c):
			j := i + 1
			for j < len(q) && isIdentPart(q[j]) {
				j++
			}
			toks = append(toks, token{kind: tokIdent, text: q[i:j]})
			i = j
		case c >= '0' && c <= '9':
			j := i + 1
			for j < len(q) && (isIdentPart(q[j]) || q[j] == '.') {
				j++
			}
			i = j
		default:
			toks = append(toks, token{kind: tokPunct, text: string(c)})
			i++
		}
	}
	return toks, nil
}

// scanQuoted reads a quoted run starting at q[i] where doubled quotes escape
// themselves. It returns the index after the closing quote and the unquoted text.
func scanQuoted(q string, i int, quote byte) (int, string, error) {
	var b strings.Builder
	for j := i + 1; j < len(q); j++ {
		if q[j] == quote {
			if j+1 < len(q) && q[j+1] == quote {
				b.WriteByte(quote)
				j++
				continue
			}
			return j + 1, b.String(), nil
		}
		b.WriteByte(q[j])
	}
	return 0, "", fmt.Errorf("unterminated %c quote in query", quote)
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9') || c == '$'
}
