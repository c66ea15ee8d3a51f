// Package predicate builds and parses the repository query predicates.
//
// A predicate is a concatenation of bracketed clauses, for example
//
//	[at(document.type,"template-post")][fulltext(document,"rust")]
package predicate

import (
	"fmt"
	"strings"
)

// At returns an at() clause matching path against value.
func At(path, value string) string {
	return fmt.Sprintf(`[at(%s,"%s")]`, path, escape(value))
}

// TypeFilter returns the base predicate restricting results to documentType.
func TypeFilter(documentType string) string {
	return At("document.type", documentType)
}

// Fulltext returns the full-text clause for term.
func Fulltext(term string) string {
	return fmt.Sprintf(`[fulltext(document,"%s")]`, escape(term))
}

// Build conjoins base with a full-text clause when term is not empty.
func Build(base, term string) string {
	if term == "" {
		return base
	}
	return base + Fulltext(term)
}

// Wrap encloses a predicate in the outer brackets of the q query parameter.
func Wrap(p string) string {
	return "[" + p + "]"
}

// Unwrap strips the outer brackets added by Wrap. Unwrapped input is returned as is.
func Unwrap(q string) string {
	q = strings.TrimSpace(q)
	if strings.HasPrefix(q, "[[") && strings.HasSuffix(q, "]]") {
		return q[1 : len(q)-1]
	}
	return q
}

var (
	escaper   = strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	unescaper = strings.NewReplacer(`\\`, `\`, `\"`, `"`)
)

func escape(s string) string {
	return escaper.Replace(s)
}

// Clause is one parsed predicate clause.
type Clause struct {
	Op   string
	Path string
	Arg  string
}

// Filter is the structured form of a predicate understood by local backends.
type Filter struct {
	DocumentType string
	Fulltext     string
}

// Parse splits a predicate string into clauses.
func Parse(s string) ([]Clause, error) {
	var clauses []Clause
	rest := strings.TrimSpace(s)
	for rest != "" {
		if rest[0] != '[' {
			return nil, fmt.Errorf("predicate %q: expected '[' at %q", s, rest)
		}
		end := closing(rest)
		if end < 0 {
			return nil, fmt.Errorf("predicate %q: unterminated clause", s)
		}
		c, err := parseClause(rest[1:end])
		if err != nil {
			return nil, fmt.Errorf("predicate %q: %w", s, err)
		}
		clauses = append(clauses, c)
		rest = strings.TrimSpace(rest[end+1:])
	}
	return clauses, nil
}

// ParseFilter parses s and maps the known clauses into a Filter.
func ParseFilter(s string) (Filter, error) {
	clauses, err := Parse(s)
	if err != nil {
		return Filter{}, err
	}
	var f Filter
	for _, c := range clauses {
		switch {
		case c.Op == "at" && c.Path == "document.type":
			f.DocumentType = c.Arg
		case c.Op == "fulltext" && c.Path == "document":
			f.Fulltext = c.Arg
		default:
			return Filter{}, fmt.Errorf("unsupported clause %s(%s)", c.Op, c.Path)
		}
	}
	return f, nil
}

// closing returns the index of the ']' that ends the clause opened at s[0],
// ignoring brackets inside quoted arguments.
func closing(s string) int {
	inQuote := false
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			inQuote = !inQuote
		case ']':
			if !inQuote {
				return i
			}
		}
	}
	return -1
}

func parseClause(body string) (Clause, error) {
	open := strings.IndexByte(body, '(')
	if open <= 0 || !strings.HasSuffix(body, ")") {
		return Clause{}, fmt.Errorf("malformed clause %q", body)
	}
	op := body[:open]
	args := body[open+1 : len(body)-1]

	comma := strings.IndexByte(args, ',')
	if comma < 0 {
		return Clause{}, fmt.Errorf("clause %q: expected two arguments", body)
	}
	path := strings.TrimSpace(args[:comma])
	arg := strings.TrimSpace(args[comma+1:])
	if len(arg) < 2 || arg[0] != '"' || arg[len(arg)-1] != '"' {
		return Clause{}, fmt.Errorf("clause %q: argument must be quoted", body)
	}
	return Clause{
		Op:   op,
		Path: path,
		Arg:  unescaper.Replace(arg[1 : len(arg)-1]),
	}, nil
}
