package capability

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// DeclarationMarker selects the lines of the reference header that declare
// a registration method.
const DeclarationMarker = "TfLiteStatus Add"

// Set is the read-only set of registration identifiers a runtime declares.
type Set struct {
	ids map[string]struct{}
}

// NewSet returns a Set holding ids.
func NewSet(ids ...string) Set {
	s := Set{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

// Contains reports whether id is declared.
func (s Set) Contains(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of declared identifiers.
func (s Set) Len() int {
	return len(s.ids)
}

// Sorted returns the declared identifiers in byte order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Load parses the reference header at path.
func Load(path string) (Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return Set{}, fmt.Errorf("opening reference header: %w", err)
	}
	defer f.Close()

	set, err := Parse(f)
	if err != nil {
		return Set{}, fmt.Errorf("reading reference header %s: %w", path, err)
	}
	return set, nil
}

// Parse extracts registration identifiers from a reference header.
func Parse(r io.Reader) (Set, error) {
	set := NewSet()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if id, ok := parseDeclaration(scanner.Text()); ok {
			set.ids[id] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return Set{}, err
	}
	return set, nil
}

// parseDeclaration returns the method name of a declaration line: the
// second token, cut at the opening parenthesis.
func parseDeclaration(line string) (string, bool) {
	if !strings.Contains(line, DeclarationMarker) {
		return "", false
	}
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return "", false
	}
	id, _, _ := strings.Cut(fields[1], "(")
	if id == "" {
		return "", false
	}
	return id, true
}
