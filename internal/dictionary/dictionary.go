// Package dictionary maps recognition class indices to characters.
//
// Class layout: index 0 is the CTC blank, indices 1..N are the dictionary
// entries in file order and index N+1 is the space character.
package dictionary

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/ironsheep/ocr-engine/internal/ocrerr"
)

// Blank is the class index reserved for the CTC blank symbol.
const Blank = 0

// Dictionary is an immutable index to character table. It is safe for
// concurrent readers.
type Dictionary struct {
	entries []string
	index   map[string]int
	folded  map[string]int
}

// Option adjusts how a dictionary is built.
type Option func(*options)

type options struct {
	caseInsensitive bool
}

// WithCaseInsensitive lets Lookup match entries regardless of letter case.
func WithCaseInsensitive() Option {
	return func(o *options) { o.caseInsensitive = true }
}

// Load reads a dictionary file with one entry per line.
func Load(path string, opts ...Option) (*Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dictionary: %w", err)
	}
	defer f.Close()
	return Parse(f, opts...)
}

// FromBytes parses a dictionary held in memory.
func FromBytes(data []byte, opts ...Option) (*Dictionary, error) {
	return Parse(bytes.NewReader(data), opts...)
}

// Parse reads entries from r. Line terminators are stripped and entries are
// NFC-normalized. Empty lines are skipped.
func Parse(r io.Reader, opts ...Option) (*Dictionary, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	d := &Dictionary{index: make(map[string]int)}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Bytes()
		if !utf8.Valid(raw) {
			return nil, fmt.Errorf("dictionary line %d: invalid UTF-8", lineNo)
		}
		entry := norm.NFC.String(strings.TrimRight(string(raw), "\r\n"))
		if entry == "" {
			continue
		}
		if _, dup := d.index[entry]; !dup {
			d.index[entry] = len(d.entries) + 1
		}
		d.entries = append(d.entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dictionary: %w", err)
	}
	if len(d.entries) == 0 {
		return nil, ocrerr.ErrEmptyDictionary
	}

	if o.caseInsensitive {
		fold := cases.Fold()
		d.folded = make(map[string]int, len(d.entries))
		for i, e := range d.entries {
			key := fold.String(e)
			if _, dup := d.folded[key]; !dup {
				d.folded[key] = i + 1
			}
		}
	}
	return d, nil
}

// Len returns the number of file entries, excluding blank and space.
func (d *Dictionary) Len() int {
	return len(d.entries)
}

// NumClasses is the number of recognition classes the dictionary expects.
func (d *Dictionary) NumClasses() int {
	return len(d.entries) + 2
}

// SpaceIndex is the class index of the trailing space entry.
func (d *Dictionary) SpaceIndex() int {
	return len(d.entries) + 1
}

// Char returns the character for a class index. The blank and out of range
// indices return ok == false.
func (d *Dictionary) Char(idx int) (string, bool) {
	switch {
	case idx == d.SpaceIndex():
		return " ", true
	case idx >= 1 && idx <= len(d.entries):
		return d.entries[idx-1], true
	default:
		return "", false
	}
}

// Lookup returns the class index for a character, honouring case folding
// when the dictionary was built case-insensitive.
func (d *Dictionary) Lookup(ch string) (int, bool) {
	ch = norm.NFC.String(ch)
	if ch == " " {
		return d.SpaceIndex(), true
	}
	if idx, ok := d.index[ch]; ok {
		return idx, true
	}
	if d.folded != nil {
		idx, ok := d.folded[cases.Fold().String(ch)]
		return idx, ok
	}
	return 0, false
}

// Entries returns a copy of the file entries in class order.
func (d *Dictionary) Entries() []string {
	out := make([]string, len(d.entries))
	copy(out, d.entries)
	return out
}

// Normalize maps text onto dictionary spelling. With case folding enabled a
// character missing from the dictionary is replaced by its folded match, so
// "hello" reads as "HELLO" against an upper-case only dictionary.
func (d *Dictionary) Normalize(text string) string {
	if d.folded == nil {
		return text
	}
	var b strings.Builder
	for _, r := range text {
		ch := string(r)
		if _, ok := d.index[ch]; ok || ch == " " {
			b.WriteString(ch)
			continue
		}
		if idx, ok := d.Lookup(ch); ok {
			b.WriteString(d.entries[idx-1])
			continue
		}
		b.WriteString(ch)
	}
	return b.String()
}
