package schema

import (
	"fmt"
	"regexp"
	"strings"
)

// Reserved column names. Documents cannot declare fields with these names.
const (
	IDColumn   = "id"
	BodyColumn = "body"
)

var (
	segmentRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)
	indexRe   = regexp.MustCompile(`^[0-9]+$`)
	pathRe    = regexp.MustCompile(`^\$(\.[A-Za-z_][A-Za-z0-9_-]*|\[[0-9]+\])+$`)
	tableRe   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// ValidateFieldName checks a dotted field name. Each segment is an
// identifier ([A-Za-z_][A-Za-z0-9_-]*) or a decimal array index. Field names
// end up inside SQL string literals, so nothing else is accepted.
func ValidateFieldName(name string) error {
	if name == "" {
		return fmt.Errorf("empty field name")
	}
	for i, seg := range strings.Split(name, ".") {
		if segmentRe.MatchString(seg) {
			continue
		}
		if i > 0 && indexRe.MatchString(seg) {
			continue
		}
		return fmt.Errorf("field %q: malformed segment %q", name, seg)
	}
	return nil
}

// ValidatePath checks a JSON path of the form $.a.b[0].c.
func ValidatePath(path string) error {
	if !pathRe.MatchString(path) {
		return fmt.Errorf("malformed JSON path %q", path)
	}
	return nil
}

// DefaultPath maps a field name to its JSON path: "items.0.sku" becomes
// "$.items[0].sku". The name must be valid.
func DefaultPath(name string) string {
	var b strings.Builder
	b.WriteString("$")
	for _, seg := range strings.Split(name, ".") {
		if indexRe.MatchString(seg) {
			b.WriteString("[" + seg + "]")
			continue
		}
		b.WriteString("." + seg)
	}
	return b.String()
}

// RelativePath maps a field name to the path suffix appended to an array
// element's full key: "sku" becomes ".sku", "dims.0" becomes ".dims[0]".
func RelativePath(name string) string {
	return strings.TrimPrefix(DefaultPath(name), "$")
}

// Column is the generated column name of a field: "_" followed by the name
// with every byte outside [A-Za-z0-9_] replaced by "_".
func Column(name string) string {
	b := make([]byte, 0, len(name)+1)
	b = append(b, '_')
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
			b = append(b, c)
		default:
			b = append(b, '_')
		}
	}
	return string(b)
}

// ValidateTableName checks a collection table name.
func ValidateTableName(table string) error {
	if !tableRe.MatchString(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	return nil
}

// QuoteIdent quotes an identifier for SQLite.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
