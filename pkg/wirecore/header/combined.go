package header

import "strings"

// Combined is the single-field header variant: it guarantees at most one
// physical entry per name by folding repeated Add calls into one
// comma-separated value, using RFC 4180-style CSV escaping for individual
// values that themselves contain a comma, quote, or CRLF.
type Combined struct {
	v Values
}

// Add folds value into the single physical entry for name, CSV-escaping it
// if necessary. The first Add for a given name creates the entry; subsequent
// calls append ",<escaped-value>" to it.
func (c *Combined) Add(name, value string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := ValidateValue(value); err != nil {
		return err
	}
	escaped := csvEscape(value)
	if existing, ok := c.v.Get(name); ok {
		return c.v.Set(name, existing+","+escaped)
	}
	return c.v.Add(name, escaped)
}

// Get returns the first (and only) decoded value among the folded list for
// name, if present.
func (c *Combined) Get(name string) (string, bool) {
	all := c.GetAll(name)
	if len(all) == 0 {
		return "", false
	}
	return all[0], true
}

// GetAll decomposes the single physical entry for name back into the list of
// originally added values.
func (c *Combined) GetAll(name string) []string {
	raw, ok := c.v.Get(name)
	if !ok {
		return nil
	}
	return csvSplit(raw)
}

// Has reports whether name has a folded entry.
func (c *Combined) Has(name string) bool {
	return c.v.Has(name)
}

// Del removes the folded entry for name.
func (c *Combined) Del(name string) {
	c.v.Del(name)
}

// Len returns the number of physical (folded) entries — at most one per
// distinct name.
func (c *Combined) Len() int {
	return c.v.Len()
}

// VisitAll calls fn once per physical (folded) entry.
func (c *Combined) VisitAll(fn func(name, value string) bool) {
	c.v.VisitAll(fn)
}

// Reset clears all entries.
func (c *Combined) Reset() {
	c.v.Reset()
}

// csvEscape quotes value if it contains a comma, double quote, CR, or LF,
// doubling any embedded quotes, per RFC 4180 §2.
func csvEscape(value string) string {
	needsQuoting := strings.ContainsAny(value, ",\"\r\n")
	if !needsQuoting {
		return value
	}
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(value); i++ {
		if value[i] == '"' {
			b.WriteByte('"')
		}
		b.WriteByte(value[i])
	}
	b.WriteByte('"')
	return b.String()
}

// csvSplit decomposes a CSV-escaped, comma-joined list back into its
// component values.
func csvSplit(raw string) []string {
	var out []string
	var cur strings.Builder
	inQuotes := false
	i := 0
	for i < len(raw) {
		c := raw[i]
		switch {
		case inQuotes:
			if c == '"' {
				if i+1 < len(raw) && raw[i+1] == '"' {
					cur.WriteByte('"')
					i += 2
					continue
				}
				inQuotes = false
				i++
				continue
			}
			cur.WriteByte(c)
			i++
		case c == '"':
			inQuotes = true
			i++
		case c == ',':
			out = append(out, cur.String())
			cur.Reset()
			i++
		default:
			cur.WriteByte(c)
			i++
		}
	}
	out = append(out, cur.String())
	return out
}
