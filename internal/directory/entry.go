package directory

import "strings"

// Attribute is one named, possibly multi-valued directory attribute.
// Binary is set for attributes the client always decodes specially
// (objectSid, unicodePwd) rather than treating as UTF-8 text.
type Attribute struct {
    Name   string
    Values []string
    Binary bool
}

// Entry is an ordered directory entry: a DN plus attribute values.
// Attribute names are case-insensitive.
type Entry struct {
    DN    string
    attrs map[string]*Attribute // keyed by lower-cased name
    order []string              // lower-cased names in server-delivered order
}

// binaryAttrs are the known binary attributes: callers get raw octets
// for these, decoded strings for everything else.
var binaryAttrs = map[string]bool{
    "objectsid":  true,
    "unicodepwd": true,
}

func newEntry(dn string) *Entry {
    return &Entry{
        DN:    dn,
        attrs: make(map[string]*Attribute),
    }
}

func (e *Entry) set(name string, values []string, binary bool) {
    key := strings.ToLower(name)
    if _, exists := e.attrs[key]; !exists {
        e.order = append(e.order, key)
    }
    e.attrs[key] = &Attribute{Name: name, Values: values, Binary: binary}
}

func (e *Entry) appendValues(name string, values []string) {
    key := strings.ToLower(name)
    a, exists := e.attrs[key]
    if !exists {
        e.set(name, values, binaryAttrs[key])
        return
    }
    a.Values = append(a.Values, values...)
}

// Get returns the attribute named attr (case-insensitive), or nil.
func (e *Entry) Get(attr string) *Attribute {
    return e.attrs[strings.ToLower(attr)]
}

// Value returns the first value of attr, or "" if absent.
func (e *Entry) Value(attr string) string {
    a := e.Get(attr)
    if a == nil || len(a.Values) == 0 {
        return ""
    }
    return a.Values[0]
}

// Values returns all values of attr, or nil if absent.
func (e *Entry) Values(attr string) []string {
    a := e.Get(attr)
    if a == nil {
        return nil
    }
    return a.Values
}

// Attributes returns the entry's attributes in server-delivered order.
func (e *Entry) Attributes() []*Attribute {
    out := make([]*Attribute, 0, len(e.order))
    for _, k := range e.order {
        out = append(out, e.attrs[k])
    }
    return out
}
