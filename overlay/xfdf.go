package overlay

import (
	"encoding/xml"
	"fmt"
	"slices"
	"strings"

	"github.com/djvang/pdftron-sign-app/interfaces"
)

// Namespace is the XFDF root namespace.
const Namespace = "http://ns.adobe.com/xfdf/"

// Field is a form field and its current value.
type Field struct {
	Name  string
	Value string
}

// Filled reports whether the field carries a non-blank value.
func (f Field) Filled() bool {
	return strings.TrimSpace(f.Value) != ""
}

// Element is an XML element carried through without interpretation.
type Element struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Inner   string     `xml:",innerxml"`
}

// Attr returns the value of the unqualified attribute name, or "".
func (e Element) Attr(name string) string {
	for _, a := range e.Attrs {
		if a.Name.Space == "" && a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// Key identifies an annotation for merging: its element kind and name
// attribute, or its full content when it has no name.
func (e Element) Key() string {
	if name := e.Attr("name"); name != "" {
		return e.XMLName.Local + "#" + name
	}

	var b strings.Builder
	b.WriteString(e.XMLName.Local)
	for _, a := range e.Attrs {
		fmt.Fprintf(&b, " %s=%q", a.Name.Local, a.Value)
	}
	b.WriteString(">")
	b.WriteString(e.Inner)
	return b.String()
}

// Equal reports whether both elements serialize identically.
func (e Element) Equal(other Element) bool {
	return e.XMLName == other.XMLName &&
		e.Inner == other.Inner &&
		slices.Equal(e.Attrs, other.Attrs)
}

// Owner returns the signer owning the field an annotation is attached to.
func (e Element) Owner() (interfaces.Identity, bool) {
	return FieldOwner(e.Attr("field"))
}

func (e *Element) clone() *Element {
	if e == nil {
		return nil
	}
	c := *e
	c.Attrs = slices.Clone(e.Attrs)
	return &c
}

// normalize drops xmlns attributes; the marshaller re-emits a namespace from
// XMLName when it differs from the XFDF default.
func (e *Element) normalize() {
	if e == nil {
		return
	}
	if e.XMLName.Space == Namespace {
		e.XMLName.Space = ""
	}
	e.Attrs = slices.DeleteFunc(e.Attrs, func(a xml.Attr) bool {
		return a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns")
	})
}

// Document is a parsed XFDF overlay.
type Document struct {
	PDFInfo *Element
	Fields  []Field
	Annots  []Element
	Pages   *Element
}

type wireDocument struct {
	XMLName xml.Name    `xml:"xfdf"`
	Xmlns   string      `xml:"xmlns,attr,omitempty"`
	Space   string      `xml:"http://www.w3.org/XML/1998/namespace space,attr,omitempty"`
	PDFInfo *Element    `xml:"pdf-info,omitempty"`
	Fields  *wireFields `xml:"fields,omitempty"`
	Annots  *wireAnnots `xml:"annots"`
	Pages   *Element    `xml:"pages,omitempty"`
}

type wireFields struct {
	Items []wireField `xml:"field"`
}

type wireField struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value"`
}

type wireAnnots struct {
	Items []Element `xml:",any"`
}

// Parse decodes an XFDF string. An empty string is an empty overlay.
// Malformed XML wraps interfaces.ErrPayloadIntegrity.
func Parse(s string) (*Document, error) {
	if strings.TrimSpace(s) == "" {
		return &Document{}, nil
	}

	var wire wireDocument
	if err := xml.Unmarshal([]byte(s), &wire); err != nil {
		return nil, fmt.Errorf("%w: malformed overlay: %v", interfaces.ErrPayloadIntegrity, err)
	}

	doc := &Document{
		PDFInfo: wire.PDFInfo,
		Pages:   wire.Pages,
	}
	doc.PDFInfo.normalize()
	doc.Pages.normalize()

	if wire.Fields != nil {
		for _, f := range wire.Fields.Items {
			doc.Fields = append(doc.Fields, Field{Name: f.Name, Value: f.Value})
		}
	}
	if wire.Annots != nil {
		for _, a := range wire.Annots.Items {
			a.normalize()
			doc.Annots = append(doc.Annots, a)
		}
	}

	return doc, nil
}

// String serializes the document as XFDF.
func (d *Document) String() (string, error) {
	wire := wireDocument{
		Xmlns:   Namespace,
		Space:   "preserve",
		PDFInfo: d.PDFInfo,
		Annots:  &wireAnnots{Items: d.Annots},
		Pages:   d.Pages,
	}
	if len(d.Fields) > 0 {
		wire.Fields = &wireFields{}
		for _, f := range d.Fields {
			wire.Fields.Items = append(wire.Fields.Items, wireField{Name: f.Name, Value: f.Value})
		}
	}

	out, err := xml.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("failed to serialize overlay: %w", err)
	}
	return xml.Header + string(out), nil
}

// Field returns the field with the given name.
func (d *Document) Field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// SetField sets the value of a field, declaring it if needed.
func (d *Document) SetField(name, value string) {
	for i := range d.Fields {
		if d.Fields[i].Name == name {
			d.Fields[i].Value = value
			return
		}
	}
	d.Fields = append(d.Fields, Field{Name: name, Value: value})
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	c := &Document{
		PDFInfo: d.PDFInfo.clone(),
		Fields:  slices.Clone(d.Fields),
		Pages:   d.Pages.clone(),
	}
	for _, a := range d.Annots {
		c.Annots = append(c.Annots, *a.clone())
	}
	return c
}
