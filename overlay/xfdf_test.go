package overlay

import (
	"strings"
	"testing"

	"github.com/djvang/pdftron-sign-app/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleXFDF = `<?xml version="1.0" encoding="UTF-8" ?>
<xfdf xmlns="http://ns.adobe.com/xfdf/" xml:space="preserve">
  <pdf-info xmlns="http://www.pdftron.com/pdfinfo" version="2" import-version="4">
    <ffield type="Sig" name="0x4b0248658421c5BdBa044f12776D8611d2c651aF_SIGNATURE_1000" />
  </pdf-info>
  <fields>
    <field name="SignatureFormField 1"><value></value></field>
    <field name="0x4b0248658421c5BdBa044f12776D8611d2c651aF_SIGNATURE_1000"><value></value></field>
    <field name="0xA7EC01b4AAB4Cc8c1c101a87C275C08e7C4F2675_TEXT_2000"><value>Bob Example</value></field>
  </fields>
  <annots>
    <ink page="0" name="79b74489" title="Guest" subject="Signature"><inklist><gesture>255.6,616.9;258.1,615.6</gesture></inklist></ink>
    <square page="1" name="b2" />
  </annots>
  <pages><defmtx matrix="1,0,0,-1,0,1056" /></pages>
</xfdf>`

func TestParseXFDF(t *testing.T) {
	doc, err := Parse(sampleXFDF)
	require.NoError(t, err)

	require.Len(t, doc.Fields, 3)
	assert.Equal(t, "SignatureFormField 1", doc.Fields[0].Name)
	assert.False(t, doc.Fields[1].Filled())

	f, ok := doc.Field("0xA7EC01b4AAB4Cc8c1c101a87C275C08e7C4F2675_TEXT_2000")
	require.True(t, ok)
	assert.Equal(t, "Bob Example", f.Value)

	require.Len(t, doc.Annots, 2)
	assert.Equal(t, "ink", doc.Annots[0].XMLName.Local)
	assert.Equal(t, "79b74489", doc.Annots[0].Attr("name"))
	assert.Contains(t, doc.Annots[0].Inner, "<gesture>")
	assert.Equal(t, "square#b2", doc.Annots[1].Key())

	require.NotNil(t, doc.PDFInfo)
	assert.Equal(t, "http://www.pdftron.com/pdfinfo", doc.PDFInfo.XMLName.Space)
	assert.Equal(t, "2", doc.PDFInfo.Attr("version"))
	assert.Empty(t, doc.PDFInfo.Attr("xmlns"))
	require.NotNil(t, doc.Pages)
}

func TestXFDFRoundTrip(t *testing.T) {
	doc, err := Parse(sampleXFDF)
	require.NoError(t, err)

	out, err := doc.String()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(t, out, `<xfdf xmlns="http://ns.adobe.com/xfdf/" xml:space="preserve">`)
	assert.Contains(t, out, `<pdf-info xmlns="http://www.pdftron.com/pdfinfo" version="2" import-version="4">`)
	assert.Contains(t, out, `<field name="SignatureFormField 1"><value></value></field>`)

	reparsed, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, doc, reparsed)

	again, err := reparsed.String()
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestStringDeclaresNamespace(t *testing.T) {
	doc := &Document{Fields: []Field{{Name: "a", Value: "b"}}}

	out, err := doc.String()
	require.NoError(t, err)
	assert.Contains(t, out, `<xfdf xmlns="http://ns.adobe.com/xfdf/" xml:space="preserve"><fields><field name="a"><value>b</value></field></fields>`)
	assert.Equal(t, 1, strings.Count(out, "xmlns="))

	reparsed, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, doc.Fields, reparsed.Fields)
}

func TestParseEmptyAndMalformed(t *testing.T) {
	doc, err := Parse("  ")
	require.NoError(t, err)
	assert.Empty(t, doc.Fields)
	assert.Empty(t, doc.Annots)

	out, err := doc.String()
	require.NoError(t, err)
	assert.Contains(t, out, "<annots></annots>")

	_, err = Parse("<xfdf><fields>")
	assert.ErrorIs(t, err, interfaces.ErrPayloadIntegrity)

	_, err = Parse(`{"fields":[]}`)
	assert.ErrorIs(t, err, interfaces.ErrPayloadIntegrity)
}

func TestSetFieldAndClone(t *testing.T) {
	doc, err := Parse(sampleXFDF)
	require.NoError(t, err)

	clone := doc.Clone()
	clone.SetField("SignatureFormField 1", "signed")
	clone.SetField("new", "value")
	clone.Annots[0].Attrs[0].Value = "9"

	f, _ := doc.Field("SignatureFormField 1")
	assert.Empty(t, f.Value)
	_, ok := doc.Field("new")
	assert.False(t, ok)
	assert.Equal(t, "0", doc.Annots[0].Attr("page"))

	f, _ = clone.Field("SignatureFormField 1")
	assert.Equal(t, "signed", f.Value)
	assert.Len(t, clone.Fields, 4)
}
