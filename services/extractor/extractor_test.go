package extractor

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func newTestService() *Service {
	return NewService(nil)
}

func buildZip(t *testing.T, entries map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range entries {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	return buf.Bytes()
}

func TestExtractPlainText(t *testing.T) {
	s := newTestService()

	text, extracted := s.Extract([]byte("hello world"), "text/plain")

	assert.True(t, extracted)
	assert.Equal(t, "hello world", text)
}

func TestExtractPlainTextReplacesInvalidBytes(t *testing.T) {
	s := newTestService()

	text, extracted := s.Extract([]byte{'o', 'k', 0xff, 0xfe}, "text/plain; charset=utf-8")

	assert.True(t, extracted)
	assert.Contains(t, text, "ok")
	assert.NotContains(t, text, "\xff")
}

func TestExtractJSON(t *testing.T) {
	s := newTestService()

	text, extracted := s.Extract([]byte(`{"invoice": 7}`), "application/json")

	assert.True(t, extracted)
	assert.Equal(t, `{"invoice": 7}`, text)
}

func TestExtractHTML(t *testing.T) {
	s := newTestService()

	input := `<html><head><style>p{color:red}</style><script>alert(1)</script></head>` +
		`<body><h1>Invoice</h1><p>please   pay <b>now</b></p></body></html>`

	text, extracted := s.Extract([]byte(input), "text/html")

	assert.True(t, extracted)
	assert.Equal(t, "Invoice please pay now", text)
}

func TestExtractRTF(t *testing.T) {
	s := newTestService()

	input := `{\rtf1\ansi\deff0 {\fonttbl{\f0 Arial;}}Hello\par World\tab done}`

	text, extracted := s.Extract([]byte(input), "application/rtf")

	assert.True(t, extracted)
	assert.Contains(t, text, "Hello\nWorld\tdone")
	assert.NotContains(t, text, "rtf1")
	assert.NotContains(t, text, "{")
}

func TestExtractDocx(t *testing.T) {
	s := newTestService()

	document := `<?xml version="1.0"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		`<w:body>` +
		`<w:p><w:r><w:t>first paragraph</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>second </w:t></w:r><w:r><w:t>paragraph</w:t></w:r></w:p>` +
		`</w:body></w:document>`

	data := buildZip(t, map[string]string{"word/document.xml": document})

	text, extracted := s.Extract(data, "application/vnd.openxmlformats-officedocument.wordprocessingml.document")

	assert.True(t, extracted)
	assert.Equal(t, "first paragraph\nsecond paragraph", text)
}

func TestExtractOpenDocumentText(t *testing.T) {
	s := newTestService()

	content := `<?xml version="1.0"?>` +
		`<office:document-content xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0" ` +
		`xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0">` +
		`<office:body><office:text>` +
		`<text:p>alpha</text:p>` +
		`<text:p>beta <text:span>gamma</text:span></text:p>` +
		`</office:text></office:body></office:document-content>`

	data := buildZip(t, map[string]string{"content.xml": content})

	text, extracted := s.Extract(data, "application/vnd.oasis.opendocument.text")

	assert.True(t, extracted)
	assert.Equal(t, "alpha\nbeta gamma", text)
}

func TestExtractPresentation(t *testing.T) {
	s := newTestService()

	slide := `<?xml version="1.0"?>` +
		`<p:sld xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" ` +
		`xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">` +
		`<p:cSld><p:spTree><p:sp><p:txBody>` +
		`<a:p><a:r><a:t>slide title</a:t></a:r></a:p>` +
		`</p:txBody></p:sp></p:spTree></p:cSld></p:sld>`

	data := buildZip(t, map[string]string{"ppt/slides/slide1.xml": slide})

	text, extracted := s.Extract(data, "application/vnd.openxmlformats-officedocument.presentationml.presentation")

	assert.True(t, extracted)
	assert.Equal(t, "slide title", text)
}

func TestExtractSpreadsheet(t *testing.T) {
	s := newTestService()

	file := excelize.NewFile()
	require.NoError(t, file.SetCellValue("Sheet1", "A1", "name"))
	require.NoError(t, file.SetCellValue("Sheet1", "B1", "amount"))
	require.NoError(t, file.SetCellValue("Sheet1", "A2", "widget"))
	require.NoError(t, file.SetCellValue("Sheet1", "B2", 42))

	buf, err := file.WriteToBuffer()
	require.NoError(t, err)

	text, extracted := s.Extract(buf.Bytes(), "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")

	assert.True(t, extracted)
	assert.Contains(t, text, "name amount")
	assert.Contains(t, text, "widget 42")
}

func TestExtractImageFallbackReturnsEmpty(t *testing.T) {
	s := newTestService()

	text, extracted := s.Extract([]byte{0x89, 'P', 'N', 'G'}, "image/png")

	// the family is handled, but without an OCR engine there is no text
	assert.True(t, extracted)
	assert.Equal(t, "", text)
}

func TestExtractUnknownMimeType(t *testing.T) {
	s := newTestService()

	_, extracted := s.Extract([]byte("binary"), "application/octet-stream")

	assert.False(t, extracted)
}

func TestExtractCorruptDocumentYieldsEmptyText(t *testing.T) {
	s := newTestService()

	// not a zip archive; the decoder fails and the failure is swallowed
	text, extracted := s.Extract([]byte("definitely not a docx"), "application/vnd.openxmlformats-officedocument.wordprocessingml.document")

	assert.True(t, extracted)
	assert.Equal(t, "", text)
}

func TestHTMLToText(t *testing.T) {
	assert.Equal(t, "hello there", HTMLToText("<div><p>hello</p> <p>there</p></div>"))
	assert.Equal(t, "", HTMLToText(""))
}

func TestSupported(t *testing.T) {
	s := newTestService()

	assert.True(t, s.Supported("application/pdf"))
	assert.True(t, s.Supported("image/jpeg"))
	assert.False(t, s.Supported("application/zip"))
}
