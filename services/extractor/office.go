package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
)

// The OOXML and OpenDocument families are zip archives of XML. One shared
// walk covers word-processor, presentation and ODT payloads: collect
// character data inside the format's text element, newline per paragraph.

func decodeWordDocument(data []byte) (string, error) {
	content, err := readZipEntry(data, "word/document.xml")
	if err != nil {
		return "", err
	}
	return collectXMLText(content, "t", "p")
}

func decodeOpenDocumentText(data []byte) (string, error) {
	content, err := readZipEntry(data, "content.xml")
	if err != nil {
		return "", err
	}
	return collectXMLText(content, "p", "p")
}

func decodePresentation(data []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var slides []string
	for _, file := range archive.File {
		if strings.HasPrefix(file.Name, "ppt/slides/slide") && strings.HasSuffix(file.Name, ".xml") {
			slides = append(slides, file.Name)
		}
	}
	sort.Strings(slides)

	var parts []string
	for _, name := range slides {
		content, err := readArchiveFile(archive, name)
		if err != nil {
			continue
		}
		text, err := collectXMLText(content, "t", "p")
		if err != nil {
			continue
		}
		if text != "" {
			parts = append(parts, text)
		}
	}

	return strings.TrimSpace(strings.Join(parts, "\n")), nil
}

func readZipEntry(data []byte, name string) ([]byte, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	return readArchiveFile(archive, name)
}

func readArchiveFile(archive *zip.Reader, name string) ([]byte, error) {
	for _, file := range archive.File {
		if file.Name == name {
			rc, err := file.Open()
			if err != nil {
				return nil, err
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}
	return nil, fmt.Errorf("archive entry %s not found", name)
}

// collectXMLText streams the document and gathers character data found
// inside textElement subtrees, emitting a newline at every paragraphElement
// close. Element names are matched on the local part, namespace-agnostic.
func collectXMLText(data []byte, textElement, paragraphElement string) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))

	var b strings.Builder
	depth := 0

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == textElement {
				depth++
			}
		case xml.EndElement:
			if t.Name.Local == textElement && depth > 0 {
				depth--
			}
			if t.Name.Local == paragraphElement {
				b.WriteString("\n")
			}
		case xml.CharData:
			if depth > 0 {
				b.Write(t)
			}
		}
	}

	return strings.TrimSpace(b.String()), nil
}
