package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"path"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// ExtractText pulls plain text out of a document for embedding. Extraction
// failures are never fatal to an upload: a document we cannot read still
// gets stored, it just will not be chat-ready, so errors come back as an
// empty string with a warning log.
func ExtractText(ctx context.Context, name string, content []byte) string {
	text, err := extract(name, content)
	if err != nil {
		logutil.GetLogger(ctx).Warn("text extraction failed",
			zap.String("filename", name), zap.Error(err))
		return ""
	}
	return strings.TrimSpace(text)
}

func extract(name string, content []byte) (string, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".pdf":
		return pdfText(content)
	case ".docx":
		return zipXMLText(content, func(f string) bool { return f == "word/document.xml" })
	case ".xlsx":
		return zipXMLText(content, func(f string) bool { return f == "xl/sharedStrings.xml" })
	case ".pptx":
		return zipXMLText(content, func(f string) bool {
			return strings.HasPrefix(f, "ppt/slides/slide") && strings.HasSuffix(f, ".xml")
		})
	case ".txt", ".md", ".markdown", ".csv", ".json", ".log":
		if !utf8.Valid(content) {
			return "", nil
		}
		return string(content), nil
	default:
		return "", nil
	}
}

func pdfText(content []byte) (string, error) {
	if len(content) == 0 {
		return "", nil
	}
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	out, err := io.ReadAll(plain)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// zipXMLText collects character data from every XML part matched inside
// the OOXML container. Good enough for docx paragraphs, xlsx shared
// strings and pptx slide runs without a dedicated office library.
func zipXMLText(content []byte, match func(name string) bool) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}
	names := make([]string, 0)
	for _, f := range archive.File {
		if match(f.Name) {
			names = append(names, f.Name)
		}
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		f, err := archive.Open(name)
		if err != nil {
			return "", err
		}
		err = collectCharData(f, &sb)
		f.Close()
		if err != nil {
			return "", err
		}
	}
	return sb.String(), nil
}

func collectCharData(r io.Reader, sb *strings.Builder) error {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.CharData:
			sb.Write(t)
		case xml.EndElement:
			// Paragraph and row boundaries become whitespace so words
			// from adjacent blocks do not glue together.
			switch t.Name.Local {
			case "p", "row", "si":
				sb.WriteByte('\n')
			case "t", "br", "tab":
				sb.WriteByte(' ')
			}
		}
	}
}
