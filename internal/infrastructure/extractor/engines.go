package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/core/domain"
)

func extractPDF(raw []byte) (string, int, error) {
	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", 0, err
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", 0, err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", 0, err
	}
	return buf.String(), reader.NumPage(), nil
}

func extractDOCX(raw []byte) (string, int, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", 0, err
	}

	var docFile *zip.File
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", 0, errors.New("word/document.xml not found")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", 0, err
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return "", 0, err
	}
	return walkDocumentXML(content)
}

// walkDocumentXML collects character data and counts page breaks. The page
// count is explicit breaks plus one; Word omits break markers for single-page
// bodies.
func walkDocumentXML(content []byte) (string, int, error) {
	decoder := xml.NewDecoder(bytes.NewReader(content))
	var buf strings.Builder
	pageBreaks := 0
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", 0, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "lastRenderedPageBreak":
				pageBreaks++
			case "br":
				for _, attr := range t.Attr {
					if attr.Name.Local == "type" && attr.Value == "page" {
						pageBreaks++
					}
				}
			}
		case xml.CharData:
			buf.Write(t)
		case xml.EndElement:
			if t.Name.Local == "p" || t.Name.Local == "br" {
				if buf.Len() > 0 {
					buf.WriteString("\n")
				}
			}
		}
	}
	return buf.String(), pageBreaks + 1, nil
}

// mapOOXMLFromZip distinguishes OOXML containers uploaded under a generic
// zip mime by their package marker file.
func mapOOXMLFromZip(raw []byte) string {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return ""
	}
	for _, f := range zr.File {
		switch strings.ReplaceAll(f.Name, "\\", "/") {
		case "word/document.xml":
			return mimeDOCX
		case "xl/workbook.xml":
			return mimeXLSX
		}
	}
	return ""
}

func extractXLSX(raw []byte) (string, int, error) {
	book, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return "", 0, err
	}
	defer book.Close()

	sheets := book.GetSheetList()
	var buf strings.Builder
	for _, sheet := range sheets {
		rows, err := book.GetRows(sheet)
		if err != nil {
			return "", 0, err
		}
		if buf.Len() > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString(sheet)
		buf.WriteString("\n")
		for _, row := range rows {
			buf.WriteString(strings.Join(row, "\t"))
			buf.WriteString("\n")
		}
	}
	return buf.String(), len(sheets), nil
}

func extractPlaintext(raw []byte) (string, int, error) {
	if !utf8.Valid(raw) {
		return "", 0, &domain.ExtractionError{Reason: domain.ExtractionInvalidEncoding}
	}
	return string(raw), 1, nil
}
