package export

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

	docxRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

	docxDocumentHead = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`

	docxDocumentTail = `<w:sectPr><w:pgSz w:w="11906" w:h="16838"/></w:sectPr></w:body></w:document>`

	// paragraphSpacingAfter は段落後の余白（twip）。
	paragraphSpacingAfter = 200
)

// BuildDOCX はHTMLの最上位ブロック要素をWordprocessingMLの段落に変換する。
// <b>/<strong>は太字の段落、<p>は段落後に余白のある通常段落になり、その他の要素は無視する。
func BuildDOCX(html string) ([]byte, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("HTMLのパースに失敗: %w", err)
	}

	var body strings.Builder
	body.WriteString(docxDocumentHead)
	doc.Find("body").Children().Each(func(_ int, sel *goquery.Selection) {
		text := sel.Text()
		switch goquery.NodeName(sel) {
		case "b", "strong":
			writeParagraph(&body, text, true)
		case "p":
			writeParagraph(&body, text, false)
		}
	})
	body.WriteString(docxDocumentTail)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	parts := []struct {
		name    string
		content string
	}{
		{"[Content_Types].xml", docxContentTypes},
		{"_rels/.rels", docxRels},
		{"word/document.xml", body.String()},
	}
	for _, part := range parts {
		w, err := zw.Create(part.name)
		if err != nil {
			return nil, fmt.Errorf("%sの作成に失敗: %w", part.name, err)
		}
		if _, err := w.Write([]byte(part.content)); err != nil {
			return nil, fmt.Errorf("%sの書き込みに失敗: %w", part.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("DOCXパッケージの作成に失敗: %w", err)
	}
	return buf.Bytes(), nil
}

// writeParagraph は1つのランを持つ段落を書き込む。
func writeParagraph(b *strings.Builder, text string, bold bool) {
	b.WriteString("<w:p>")
	if !bold {
		fmt.Fprintf(b, `<w:pPr><w:spacing w:after="%d"/></w:pPr>`, paragraphSpacingAfter)
	}
	b.WriteString("<w:r>")
	if bold {
		b.WriteString("<w:rPr><w:b/></w:rPr>")
	}
	b.WriteString(`<w:t xml:space="preserve">`)
	xml.EscapeText(b, []byte(text))
	b.WriteString("</w:t></w:r></w:p>")
}
