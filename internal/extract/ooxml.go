package extract

import (
	"regexp"
	"sort"
	"strings"
)

const (
	docxDocumentXMLPath = "word/document.xml"
	contentTypesPath    = "[Content_Types].xml"
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
	pptxSlidePathPrefix = "ppt/slides/slide"
)

var (
	// <w:t> and <a:t> runs, with or without attributes such as xml:space="preserve".
	wtTag = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>`)
	atTag = regexp.MustCompile(`<a:t(?:\s[^>]*)?>([^<]*)</a:t>`)

	overrideTag = regexp.MustCompile(`<Override\s[^>]*>`)
	partNameRe  = regexp.MustCompile(`PartName="/?([^"]+)"`)
)

// mainDocumentPath reads [Content_Types].xml for the main document part. Word
// does not always call it word/document.xml.
func mainDocumentPath(types []byte) string {
	for _, tag := range overrideTag.FindAll(types, -1) {
		if !strings.Contains(string(tag), `ContentType="`+docxMainContentType+`"`) {
			continue
		}
		if m := partNameRe.FindSubmatch(tag); m != nil {
			return string(m[1])
		}
	}
	return docxDocumentXMLPath
}

func extractDOCX(content []byte) (string, error) {
	zr, err := openZip(content, "DOCX")
	if err != nil {
		return "", err
	}
	docPath := docxDocumentXMLPath
	types, err := readZipFile(zr, contentTypesPath)
	if err != nil {
		return "", err
	}
	if types != nil {
		docPath = mainDocumentPath(types)
	}
	doc, err := readZipFile(zr, docPath)
	if err != nil {
		return "", err
	}
	if doc == nil {
		return "", errNotFound("DOCX", docPath)
	}
	var b strings.Builder
	appendMatches(&b, wtTag, doc)
	return b.String(), nil
}

func extractPPTX(content []byte) (string, error) {
	zr, err := openZip(content, "PPTX")
	if err != nil {
		return "", err
	}
	var slides []string
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, pptxSlidePathPrefix) && strings.HasSuffix(f.Name, ".xml") {
			slides = append(slides, f.Name)
		}
	}
	// slide10 sorts after slide9.
	sort.Slice(slides, func(i, j int) bool {
		if len(slides[i]) != len(slides[j]) {
			return len(slides[i]) < len(slides[j])
		}
		return slides[i] < slides[j]
	})
	var b strings.Builder
	for _, name := range slides {
		xml, err := readZipFile(zr, name)
		if err != nil {
			return "", err
		}
		appendMatches(&b, atTag, xml)
	}
	return b.String(), nil
}
