package extract

import (
	"fmt"
	"regexp"
	"strings"
)

const openDocumentContentPath = "content.xml"

// Innermost text:p, text:h and text:span elements, in document order.
var openDocumentText = regexp.MustCompile(`<text:(?:p|h|span)(?:\s[^>]*)?>([^<]*)</text:(?:p|h|span)>`)

// extractOpenDocument handles .odt, .odp and .ods, which share the content.xml layout.
func extractOpenDocument(content []byte) (string, error) {
	zr, err := openZip(content, "OpenDocument")
	if err != nil {
		return "", err
	}
	xml, err := readZipFile(zr, openDocumentContentPath)
	if err != nil {
		return "", err
	}
	if xml == nil {
		return "", errNotFound("OpenDocument", openDocumentContentPath)
	}
	var b strings.Builder
	appendMatches(&b, openDocumentText, xml)
	return b.String(), nil
}

func errNotFound(kind, name string) error {
	return fmt.Errorf("extract %s: %s not found", kind, name)
}
