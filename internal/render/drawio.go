// Package render turns generated artifacts into viewable output: an HTML
// embed for draw.io diagrams and Kroki-rendered Structurizr diagrams.
package render

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const drawioViewerScript = "https://www.draw.io/js/viewer.min.js"

var drawioEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, `\&quot;`,
	"\n", `\n`,
)

// DrawIOHTML embeds diagram XML in a draw.io viewer snippet. The XML must be
// well-formed.
func DrawIOHTML(diagram string) (string, error) {
	diagram = strings.TrimSpace(diagram)
	if err := wellFormed(diagram); err != nil {
		return "", fmt.Errorf("diagram xml: %w", err)
	}

	var b strings.Builder
	b.WriteString(`<div class="mxgraph" style="max-width:100%;border:1px solid transparent;" data-mxgraph="{`)
	b.WriteString(`&quot;highlight&quot;:&quot;#0000ff&quot;,&quot;nav&quot;:true,&quot;resize&quot;:true,`)
	b.WriteString(`&quot;toolbar&quot;:&quot;zoom layers tags lightbox&quot;,&quot;edit&quot;:&quot;_blank&quot;,`)
	b.WriteString(`&quot;xml&quot;:&quot;`)
	b.WriteString(drawioEscaper.Replace(diagram))
	b.WriteString(`\n&quot;}"></div>`)
	b.WriteString("\n")
	b.WriteString(`<script type="text/javascript" src="` + drawioViewerScript + `"></script>`)
	b.WriteString("\n")
	return b.String(), nil
}

// wellFormed checks that s holds exactly one XML document. Entity
// declarations are not expanded by encoding/xml.
func wellFormed(s string) error {
	if s == "" {
		return errors.New("empty document")
	}
	dec := xml.NewDecoder(strings.NewReader(s))
	depth, roots := 0, 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		switch tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				roots++
			}
			depth++
		case xml.EndElement:
			depth--
		case xml.Directive:
			return errors.New("DTD and entity declarations are not allowed")
		}
	}
	if roots != 1 {
		return fmt.Errorf("expected one root element, found %d", roots)
	}
	return nil
}
