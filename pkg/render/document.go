package render

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/vango-dev/pushserve/pkg/assets"
)

// DefaultGreeting is the heading shown when Document.Greeting is empty.
const DefaultGreeting = "Hi, EmpireConf!"

// Document describes the staged root page.
type Document struct {
	// Title is the page title. Omitted when empty.
	Title string

	// Lang is the html lang attribute. Defaults to "en".
	Lang string

	// Greeting is the body heading. Defaults to DefaultGreeting.
	Greeting string

	// RenderDelay separates the head from the rest of the page.
	RenderDelay time.Duration

	// Early assets are pushed by the caller before the pipeline starts and
	// referenced from the head fragment.
	Early []assets.Descriptor

	// Late assets are referenced after the delay and pushed with the body.
	Late []assets.Descriptor
}

// Phases builds the phase sequence for the page:
//
//	0: doctype, <head> and tags for the early assets
//	1: after RenderDelay, deferred scripts for the late assets and </head>
//	2: the body, final, pushing the late assets
func (d Document) Phases() []Phase {
	return []Phase{
		{Fragment: d.head()},
		{Delay: d.RenderDelay, Fragment: d.lateHead()},
		{Fragment: d.body(), Push: d.Late, Final: true},
	}
}

func (d Document) head() []byte {
	lang := d.Lang
	if lang == "" {
		lang = "en"
	}

	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n")
	fmt.Fprintf(&buf, `<html lang="%s">`+"\n", escape(lang))
	buf.WriteString("<head>\n")
	buf.WriteString(`  <meta charset="utf-8">` + "\n")
	if d.Title != "" {
		fmt.Fprintf(&buf, "  <title>%s</title>\n", escape(d.Title))
	}
	for _, a := range d.Early {
		if a.IsStylesheet() {
			fmt.Fprintf(&buf, `  <link rel="stylesheet" type="text/css" href="%s">`+"\n", escape(a.PublicPath()))
		}
	}
	for _, a := range d.Early {
		if a.IsScript() {
			writeScript(&buf, a)
		}
	}
	return buf.Bytes()
}

func (d Document) lateHead() []byte {
	var buf bytes.Buffer
	for _, a := range d.Late {
		if a.IsScript() {
			writeScript(&buf, a)
		}
	}
	buf.WriteString("</head>\n")
	return buf.Bytes()
}

func (d Document) body() []byte {
	greeting := d.Greeting
	if greeting == "" {
		greeting = DefaultGreeting
	}

	var buf bytes.Buffer
	buf.WriteString("<body>\n")
	fmt.Fprintf(&buf, `  <h1 class="myHelloClass">%s</h1>`+"\n", escape(greeting))
	buf.WriteString("</body>\n</html>\n")
	return buf.Bytes()
}

func writeScript(buf *bytes.Buffer, a assets.Descriptor) {
	fmt.Fprintf(buf, `  <script src="%s" defer></script>`+"\n", escape(a.PublicPath()))
}

// escaper covers both text and double-quoted attribute values.
var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
	"\n", "&#10;",
	"\r", "&#13;",
	"\t", "&#9;",
)

func escape(s string) string {
	return escaper.Replace(s)
}
