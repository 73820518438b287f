package render

import (
	"strings"
	"testing"
	"time"
)

func TestDocumentPhases(t *testing.T) {
	doc := Document{
		Title:       "HTTP/2 project",
		Lang:        "ru",
		RenderDelay: time.Second,
		Early:       descriptors(t, "style.css", "style1.css", "script1.js"),
		Late:        descriptors(t, "script.js"),
	}

	phases := doc.Phases()
	if len(phases) != 3 {
		t.Fatalf("phases = %d, want 3", len(phases))
	}

	head := string(phases[0].Fragment)
	for _, want := range []string{
		"<!DOCTYPE html>\n",
		`<html lang="ru">`,
		"<title>HTTP/2 project</title>",
		`<link rel="stylesheet" type="text/css" href="/style.css">`,
		`<link rel="stylesheet" type="text/css" href="/style1.css">`,
		`<script src="/script1.js" defer></script>`,
	} {
		if !strings.Contains(head, want) {
			t.Errorf("head missing %q:\n%s", want, head)
		}
	}
	if strings.Contains(head, "</head>") {
		t.Error("head fragment must leave <head> open")
	}
	if phases[0].Delay != 0 || len(phases[0].Push) != 0 || phases[0].Final {
		t.Errorf("phase 0 = %+v", phases[0])
	}

	late := string(phases[1].Fragment)
	if phases[1].Delay != time.Second {
		t.Errorf("phase 1 delay = %v", phases[1].Delay)
	}
	if late != "  <script src=\"/script.js\" defer></script>\n</head>\n" {
		t.Errorf("late fragment = %q", late)
	}

	body := string(phases[2].Fragment)
	if !strings.Contains(body, `<h1 class="myHelloClass">Hi, EmpireConf!</h1>`) {
		t.Errorf("body = %q", body)
	}
	if !strings.HasSuffix(body, "</html>\n") {
		t.Errorf("body should close the document: %q", body)
	}
	if !phases[2].Final {
		t.Error("last phase must be final")
	}
	if len(phases[2].Push) != 1 || phases[2].Push[0].PublicPath() != "/script.js" {
		t.Errorf("last phase pushes = %v", phases[2].Push)
	}
}

func TestDocumentDefaultsAndEscaping(t *testing.T) {
	doc := Document{Greeting: `<script>alert("x")</script>`}
	phases := doc.Phases()

	head := string(phases[0].Fragment)
	if !strings.Contains(head, `<html lang="en">`) {
		t.Errorf("default lang missing: %s", head)
	}
	if strings.Contains(head, "<title>") {
		t.Error("empty title should be omitted")
	}

	body := string(phases[2].Fragment)
	if strings.Contains(body, "<script>") {
		t.Errorf("greeting not escaped: %s", body)
	}
	if !strings.Contains(body, "&lt;script&gt;alert(&quot;x&quot;)&lt;/script&gt;") {
		t.Errorf("body = %s", body)
	}

	if got := string(Document{}.Phases()[2].Fragment); !strings.Contains(got, DefaultGreeting) {
		t.Errorf("default greeting missing: %s", got)
	}
}

func TestEscape(t *testing.T) {
	tests := map[string]string{
		"plain":       "plain",
		"a & b":       "a &amp; b",
		`"q" 'a'`:     "&quot;q&quot; &#39;a&#39;",
		"<br>":        "&lt;br&gt;",
		"line\nbreak": "line&#10;break",
		"tab\there\r": "tab&#9;here&#13;",
	}
	for in, want := range tests {
		if got := escape(in); got != want {
			t.Errorf("escape(%q) = %q, want %q", in, got, want)
		}
	}
}
