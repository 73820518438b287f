package assets

import (
	"errors"
	"testing"
)

func TestCatalogDescribe(t *testing.T) {
	c := NewCatalog(nil)

	got, err := c.Describe("style.css", "script.js", "font.woff2")
	if err != nil {
		t.Fatalf("Describe() error: %v", err)
	}

	want := []struct {
		public, storage, contentType string
	}{
		{"/style.css", "style.css", "text/css"},
		{"/script.js", "script.js", "application/javascript"},
		{"/font.woff2", "font.woff2", ""},
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, w := range want {
		d := got[i]
		if d.PublicPath() != w.public || d.StoragePath() != w.storage || d.ContentType() != w.contentType {
			t.Errorf("[%d] = (%q, %q, %q), want (%q, %q, %q)", i,
				d.PublicPath(), d.StoragePath(), d.ContentType(),
				w.public, w.storage, w.contentType)
		}
	}
	if !got[0].IsStylesheet() || got[0].IsScript() {
		t.Error("style.css should be a stylesheet only")
	}
	if !got[1].IsScript() || got[1].IsStylesheet() {
		t.Error("script.js should be a script only")
	}
}

func TestCatalogDescribeWithManifest(t *testing.T) {
	m := NewManifest()
	m.Set("style.css", "style.e5f6a7b8.css")
	c := NewCatalog(m)

	got, err := c.Describe("style.css")
	if err != nil {
		t.Fatalf("Describe() error: %v", err)
	}
	d := got[0]
	if d.PublicPath() != "/style.e5f6a7b8.css" {
		t.Errorf("PublicPath() = %q", d.PublicPath())
	}
	if d.StoragePath() != "style.e5f6a7b8.css" {
		t.Errorf("StoragePath() = %q", d.StoragePath())
	}
	if d.ContentType() != "text/css" {
		t.Errorf("ContentType() = %q", d.ContentType())
	}
}

func TestCatalogDescribeRejectsEscapes(t *testing.T) {
	m := NewManifest()
	m.Set("evil.css", "../../etc/passwd")

	tests := []struct {
		name    string
		catalog *Catalog
		asset   string
	}{
		{"parent segment", NewCatalog(nil), "../secret.css"},
		{"empty", NewCatalog(nil), ""},
		{"manifest escape", NewCatalog(m), "evil.css"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.catalog.Describe(tt.asset)
			var ne *NameError
			if !errors.As(err, &ne) {
				t.Fatalf("Describe(%q) error = %v, want *NameError", tt.asset, err)
			}
		})
	}
}

func TestCatalogDescribeFreshValues(t *testing.T) {
	c := NewCatalog(nil)
	a, _ := c.Describe("style.css")
	b, _ := c.Describe("style.css")
	if &a[0] == &b[0] {
		t.Fatal("Describe should return a fresh slice per call")
	}
	if a[0] != b[0] {
		t.Fatal("descriptors for the same name should be equal")
	}
}

func TestContentTypeFor(t *testing.T) {
	tests := map[string]string{
		"style.css":     "text/css",
		"STYLE.CSS":     "text/css",
		"app.min.js":    "application/javascript",
		"image.png":     "",
		"noext":         "",
		"dir/nested.js": "application/javascript",
	}
	for name, want := range tests {
		if got := ContentTypeFor(name); got != want {
			t.Errorf("ContentTypeFor(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestLookupMIME(t *testing.T) {
	if got := LookupMIME("/script.js"); got != "application/javascript" {
		t.Errorf("LookupMIME(script.js) = %q", got)
	}
	if got := LookupMIME("/index.html"); got != "text/html; charset=utf-8" {
		t.Errorf("LookupMIME(index.html) = %q", got)
	}
	if got := LookupMIME("/unknown.zzzz"); got != "" {
		t.Errorf("LookupMIME(unknown) = %q, want empty", got)
	}
}

func TestCleanName(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"/style.css", "style.css", true},
		{"style.css", "style.css", true},
		{"/css/site.css", "css/site.css", true},
		{"/css//site.css", "css/site.css", true},
		{"/", "", false},
		{"", "", false},
		{"/../secret.txt", "", false},
		{"/./style.css", "", false},
		{"/css/../../secret", "", false},
		{"//etc/passwd", "", false},
		{"/..\\secret", "", false},
		{"/style.css\x00.js", "", false},
	}
	for _, tt := range tests {
		got, ok := CleanName(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("CleanName(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
