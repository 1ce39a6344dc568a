// Package ui holds the pages of the web upload flow.
package ui

import (
	"embed"
	"html/template"
	"io"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = map[string]*template.Template{
	"upload":   parse("templates/upload.html"),
	"uploaded": parse("templates/uploaded.html"),
}

func parse(page string) *template.Template {
	return template.Must(template.ParseFS(templateFS, "templates/layout.html", page))
}

type UploadPage struct {
	MaxSize string
}

type UploadedPage struct {
	Link     string
	FileName string
	Size     string
}

func RenderUpload(w io.Writer, p UploadPage) error {
	return pages["upload"].ExecuteTemplate(w, "upload.html", p)
}

func RenderUploaded(w io.Writer, p UploadedPage) error {
	return pages["uploaded"].ExecuteTemplate(w, "uploaded.html", p)
}
