// Package report describes the custody forms as plain tabular documents and
// renders them to PDF. Workflows build a Document from their committed rows
// and never inspect the rendered bytes.
package report

// Orientation of the rendered page.
type Orientation string

const (
	Portrait  Orientation = "P"
	Landscape Orientation = "L"
)

// Field is one labelled header line.
type Field struct {
	Label string
	Value string
}

// Column is a table column; Width is relative to the other columns.
type Column struct {
	Title string
	Width float64
}

// Document is a renderer-independent form.
type Document struct {
	// Name identifies the form in file names and metrics ("annexure-1").
	Name        string
	Title       string
	Subtitle    string
	Orientation Orientation
	Header      []Field
	Columns     []Column
	Rows        [][]string
	Footer      []string
	Signatures  []string
}

// Renderer turns a Document into a byte stream.
type Renderer interface {
	Render(doc *Document) ([]byte, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(doc *Document) ([]byte, error)

// Render calls f(doc).
func (f RendererFunc) Render(doc *Document) ([]byte, error) {
	return f(doc)
}
