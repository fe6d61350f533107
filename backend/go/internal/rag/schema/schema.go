// Package schema holds the records passed between the loaders, the splitter
// and the indexing pipeline.
package schema

const (
	// MetadataKeyFileName is the key for the source file name.
	MetadataKeyFileName = "file_name"
	// MetadataKeyPage is the 1-based page number of a PDF page.
	MetadataKeyPage = "page"
	// MetadataKeySheet is the sheet name of a spreadsheet.
	MetadataKeySheet = "sheet_name"
)

// Document is the text extracted from one file, or from one page or sheet of it.
type Document struct {
	Text     string
	Metadata map[string]interface{}
}

// Page returns the page number recorded by the loader, or 0.
func (d *Document) Page() int {
	if d == nil || d.Metadata == nil {
		return 0
	}
	p, _ := d.Metadata[MetadataKeyPage].(int)
	return p
}

// Chunk is a bounded slice of a Document. CharStart and CharEnd are rune
// offsets into the Document text, so Text == []rune(doc.Text)[CharStart:CharEnd].
type Chunk struct {
	Index     int
	Text      string
	CharStart int
	CharEnd   int
	Page      int
}
