package models

// PageKind tags how the content of every page in a Pages value is encoded.
type PageKind string

const (
	// PageKindText pages hold the extracted text layer.
	PageKindText PageKind = "text"
	// PageKindImage pages hold a base64-encoded JPEG rendering.
	PageKindImage PageKind = "image"
)

// Page is one page of the source document. Number is 1-based.
type Page struct {
	Number  int
	Content string
}

// Pages is the ordered output of a page source.
type Pages struct {
	Items []Page
	Kind  PageKind
}

// Len returns the number of pages.
func (p Pages) Len() int { return len(p.Items) }

// Batch is a contiguous slice of pages dispatched as one unit of work.
// Index is the 0-based dispatch position and fixes the fragment's place in the document.
type Batch struct {
	Index int
	Kind  PageKind
	Pages []Page
}

// FirstPage returns the number of the first page in the batch, or 0 for an empty batch.
func (b Batch) FirstPage() int {
	if len(b.Pages) == 0 {
		return 0
	}
	return b.Pages[0].Number
}

// LastPage returns the number of the last page in the batch, or 0 for an empty batch.
func (b Batch) LastPage() int {
	if len(b.Pages) == 0 {
		return 0
	}
	return b.Pages[len(b.Pages)-1].Number
}
