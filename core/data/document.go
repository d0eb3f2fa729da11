package data

// Page is one unit of parsed text inside a source document. Indices are
// assigned by the parsing service and start at 0.
type Page struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// SourceDocument is the parsed form of one object downloaded from storage.
// The ID is the object key of the original file, so it stays stable across
// runs and ties every chunk back to its origin.
type SourceDocument struct {
	ID    string `json:"id"`
	Pages []Page `json:"pages"`
}
