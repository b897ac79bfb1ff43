package types

// Keyword is one discovered search keyword for a site, produced by the
// keyword discovery pipeline.
type Keyword struct {
	Keyword   string  `json:"keyword"`
	Source    string  `json:"source,omitempty"`
	Relevance float64 `json:"relevance,omitempty"`
}
