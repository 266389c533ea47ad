package translator

// IsFinancial reports whether query is a question about the dataset. A
// query is financial when it names a financial keyword or when any filter
// can be extracted from it; everything else goes to the fallback.
func (e *Extractor) IsFinancial(query string) bool {
	text := Fold(query)
	if text == "" {
		return false
	}
	if e.table.financial != nil && e.table.financial.MatchString(text) {
		return true
	}
	fs := e.Extract(query)
	return len(fs.Filters) > 0 || fs.Window != nil
}
