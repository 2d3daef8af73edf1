package store

import (
	"encoding/json"
	"fmt"
)

// ExportData returns the current document as indented JSON
func (s *Store) ExportData() (string, error) {
	b, err := json.MarshalIndent(s.Load(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("json marshal: %w", err)
	}
	return string(b), nil
}

// ImportData replaces the stored document with the one in jsonText.
// Invalid items are dropped; text that is not a document with an items
// list is rejected without writing.
func (s *Store) ImportData(jsonText string) error {
	doc, err := s.decodeDocument([]byte(jsonText))
	if err != nil {
		s.log.Warn().Err(err).Msg("import rejected")
		return fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	return s.Save(doc)
}
