package store

import (
	"github.com/pbaille/listkeep/internal/domain"
	"github.com/pbaille/listkeep/internal/input"
)

func (s *Store) newItem(text string) domain.Item {
	return domain.Item{
		ID:        s.newID(),
		Text:      text,
		Completed: false,
		CreatedAt: s.now(),
	}
}

// AddItem appends one item. Empty text is rejected without touching the
// backend.
func (s *Store) AddItem(text string) (*domain.Item, error) {
	text = input.SanitizeItem(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	doc := s.Load()
	it := s.newItem(text)
	doc.Items = append(doc.Items, it)
	if err := s.Save(doc); err != nil {
		return nil, err
	}
	return &it, nil
}

// AddItems appends every non-empty text with a single load and a single
// save. Texts are expected to be split already, see input.ParseInput.
func (s *Store) AddItems(texts []string) ([]domain.Item, error) {
	added := make([]domain.Item, 0, len(texts))
	for _, t := range texts {
		if t = input.SanitizeItem(t); t != "" {
			added = append(added, s.newItem(t))
		}
	}
	if len(added) == 0 {
		return added, nil
	}

	doc := s.Load()
	doc.Items = append(doc.Items, added...)
	if err := s.Save(doc); err != nil {
		return []domain.Item{}, err
	}
	return added, nil
}

// UpdateItem applies upd to the item with the given id. The id itself
// never changes.
func (s *Store) UpdateItem(id string, upd domain.ItemUpdate) (*domain.Item, error) {
	doc := s.Load()
	i := doc.Find(id)
	if i < 0 {
		return nil, ErrItemNotFound
	}

	merged := doc.Items[i]
	if upd.Text != nil {
		merged.Text = input.SanitizeItem(*upd.Text)
	}
	if upd.Completed != nil {
		merged.Completed = *upd.Completed
	}
	if upd.CreatedAt != nil {
		merged.CreatedAt = upd.CreatedAt.UTC()
	}
	merged.ID = id

	it, ok := s.NormalizeItem(merged)
	if !ok {
		return nil, ErrEmptyText
	}

	doc.Items[i] = it
	if err := s.Save(doc); err != nil {
		return nil, err
	}
	return &it, nil
}

// ToggleItem flips the completed flag of the item with the given id
func (s *Store) ToggleItem(id string) (*domain.Item, error) {
	doc := s.Load()
	i := doc.Find(id)
	if i < 0 {
		return nil, ErrItemNotFound
	}
	done := !doc.Items[i].Completed
	return s.UpdateItem(id, domain.ItemUpdate{Completed: &done})
}

// DeleteItem removes the item with the given id
func (s *Store) DeleteItem(id string) error {
	doc := s.Load()
	kept := make([]domain.Item, 0, len(doc.Items))
	for _, it := range doc.Items {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	if len(kept) == len(doc.Items) {
		return ErrItemNotFound
	}

	doc.Items = kept
	return s.Save(doc)
}

// ClearAll replaces the document with an empty one
func (s *Store) ClearAll() error {
	return s.Save(domain.NewDocument(s.now()))
}

// UpdateSettings stores settings as given
func (s *Store) UpdateSettings(settings domain.Settings) error {
	doc := s.Load()
	doc.Settings = settings
	return s.Save(doc)
}
