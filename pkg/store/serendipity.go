package store

import (
	"context"

	"quotecards/pkg/domain"
)

// AddSerendipityItem stores item, replacing any earlier item about the same original card.
func (s *Store) AddSerendipityItem(ctx context.Context, item domain.SerendipityItem) error {
	_, err := s.Update(ctx, func(doc *domain.Document) error {
		for i := range doc.SerendipityItems {
			if doc.SerendipityItems[i].OriginalCard.ID == item.OriginalCard.ID {
				doc.SerendipityItems[i] = item
				return nil
			}
		}
		doc.SerendipityItems = append(doc.SerendipityItems, item)
		return nil
	})
	return err
}

// UpdateSerendipityCommentary rewrites the commentary of one item.
func (s *Store) UpdateSerendipityCommentary(ctx context.Context, itemID, commentary string) error {
	_, err := s.Update(ctx, func(doc *domain.Document) error {
		for i := range doc.SerendipityItems {
			if doc.SerendipityItems[i].ID == itemID {
				doc.SerendipityItems[i].Commentary = commentary
				return nil
			}
		}
		return ErrNotFound
	})
	return err
}

func (s *Store) DeleteSerendipityItem(ctx context.Context, itemID string) error {
	_, err := s.Update(ctx, func(doc *domain.Document) error {
		for i := range doc.SerendipityItems {
			if doc.SerendipityItems[i].ID == itemID {
				doc.SerendipityItems = append(doc.SerendipityItems[:i], doc.SerendipityItems[i+1:]...)
				return nil
			}
		}
		return ErrNotFound
	})
	return err
}

// GetUserSerendipityItems returns the items whose original card the user currently likes.
func (s *Store) GetUserSerendipityItems(ctx context.Context, userID string) ([]domain.SerendipityItem, error) {
	doc, err := s.Read(ctx)
	if err != nil {
		return nil, err
	}
	out := []domain.SerendipityItem{}
	i := doc.FindUser(userID)
	if i < 0 {
		return out, nil
	}
	user := doc.Users[i]
	for _, item := range doc.SerendipityItems {
		if user.HasLiked(item.OriginalCard.ID) {
			out = append(out, item)
		}
	}
	return out, nil
}

// AddSerendipityRecommendation stores rec, replacing any earlier recommendation for the same
// original card.
func (s *Store) AddSerendipityRecommendation(ctx context.Context, rec domain.SerendipityRecommendation) error {
	_, err := s.Update(ctx, func(doc *domain.Document) error {
		for i := range doc.SerendipityRecommendations {
			if doc.SerendipityRecommendations[i].OriginalCard.ID == rec.OriginalCard.ID {
				doc.SerendipityRecommendations[i] = rec
				return nil
			}
		}
		doc.SerendipityRecommendations = append(doc.SerendipityRecommendations, rec)
		return nil
	})
	return err
}

func (s *Store) DeleteSerendipityRecommendation(ctx context.Context, id string) error {
	_, err := s.Update(ctx, func(doc *domain.Document) error {
		for i := range doc.SerendipityRecommendations {
			if doc.SerendipityRecommendations[i].ID == id {
				doc.SerendipityRecommendations = append(doc.SerendipityRecommendations[:i], doc.SerendipityRecommendations[i+1:]...)
				return nil
			}
		}
		return ErrNotFound
	})
	return err
}

// GetUserSerendipityRecommendations returns recommendations for cards the user currently likes.
func (s *Store) GetUserSerendipityRecommendations(ctx context.Context, userID string) ([]domain.SerendipityRecommendation, error) {
	doc, err := s.Read(ctx)
	if err != nil {
		return nil, err
	}
	out := []domain.SerendipityRecommendation{}
	i := doc.FindUser(userID)
	if i < 0 {
		return out, nil
	}
	user := doc.Users[i]
	for _, rec := range doc.SerendipityRecommendations {
		if user.HasLiked(rec.OriginalCard.ID) {
			out = append(out, rec)
		}
	}
	return out, nil
}
