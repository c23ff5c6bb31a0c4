package store

import (
	"context"
	"strings"

	"quotecards/pkg/domain"
)

// AddUser appends a user. Usernames are unique, compared case-sensitively after trimming.
func (s *Store) AddUser(ctx context.Context, u domain.User) error {
	_, err := s.Update(ctx, func(doc *domain.Document) error {
		name := strings.TrimSpace(u.Username)
		for _, existing := range doc.Users {
			if existing.ID == u.ID || strings.TrimSpace(existing.Username) == name {
				return ErrUserExists
			}
		}
		if u.LikedCardIDs == nil {
			u.LikedCardIDs = []string{}
		}
		doc.Users = append(doc.Users, u)
		return nil
	})
	return err
}

// UpdateUser applies fn to the stored user with id.
func (s *Store) UpdateUser(ctx context.Context, id string, fn func(*domain.User)) (domain.User, error) {
	var updated domain.User
	_, err := s.Update(ctx, func(doc *domain.Document) error {
		i := doc.FindUser(id)
		if i < 0 {
			return ErrNotFound
		}
		fn(&doc.Users[i])
		updated = doc.Users[i]
		return nil
	})
	return updated, err
}

func (s *Store) GetUser(ctx context.Context, id string) (domain.User, bool, error) {
	doc, err := s.Read(ctx)
	if err != nil {
		return domain.User{}, false, err
	}
	if i := doc.FindUser(id); i >= 0 {
		return doc.Users[i], true, nil
	}
	return domain.User{}, false, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (domain.User, bool, error) {
	doc, err := s.Read(ctx)
	if err != nil {
		return domain.User{}, false, err
	}
	username = strings.TrimSpace(username)
	for _, u := range doc.Users {
		if strings.TrimSpace(u.Username) == username {
			return u, true, nil
		}
	}
	return domain.User{}, false, nil
}

// CurrentUser resolves the session pointer. A pointer to a user that no longer exists reads as
// logged out.
func (s *Store) CurrentUser(ctx context.Context) (domain.User, bool, error) {
	doc, err := s.Read(ctx)
	if err != nil {
		return domain.User{}, false, err
	}
	if doc.CurrentUserID == nil {
		return domain.User{}, false, nil
	}
	if i := doc.FindUser(*doc.CurrentUserID); i >= 0 {
		return doc.Users[i], true, nil
	}
	return domain.User{}, false, nil
}

// SetCurrentUser points the session at userID; an empty id logs out.
func (s *Store) SetCurrentUser(ctx context.Context, userID string) error {
	_, err := s.Update(ctx, func(doc *domain.Document) error {
		if userID == "" {
			doc.CurrentUserID = nil
			return nil
		}
		if doc.FindUser(userID) < 0 {
			return ErrNotFound
		}
		id := userID
		doc.CurrentUserID = &id
		return nil
	})
	return err
}

// LikeResult reports the state after a like toggle.
type LikeResult struct {
	Liked bool
	Card  domain.Card
	User  domain.User
}

// ToggleLike flips cardID in the user's liked set and moves the card's like count by one in
// the same direction, never below zero. Both changes land in one write.
func (s *Store) ToggleLike(ctx context.Context, userID, channelID, cardID string) (LikeResult, error) {
	var res LikeResult
	_, err := s.Update(ctx, func(doc *domain.Document) error {
		ui := doc.FindUser(userID)
		ci := doc.FindChannel(channelID)
		if ui < 0 || ci < 0 {
			return ErrNotFound
		}
		ch := &doc.Channels[ci]
		k := ch.CardIndex(cardID)
		if k < 0 {
			return ErrNotFound
		}
		user := &doc.Users[ui]
		card := &ch.Cards[k]
		if user.HasLiked(cardID) {
			kept := user.LikedCardIDs[:0]
			for _, id := range user.LikedCardIDs {
				if id != cardID {
					kept = append(kept, id)
				}
			}
			user.LikedCardIDs = kept
			if card.LikesCount > 0 {
				card.LikesCount--
			}
		} else {
			user.LikedCardIDs = append(user.LikedCardIDs, cardID)
			card.LikesCount++
			res.Liked = true
		}
		res.Card = *card
		res.User = *user
		return nil
	})
	return res, err
}
