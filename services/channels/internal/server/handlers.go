package server

import (
	"io"
	"net/http"
	"strings"

	"quotecards/pkg/domain"
	"quotecards/pkg/storage"
	"quotecards/services/channels/internal/app"
)

type authRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type createChannelRequest struct {
	Name        string `json:"name"`
	Author      string `json:"author"`
	Description string `json:"description"`
	DropToFeed  *bool  `json:"dropToFeed"`
	Count       int    `json:"count"`
	Async       bool   `json:"async"`
}

type updateChannelRequest struct {
	Name        *string `json:"name"`
	Author      *string `json:"author"`
	Description *string `json:"description"`
	DropToFeed  *bool   `json:"dropToFeed"`
}

type uploadCardRequest struct {
	Caption string `json:"caption"`
	DataURL string `json:"dataUrl"`
}

type flipRequest struct {
	PersonaID string `json:"personaId"`
}

type twistRequest struct {
	Prompt          string `json:"prompt"`
	TargetChannelID string `json:"targetChannelId"`
	NewChannelName  string `json:"newChannelName"`
	DropToFeed      *bool  `json:"dropToFeed"`
}

type chatRequest struct {
	Text string `json:"text"`
}

// auth handlers
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	var req authRequest
	if err := decodeJSON(r, maxJSONBytes, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_input", "invalid JSON")
		return
	}
	user, token, err := s.app.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	var req authRequest
	if err := decodeJSON(r, maxJSONBytes, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_input", "invalid JSON")
		return
	}
	user, token, err := s.app.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	token, _ := bearerToken(r)
	if err := s.app.Logout(r.Context(), token); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// channel handlers
func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		scope := strings.TrimSpace(r.URL.Query().Get("scope"))
		viewer := s.viewerID(r)
		if scope == app.ScopeMine && viewer == "" {
			writeError(w, r, http.StatusUnauthorized, "unauthorized", "unauthorized")
			return
		}
		channels, err := s.app.ListChannels(r.Context(), viewer, scope)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": channels, "count": len(channels)})
	case http.MethodPost:
		s.authenticated(s.handleCreateChannel).ServeHTTP(w, r)
	default:
		methodNotAllowed(w, r)
	}
}

func (s *Server) handleCreateChannel(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req createChannelRequest
	if err := decodeJSON(r, maxJSONBytes, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_input", "invalid JSON")
		return
	}
	if !s.allowGeneration(w, r, user) {
		return
	}
	channel, job, err := s.app.CreateChannel(r.Context(), user, app.CreateChannelInput{
		Name:        req.Name,
		Author:      req.Author,
		Description: req.Description,
		DropToFeed:  req.DropToFeed,
		Count:       req.Count,
		Async:       req.Async,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if job != nil {
		writeJSON(w, http.StatusAccepted, map[string]any{"channel": channel, "job": job})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"channel": channel})
}

// handleChannelTree routes everything below /api/channels/{id}.
func (s *Server) handleChannelTree(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/api/channels/")
	if len(parts) == 0 {
		http.NotFound(w, r)
		return
	}
	id := parts[0]
	switch {
	case len(parts) == 1:
		s.handleChannelByID(w, r, id)
	case parts[1] == "cards" && len(parts) == 2:
		s.authenticated(func(w http.ResponseWriter, r *http.Request, user domain.User) {
			s.handleUploadCard(w, r, user, id)
		}).ServeHTTP(w, r)
	case parts[1] == "cards" && len(parts) <= 4:
		cardID := parts[2]
		action := ""
		if len(parts) == 4 {
			action = parts[3]
		}
		s.authenticated(func(w http.ResponseWriter, r *http.Request, user domain.User) {
			s.handleCard(w, r, user, id, cardID, action)
		}).ServeHTTP(w, r)
	case parts[1] == "chat" && len(parts) == 2:
		s.handleChat(w, r, id)
	case parts[1] == "chat" && len(parts) == 3 && parts[2] == "ws":
		s.authenticated(func(w http.ResponseWriter, r *http.Request, user domain.User) {
			s.handleChatStream(w, r, user, id)
		}).ServeHTTP(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleChannelByID(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		channel, err := s.app.GetChannel(r.Context(), s.viewerID(r), id)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, channel)
	case http.MethodPatch:
		s.authenticated(func(w http.ResponseWriter, r *http.Request, user domain.User) {
			var req updateChannelRequest
			if err := decodeJSON(r, maxJSONBytes, &req); err != nil {
				writeError(w, r, http.StatusBadRequest, "invalid_input", "invalid JSON")
				return
			}
			channel, err := s.app.UpdateChannel(r.Context(), user, id, app.ChannelUpdate{
				Name:        req.Name,
				Author:      req.Author,
				Description: req.Description,
				DropToFeed:  req.DropToFeed,
			})
			if err != nil {
				writeAppError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, channel)
		}).ServeHTTP(w, r)
	case http.MethodDelete:
		s.authenticated(func(w http.ResponseWriter, r *http.Request, user domain.User) {
			if err := s.app.DeleteChannel(r.Context(), user, id); err != nil {
				writeAppError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
		}).ServeHTTP(w, r)
	default:
		methodNotAllowed(w, r)
	}
}

// handleUploadCard accepts either multipart form data (file, caption) or JSON with a data URL.
func (s *Server) handleUploadCard(w http.ResponseWriter, r *http.Request, user domain.User, channelID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	var in app.UploadInput
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(storage.MaxMediaBytes); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_input", "invalid multipart form")
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_input", "file is required")
			return
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, storage.MaxMediaBytes+1))
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_input", "failed to read file")
			return
		}
		contentType := header.Header.Get("Content-Type")
		if contentType == "" || contentType == "application/octet-stream" {
			contentType = http.DetectContentType(data)
		}
		in = app.UploadInput{Caption: r.FormValue("caption"), ContentType: contentType, Data: data}
	} else {
		var req uploadCardRequest
		if err := decodeJSON(r, maxUploadBytes, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_input", "invalid JSON")
			return
		}
		in = app.UploadInput{Caption: req.Caption, DataURL: req.DataURL}
	}
	card, err := s.app.UploadCard(r.Context(), user, channelID, in)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

func (s *Server) handleCard(w http.ResponseWriter, r *http.Request, user domain.User, channelID, cardID, action string) {
	switch action {
	case "":
		if r.Method != http.MethodDelete {
			methodNotAllowed(w, r)
			return
		}
		if err := s.app.DeleteCard(r.Context(), user, channelID, cardID); err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	case "like":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r)
			return
		}
		res, err := s.app.ToggleLike(r.Context(), user, channelID, cardID)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"liked":      res.Liked,
			"likesCount": res.Card.LikesCount,
			"card":       res.Card,
		})
	case "flip":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r)
			return
		}
		var req flipRequest
		if r.ContentLength != 0 {
			if err := decodeJSON(r, maxJSONBytes, &req); err != nil && err != io.EOF {
				writeError(w, r, http.StatusBadRequest, "invalid_input", "invalid JSON")
				return
			}
		}
		if !s.allowGeneration(w, r, user) {
			return
		}
		item, card, err := s.app.Flip(r.Context(), user, channelID, cardID, req.PersonaID)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"item": item, "card": card})
	case "twist":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r)
			return
		}
		var req twistRequest
		if r.ContentLength != 0 {
			if err := decodeJSON(r, maxJSONBytes, &req); err != nil && err != io.EOF {
				writeError(w, r, http.StatusBadRequest, "invalid_input", "invalid JSON")
				return
			}
		}
		if !s.allowGeneration(w, r, user) {
			return
		}
		card, channel, err := s.app.Twist(r.Context(), user, channelID, cardID, app.TwistInput{
			Prompt:          req.Prompt,
			TargetChannelID: req.TargetChannelID,
			NewChannelName:  req.NewChannelName,
			DropToFeed:      req.DropToFeed,
		})
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"card": card, "channel": channel})
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, channelID string) {
	switch r.Method {
	case http.MethodGet:
		msgs, err := s.app.ChatMessages(r.Context(), channelID)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": msgs, "count": len(msgs)})
	case http.MethodPost:
		s.authenticated(func(w http.ResponseWriter, r *http.Request, user domain.User) {
			var req chatRequest
			if err := decodeJSON(r, maxJSONBytes, &req); err != nil {
				writeError(w, r, http.StatusBadRequest, "invalid_input", "invalid JSON")
				return
			}
			msg, err := s.app.PostChat(r.Context(), user, channelID, req.Text)
			if err != nil {
				writeAppError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, msg)
		}).ServeHTTP(w, r)
	default:
		methodNotAllowed(w, r)
	}
}

// serendipity handlers
func (s *Server) handlePersonas(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	personas := s.app.Personas()
	writeJSON(w, http.StatusOK, map[string]any{"items": personas, "count": len(personas)})
}

func (s *Server) handleSerendipityItems(w http.ResponseWriter, r *http.Request, user domain.User) {
	parts := splitPath(r.URL.Path, "/api/serendipity/items")
	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		items, err := s.app.SerendipityItems(r.Context(), user)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
	case len(parts) == 1 && r.Method == http.MethodDelete:
		if err := s.app.DeleteSerendipityItem(r.Context(), parts[0]); err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	case len(parts) > 1:
		http.NotFound(w, r)
	default:
		methodNotAllowed(w, r)
	}
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request, user domain.User) {
	parts := splitPath(r.URL.Path, "/api/serendipity/recommendations")
	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		recs, err := s.app.Recommendations(r.Context(), user)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": recs, "count": len(recs)})
	case len(parts) == 1 && r.Method == http.MethodDelete:
		if err := s.app.DeleteRecommendation(r.Context(), parts[0]); err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	case len(parts) > 1:
		http.NotFound(w, r)
	default:
		methodNotAllowed(w, r)
	}
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	parts := splitPath(r.URL.Path, "/api/jobs/")
	if len(parts) != 1 {
		http.NotFound(w, r)
		return
	}
	job, err := s.app.Job(r.Context(), user, parts[0])
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleMedia redirects a stored media reference to a short-lived presigned URL.
func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w, r)
		return
	}
	key := strings.TrimPrefix(r.URL.Path, storage.MediaPathPrefix)
	target, err := s.app.MediaURL(r.Context(), key)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}
