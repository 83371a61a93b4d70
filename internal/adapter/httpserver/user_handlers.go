package httpserver

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/peter0524/service-fabric/internal/domain"
)

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

// validationDetails flattens validator.ValidationErrors into a
// field-to-tag map suitable for the error envelope's Details.
func validationDetails(err error) map[string]string {
	details := map[string]string{}
	if ve, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range ve {
			details[strings.ToLower(fe.Field())] = fe.Tag()
		}
	}
	return details
}

func userIDFromRequest(r *http.Request) string {
	if id := chi.URLParam(r, "id"); id != "" {
		return id
	}
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return domain.DefaultUserID
}

// RegisterProfileHandler implements POST /users/profile.
func (s *Server) RegisterProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cfg domain.UserConfig
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			writeError(w, r, domain.ErrInvalidArgument, err.Error())
			return
		}
		if cfg.UserID == "" {
			writeError(w, r, domain.ErrInvalidArgument, "user_id is required")
			return
		}
		if err := s.Users.RegisterProfile(r.Context(), cfg); err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusCreated, cfg)
	}
}

// ProfileHandler implements GET/PUT /users/{id}/profile: GET returns the
// full profile document, PUT replaces it wholesale (unlike PATCH
// /users/{id}/config, which patches individual fields).
func (s *Server) ProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := userIDFromRequest(r)
		switch r.Method {
		case http.MethodGet:
			cfg, err := s.Users.GetUserConfig(r.Context(), userID)
			if err != nil {
				writeError(w, r, err, nil)
				return
			}
			writeJSON(w, http.StatusOK, cfg)
		case http.MethodPut:
			s.replaceProfile(w, r, userID)
		default:
			writeError(w, r, domain.ErrInvalidArgument, "method not allowed")
		}
	}
}

// replaceProfile applies a full-document PUT: the target profile must
// already exist (use POST /users/profile to create one), every
// validated field is written, and watched tickers / enabled services
// are replaced wholesale since UserConfigStore has no partial setter
// for them.
func (s *Server) replaceProfile(w http.ResponseWriter, r *http.Request, userID string) {
	var cfg domain.UserConfig
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, r, domain.ErrInvalidArgument, err.Error())
		return
	}
	if err := getValidator().Struct(cfg.Thresholds); err != nil {
		writeError(w, r, domain.ErrInvalidArgument, validationDetails(err))
		return
	}
	if !cfg.LLMChoice.Valid() {
		writeError(w, r, domain.ErrInvalidArgument, "unknown llm_choice")
		return
	}

	if _, err := s.Users.GetUserConfig(r.Context(), userID); err != nil {
		writeError(w, r, err, nil)
		return
	}

	patch := domain.UserConfigPatch{
		Phone:      cfg.Phone,
		Thresholds: &cfg.Thresholds,
		LLMChoice:  &cfg.LLMChoice,
		Notify:     &cfg.Notify,
	}
	if err := s.Users.UpdateUserConfig(r.Context(), userID, patch); err != nil {
		writeError(w, r, err, nil)
		return
	}
	if err := s.Users.SetUserStocks(r.Context(), userID, cfg.WatchedTickers); err != nil {
		writeError(w, r, err, nil)
		return
	}
	if err := s.Users.SetWantedServices(r.Context(), userID, cfg.EnabledServices); err != nil {
		writeError(w, r, err, nil)
		return
	}

	cfg.UserID = userID
	writeJSON(w, http.StatusOK, cfg)
}

// ConfigHandler implements GET /users/{id}/config: the full aggregated
// configuration snapshot, the same document UpdateConfigHandler patches.
func (s *Server) ConfigHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg, err := s.Users.GetUserConfig(r.Context(), userIDFromRequest(r))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	}
}

type userConfigPatchRequest struct {
	Phone      *string             `json:"phone,omitempty"`
	Thresholds *domain.ThresholdSet `json:"thresholds,omitempty"`
	LLMChoice  *domain.LLMKind     `json:"llm_choice,omitempty"`
	Notify     *domain.NotifyPrefs `json:"notify,omitempty"`
}

// UpdateConfigHandler implements PATCH /users/{id}/config.
func (s *Server) UpdateConfigHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req userConfigPatchRequest
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, domain.ErrInvalidArgument, err.Error())
			return
		}
		patch := domain.UserConfigPatch{
			Phone:      req.Phone,
			Thresholds: req.Thresholds,
			LLMChoice:  req.LLMChoice,
			Notify:     req.Notify,
		}
		if err := s.Users.UpdateUserConfig(r.Context(), userIDFromRequest(r), patch); err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	}
}

// StocksHandler implements GET/PUT /users/{id}/stocks.
func (s *Server) StocksHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := userIDFromRequest(r)
		switch r.Method {
		case http.MethodGet:
			tickers, err := s.Users.GetUserStocks(r.Context(), userID)
			if err != nil {
				writeError(w, r, err, nil)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"tickers": tickers})
		case http.MethodPut:
			var req struct {
				Tickers []domain.TickerCode `json:"tickers"`
			}
			defer r.Body.Close()
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, r, domain.ErrInvalidArgument, err.Error())
				return
			}
			if err := s.Users.SetUserStocks(r.Context(), userID, req.Tickers); err != nil {
				writeError(w, r, err, nil)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"tickers": req.Tickers})
		default:
			writeError(w, r, domain.ErrInvalidArgument, "method not allowed")
		}
	}
}

// StockHandler implements DELETE /users/{id}/stocks/{code}: removes a
// single ticker by reading the current list and writing it back without
// the target, since the store only exposes a whole-set setter.
func (s *Server) StockHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := userIDFromRequest(r)
		target := domain.TickerCode(chi.URLParam(r, "code"))

		current, err := s.Users.GetUserStocks(r.Context(), userID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		remaining := make([]domain.TickerCode, 0, len(current))
		for _, t := range current {
			if t != target {
				remaining = append(remaining, t)
			}
		}
		if err := s.Users.SetUserStocks(r.Context(), userID, remaining); err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"tickers": remaining})
	}
}

// StocksBatchHandler implements POST /users/{id}/stocks/batch: adds the
// given tickers to the user's existing watch list, de-duplicating.
func (s *Server) StocksBatchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := userIDFromRequest(r)
		var req struct {
			Tickers []domain.TickerCode `json:"tickers"`
		}
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, domain.ErrInvalidArgument, err.Error())
			return
		}
		current, err := s.Users.GetUserStocks(r.Context(), userID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		seen := make(map[domain.TickerCode]bool, len(current))
		merged := make([]domain.TickerCode, 0, len(current)+len(req.Tickers))
		for _, t := range current {
			if !seen[t] {
				seen[t] = true
				merged = append(merged, t)
			}
		}
		for _, t := range req.Tickers {
			if !seen[t] {
				seen[t] = true
				merged = append(merged, t)
			}
		}
		if err := s.Users.SetUserStocks(r.Context(), userID, merged); err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"tickers": merged})
	}
}

// ModelHandler implements GET/PUT /users/{id}/model.
func (s *Server) ModelHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := userIDFromRequest(r)
		switch r.Method {
		case http.MethodGet:
			kind, err := s.Users.GetModelChoice(r.Context(), userID)
			if err != nil {
				writeError(w, r, err, nil)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"llm_choice": kind})
		case http.MethodPut:
			var req struct {
				LLMChoice domain.LLMKind `json:"llm_choice"`
			}
			defer r.Body.Close()
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, r, domain.ErrInvalidArgument, err.Error())
				return
			}
			if !req.LLMChoice.Valid() {
				writeError(w, r, domain.ErrInvalidArgument, "unknown llm_choice")
				return
			}
			if err := s.Users.SetModelChoice(r.Context(), userID, req.LLMChoice); err != nil {
				writeError(w, r, err, nil)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"llm_choice": req.LLMChoice})
		default:
			writeError(w, r, domain.ErrInvalidArgument, "method not allowed")
		}
	}
}

// WantedServicesHandler implements GET/POST/PUT /users/{id}/wanted-services.
// GET returns the user's current enablement map; POST and PUT both replace
// it wholesale, since enabling one service without knowing the others'
// state would silently disable them.
func (s *Server) WantedServicesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := userIDFromRequest(r)

		if r.Method == http.MethodGet {
			cfg, err := s.Users.GetUserConfig(r.Context(), userID)
			if err != nil {
				writeError(w, r, err, nil)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"enabled_services": cfg.EnabledServices})
			return
		}

		var req struct {
			Enabled map[domain.ServiceKind]bool `json:"enabled"`
		}
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, domain.ErrInvalidArgument, err.Error())
			return
		}
		if err := s.Users.SetWantedServices(r.Context(), userID, req.Enabled); err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"enabled_services": req.Enabled})
	}
}
