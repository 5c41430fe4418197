package server

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/botarena/arena/pkg/arena/ipd"
)

type ctxKey int

const userKey ctxKey = 0

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes the error body shape the client expects: a machine
// status plus a snake_case "detail" reason.
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// requireAuth verifies the bearer token and stores the account in the
// request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "not_authenticated")
			return
		}

		username, err := s.issuer.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}

		user, err := s.users.GetByUsername(username)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		if user == nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

func currentUser(r *http.Request) *User {
	user, _ := r.Context().Value(userKey).(*User)
	return user
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body")
		return false
	}
	return true
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil
}

func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	if in.Username == "" || in.Password == "" {
		writeError(w, http.StatusBadRequest, "credentials_required")
		return
	}

	user, err := s.users.Create(in.Username, in.Password)
	if errors.Is(err, ErrUsernameTaken) {
		writeError(w, http.StatusConflict, "username_taken")
		return
	}
	if err != nil {
		s.logger.Error("register failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"id": user.ID, "username": user.Username})
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &in) {
		return
	}

	user, err := s.users.Authenticate(in.Username, in.Password)
	if err != nil {
		s.logger.Error("login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}

	token, err := s.issuer.Issue(user.Username)
	if err != nil {
		s.logger.Error("token issue failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": token,
		"token_type":   "bearer",
	})
}

type botOut struct {
	ID          int64  `json:"id"`
	EnvID       string `json:"env_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Submitted   bool   `json:"submitted"`
}

type versionOut struct {
	ID         int64  `json:"id"`
	VersionNum int    `json:"version_num"`
	Code       string `json:"code"`
}

type botDetailOut struct {
	botOut
	ActiveVersionID *int64       `json:"active_version_id"`
	Versions        []versionOut `json:"versions"`
}

func toBotOut(b *Bot) botOut {
	return botOut{
		ID:          b.ID,
		EnvID:       b.EnvID,
		Name:        b.Name,
		Description: b.Description,
		Submitted:   b.Submitted,
	}
}

func toBotDetailOut(b *Bot) botDetailOut {
	out := botDetailOut{botOut: toBotOut(b), ActiveVersionID: b.ActiveVersionID}
	out.Versions = make([]versionOut, len(b.Versions))
	for i, v := range b.Versions {
		out.Versions[i] = versionOut{ID: v.ID, VersionNum: v.VersionNum, Code: v.Code}
	}
	return out
}

func (s *Server) listBotsHandler(w http.ResponseWriter, r *http.Request) {
	bots, err := s.bots.List(currentUser(r).ID)
	if err != nil {
		s.logger.Error("list bots failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	out := make([]botOut, len(bots))
	for i := range bots {
		out[i] = toBotOut(&bots[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createBotHandler(w http.ResponseWriter, r *http.Request) {
	var in struct {
		EnvID       string `json:"env_id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Code        string `json:"code"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	if in.EnvID == "" || in.Name == "" || in.Code == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	bot, err := s.bots.Create(currentUser(r).ID, in.EnvID, in.Name, in.Description, in.Code)
	if errors.Is(err, ErrNameTaken) {
		writeError(w, http.StatusConflict, "bot_name_taken")
		return
	}
	if err != nil {
		s.logger.Error("create bot failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	writeJSON(w, http.StatusCreated, toBotOut(bot))
}

func (s *Server) getBotHandler(w http.ResponseWriter, r *http.Request) {
	botID, ok := pathID(r, "botID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_bot_id")
		return
	}

	bot, err := s.bots.Get(currentUser(r).ID, botID)
	if err != nil {
		s.logger.Error("get bot failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	if bot == nil {
		writeError(w, http.StatusNotFound, "bot_not_found")
		return
	}

	writeJSON(w, http.StatusOK, toBotDetailOut(bot))
}

func (s *Server) deleteBotHandler(w http.ResponseWriter, r *http.Request) {
	botID, ok := pathID(r, "botID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_bot_id")
		return
	}

	err := s.bots.Delete(currentUser(r).ID, botID)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "bot_not_found")
			return
		}
		s.logger.Error("delete bot failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) createVersionHandler(w http.ResponseWriter, r *http.Request) {
	botID, ok := pathID(r, "botID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_bot_id")
		return
	}
	var in struct {
		Code string `json:"code"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	if in.Code == "" {
		writeError(w, http.StatusBadRequest, "code_required")
		return
	}

	version, err := s.bots.CreateVersion(currentUser(r).ID, botID, in.Code)
	if errors.Is(err, ErrDuplicateCode) {
		writeError(w, http.StatusConflict, "duplicate_code")
		return
	}
	if err != nil {
		s.logger.Error("create version failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	if version == nil {
		writeError(w, http.StatusNotFound, "bot_not_found")
		return
	}

	writeJSON(w, http.StatusCreated, versionOut{ID: version.ID, VersionNum: version.VersionNum, Code: version.Code})
}

func (s *Server) deleteVersionHandler(w http.ResponseWriter, r *http.Request) {
	botID, ok1 := pathID(r, "botID")
	versionID, ok2 := pathID(r, "versionID")
	if !ok1 || !ok2 {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return
	}

	err := s.bots.DeleteVersion(currentUser(r).ID, botID, versionID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	case errors.Is(err, ErrActiveVersion):
		writeError(w, http.StatusConflict, "active_version")
	case errors.Is(err, ErrVersionNotFound):
		writeError(w, http.StatusNotFound, "version_not_found")
	case isNotFound(err):
		writeError(w, http.StatusNotFound, "bot_not_found")
	default:
		s.logger.Error("delete version failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
	}
}

func (s *Server) setActiveHandler(w http.ResponseWriter, r *http.Request) {
	botID, ok := pathID(r, "botID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_bot_id")
		return
	}
	var in struct {
		VersionID int64 `json:"version_id"`
	}
	if !decodeBody(w, r, &in) {
		return
	}

	bot, err := s.bots.SetActive(currentUser(r).ID, botID, in.VersionID)
	if errors.Is(err, ErrVersionNotFound) {
		writeError(w, http.StatusNotFound, "version_not_found")
		return
	}
	if err != nil {
		s.logger.Error("set active failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	if bot == nil {
		writeError(w, http.StatusNotFound, "bot_not_found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":                bot.ID,
		"active_version_id": bot.ActiveVersionID,
	})
}

func (s *Server) runTestHandler(w http.ResponseWriter, r *http.Request) {
	botID, ok := pathID(r, "botID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_bot_id")
		return
	}
	user := currentUser(r)

	bot, err := s.bots.Get(user.ID, botID)
	if err != nil {
		s.logger.Error("get bot failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	if bot == nil {
		writeError(w, http.StatusNotFound, "bot_not_found")
		return
	}
	if bot.EnvID != ipd.EnvID {
		writeError(w, http.StatusBadRequest, "unsupported_env")
		return
	}
	active := bot.ActiveVersion()
	if active == nil {
		writeError(w, http.StatusConflict, "no_active_version")
		return
	}

	seed := rand.Int63n(1<<31 - 1)
	match := &Match{
		EnvID:        bot.EnvID,
		UserID:       user.ID,
		BotID:        bot.ID,
		BotCodeHash:  active.CodeHash,
		OpponentName: ipd.BaselineOpponent,
		Seed:         seed,
	}
	if err := s.matches.Begin(match); err != nil {
		s.logger.Error("begin match failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	result, err := s.runner.Run(active.Code, ipd.BaselineOpponent, seed)
	if err != nil {
		s.logger.Warn("test run failed", "bot", bot.ID, "match", match.ID, "error", err)
		if failErr := s.matches.Fail(match, err.Error()); failErr != nil {
			s.logger.Error("fail match failed", "error", failErr)
		}
		writeError(w, http.StatusInternalServerError, "runner_failed")
		return
	}

	if err := s.matches.Complete(match, result); err != nil {
		s.logger.Error("complete match failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"match_id": match.ID,
		"cum_a":    result.CumA,
		"cum_b":    result.CumB,
	})
}

func (s *Server) submitHandler(w http.ResponseWriter, r *http.Request) {
	botID, ok := pathID(r, "botID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_bot_id")
		return
	}

	bot, err := s.bots.Submit(currentUser(r).ID, botID)
	if err != nil {
		s.logger.Error("submit failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	if bot == nil {
		writeError(w, http.StatusNotFound, "bot_not_found")
		return
	}

	writeJSON(w, http.StatusOK, toBotOut(bot))
}

func (s *Server) getMatchHandler(w http.ResponseWriter, r *http.Request) {
	matchID, ok := pathID(r, "matchID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_match_id")
		return
	}

	match, err := s.matches.Get(currentUser(r).ID, matchID)
	if err != nil {
		s.logger.Error("get match failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	if match == nil {
		writeError(w, http.StatusNotFound, "match_not_found")
		return
	}

	steps := make([]map[string]any, len(match.Steps))
	for i, st := range match.Steps {
		steps[i] = map[string]any{
			"round":    st.Round,
			"obs_a":    st.ObsA,
			"act_a":    st.ActA,
			"obs_b":    st.ObsB,
			"act_b":    st.ActB,
			"reward_a": st.RewardA,
			"reward_b": st.RewardB,
			"cum_a":    st.CumA,
			"cum_b":    st.CumB,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":            match.ID,
		"env_id":        match.EnvID,
		"opponent_name": match.OpponentName,
		"seed":          match.Seed,
		"status":        match.Status,
		"cum_a":         match.CumA,
		"cum_b":         match.CumB,
		"steps":         steps,
	})
}

func (s *Server) leaderboardHandler(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	rows, err := s.board.Compute(limit)
	if err != nil {
		s.logger.Error("leaderboard failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// isNotFound reports whether err is gorm's record-not-found.
func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
