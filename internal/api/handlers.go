package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/and161185/dolist/internal/errs"
	"github.com/and161185/dolist/internal/lists"
	"github.com/and161185/dolist/internal/model"
	"github.com/and161185/dolist/internal/session"
	"github.com/gorilla/mux"
)

type userJSON struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	LastName string `json:"lastName"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Login    bool   `json:"login"`
	IsGuest  bool   `json:"isGuest"`
}

type sessionJSON struct {
	Destination string    `json:"destination"`
	User        *userJSON `json:"user,omitempty"`
}

type listJSON struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	Title       string `json:"title"`
	IsCompleted bool   `json:"isCompleted"`
	RemoteID    string `json:"remoteId,omitempty"`
	Total       *int   `json:"total,omitempty"`
	Done        *int   `json:"done,omitempty"`
}

type taskJSON struct {
	ID          string `json:"id"`
	ListID      string `json:"listId"`
	Text        string `json:"text"`
	IsCompleted bool   `json:"isCompleted"`
}

func toSessionJSON(res model.Resolution) sessionJSON {
	out := sessionJSON{Destination: res.Destination.String()}
	if u := res.User; u != nil {
		out.User = &userJSON{
			ID: u.ID, Name: u.Name, LastName: u.LastName, Username: u.Username,
			Email: u.Email, Login: u.Login, IsGuest: u.IsGuest,
		}
	}
	return out
}

func toListJSON(l model.TaskList) listJSON {
	return listJSON{ID: l.ID, UserID: l.UserID, Title: l.Title, IsCompleted: l.IsCompleted, RemoteID: l.RemoteID}
}

func toTaskJSON(t model.Task) taskJSON {
	return taskJSON{ID: t.ID, ListID: t.ListID, Text: t.Text, IsCompleted: t.IsCompleted}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrValidation):
		code = http.StatusBadRequest
	case errors.Is(err, errs.ErrUnauthorized), errors.Is(err, errs.ErrNotSignedIn):
		code = http.StatusUnauthorized
	case errors.Is(err, errs.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, errs.ErrAlreadyExists):
		code = http.StatusConflict
	case errors.Is(err, errs.ErrRateLimited):
		code = http.StatusTooManyRequests
	case errors.Is(err, errs.ErrRemoteUnavailable):
		code = http.StatusServiceUnavailable
	}
	if code == http.StatusInternalServerError {
		s.log.Sugar().Errorw("request failed", "err", err)
		writeError(w, code, "internal error")
		return
	}
	writeError(w, code, err.Error())
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return false
	}
	return true
}

// GET /api/session  (?refresh=1 re-runs launch resolution)
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	res := s.current()
	if r.URL.Query().Get("refresh") != "" {
		var err error
		if res, err = s.Resolve(r.Context()); err != nil {
			s.fail(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, toSessionJSON(res))
}

func (s *Server) finish(w http.ResponseWriter, res model.Resolution, err error) {
	if err != nil {
		s.fail(w, err)
		return
	}
	s.set(res)
	writeJSON(w, http.StatusOK, toSessionJSON(res))
}

// POST /api/session/guest
func (s *Server) guest(w http.ResponseWriter, r *http.Request) {
	res, err := s.sessions.ContinueAsGuest(r.Context())
	s.finish(w, res, err)
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Provider string `json:"provider"`
	IDToken  string `json:"idToken"`
}

// POST /api/session/login
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if !decode(w, r, &req) {
		return
	}
	res, err := s.sessions.SignIn(r.Context(), model.Credential{
		Email: req.Email, Password: req.Password, Provider: req.Provider, IDToken: req.IDToken,
	})
	s.finish(w, res, err)
}

type registerReq struct {
	Name     string `json:"name"`
	LastName string `json:"lastName"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// POST /api/session/register
func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if !decode(w, r, &req) {
		return
	}
	res, err := s.sessions.Register(r.Context(), session.RegisterRequest(req))
	s.finish(w, res, err)
}

// POST /api/session/logout
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Logout(r.Context(), s.current().User); err != nil {
		s.fail(w, err)
		return
	}
	s.set(model.Resolution{Destination: model.DestinationAuth})
	writeJSON(w, http.StatusOK, toSessionJSON(s.current()))
}

// GET /api/lists?filter=all|completed|pending
func (s *Server) getLists(w http.ResponseWriter, r *http.Request) {
	sums, err := s.lists.Lists(r.Context(), userFrom(r), model.ParseFilter(r.URL.Query().Get("filter")))
	if err != nil {
		s.fail(w, err)
		return
	}
	out := make([]listJSON, 0, len(sums))
	for _, ls := range sums {
		j := toListJSON(ls.TaskList)
		total, done := ls.Total, ls.Done
		j.Total, j.Done = &total, &done
		out = append(out, j)
	}
	writeJSON(w, http.StatusOK, out)
}

type createListReq struct {
	Title string   `json:"title"`
	Tasks []string `json:"tasks"`
}

// POST /api/lists
func (s *Server) createList(w http.ResponseWriter, r *http.Request) {
	var req createListReq
	if !decode(w, r, &req) {
		return
	}
	l, err := s.lists.CreateList(r.Context(), userFrom(r), req.Title, req.Tasks)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toListJSON(*l))
}

// POST /api/lists/import  (same document as `dolist import`, JSON or YAML)
func (s *Server) importLists(w http.ResponseWriter, r *http.Request) {
	in, err := lists.ParseImport(r.Body)
	if err != nil {
		s.fail(w, err)
		return
	}
	n, err := s.lists.Import(r.Context(), userFrom(r), in)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"imported": n})
}

type listWithTasks struct {
	List  listJSON   `json:"list"`
	Tasks []taskJSON `json:"tasks"`
}

// GET /api/lists/{id}
func (s *Server) getList(w http.ResponseWriter, r *http.Request) {
	l, tasks, err := s.lists.GetList(r.Context(), userFrom(r), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, err)
		return
	}
	out := listWithTasks{List: toListJSON(*l), Tasks: make([]taskJSON, 0, len(tasks))}
	for _, t := range tasks {
		out.Tasks = append(out.Tasks, toTaskJSON(t))
	}
	writeJSON(w, http.StatusOK, out)
}

type editListReq struct {
	Title          string     `json:"title"`
	Tasks          []taskJSON `json:"tasks"`
	DeletedTaskIDs []string   `json:"deletedTaskIds"`
}

// PUT /api/lists/{id}
func (s *Server) editList(w http.ResponseWriter, r *http.Request) {
	var req editListReq
	if !decode(w, r, &req) {
		return
	}
	e := model.ListEdit{ListID: mux.Vars(r)["id"], Title: req.Title, DeletedTaskIDs: req.DeletedTaskIDs}
	for _, t := range req.Tasks {
		e.Tasks = append(e.Tasks, model.TaskEdit{ID: t.ID, Text: t.Text, IsCompleted: t.IsCompleted})
	}
	if err := s.lists.EditList(r.Context(), userFrom(r), e); err != nil {
		s.fail(w, err)
		return
	}
	s.getList(w, r)
}

// DELETE /api/lists/{id}
func (s *Server) deleteList(w http.ResponseWriter, r *http.Request) {
	if err := s.lists.DeleteList(r.Context(), userFrom(r), mux.Vars(r)["id"]); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addTaskReq struct {
	Text string `json:"text"`
}

// POST /api/lists/{id}/tasks
func (s *Server) addTask(w http.ResponseWriter, r *http.Request) {
	var req addTaskReq
	if !decode(w, r, &req) {
		return
	}
	t, err := s.lists.AddTask(r.Context(), userFrom(r), mux.Vars(r)["id"], req.Text)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTaskJSON(*t))
}

type patchTaskReq struct {
	Text        *string `json:"text"`
	IsCompleted *bool   `json:"isCompleted"`
}

// PATCH /api/tasks/{id}
func (s *Server) patchTask(w http.ResponseWriter, r *http.Request) {
	var req patchTaskReq
	if !decode(w, r, &req) {
		return
	}
	id, u := mux.Vars(r)["id"], userFrom(r)
	if req.Text != nil {
		if err := s.lists.UpdateTaskText(r.Context(), u, id, *req.Text); err != nil {
			s.fail(w, err)
			return
		}
	}
	if req.IsCompleted != nil {
		if err := s.lists.SetTaskCompleted(r.Context(), u, id, *req.IsCompleted); err != nil {
			s.fail(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// DELETE /api/tasks/{id}
func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.lists.RemoveTask(r.Context(), userFrom(r), mux.Vars(r)["id"]); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
