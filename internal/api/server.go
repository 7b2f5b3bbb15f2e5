// Package api is the local HTTP presentation API served by `dolist serve`.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/and161185/dolist/internal/lists"
	"github.com/and161185/dolist/internal/model"
	"github.com/and161185/dolist/internal/session"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Sessions is the session flow surface the API drives.
type Sessions interface {
	Start(ctx context.Context) (model.Resolution, error)
	ContinueAsGuest(ctx context.Context) (model.Resolution, error)
	SignIn(ctx context.Context, cred model.Credential) (model.Resolution, error)
	Register(ctx context.Context, r session.RegisterRequest) (model.Resolution, error)
	Logout(ctx context.Context, u *model.User) error
}

// Lists is the list/task surface the API drives.
type Lists interface {
	CreateList(ctx context.Context, u *model.User, title string, taskTexts []string) (*model.TaskList, error)
	GetList(ctx context.Context, u *model.User, listID string) (*model.TaskList, []model.Task, error)
	Lists(ctx context.Context, u *model.User, f model.Filter) ([]model.ListSummary, error)
	EditList(ctx context.Context, u *model.User, e model.ListEdit) error
	AddTask(ctx context.Context, u *model.User, listID, text string) (*model.Task, error)
	SetTaskCompleted(ctx context.Context, u *model.User, taskID string, done bool) error
	UpdateTaskText(ctx context.Context, u *model.User, taskID, text string) error
	RemoveTask(ctx context.Context, u *model.User, taskID string) error
	DeleteList(ctx context.Context, u *model.User, listID string) error
	Import(ctx context.Context, u *model.User, in []lists.ImportList) (int, error)
}

var (
	_ Sessions = (*session.Manager)(nil)
	_ Lists    = (*lists.Service)(nil)
)

// Server holds the current session resolution for the UI it serves.
type Server struct {
	sessions Sessions
	lists    Lists
	log      *zap.Logger

	mu  sync.Mutex
	res model.Resolution
}

// New constructs a Server. Call Resolve before serving.
func New(sessions Sessions, ls Lists, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{sessions: sessions, lists: ls, log: log}
}

// Resolve runs launch-time session resolution and remembers the outcome.
func (s *Server) Resolve(ctx context.Context) (model.Resolution, error) {
	res, err := s.sessions.Start(ctx)
	s.set(res)
	return res, err
}

func (s *Server) set(res model.Resolution) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.res = res
}

func (s *Server) current() model.Resolution {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.res
}

// Handler returns the routed handler wrapped in CORS for allowedOrigins.
func (s *Server) Handler(allowedOrigins []string) http.Handler {
	r := mux.NewRouter()
	r.Use(s.logging)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/session", s.getSession).Methods(http.MethodGet)
	api.HandleFunc("/session/guest", s.guest).Methods(http.MethodPost)
	api.HandleFunc("/session/login", s.login).Methods(http.MethodPost)
	api.HandleFunc("/session/register", s.register).Methods(http.MethodPost)
	api.HandleFunc("/session/logout", s.logout).Methods(http.MethodPost)

	private := api.NewRoute().Subrouter()
	private.Use(s.requireHome)
	private.HandleFunc("/lists", s.getLists).Methods(http.MethodGet)
	private.HandleFunc("/lists", s.createList).Methods(http.MethodPost)
	private.HandleFunc("/lists/import", s.importLists).Methods(http.MethodPost)
	private.HandleFunc("/lists/{id}", s.getList).Methods(http.MethodGet)
	private.HandleFunc("/lists/{id}", s.editList).Methods(http.MethodPut)
	private.HandleFunc("/lists/{id}", s.deleteList).Methods(http.MethodDelete)
	private.HandleFunc("/lists/{id}/tasks", s.addTask).Methods(http.MethodPost)
	private.HandleFunc("/tasks/{id}", s.patchTask).Methods(http.MethodPatch)
	private.HandleFunc("/tasks/{id}", s.deleteTask).Methods(http.MethodDelete)

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	})
	return c.Handler(r)
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.code),
			zap.Duration("dur", time.Since(start)),
		}
		switch {
		case rec.code >= 500:
			s.log.Error("http", fields...)
		case rec.code >= 400:
			s.log.Warn("http", fields...)
		default:
			s.log.Info("http", fields...)
		}
	})
}

type userKey struct{}

func (s *Server) requireHome(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := s.current()
		if res.Destination != model.DestinationHome || res.User == nil {
			writeError(w, http.StatusUnauthorized, "not signed in")
			return
		}
		ctx := context.WithValue(r.Context(), userKey{}, res.User)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFrom(r *http.Request) *model.User {
	u, _ := r.Context().Value(userKey{}).(*model.User)
	return u
}
