package backend

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/briangreenhill/quill/internal/blog"
)

// maxBody caps POST bodies.
const maxBody = 1 << 20

type Server struct {
	Router *chi.Mux
	Store  Store
	Log    zerolog.Logger
	now    func() time.Time
}

type ServerOptions struct {
	Store  Store
	Logger zerolog.Logger
	// Now stamps created posts; defaults to time.Now.
	Now func() time.Time
	// WriteToken, when set, is required as a bearer token on POST.
	WriteToken string
}

func New(opts ServerOptions) *Server {
	r := chi.NewRouter()
	s := &Server{Router: r, Store: opts.Store, Log: opts.Logger, now: opts.Now}
	if s.now == nil {
		s.now = time.Now
	}

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(hlog.NewHandler(s.Log))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", chimw.GetReqID(r.Context())).
			Int("status", status).
			Int("size", size).
			Dur("duration", d).
			Msg("request")
	}))
	r.Use(chimw.Recoverer)
	r.Use(withCORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("write health check")
		}
	})

	r.Route("/blogs", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Get("/{id}", s.handleGet)
		r.Group(func(r chi.Router) {
			if opts.WriteToken != "" {
				r.Use(requireToken(opts.WriteToken))
			}
			r.Post("/", s.handleCreate)
		})
	})
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	posts, err := s.Store.List(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if posts == nil {
		posts = []blog.Post{}
	}
	writeJSON(w, r, http.StatusOK, posts)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	// chi matches on RawPath when the request carried escapes like %2F
	if r.URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(raw); err == nil {
			raw = unescaped
		}
	}
	id := blog.ID(raw)
	p, err := s.Store.Get(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "blog not found")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, p)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in blog.CreatePayload
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(&in); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := in.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	p, err := s.Store.Create(r.Context(), blog.Post{
		Title:       in.Title,
		Category:    in.Category,
		Description: in.Description,
		Date:        s.now().UTC().Format(time.RFC3339),
		CoverImage:  in.CoverImage,
		Content:     in.Content,
	})
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	hlog.FromRequest(r).Info().Str("blog_id", p.ID.String()).Msg("blog created")
	w.Header().Set("Location", "/blogs/"+p.ID.String())
	writeJSON(w, r, http.StatusCreated, p)
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	hlog.FromRequest(r).Error().Err(err).Msg("store error")
	writeError(w, r, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, map[string]string{"error": msg})
}

// withCORS lets browser front ends on other origins call the API.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
