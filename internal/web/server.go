package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/example/court-scheduler/internal/auth"
	"github.com/example/court-scheduler/internal/db"
	"github.com/example/court-scheduler/internal/domain/booking"
	"github.com/example/court-scheduler/internal/logger"
	"github.com/example/court-scheduler/internal/plans"
	"github.com/example/court-scheduler/internal/runs"
)

//go:embed templates/*.html
var fs embed.FS

type RunStore interface {
	List(ctx context.Context, limit int) ([]runs.Run, error)
	Get(ctx context.Context, id string) (runs.Run, error)
}

type PlanStore interface {
	List(ctx context.Context, limit int) ([]plans.Plan, error)
	Create(ctx context.Context, p plans.Plan) (int64, error)
}

type Server struct {
	Auth  *auth.Store
	Runs  RunStore
	Plans PlanStore
	// Directory backs the occupancy page; nil hides it.
	Directory booking.Directory
	// Run is the base run configuration plans are applied to.
	Run     booking.RunConfig
	Metrics http.Handler
	Clock   clock.Clock
	Logger  *log.Logger
}

type tmplData struct {
	Title string
	User  string

	Flash string
	Runs  []runs.Run
	Run   runs.Run
	Plans []plans.Plan
	Form  planForm

	Group     string
	Occupancy []courtRow
	Preview   []booking.CourtID
	Capacity  bool
}

type planForm struct {
	Name         string
	SlotHour     string
	DesiredCount int
	StartAt      string
	LeadMinutes  int
}

type courtRow struct {
	Court  booking.CourtID
	Active int
	Free   int
}

func (s *Server) Routes() http.Handler {
	if s.Clock == nil {
		s.Clock = clock.RealClock{}
	}
	s.Logger = logger.OrDiscard(s.Logger).With("component", "web")

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	if s.Metrics != nil {
		mux.Handle("GET /metrics", s.Metrics)
	}

	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/logout", s.handleLogout)

	mux.Handle("GET /{$}", s.Auth.RequireAuth(http.HandlerFunc(s.handleRuns)))
	mux.Handle("GET /runs/{id}", s.Auth.RequireAuth(http.HandlerFunc(s.handleRun)))
	mux.Handle("GET /plans", s.Auth.RequireAuth(http.HandlerFunc(s.handlePlans)))
	mux.Handle("POST /plans/create", s.Auth.RequireAuth(http.HandlerFunc(s.handlePlanCreate)))
	mux.Handle("GET /occupancy", s.Auth.RequireAuth(http.HandlerFunc(s.handleOccupancy)))

	return mux
}

func userName(r *http.Request) string {
	sess, _ := auth.FromContext(r.Context())
	return sess.Username
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	rs, err := s.Runs.List(r.Context(), 50)
	if err != nil {
		s.Logger.Error("list runs", "err", err)
		http.Error(w, "could not load runs", http.StatusInternalServerError)
		return
	}
	s.render(w, "templates/runs.html", tmplData{Title: "Runs", User: userName(r), Runs: rs})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		http.NotFound(w, r)
		return
	}
	run, err := s.Runs.Get(r.Context(), id)
	switch {
	case db.IsNotFound(err):
		http.NotFound(w, r)
		return
	case err != nil:
		s.Logger.Error("get run", "id", id, "err", err)
		http.Error(w, "could not load run", http.StatusInternalServerError)
		return
	}
	s.render(w, "templates/run.html", tmplData{Title: "Run " + run.ID, User: userName(r), Run: run})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, "templates/login.html", tmplData{Title: "Login"})
		return
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		username := strings.TrimSpace(r.FormValue("username"))
		sess, err := s.Auth.Authenticate(r.Context(), username, r.FormValue("password"))
		if err != nil {
			if !errors.Is(err, auth.ErrInvalidCredentials) {
				s.Logger.Error("login", "err", err)
			}
			s.render(w, "templates/login.html", tmplData{Title: "Login", Flash: "Invalid username/password"})
			return
		}
		if err := s.Auth.SetSession(w, r, sess); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, "/", http.StatusFound)
		return
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.Auth.ClearSession(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (s *Server) plansPage(w http.ResponseWriter, r *http.Request, form planForm, flash string) {
	ps, err := s.Plans.List(r.Context(), 50)
	if err != nil {
		s.Logger.Error("list plans", "err", err)
		http.Error(w, "could not load plans", http.StatusInternalServerError)
		return
	}
	s.render(w, "templates/plans.html", tmplData{Title: "Plans", User: userName(r), Plans: ps, Form: form, Flash: flash})
}

func (s *Server) handlePlans(w http.ResponseWriter, r *http.Request) {
	s.plansPage(w, r, planForm{SlotHour: s.Run.Slot.String(), DesiredCount: max(s.Run.DesiredCount, 1), LeadMinutes: 10}, "")
}

func (s *Server) handlePlanCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	form := planForm{
		Name:     strings.TrimSpace(r.FormValue("name")),
		SlotHour: strings.TrimSpace(r.FormValue("slot_hour")),
		StartAt:  strings.TrimSpace(r.FormValue("start_at")),
	}
	form.DesiredCount, _ = strconv.Atoi(r.FormValue("desired_count"))
	form.LeadMinutes, _ = strconv.Atoi(r.FormValue("lead_minutes"))

	p, err := s.planFromForm(form)
	if err == nil {
		err = p.Validate()
	}
	if err != nil {
		s.plansPage(w, r, form, err.Error())
		return
	}
	if _, err := s.Plans.Create(r.Context(), p); err != nil {
		s.Logger.Error("create plan", "err", err)
		s.plansPage(w, r, form, "Failed to create plan")
		return
	}
	http.Redirect(w, r, "/plans", http.StatusFound)
}

// planFromForm resolves the start time: an explicit start_at wins, otherwise
// the plan starts lead_minutes before the next opening of a fixed slot hour.
func (s *Server) planFromForm(f planForm) (plans.Plan, error) {
	slot, err := booking.ParseSlotHour(f.SlotHour)
	if err != nil {
		return plans.Plan{}, err
	}
	p := plans.Plan{Name: f.Name, DesiredCount: f.DesiredCount}
	if !slot.Auto {
		h := slot.Hour
		p.SlotHour = &h
	}

	loc := s.Run.Location
	if loc == nil {
		loc = time.Local
	}
	switch {
	case f.StartAt != "":
		p.StartAt, err = time.ParseInLocation("2006-01-02T15:04", f.StartAt, loc)
		if err != nil {
			return plans.Plan{}, errors.New("start_at must look like 2026-10-18T06:50")
		}
	case !slot.Auto:
		p.StartAt = plans.StartFor(slot.Hour, time.Duration(f.LeadMinutes)*time.Minute, s.Clock.Now().In(loc))
	default:
		return plans.Plan{}, errors.New("start_at required for an auto slot hour")
	}
	return p, nil
}

func (s *Server) handleOccupancy(w http.ResponseWriter, r *http.Request) {
	if s.Directory == nil {
		http.NotFound(w, r)
		return
	}
	data := tmplData{Title: "Occupancy", User: userName(r), Group: s.Run.ResourceGroup}
	occ, err := s.Directory.Occupancy(r.Context(), s.Run.ResourceGroup)
	if err != nil {
		s.Logger.Warn("occupancy", "err", err)
		data.Flash = err.Error()
		s.render(w, "templates/occupancy.html", data)
		return
	}
	for _, c := range s.Run.Courts {
		data.Occupancy = append(data.Occupancy, courtRow{Court: c, Active: occ[c], Free: max(s.Run.PerCourtCapacity-occ[c], 0)})
	}
	desired := min(s.Run.DesiredCount, s.Run.Ceiling())
	if s.Run.Mode == booking.ModeAlternate {
		data.Preview = booking.AllocateAlternating(s.Run.Courts, desired)
		s.render(w, "templates/occupancy.html", data)
		return
	}
	data.Preview, err = booking.Allocate(occ, desired, s.Run.Courts, s.Run.PerCourtCapacity)
	switch {
	case errors.Is(err, booking.ErrCapacityExceeded):
		data.Capacity = true
	case err != nil:
		s.Logger.Warn("allocation preview", "err", err)
		data.Flash = err.Error()
	}
	s.render(w, "templates/occupancy.html", data)
}

var funcs = template.FuncMap{
	"when": func(t any) string {
		switch v := t.(type) {
		case time.Time:
			if v.IsZero() {
				return ""
			}
			return v.Format("2006-01-02 15:04:05")
		case *time.Time:
			if v == nil {
				return ""
			}
			return v.Format("2006-01-02 15:04:05")
		}
		return ""
	},
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
	"hour": func(h *int) string {
		if h == nil {
			return "auto"
		}
		return strconv.Itoa(*h) + ":00"
	},
}

func (s *Server) render(w http.ResponseWriter, name string, data tmplData) {
	t, err := template.New("").Funcs(funcs).ParseFS(fs,
		"templates/base.html",
		name,
	)
	if err != nil {
		http.Error(w, "template error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.ExecuteTemplate(w, "base", data); err != nil {
		http.Error(w, "render error: "+err.Error(), http.StatusInternalServerError)
	}
}

func Start(ctx context.Context, addr string, h http.Handler, l *log.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logger.OrDiscard(l).Info("listening", "addr", addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
