package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"studyflow-backend/internal/achievements"
	"studyflow-backend/internal/admin"
	"studyflow-backend/internal/ai"
	"studyflow-backend/internal/analytics"
	"studyflow-backend/internal/assistant"
	"studyflow-backend/internal/auth"
	"studyflow-backend/internal/config"
	"studyflow-backend/internal/db"
	"studyflow-backend/internal/goals"
	"studyflow-backend/internal/httpjson"
	"studyflow-backend/internal/logging"
	"studyflow-backend/internal/notify"
	"studyflow-backend/internal/reports"
	"studyflow-backend/internal/sessions"
	"studyflow-backend/internal/subjects"
	"studyflow-backend/internal/tasks"
)

func main() {
	cfg := config.Load()

	logger, closeLog, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatal().Err(err).Msg("init logger")
	}
	defer closeLog()
	log.Logger = logger

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Connect(cfg.DBDriver, cfg.ConnString())
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to connect DB")
	}
	defer database.Close()

	if err := db.Migrate(ctx, database, cfg.DBDriver); err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to migrate DB")
	}
	log.Info().Str("driver", cfg.DBDriver).Msg("✅ Connected to database")

	hub := notify.NewHub()
	go hub.Run(ctx)

	roster, err := loadRoster(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.RosterFile).Msg("invalid model roster")
	}

	handler := routes(cfg, database, hub, roster)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Bool("ai", cfg.AIEnabled()).Strs("models", roster.Names()).Msg("🚀 API server is running")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

// loadRoster prefers an explicit roster file; otherwise the built-in roster
// with GEMINI_MODEL moved to the front.
func loadRoster(cfg *config.Config) (*ai.Roster, error) {
	if cfg.RosterFile != "" {
		return ai.LoadRoster(cfg.RosterFile)
	}
	return ai.DefaultRoster().Prefer(cfg.GeminiModel), nil
}

func routes(cfg *config.Config, database *sql.DB, hub *notify.Hub, roster *ai.Roster) http.Handler {
	users := &auth.Users{DB: database}
	tokens := auth.Tokens{Secret: []byte(cfg.JWTSecret), TTL: cfg.JWTTTL}
	mw := auth.New(tokens.Secret, users)
	protect, adminOnly := mw.Wrap, mw.Admin

	taskStore := &tasks.Store{DB: database}
	subjectStore := &subjects.Store{DB: database}
	sessionStore := &sessions.Store{DB: database}
	goalStore := &goals.Store{DB: database}
	achievementStore := &achievements.Store{DB: database}
	quizStore := &assistant.QuizStore{DB: database}
	reportSvc := &reports.Service{DB: database}

	svc := &assistant.Service{
		Assembler: &assistant.Assembler{Subjects: subjectStore, Tasks: taskStore, Sessions: sessionStore, Goals: goalStore},
		Executor:  &assistant.Executor{Tasks: taskStore, Subjects: subjectStore, Goals: goalStore, Pub: hub, Events: database},
		Quizzes:   quizStore,
	}
	// a nil Completer keeps the assistant in its not-configured mode
	if cfg.AIEnabled() {
		gemini := ai.NewGemini(cfg.GeminiKey, cfg.GeminiBaseURL)
		svc.Completer = ai.NewDispatcher(cfg.CandidateTimeout, gemini.Providers(roster)...)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		httpjson.OK(w, map[string]any{"status": "ok"})
	})

	mux.Handle("GET /ws", notify.NewServer(hub, func(token string) (int, error) {
		claims, err := auth.ParseToken(tokens.Secret, token)
		return claims.UserID, err
	}))

	// ----- AUTH -----
	mux.HandleFunc("POST /api/auth/register", auth.RegisterHandler(users, tokens))
	mux.HandleFunc("POST /api/auth/login", auth.LoginHandler(users, tokens))
	mux.HandleFunc("GET /api/auth/me", protect(auth.MeHandler(users)))
	mux.HandleFunc("POST /api/auth/logout", protect(auth.LogoutHandler()))

	mux.HandleFunc("GET /api/user/profile", protect(auth.ProfileHandler(users)))
	mux.HandleFunc("PUT /api/user/profile", protect(auth.UpdateProfileHandler(users)))
	mux.HandleFunc("DELETE /api/user/profile", protect(auth.DeleteAccountHandler(users)))
	mux.HandleFunc("DELETE /api/user/data", protect(auth.ClearDataHandler(users)))

	// ----- TASKS -----
	mux.HandleFunc("GET /api/tasks", protect(tasks.GetTasksHandler(taskStore)))
	mux.HandleFunc("POST /api/tasks", protect(tasks.CreateTaskHandler(taskStore, hub)))
	mux.HandleFunc("PUT /api/tasks/{id}", protect(tasks.UpdateTaskHandler(taskStore, hub)))
	mux.HandleFunc("DELETE /api/tasks/{id}", protect(tasks.DeleteTaskHandler(taskStore, hub)))

	// ----- SUBJECTS -----
	mux.HandleFunc("GET /api/subjects", protect(subjects.GetSubjectsHandler(subjectStore)))
	mux.HandleFunc("POST /api/subjects", protect(subjects.CreateSubjectHandler(subjectStore, hub)))
	mux.HandleFunc("GET /api/subjects/overview", protect(subjects.OverviewHandler(subjectStore)))
	mux.HandleFunc("PUT /api/subjects/{id}", protect(subjects.UpdateSubjectHandler(subjectStore, hub)))
	mux.HandleFunc("DELETE /api/subjects/{name}", protect(subjects.DeleteSubjectHandler(subjectStore, hub)))

	// ----- SESSIONS -----
	mux.HandleFunc("GET /api/sessions", protect(sessions.GetSessionsHandler(sessionStore)))
	mux.HandleFunc("POST /api/sessions", protect(sessions.CreateSessionHandler(sessionStore, hub,
		goals.RefreshHook(goalStore, hub),
		achievements.EvaluateHook(achievementStore, hub),
	)))

	// ----- GOALS -----
	mux.HandleFunc("GET /api/goals", protect(goals.GetGoalsHandler(goalStore)))
	mux.HandleFunc("POST /api/goals", protect(goals.CreateGoalHandler(goalStore, hub)))
	mux.HandleFunc("GET /api/goals/stats", protect(goals.StatsHandler(goalStore)))
	mux.HandleFunc("POST /api/goals/update-progress", protect(goals.UpdateProgressHandler(goalStore, hub)))
	mux.HandleFunc("PUT /api/goals/{id}", protect(goals.UpdateGoalHandler(goalStore, hub)))
	mux.HandleFunc("DELETE /api/goals/{id}", protect(goals.DeleteGoalHandler(goalStore, hub)))

	// ----- ACHIEVEMENTS -----
	mux.HandleFunc("GET /api/achievements", protect(achievements.GetAchievementsHandler(achievementStore)))
	mux.HandleFunc("POST /api/achievements", protect(achievements.CreateAchievementHandler(achievementStore)))
	mux.HandleFunc("POST /api/achievements/evaluate", protect(achievements.EvaluateHandler(achievementStore, hub)))

	// ----- ANALYTICS / REPORTS -----
	mux.HandleFunc("POST /api/analytics/app-opened", protect(analytics.AppOpenedHandler(database)))
	mux.HandleFunc("GET /api/analytics/time-trends", protect(reports.TimeTrendsHandler(reportSvc)))
	mux.HandleFunc("GET /api/analytics/productivity", protect(reports.ProductivityHandler(reportSvc)))
	mux.HandleFunc("GET /api/analytics/subject-performance", protect(reports.SubjectPerformanceHandler(reportSvc)))
	mux.HandleFunc("GET /api/analytics/reports/{period}", protect(reports.PeriodReportHandler(reportSvc)))
	mux.HandleFunc("GET /api/analytics/export/csv", protect(reports.ExportCSVHandler(reportSvc)))
	mux.HandleFunc("GET /api/analytics/export/json", protect(reports.ExportJSONHandler(reportSvc)))

	// ----- AI -----
	mux.HandleFunc("POST /api/ai/ask", protect(assistant.AskHandler(svc, users)))
	mux.HandleFunc("POST /api/ai/quiz", protect(assistant.QuizHandler(svc)))
	mux.HandleFunc("GET /api/ai/quizzes", protect(assistant.QuizzesHandler(quizStore)))
	mux.HandleFunc("POST /api/ai/quizzes/{id}/score", protect(assistant.ScoreQuizHandler(quizStore)))
	mux.HandleFunc("GET /api/ai/health", assistant.HealthHandler(roster, roster.Names()[0], cfg.AIEnabled()))

	// ----- ADMIN -----
	mux.HandleFunc("GET /api/admin/users", adminOnly(admin.UsersHandler(users)))
	mux.HandleFunc("GET /api/admin/admins", adminOnly(admin.AdminsHandler(users)))
	mux.HandleFunc("GET /api/admin/analytics", adminOnly(admin.AnalyticsHandler(users)))
	mux.HandleFunc("DELETE /api/admin/users/{id}", adminOnly(admin.DeleteUserHandler(users)))
	mux.HandleFunc("PUT /api/admin/users/{id}/promote", adminOnly(admin.PromoteHandler(users, cfg.SuperAdminUsername)))
	mux.HandleFunc("PUT /api/admin/users/{id}/demote", adminOnly(admin.DemoteHandler(users, cfg.SuperAdminUsername)))
	mux.HandleFunc("PUT /api/admin/users/{id}/password", adminOnly(admin.PasswordHandler(users)))

	// CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	return logging.AccessLog(log.Logger, c.Handler(mux))
}
