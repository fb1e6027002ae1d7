package main

import (
	"context"
	"log"
	"net/http"
	"time"

	api "github.com/examhall/examhall/internal/api/http"
	"github.com/examhall/examhall/internal/auth"
	"github.com/examhall/examhall/internal/config"
	"github.com/examhall/examhall/internal/db"
	"github.com/examhall/examhall/internal/exam"
	"github.com/examhall/examhall/internal/rbac"
	"github.com/examhall/examhall/internal/schedule"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	store := exam.NewSQLStore(dbh)

	authSvc := auth.NewAuthService(cfg.AuthSecret, cfg.TokenTTL)

	// --- Scheduler: walks exam windows in the background ---
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go schedule.NewSweeper(store).Run(sweepCtx, cfg.SweepInterval)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc, dbh))

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		pr.Route("/api", func(ar chi.Router) {
			// Teacher: exam authoring and lifecycle
			ar.With(rbac.Require("exam:create")).
				Post("/exams", api.CreateExamHandler(store))
			ar.With(rbac.Require("exam:list")).
				Get("/exams", api.ListExamsHandler(store))
			ar.With(rbac.Require("exam:view")).
				Get("/exams/{examID}", api.GetExamHandler(store))
			ar.With(rbac.Require("exam:update")).
				Put("/exams/{examID}", api.UpdateExamHandler(store))
			ar.With(rbac.Require("exam:delete")).
				Delete("/exams/{examID}", api.DeleteExamHandler(store))
			ar.With(rbac.Require("exam:update")).
				Post("/exams/{examID}/status", api.SetExamStatusHandler(store))
			ar.With(rbac.Require("exam:update")).
				Post("/exams/{examID}/items", api.AddItemHandler(store))
			ar.With(rbac.Require("exam:update")).
				Put("/exams/{examID}/items/{itemID}", api.UpdateItemHandler(store))
			ar.With(rbac.Require("exam:update")).
				Delete("/exams/{examID}/items/{itemID}", api.RemoveItemHandler(store))

			// Student flow
			ar.With(rbac.Require("exam:view-available")).
				Get("/student/exams", api.AvailableExamsHandler(store))
			ar.With(rbac.Require("taken:create")).
				Post("/student/exams/{examID}/take", api.TakeExamHandler(store))
			ar.With(rbac.Require("taken:save")).
				Put("/student/attempts/{takenID}/answers/{itemID}", api.SaveAnswerHandler(store))
			ar.With(rbac.Require("taken:save")).
				Put("/student/attempts/{takenID}/answers", api.SaveAnswersHandler(store))
			ar.With(rbac.Require("taken:submit")).
				Post("/student/attempts/{takenID}/submit", api.SubmitHandler(store))
			ar.With(rbac.Require("taken:view-own")).
				Get("/student/attempts/{takenID}", api.ReviewHandler(store))
			ar.With(rbac.Require("activity:log")).
				Post("/student/attempts/{takenID}/activity", api.LogActivityHandler(store))

			// Grading workflow
			ar.With(rbac.Require("grading:view")).
				Get("/grading/attempts", api.GradingQueueHandler(store))
			ar.With(rbac.Require("grading:view")).
				Get("/grading/attempts/{takenID}", api.GradingSheetHandler(store))
			ar.With(rbac.Require("grading:score")).
				Put("/grading/attempts/{takenID}/answers/{itemID}", api.ScoreAnswerHandler(store))
			ar.With(rbac.Require("grading:finalize")).
				Post("/grading/attempts/{takenID}/finalize", api.FinalizeHandler(store))
			ar.With(rbac.Require("grading:view")).
				Get("/grading/attempts/{takenID}/activity", api.AttemptActivityHandler(store))

			// Analytics
			ar.With(rbac.Require("analytics:view")).
				Get("/analytics/exams/{examID}", api.ExamAnalyticsHandler(store))

			// Users (teacher/admin)
			ar.With(rbac.Require("users:bulk_upsert")).
				Post("/users/bulk", api.BulkUpsertUsersHandler(dbh))
			ar.With(rbac.Require("users:list")).
				Get("/users", api.ListUsersHandler(dbh))
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Printf("listening on %s (db=%s, sweep=%s)", cfg.HTTPAddr, cfg.DBDriver, cfg.SweepInterval)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
