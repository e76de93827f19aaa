package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/hollyoak/chorebid/internal/activity"
	"github.com/hollyoak/chorebid/internal/auction"
	"github.com/hollyoak/chorebid/internal/handler"
	"github.com/hollyoak/chorebid/internal/middleware"
	"github.com/hollyoak/chorebid/internal/notify"
	"github.com/hollyoak/chorebid/internal/store"
	"github.com/hollyoak/chorebid/internal/streak"
	ws "github.com/hollyoak/chorebid/internal/websocket"
)

type Server struct {
	db           *sql.DB
	hub          *ws.Hub
	authH        *handler.AuthHandler
	familyH      *handler.FamilyHandler
	choreH       *handler.ChoreHandler
	auctionH     *handler.AuctionHandler
	streakH      *handler.StreakHandler
	rewardH      *handler.RewardHandler
	pointsH      *handler.PointsHandler
	activityH    *handler.ActivityHandler
	sessionStore *store.SessionStore
	familyStore  *store.FamilyStore
	rateLimiter  *middleware.RateLimiter
	sweeper      *streak.Sweeper
	logger       *slog.Logger
}

func New(db *sql.DB, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	familyStore := store.NewFamilyStore(db)
	choreStore := store.NewChoreStore(db)
	assignmentStore := store.NewAssignmentStore(db)
	auctionStore := store.NewAuctionStore(db)
	pointsStore := store.NewPointsStore(db)
	streakStore := store.NewStreakStore(db)
	activityStore := store.NewActivityStore(db)
	rewardStore := store.NewRewardStore(db)

	recorder := activity.NewLog(activityStore, logger.With("component", "activity"))
	notifier := notify.NewService(hub)

	auctionEngine := auction.NewEngine(auctionStore, choreStore, familyStore, recorder, notifier, logger)
	streakEngine := streak.NewEngine(streakStore, familyStore, pointsStore, recorder, notifier, logger)
	sweeper := streak.NewSweeper(streakEngine, streakStore, familyStore, logger.With("component", "sweeper"))

	return &Server{
		db:           db,
		hub:          hub,
		authH:        handler.NewAuthHandler(userStore, familyStore, sessionStore, logger.With("component", "auth")),
		familyH:      handler.NewFamilyHandler(familyStore),
		choreH:       handler.NewChoreHandler(choreStore, assignmentStore, familyStore, pointsStore, recorder, notifier),
		auctionH:     handler.NewAuctionHandler(auctionEngine),
		streakH:      handler.NewStreakHandler(streakEngine),
		rewardH:      handler.NewRewardHandler(rewardStore, familyStore, pointsStore, recorder, notifier),
		pointsH:      handler.NewPointsHandler(pointsStore),
		activityH:    handler.NewActivityHandler(activityStore),
		sessionStore: sessionStore,
		familyStore:  familyStore,
		rateLimiter:  middleware.NewRateLimiter(),
		sweeper:      sweeper,
		logger:       logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Sweeper returns the streak sweeper so main can run its lifecycle.
func (s *Server) Sweeper() *streak.Sweeper {
	return s.sweeper
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/auth/register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes — wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.familyStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

// admin wraps a handler so only admins and the owner can reach it.
func admin(h http.HandlerFunc) http.Handler {
	return middleware.RequireAdmin(h)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Auth routes that require authentication
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/auth/me", s.authH.Me)

	// Family API routes
	mux.HandleFunc("GET /api/family", s.familyH.Get)
	mux.Handle("PUT /api/family", admin(s.familyH.Update))
	mux.HandleFunc("GET /api/family/members", s.familyH.ListMembers)
	mux.Handle("PUT /api/family/members/{id}", admin(s.familyH.UpdateMember))
	mux.Handle("DELETE /api/family/members/{id}", admin(s.familyH.RemoveMember))

	// Chore API routes
	mux.HandleFunc("GET /api/chores", s.choreH.List)
	mux.Handle("POST /api/chores", admin(s.choreH.Create))
	mux.Handle("PUT /api/chores/{id}", admin(s.choreH.Update))
	mux.Handle("DELETE /api/chores/{id}", admin(s.choreH.Delete))

	// Assignment API routes
	mux.HandleFunc("GET /api/assignments", s.choreH.ListAssignments)
	mux.Handle("POST /api/assignments", admin(s.choreH.CreateAssignment))
	mux.Handle("DELETE /api/assignments/{id}", admin(s.choreH.DeleteAssignment))
	mux.HandleFunc("POST /api/assignments/{id}/complete", s.choreH.Complete)
	mux.HandleFunc("POST /api/assignments/{id}/revert", s.choreH.Revert)

	// Auction API routes. Role checks live in the auction engine.
	mux.HandleFunc("GET /api/auctions", s.auctionH.List)
	mux.HandleFunc("POST /api/auctions", s.auctionH.CreateWeek)
	mux.HandleFunc("POST /api/auctions/{id}/bids", s.auctionH.PlaceBid)
	mux.HandleFunc("POST /api/auctions/finalize", s.auctionH.Finalize)
	mux.HandleFunc("POST /api/auctions/stop", s.auctionH.Stop)
	mux.HandleFunc("DELETE /api/auctions", s.auctionH.DeleteWeek)

	// Streak API routes. Role checks live in the streak engine.
	mux.HandleFunc("GET /api/streaks", s.streakH.List)
	mux.HandleFunc("POST /api/streaks", s.streakH.Create)
	mux.HandleFunc("GET /api/streaks/{id}", s.streakH.Get)
	mux.HandleFunc("POST /api/streaks/{id}/start", s.streakH.Start)
	mux.HandleFunc("POST /api/streaks/{id}/tasks/{taskID}", s.streakH.CompleteTask)
	mux.HandleFunc("POST /api/streaks/{id}/stop", s.streakH.Stop)
	mux.HandleFunc("PUT /api/streaks/{id}", s.streakH.Update)
	mux.HandleFunc("DELETE /api/streaks/{id}", s.streakH.Delete)

	// Rewards API routes
	mux.HandleFunc("GET /api/rewards", s.rewardH.List)
	mux.Handle("POST /api/rewards", admin(s.rewardH.Create))
	mux.Handle("PUT /api/rewards/{id}", admin(s.rewardH.Update))
	mux.Handle("DELETE /api/rewards/{id}", admin(s.rewardH.Delete))
	mux.HandleFunc("POST /api/rewards/{id}/redeem", s.rewardH.Redeem)
	mux.HandleFunc("GET /api/redemptions", s.rewardH.ListRedemptions)

	// Points API routes
	mux.HandleFunc("GET /api/leaderboard", s.pointsH.Leaderboard)
	mux.HandleFunc("GET /api/points", s.pointsH.History)

	// Activity feed
	mux.HandleFunc("GET /api/activity", s.activityH.List)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))
}
