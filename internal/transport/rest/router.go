package rest

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"github.com/Chrolemist/scrumpoker/internal/service"
	"github.com/Chrolemist/scrumpoker/internal/transport/rest/handler"
)

// Container holds all dependencies for the router
type Container struct {
	RoomService *service.RoomService
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	roomHandler := handler.NewRoomHandler(c.RoomService)

	// CORS middleware (apply first)
	r.Use(corsMiddleware)

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// API v1 routes
	v1 := r.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/rooms/{code}", roomHandler.Get).Methods("GET", "OPTIONS")
	v1.HandleFunc("/rooms/{code}/join", roomHandler.Join).Methods("POST", "OPTIONS")
	v1.HandleFunc("/rooms/{code}/players/rename", roomHandler.RenamePlayer).Methods("POST", "OPTIONS")
	v1.HandleFunc("/rooms/{code}/vote", roomHandler.Vote).Methods("POST", "OPTIONS")
	v1.HandleFunc("/rooms/{code}/reveal", roomHandler.Reveal).Methods("POST", "OPTIONS")
	v1.HandleFunc("/rooms/{code}/reset", roomHandler.Reset).Methods("POST", "OPTIONS")
	v1.HandleFunc("/rooms/{code}/stories", roomHandler.AddStory).Methods("POST", "OPTIONS")
	v1.HandleFunc("/rooms/{code}/stories/{storyId}", roomHandler.UpdateStory).Methods("PUT", "OPTIONS")
	v1.HandleFunc("/rooms/{code}/stories/{storyId}/select", roomHandler.SelectStory).Methods("POST", "OPTIONS")
	v1.HandleFunc("/rooms/{code}/stories/{storyId}", roomHandler.DeleteStory).Methods("DELETE", "OPTIONS")
	v1.HandleFunc("/rooms/{code}/timer/start", roomHandler.StartTimer).Methods("POST", "OPTIONS")
	v1.HandleFunc("/rooms/{code}/timer/stop", roomHandler.StopTimer).Methods("POST", "OPTIONS")
	v1.HandleFunc("/rooms/{code}/ping", roomHandler.Ping).Methods("POST", "OPTIONS")
	v1.HandleFunc("/rooms/{code}/chat", roomHandler.AppendChat).Methods("POST", "OPTIONS")
	v1.HandleFunc("/rooms/{code}/stats", roomHandler.Stats).Methods("GET", "OPTIONS")
	v1.HandleFunc("/rooms/{code}/scale", roomHandler.UpdateScale).Methods("POST", "OPTIONS")

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
		if allowedOrigins == "" {
			allowedOrigins = "*"
		}

		w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
