// Package server provides HTTP server initialization and lifecycle
// management for the Attic API.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/atticlabs/attic/internal/config"
	"github.com/atticlabs/attic/internal/engine"
	"github.com/atticlabs/attic/internal/services"
	"github.com/atticlabs/attic/internal/storage"
	"github.com/atticlabs/attic/web/handlers"
)

// securityHeadersMiddleware adds security headers to all HTTP responses.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// Start initializes and starts the HTTP server. It returns the actual
// address being listened on (useful for testing with port 0) and the
// WebSocketHub for wiring event broadcasts. The engine may be nil, in which
// case capture creation is unavailable and the queue depth reads zero.
// The server shuts down gracefully when ctx is cancelled.
func Start(ctx context.Context, cfg *config.Config, store storage.Store, eng *engine.Engine) (string, *handlers.WebSocketHub, error) {
	mux := http.NewServeMux()

	// WebSocket hub, fed by the engine callbacks below plus the scheduler's
	// reminder-due callback wired by the caller.
	wsHub := handlers.NewWebSocketHub()
	go wsHub.Run()

	if eng != nil {
		eng.SetOnCaptureCreated(func(ownerID, captureID string) {
			wsHub.BroadcastEvent(handlers.EventCaptureCreated, ownerID, captureID)
		})
		eng.SetOnExtractionApplied(func(ownerID, captureID string) {
			wsHub.BroadcastEvent(handlers.EventExtractionApplied, ownerID, captureID)
		})
	}

	// Rate limiter (10 req/sec, burst of 20)
	rateLimiter := handlers.NewRateLimiter(10.0, 20)

	captureHandlers := handlers.NewCaptureHandlers(store, eng)
	entityHandlers := handlers.NewEntityHandlers(store)
	tagHandlers := handlers.NewTagHandlers(store)
	reminderHandlers := handlers.NewReminderHandlers(store)
	searchHandler := handlers.NewSearchHandler(store)
	activityHandler := handlers.NewActivityHandler(store)
	importHandlers := handlers.NewImportHandlers(store)
	preferencesHandlers := handlers.NewPreferencesHandlers(services.NewPreferencesService(store))

	var queueGetter handlers.QueueSizeGetter
	if eng != nil {
		queueGetter = eng
	}
	statsHandler := handlers.NewStatsHandler(store, queueGetter)

	// API routes (require auth in production mode)
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("/api/captures", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			captureHandlers.ListCaptures(w, r)
		case http.MethodPost:
			captureHandlers.CreateCapture(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/captures/{id}", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			captureHandlers.GetCapture(w, r)
		case http.MethodDelete:
			captureHandlers.DeleteCapture(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/captures/{id}/extraction", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			captureHandlers.PostExtraction(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/captures/{id}/links", captureHandlers.GetCaptureLinks)
	apiMux.HandleFunc("/api/captures/{id}/tags", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			tagHandlers.GetCaptureTags(w, r)
		case http.MethodPost:
			tagHandlers.AttachTag(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/captures/{id}/tags/{tag_id}", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			tagHandlers.DetachTag(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// Entity routes
	apiMux.HandleFunc("/api/entities", entityHandlers.ListEntities)
	apiMux.HandleFunc("/api/entities/top", entityHandlers.GetTopEntities)
	apiMux.HandleFunc("/api/entities/{id}", entityHandlers.GetEntity)
	apiMux.HandleFunc("/api/entities/{id}/captures", entityHandlers.GetEntityCaptures)
	apiMux.HandleFunc("/api/entities/{id}/related", entityHandlers.GetRelatedEntities)

	// Tag routes
	apiMux.HandleFunc("/api/tags", tagHandlers.ListTags)
	apiMux.HandleFunc("/api/tags/{id}/captures", tagHandlers.GetTagCaptures)

	// Reminder routes
	apiMux.HandleFunc("/api/reminders", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			reminderHandlers.ListReminders(w, r)
		case http.MethodPost:
			reminderHandlers.CreateReminder(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/reminders/due", reminderHandlers.GetDueReminders)
	apiMux.HandleFunc("/api/reminders/{id}", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			reminderHandlers.GetReminder(w, r)
		case http.MethodPatch:
			reminderHandlers.RescheduleReminder(w, r)
		case http.MethodDelete:
			reminderHandlers.PurgeReminder(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/reminders/{id}/complete", reminderHandlers.CompleteReminder)
	apiMux.HandleFunc("/api/reminders/{id}/cancel", reminderHandlers.CancelReminder)

	// Search, stats, activity
	apiMux.HandleFunc("/api/search", searchHandler.Search)
	apiMux.HandleFunc("/api/search/similar", searchHandler.Similar)
	apiMux.HandleFunc("/api/stats", statsHandler.GetStats)
	apiMux.HandleFunc("/api/activity", activityHandler.GetActivity)

	// Journal import
	apiMux.HandleFunc("/api/import", importHandlers.PostImport)
	apiMux.HandleFunc("/api/import/status/{job_id}", importHandlers.GetImportStatus)

	// Owner preferences
	apiMux.HandleFunc("/api/preferences", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			preferencesHandlers.GetPreferences(w, r)
		case http.MethodPut:
			preferencesHandlers.PutPreferences(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// Health endpoint — no auth required, used by monitoring
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","version":"1.0.0"}`))
	})

	// Wrap API routes with owner resolution and auth middleware
	apiHandler := handlers.ResolveOwner(apiMux, cfg.User.DefaultOwner)
	mux.Handle("/api/", handlers.RequireAuth(apiHandler, cfg))

	// WebSocket endpoint (no auth required, origin validation handles security)
	mux.Handle("/ws", wsHub)

	// Wrap entire server with rate limiting, then security headers
	handler := handlers.RateLimitMiddleware(mux, rateLimiter)
	handler = securityHeadersMiddleware(handler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		wsHub.Stop()
		return "", nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	actualAddr := listener.Addr().String()

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		wsHub.Stop()
	}()

	return actualAddr, wsHub, nil
}
