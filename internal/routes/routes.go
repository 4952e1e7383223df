package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/pinkflag/backend/internal/auth"
	"github.com/pinkflag/backend/internal/handlers"
	"github.com/pinkflag/backend/internal/middleware"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	verifier *auth.TokenVerifier,
	searchHandler *handlers.SearchHandler,
	phoneHandler *handlers.PhoneHandler,
	imageHandler *handlers.ImageHandler,
	creditsHandler *handlers.CreditsHandler,
	statusHandler *handlers.StatusHandler,
	webhookHandler *handlers.WebhookHandler,
) {
	limits := middleware.DefaultLookupRateLimits()

	// Public routes - signature-verified, no bearer token
	router.With(middleware.RateLimitByIP(limits.WebhookPerMinute)).Post("/webhooks/purchase", webhookHandler.HandlePurchase)

	// Protected routes - authentication required
	router.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware(verifier))

		r.Get("/status", statusHandler.GetStatus)
		r.Get("/credits", creditsHandler.GetBalance)
		r.Get("/searches", creditsHandler.ListSearches)

		// Paid lookups get per-user budgets because each request can
		// move credits.
		r.With(middleware.RateLimitByUser(limits.NamePerMinute)).Post("/search/name", searchHandler.SearchByName)
		r.With(middleware.RateLimitByUser(limits.PhonePerMinute)).Post("/phone/lookup", phoneHandler.LookupPhone)
		r.With(middleware.RateLimitByUser(limits.ImagePerMinute)).Post("/image-search", imageHandler.SearchImage)
	})
}
