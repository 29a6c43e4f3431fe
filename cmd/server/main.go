package main

import (
	"database/sql"
	"log"
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"

	"turfbooking/internal/api"
	"turfbooking/internal/auth"
	"turfbooking/internal/repository"
	"turfbooking/internal/service"
)

func main() {
	godotenv.Load()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	database, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	if err := database.Ping(); err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET not set")
	}

	paymentBypass := os.Getenv("PAYMENT_BYPASS") == "true"
	var payments service.PaymentClient
	webhookSecret := os.Getenv("STRIPE_WEBHOOK_SECRET")
	if !paymentBypass {
		stripeService, err := service.NewStripeService(os.Getenv("STRIPE_SECRET_KEY"))
		if err != nil {
			log.Fatalf("Failed to construct Stripe client: %v", err)
		}
		payments = stripeService
		if webhookSecret == "" {
			log.Fatal("STRIPE_WEBHOOK_SECRET not set")
		}
	}

	slotRepo := repository.NewSlotRepository(database)
	bookingRepo := repository.NewBookingRepository(database)
	gameRepo := repository.NewGameRepository(database)
	venueRepo := repository.NewVenueRepository(database)
	userRepo := repository.NewUserRepository(database)

	bookingSvc := service.NewBookingService(slotRepo, bookingRepo, gameRepo, venueRepo, payments, service.BookingConfig{
		FrontendURL:   os.Getenv("FRONTEND_URL"),
		Currency:      os.Getenv("CURRENCY"),
		PaymentBypass: paymentBypass,
	})
	gameSvc := service.NewGameService(gameRepo, slotRepo, venueRepo)
	authSvc := service.NewAuthService(userRepo, jwtSecret)
	senderSvc := service.NewSenderService()
	jobSvc := service.NewJobService(gameRepo, bookingRepo)

	bookingHandler := api.NewBookingHandler(bookingSvc)
	gameHandler := api.NewGameHandler(gameSvc)
	authHandler := api.NewAuthHandler(authSvc)
	webhookHandler := api.NewStripeWebhookHandler(webhookSecret, bookingSvc, senderSvc, userRepo)

	r := mux.NewRouter()

	// Processor-authenticated endpoint: signature over the raw body.
	r.HandleFunc("/api/stripe/webhook", webhookHandler.HandleWebhook).Methods("POST")
	r.HandleFunc("/api/auth/login", authHandler.Login).Methods("POST")

	// Authenticated endpoints
	authed := r.PathPrefix("/api").Subrouter()
	authed.Use(auth.Middleware(jwtSecret, userRepo))
	authed.HandleFunc("/bookings", bookingHandler.CreateBooking).Methods("POST")
	authed.HandleFunc("/bookings", bookingHandler.MyBookings).Methods("GET")
	authed.HandleFunc("/bookings/retry", bookingHandler.RetryPayment).Methods("POST")
	authed.HandleFunc("/bookings/{id}/calendar", bookingHandler.CalendarLink).Methods("GET")
	authed.HandleFunc("/verify-payment", bookingHandler.VerifyPayment).Methods("GET")
	authed.HandleFunc("/games", gameHandler.CreateGame).Methods("POST")
	authed.HandleFunc("/games/{id}", gameHandler.GetGame).Methods("GET")
	authed.HandleFunc("/games/{id}", gameHandler.CancelGame).Methods("DELETE")
	authed.HandleFunc("/games/{id}/join", gameHandler.RequestJoin).Methods("POST")
	authed.HandleFunc("/games/{id}/approve", gameHandler.ApproveJoin).Methods("POST")
	authed.HandleFunc("/games/{id}/leave", gameHandler.LeaveGame).Methods("POST")
	authed.HandleFunc("/games/{id}/book", bookingHandler.BookGame).Methods("POST")

	c := cron.New()
	c.AddFunc("@every 10m", func() {
		if err := jobSvc.CompletePastGames(); err != nil {
			log.Printf("%v", err)
		}
	})
	c.AddFunc("@daily", func() {
		if err := jobSvc.PurgeFailedBookings(); err != nil {
			log.Printf("%v", err)
		}
	})
	c.Start()

	corsHandler := handlers.CORS(
		handlers.AllowedOrigins([]string{os.Getenv("FRONTEND_URL")}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Server running on port %s", port)
	log.Fatal(http.ListenAndServe(":"+port, corsHandler))
}
