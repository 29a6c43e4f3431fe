package api

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/stripe/stripe-go/v82"

	"turfbooking/internal/repository"
	"turfbooking/internal/service"
)

type StripeWebhookHandler struct {
	WebhookSecret  string
	bookingService *service.BookingService
	senderService  *service.SenderService
	users          repository.UserRepository
}

func NewStripeWebhookHandler(webhookSecret string, bookingService *service.BookingService, senderService *service.SenderService, users repository.UserRepository) *StripeWebhookHandler {
	return &StripeWebhookHandler{
		WebhookSecret:  webhookSecret,
		bookingService: bookingService,
		senderService:  senderService,
		users:          users,
	}
}

// HandleWebhook consumes signed payment processor events. The raw body is
// required for signature verification and must not be pre-parsed. The
// endpoint acknowledges every verified event; only signature failures and
// processing errors surface as error statuses so the processor redelivers.
func (h *StripeWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	const maxBodyBytes = int64(65536)
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("Error reading webhook body: %v", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	event, err := service.VerifyEvent(payload, sigHeader, h.WebhookSecret)
	if err != nil {
		log.Printf("Webhook signature verification failed: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			log.Printf("Error parsing checkout.session: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if sess.ID == "" {
			log.Printf("No session ID in checkout.session.completed")
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		paymentIntentID := ""
		if sess.PaymentIntent != nil {
			paymentIntentID = sess.PaymentIntent.ID
		}
		if err := h.bookingService.FinalizePaidSession(sess.ID, paymentIntentID, sess.Metadata); err != nil {
			log.Printf("Error finalizing session %s: %v", sess.ID, err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		h.notifyConfirmed(sess.ID)

	case "checkout.session.expired":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			log.Printf("Error parsing checkout.session: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if err := h.bookingService.ExpireSession(sess.ID, sess.Metadata); err != nil {
			log.Printf("Error expiring session %s: %v", sess.ID, err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

	case "payment_intent.payment_failed":
		// Slot release stays tied to checkout.session.expired; releasing
		// here could double-sell a slot whose session is still live.
		log.Printf("Observed payment_intent.payment_failed, deferring to session expiry")

	default:
		log.Printf("Unhandled event type: %s", event.Type)
	}

	w.WriteHeader(http.StatusOK)
}

func (h *StripeWebhookHandler) notifyConfirmed(sessionID string) {
	booking, err := h.bookingService.BookingForSession(sessionID)
	if err != nil {
		log.Printf("Booking %s confirmed but could not be loaded for notification: %v", sessionID, err)
		return
	}
	user, err := h.users.GetByID(booking.UserID)
	if err != nil || user == nil {
		log.Printf("Booking %s confirmed but owner lookup failed: %v", booking.ID, err)
		return
	}
	h.senderService.SendBookingEmail(booking, user)
	h.senderService.SendBookingSMS(booking, user)
}
