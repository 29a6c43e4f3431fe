package service

import (
	"fmt"
	"log"
	"time"

	"turfbooking/internal/db"
)

type SenderService struct {
}

func NewSenderService() *SenderService {
	return &SenderService{}
}

func slotLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		return time.FixedZone("IST", 5*60*60+30*60)
	}
	return loc
}

// SendBookingEmail mails a payment confirmation. Delivery is
// fire-and-forget; failures are logged, never surfaced to the flow that
// confirmed the booking.
func (s *SenderService) SendBookingEmail(booking *db.Booking, user *db.User) {
	loc := slotLocation()
	start := booking.StartTime.In(loc).Format("02 Jan 2006 15:04 MST")
	end := booking.EndTime.In(loc).Format("02 Jan 2006 15:04 MST")

	subject := fmt.Sprintf("Your %s booking is confirmed - %s", booking.Sport, booking.ID)
	body := fmt.Sprintf(
		"Hello %s,\n\nYour booking is confirmed.\n\n"+
			"Booking Details:\n"+
			"Booking ID: %s\n"+
			"Sport: %s\n"+
			"Starts: %s\n"+
			"Ends: %s\n"+
			"Amount paid: %.2f %s\n\n"+
			"Thank you for booking with TurfBooking.",
		user.Name, booking.ID, booking.Sport, start, end,
		float64(booking.Amount)/100, booking.Currency,
	)

	go func(toEmail, toName, subject, body string) {
		if err := SendEmailWithSendGrid(toEmail, toName, subject, body); err != nil {
			log.Printf("ALERT (async): confirmation email for booking %s failed: %v", booking.ID, err)
		}
	}(user.Email, user.Name, subject, body)
}

func (s *SenderService) SendBookingSMS(booking *db.Booking, user *db.User) {
	if user.Phone == "" {
		return
	}
	loc := slotLocation()
	message := fmt.Sprintf("TurfBooking: your %s booking is confirmed!\nStarts: %s.\nDetails in your email.",
		booking.Sport,
		booking.StartTime.In(loc).Format("02/01 15:04"),
	)
	if err := SendSMS(user.Phone, message); err != nil {
		log.Printf("ALERT: booking %s confirmed, but SMS to %s failed: %v", booking.ID, user.Phone, err)
	}
}
