/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
)

const maxRequestBody = 4096

// bookingService validates claims, writes them through the store and
// tells live subscribers about the new board.
//
// A claim on a room that is already booked simply replaces the claimant;
// asking "are you sure?" is the browser's job.
//
// mu orders each store write with its broadcast, and each new subscriber's
// first board with both, so the last board a browser receives is always
// the newest one.
type bookingService struct {
	mu            sync.Mutex
	store         Store
	live          *liveHub
	maxNameLength int
}

func newBookingService(cfg *Config, store Store, live *liveHub) *bookingService {
	return &bookingService{
		store:         store,
		live:          live,
		maxNameLength: cfg.maxNameLength,
	}
}

func (s *bookingService) list(ctx context.Context) ([]Booking, error) {
	bookings, err := s.store.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: read bookings: %w", ErrStorage, err)
	}

	return bookings, nil
}

func (s *bookingService) claim(ctx context.Context, rawSlot, rawName string) (Booking, error) {
	slot, err := ParseSlot(rawSlot)
	if err != nil {
		return Booking{}, err
	}

	name, err := normalizeName(rawName, s.maxNameLength)
	if err != nil {
		return Booking{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bookings, err := s.store.Claim(ctx, slot, name)
	if err != nil {
		return Booking{}, fmt.Errorf("%w: claim room %s: %w", ErrStorage, slot, err)
	}

	s.live.broadcast(bookings)

	return Booking{Slot: slot, BookedBy: &name}, nil
}

// subscribe queues the current board for c and adds it to the live hub
// without letting a claim slip in between.
func (s *bookingService) subscribe(ctx context.Context, c *liveClient) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bookings, err := s.list(ctx)
	if err != nil {
		return err
	}

	c.send <- BoardMessage{Type: "bookings", Bookings: bookings}
	s.live.register(c)

	return nil
}

// claimRequest is the body of POST /api/bookings.
type claimRequest struct {
	Room string `json:"room"`
	Name string `json:"name"`
}

// claimNameRequest is the body of POST /api/bookings/:slot.
type claimNameRequest struct {
	Name string `json:"name"`
}

type claimResponse struct {
	Success bool `json:"success"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data", ErrInvalidRequest)
	}

	return nil
}

func serveBookings(cfg *Config, svc *bookingService, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()
		id := requestID(w, r)

		securityHeaders(cfg, w)
		w.Header().Set("Cache-Control", "no-store")

		bookings, err := svc.list(r.Context())
		if err != nil {
			errorf("[%s] GET bookings from %s: %v", id, realIP(r), err)
			writeError(w, err)

			return
		}

		if err := writeJSON(w, http.StatusOK, bookings); err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: [%s] Bookings to %s in %s",
			id,
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

// serveClaim handles both POST /api/bookings with {room, name} and
// POST /api/bookings/:slot with {name}.
func serveClaim(cfg *Config, svc *bookingService, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()
		id := requestID(w, r)

		securityHeaders(cfg, w)
		w.Header().Set("Cache-Control", "no-store")

		var req claimRequest
		var err error

		if slot := p.ByName("slot"); slot != "" {
			var body claimNameRequest
			err = decodeBody(w, r, &body)
			req = claimRequest{Room: slot, Name: body.Name}
		} else {
			err = decodeBody(w, r, &req)
		}

		var booking Booking
		if err == nil {
			booking, err = svc.claim(r.Context(), req.Room, req.Name)
		}

		if err != nil {
			status := writeError(w, err)
			if status >= http.StatusInternalServerError {
				errorf("[%s] POST booking from %s: %v", id, realIP(r), err)
			} else {
				logf(cfg, "BOOK: [%s] Rejected claim from %s: %v", id, realIP(r), err)
			}

			return
		}

		if err := writeJSON(w, http.StatusOK, claimResponse{Success: true}); err != nil {
			errs <- err

			return
		}

		logf(cfg, "BOOK: [%s] Room %s claimed by %q from %s in %s",
			id,
			booking.Slot,
			*booking.BookedBy,
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func registerBookings(cfg *Config, mux *httprouter.Router, svc *bookingService, errs chan<- error) {
	mux.GET(cfg.prefix+"/api/bookings", serveBookings(cfg, svc, errs))
	mux.POST(cfg.prefix+"/api/bookings", serveClaim(cfg, svc, errs))
	mux.POST(cfg.prefix+"/api/bookings/:slot", serveClaim(cfg, svc, errs))
	mux.GET(cfg.prefix+"/api/bookings/ws", serveLive(cfg, svc))
	mux.GET(cfg.prefix+"/api/avatar", serveAvatarPalette(cfg, errs))
	mux.GET(cfg.prefix+"/avatar.svg", serveAvatar(cfg, errs))
}
