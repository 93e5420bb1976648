package carbon

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// LatestHolder is the single-writer slot for the most recent reading.
// The Service is the only writer; readers take value snapshots.
type LatestHolder interface {
	Set(data Data)
	Get() (Data, bool)
}

// HistoryStore is the contract the in-memory history store (and any
// future persistent store) must satisfy.
type HistoryStore interface {
	SaveReading(location string, data Data)
	GetLatest(location string) (Data, error)
	GetRange(location string, from, to time.Time) ([]Data, error)
}

// Service orchestrates fetching through the router and persisting the
// latest reading plus its history.
type Service struct {
	router   *Router
	latest   LatestHolder
	history  HistoryStore
	location string
	apiKey   string
}

func NewService(router *Router, latest LatestHolder, history HistoryStore, location, apiKey string) *Service {
	return &Service{
		router:   router,
		latest:   latest,
		history:  history,
		location: location,
		apiKey:   apiKey,
	}
}

// Refresh fetches a fresh reading for the configured location. On success
// the latest slot and history are replaced whole; on failure the last good
// reading is kept and the error details are returned.
func (s *Service) Refresh(ctx context.Context) (*Data, *ErrorDetails) {
	refreshID := uuid.NewString()
	log.Debug().Str("refresh_id", refreshID).Str("location", s.location).Msg("refreshing carbon data")

	result := s.router.Resolve(ctx, s.location, s.apiKey)
	if result.Err != nil {
		log.Warn().
			Str("refresh_id", refreshID).
			Str("location", s.location).
			Str("kind", string(result.Err.Kind)).
			Msg(result.Err.Message)
		return nil, result.Err
	}

	s.latest.Set(*result.Data)
	s.history.SaveReading(s.location, *result.Data)

	log.Info().
		Str("refresh_id", refreshID).
		Str("location", s.location).
		Str("source", string(result.Data.Source)).
		Float64("intensity", result.Data.Intensity).
		Str("index", string(result.Data.Index)).
		Msg("carbon data updated")
	return result.Data, nil
}

// Latest returns a snapshot of the most recent reading, if any.
func (s *Service) Latest() (Data, bool) {
	return s.latest.Get()
}

// History returns stored readings for the configured location between
// from and to (inclusive).
func (s *Service) History(from, to time.Time) ([]Data, error) {
	return s.history.GetRange(s.location, from, to)
}

// Location returns the configured location string.
func (s *Service) Location() string {
	return s.location
}
