package servicedata

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Domain errors
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnknownService   = errors.New("unknown service")
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// ServiceName is one of the fixed set of services the provider reports activity for.
type ServiceName string

const (
	ServiceSpotify  ServiceName = "spotify"
	ServiceNetflix  ServiceName = "netflix"
	ServiceAmazon   ServiceName = "amazon"
	ServiceUber     ServiceName = "uber"
	ServiceDoorDash ServiceName = "doordash"
)

// Services lists every supported service.
var Services = []ServiceName{ServiceSpotify, ServiceNetflix, ServiceAmazon, ServiceUber, ServiceDoorDash}

// ParseServiceName maps a wire name (case-insensitive) onto a ServiceName.
func ParseServiceName(name string) (ServiceName, error) {
	candidate := ServiceName(strings.ToLower(strings.TrimSpace(name)))
	for _, s := range Services {
		if s == candidate {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownService, name)
}

// Snapshot is the latest activity blob for one (user, service) pair.
type Snapshot struct {
	UserID      string          `json:"userId"`
	ServiceName ServiceName     `json:"serviceName"`
	Payload     json.RawMessage `json:"payload"`
	LastUpdated time.Time       `json:"lastUpdated"`
}

// Payload is the typed activity for one service.
type Payload interface {
	Service() ServiceName
}

type SpotifyActivity struct {
	TopArtists      []string `json:"top_artists"`
	TopGenres       []string `json:"top_genres"`
	RecentTracks    []Track  `json:"recent_tracks"`
	MinutesStreamed int      `json:"minutes_streamed"`
	Plan            string   `json:"plan,omitempty"`
}

type Track struct {
	Name     string    `json:"name"`
	Artist   string    `json:"artist"`
	PlayedAt time.Time `json:"played_at"`
}

type NetflixActivity struct {
	RecentlyWatched []Title `json:"recently_watched"`
	Plan            string  `json:"plan,omitempty"`
	Profiles        int     `json:"profiles,omitempty"`
}

type Title struct {
	Name      string    `json:"name"`
	Kind      string    `json:"kind,omitempty"`
	WatchedAt time.Time `json:"watched_at"`
}

type AmazonActivity struct {
	RecentOrders []Order `json:"recent_orders"`
	PrimeMember  bool    `json:"prime_member"`
}

type Order struct {
	OrderID  string    `json:"order_id"`
	Total    string    `json:"total"`
	Items    []string  `json:"items"`
	Placed   time.Time `json:"placed_at"`
	Category string    `json:"category,omitempty"`
}

type UberActivity struct {
	RecentTrips []Trip `json:"recent_trips"`
	UberOne     bool   `json:"uber_one"`
}

type Trip struct {
	TripID  string    `json:"trip_id"`
	Fare    string    `json:"fare"`
	City    string    `json:"city,omitempty"`
	StartAt time.Time `json:"start_at"`
}

type DoorDashActivity struct {
	RecentOrders []DeliveryOrder `json:"recent_orders"`
	DashPass     bool            `json:"dash_pass"`
}

type DeliveryOrder struct {
	OrderID    string    `json:"order_id"`
	Restaurant string    `json:"restaurant"`
	Total      string    `json:"total"`
	Placed     time.Time `json:"placed_at"`
}

func (SpotifyActivity) Service() ServiceName  { return ServiceSpotify }
func (NetflixActivity) Service() ServiceName  { return ServiceNetflix }
func (AmazonActivity) Service() ServiceName   { return ServiceAmazon }
func (UberActivity) Service() ServiceName     { return ServiceUber }
func (DoorDashActivity) Service() ServiceName { return ServiceDoorDash }

// DecodePayload decodes raw provider data into the typed payload for service.
// Unknown fields are tolerated; a payload of the wrong shape is rejected.
func DecodePayload(service ServiceName, raw json.RawMessage) (Payload, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, errors.Join(ErrInvalidInput, errors.New("payload is required"))
	}

	var p Payload
	switch service {
	case ServiceSpotify:
		p = &SpotifyActivity{}
	case ServiceNetflix:
		p = &NetflixActivity{}
	case ServiceAmazon:
		p = &AmazonActivity{}
	case ServiceUber:
		p = &UberActivity{}
	case ServiceDoorDash:
		p = &DoorDashActivity{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownService, service)
	}

	if err := json.Unmarshal(raw, p); err != nil {
		return nil, errors.Join(ErrInvalidInput, fmt.Errorf("malformed %s payload: %w", service, err))
	}
	return p, nil
}
