// Package clinician assembles the read-only dashboard a linked provider sees:
// per-patient score timelines plus flags for week-over-week regressions.
package clinician

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kindredwell/kindred/internal/storage"
)

// flagThreshold is the regression cutoff: a dimension whose score dropped by
// at least one full point since the previous assessment gets flagged.
const flagThreshold = -1.0

// Store defines the storage operations the dashboard needs.
// Implemented by storage.Store.
type Store interface {
	GetClinicianByCode(code string) (storage.Clinician, error)
	PatientIDs(clinicianID string) ([]string, error)
	GetUser(id string) (storage.User, error)
	Timeline(userID string) ([]storage.Assessment, error)
}

// Flag marks one dimension that regressed past the threshold.
type Flag struct {
	Dimension string  `json:"dimension"`
	Delta     float64 `json:"delta"`
}

// FlaggedChange is one entry of the dashboard-wide regression list, carrying
// the patient it belongs to.
type FlaggedChange struct {
	UserID    string  `json:"user_id"`
	Dimension string  `json:"dimension"`
	Delta     float64 `json:"delta"`
}

// TimelinePoint is one assessment reduced to what the dashboard plots.
type TimelinePoint struct {
	CreatedAt time.Time          `json:"created_at"`
	Scores    map[string]float64 `json:"scores"`
}

// Patient is one linked user's dashboard row.
type Patient struct {
	UserID   string             `json:"user_id"`
	Name     string             `json:"name"`
	Latest   map[string]float64 `json:"latest_scores,omitempty"`
	Flags    []Flag             `json:"flags"`
	Timeline []TimelinePoint    `json:"timeline"`
}

// Dashboard is the full payload for one clinician code. FlaggedChanges is the
// flat cross-patient view of the same regressions nested in each Patient row.
type Dashboard struct {
	ClinicianID    string          `json:"clinician_id"`
	DisplayName    string          `json:"display_name"`
	ProviderType   string          `json:"provider_type"`
	Overlays       []string        `json:"provider_overlays"`
	PatientCount   int             `json:"patient_count"`
	Patients       []Patient       `json:"patients"`
	FlaggedChanges []FlaggedChange `json:"flagged_changes"`
}

var providerOverlays = map[string][]string{
	"psychiatrist": {"Medication change overlay", "Symptom cluster tracking", "Diagnostic-language summaries"},
	"therapist":    {"Session prep brief", "Modality suggestions", "Relational dynamics emphasis"},
	"counselor":    {"Trajectory snapshot", "Risk flags", "Actionable support prompts"},
}

// OverlaysFor returns the dashboard emphasis labels for a provider type,
// defaulting to the counselor set for unknown types.
func OverlaysFor(providerType string) []string {
	if o, ok := providerOverlays[providerType]; ok {
		return o
	}
	return providerOverlays["counselor"]
}

// Service builds clinician dashboards.
type Service struct {
	store Store
}

// NewService creates a Service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Dashboard resolves the clinician by code and assembles a row per linked
// patient. Patient timelines load concurrently; any single failure aborts the
// whole build.
func (s *Service) Dashboard(ctx context.Context, code string) (Dashboard, error) {
	clin, err := s.store.GetClinicianByCode(code)
	if err != nil {
		return Dashboard{}, err
	}

	ids, err := s.store.PatientIDs(clin.ID)
	if err != nil {
		return Dashboard{}, fmt.Errorf("listing patients: %w", err)
	}

	patients := make([]Patient, len(ids))
	g, ctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p, err := s.patientRow(id)
			if err != nil {
				return fmt.Errorf("building row for patient %s: %w", id, err)
			}
			patients[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}

	flagged := []FlaggedChange{}
	for _, p := range patients {
		for _, f := range p.Flags {
			flagged = append(flagged, FlaggedChange{UserID: p.UserID, Dimension: f.Dimension, Delta: f.Delta})
		}
	}

	return Dashboard{
		ClinicianID:    clin.ID,
		DisplayName:    clin.DisplayName,
		ProviderType:   clin.ProviderType,
		Overlays:       OverlaysFor(clin.ProviderType),
		PatientCount:   len(patients),
		Patients:       patients,
		FlaggedChanges: flagged,
	}, nil
}

func (s *Service) patientRow(userID string) (Patient, error) {
	u, err := s.store.GetUser(userID)
	if err != nil {
		return Patient{}, err
	}
	timeline, err := s.store.Timeline(userID)
	if err != nil {
		return Patient{}, err
	}

	p := Patient{
		UserID:   u.ID,
		Name:     u.Name,
		Flags:    []Flag{},
		Timeline: make([]TimelinePoint, 0, len(timeline)),
	}
	for _, a := range timeline {
		p.Timeline = append(p.Timeline, TimelinePoint{CreatedAt: a.CreatedAt, Scores: a.Scores})
	}
	if n := len(timeline); n > 0 {
		p.Latest = timeline[n-1].Scores
		var previous map[string]float64
		if n > 1 {
			previous = timeline[n-2].Scores
		}
		p.Flags = DeltaFlags(p.Latest, previous)
	}
	return p, nil
}

// DeltaFlags compares the two most recent score sets and flags dimensions that
// dropped by at least a full point. A dimension absent from the previous set
// counts as unchanged. Deltas are rounded to two decimals and returned in
// dimension order.
func DeltaFlags(latest, previous map[string]float64) []Flag {
	dims := make([]string, 0, len(latest))
	for dim := range latest {
		dims = append(dims, dim)
	}
	sort.Strings(dims)

	flags := []Flag{}
	for _, dim := range dims {
		prev, ok := previous[dim]
		if !ok {
			prev = latest[dim]
		}
		delta := math.Round((latest[dim]-prev)*100) / 100
		if delta <= flagThreshold {
			flags = append(flags, Flag{Dimension: dim, Delta: delta})
		}
	}
	return flags
}
