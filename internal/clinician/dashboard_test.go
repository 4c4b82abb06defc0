package clinician

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/kindredwell/kindred/internal/storage"
)

type fakeStore struct {
	clinicians map[string]storage.Clinician
	patients   map[string][]string
	users      map[string]storage.User
	timelines  map[string][]storage.Assessment
}

func (f *fakeStore) GetClinicianByCode(code string) (storage.Clinician, error) {
	c, ok := f.clinicians[code]
	if !ok {
		return storage.Clinician{}, storage.ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) PatientIDs(clinicianID string) ([]string, error) {
	return f.patients[clinicianID], nil
}

func (f *fakeStore) GetUser(id string) (storage.User, error) {
	u, ok := f.users[id]
	if !ok {
		return storage.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) Timeline(userID string) ([]storage.Assessment, error) {
	return f.timelines[userID], nil
}

func TestDeltaFlags(t *testing.T) {
	tests := []struct {
		name     string
		latest   map[string]float64
		previous map[string]float64
		want     []Flag
	}{
		{
			name:     "one dimension regressed",
			latest:   map[string]float64{"a": 1.5, "b": 4},
			previous: map[string]float64{"a": 3, "b": 4},
			want:     []Flag{{Dimension: "a", Delta: -1.5}},
		},
		{
			name:     "exactly at threshold",
			latest:   map[string]float64{"a": 2},
			previous: map[string]float64{"a": 3},
			want:     []Flag{{Dimension: "a", Delta: -1}},
		},
		{
			name:     "small drop not flagged",
			latest:   map[string]float64{"a": 2.1},
			previous: map[string]float64{"a": 3},
			want:     []Flag{},
		},
		{
			name:     "new dimension counts as unchanged",
			latest:   map[string]float64{"a": 1},
			previous: map[string]float64{"b": 5},
			want:     []Flag{},
		},
		{
			name:   "no previous assessment",
			latest: map[string]float64{"a": 1, "b": 1},
			want:   []Flag{},
		},
		{
			name:     "deltas rounded to two decimals",
			latest:   map[string]float64{"a": 1.333},
			previous: map[string]float64{"a": 2.666},
			want:     []Flag{{Dimension: "a", Delta: -1.33}},
		},
		{
			name:     "multiple flags in dimension order",
			latest:   map[string]float64{"b": 1, "a": 1},
			previous: map[string]float64{"b": 3, "a": 4},
			want:     []Flag{{Dimension: "a", Delta: -3}, {Dimension: "b", Delta: -2}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeltaFlags(tt.latest, tt.previous)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DeltaFlags = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOverlaysFor(t *testing.T) {
	if got := OverlaysFor("therapist"); len(got) != 3 || got[0] != "Session prep brief" {
		t.Errorf("therapist overlays = %v", got)
	}
	// Unknown provider types fall back to the counselor emphasis.
	if got := OverlaysFor("life-coach"); !reflect.DeepEqual(got, providerOverlays["counselor"]) {
		t.Errorf("unknown provider overlays = %v, want counselor default", got)
	}
}

func TestDashboard(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2026, 8, d, 10, 0, 0, 0, time.UTC)
	}
	store := &fakeStore{
		clinicians: map[string]storage.Clinician{
			"ABC123": {ID: "c1", Code: "ABC123", ProviderType: "psychiatrist", DisplayName: "Dr. Reyes"},
		},
		patients: map[string][]string{"c1": {"u1", "u2"}},
		users: map[string]storage.User{
			"u1": {ID: "u1", Name: "Pat"},
			"u2": {ID: "u2", Name: "Sam"},
		},
		timelines: map[string][]storage.Assessment{
			"u1": {
				{ID: "a1", UserID: "u1", Scores: map[string]float64{"anxiety": 3}, CreatedAt: day(20)},
				{ID: "a2", UserID: "u1", Scores: map[string]float64{"anxiety": 1.5}, CreatedAt: day(27)},
			},
		},
	}

	d, err := NewService(store).Dashboard(context.Background(), "ABC123")
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if d.ProviderType != "psychiatrist" || len(d.Overlays) != 3 {
		t.Errorf("provider = %q overlays = %v", d.ProviderType, d.Overlays)
	}
	if d.PatientCount != 2 || len(d.Patients) != 2 {
		t.Fatalf("patient count = %d, want 2", d.PatientCount)
	}

	var pat, sam Patient
	for _, p := range d.Patients {
		switch p.UserID {
		case "u1":
			pat = p
		case "u2":
			sam = p
		}
	}
	if len(pat.Flags) != 1 || pat.Flags[0] != (Flag{Dimension: "anxiety", Delta: -1.5}) {
		t.Errorf("u1 flags = %v, want single anxiety regression", pat.Flags)
	}
	if len(pat.Timeline) != 2 {
		t.Errorf("u1 timeline length = %d, want 2", len(pat.Timeline))
	}
	if len(sam.Flags) != 0 || len(sam.Timeline) != 0 {
		t.Errorf("u2 with no assessments = %+v, want empty row", sam)
	}

	// The flat list mirrors the per-patient flags and names the patient.
	want := []FlaggedChange{{UserID: "u1", Dimension: "anxiety", Delta: -1.5}}
	if !reflect.DeepEqual(d.FlaggedChanges, want) {
		t.Errorf("flagged changes = %v, want %v", d.FlaggedChanges, want)
	}
}

func TestDashboard_FlaggedChangesAcrossPatients(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2026, 8, d, 10, 0, 0, 0, time.UTC)
	}
	store := &fakeStore{
		clinicians: map[string]storage.Clinician{
			"ABC123": {ID: "c1", Code: "ABC123", ProviderType: "counselor"},
		},
		patients: map[string][]string{"c1": {"u1", "u2"}},
		users: map[string]storage.User{
			"u1": {ID: "u1", Name: "Pat"},
			"u2": {ID: "u2", Name: "Sam"},
		},
		timelines: map[string][]storage.Assessment{
			"u1": {
				{ID: "a1", UserID: "u1", Scores: map[string]float64{"anxiety": 4, "emotional": 3}, CreatedAt: day(20)},
				{ID: "a2", UserID: "u1", Scores: map[string]float64{"anxiety": 2, "emotional": 3}, CreatedAt: day(27)},
			},
			"u2": {
				{ID: "a3", UserID: "u2", Scores: map[string]float64{"lifestyle": 5}, CreatedAt: day(21)},
				{ID: "a4", UserID: "u2", Scores: map[string]float64{"lifestyle": 3.5}, CreatedAt: day(28)},
			},
		},
	}

	d, err := NewService(store).Dashboard(context.Background(), "ABC123")
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	want := []FlaggedChange{
		{UserID: "u1", Dimension: "anxiety", Delta: -2},
		{UserID: "u2", Dimension: "lifestyle", Delta: -1.5},
	}
	if !reflect.DeepEqual(d.FlaggedChanges, want) {
		t.Errorf("flagged changes = %v, want %v", d.FlaggedChanges, want)
	}
}

func TestDashboard_UnknownCode(t *testing.T) {
	store := &fakeStore{clinicians: map[string]storage.Clinician{}}
	_, err := NewService(store).Dashboard(context.Background(), "NOPE")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
