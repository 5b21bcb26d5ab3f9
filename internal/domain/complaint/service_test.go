package complaint

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dentalcrm/crm/internal/platform/auth"
	"github.com/dentalcrm/crm/internal/platform/result"
	"github.com/dentalcrm/crm/internal/platform/validation"
)

// -- Mocks --

type mockRepo struct {
	store     map[uuid.UUID]*Complaint
	createErr error
	listErr   error
	calls     int
}

func newMockRepo() *mockRepo {
	return &mockRepo{store: make(map[uuid.UUID]*Complaint)}
}

func (m *mockRepo) Create(_ context.Context, c *Complaint) error {
	m.calls++
	if m.createErr != nil {
		return m.createErr
	}
	c.ID = uuid.New()
	c.CreatedAt = time.Now().Add(time.Duration(len(m.store)) * time.Millisecond)
	c.UpdatedAt = c.CreatedAt
	m.store[c.ID] = c
	return nil
}

func (m *mockRepo) ListForPatient(_ context.Context, dentistID, patientID uuid.UUID) ([]*Complaint, error) {
	m.calls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := []*Complaint{}
	for _, c := range m.store {
		if c.DentistID == dentistID && c.PatientID == patientID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type mockOwnership struct {
	owners map[uuid.UUID]uuid.UUID
	err    error
	calls  int
}

func (m *mockOwnership) ExistsForDentist(_ context.Context, dentistID, patientID uuid.UUID) (bool, error) {
	m.calls++
	if m.err != nil {
		return false, m.err
	}
	owner, ok := m.owners[patientID]
	return ok && owner == dentistID, nil
}

type fixture struct {
	svc      *Service
	repo     *mockRepo
	patients *mockOwnership
	who      *auth.Identity
	patient  uuid.UUID
}

func newFixture() *fixture {
	who := &auth.Identity{DentistID: uuid.New(), Onboarded: true}
	patient := uuid.New()
	repo := newMockRepo()
	patients := &mockOwnership{owners: map[uuid.UUID]uuid.UUID{patient: who.DentistID}}
	return &fixture{
		svc:      NewService(repo, patients, zerolog.Nop()),
		repo:     repo,
		patients: patients,
		who:      who,
		patient:  patient,
	}
}

func validInput() *Input {
	return &Input{
		ChiefComplaint: "Toothache",
		PainType:       PainThrobbing,
		PainTiming:     TimingNightOnly,
		PainSeverity:   validation.IntOf(7),
	}
}

func errMessage(err error) string {
	return *result.Failed(err).Error
}

// -- Tests --

func TestCreate_Success(t *testing.T) {
	f := newFixture()

	c, err := f.svc.Create(context.Background(), f.who, f.patient.String(), validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ID == uuid.Nil {
		t.Error("expected ID to be set")
	}
	if c.PatientID != f.patient || c.DentistID != f.who.DentistID {
		t.Error("expected complaint bound to patient and dentist")
	}
	if c.Status != StatusActive {
		t.Errorf("expected default status ACTIVE, got %s", c.Status)
	}
	if c.PainSeverity == nil || *c.PainSeverity != 7 {
		t.Errorf("expected severity 7, got %v", c.PainSeverity)
	}
	if c.Location != nil {
		t.Error("expected empty location to be NULL")
	}
	if f.patients.calls != 1 {
		t.Errorf("expected one ownership check, got %d", f.patients.calls)
	}
}

func TestCreate_ExplicitStatus(t *testing.T) {
	f := newFixture()
	in := validInput()
	in.Status = StatusUnderObservation

	c, err := f.svc.Create(context.Background(), f.who, f.patient.String(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Status != StatusUnderObservation {
		t.Errorf("expected UNDER_OBSERVATION, got %s", c.Status)
	}
}

func TestCreate_Unauthenticated(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Create(context.Background(), nil, f.patient.String(), validInput())
	if result.KindOf(err) != result.KindUnauthenticated {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if errMessage(err) != MsgUnauthenticated {
		t.Errorf("expected %q, got %q", MsgUnauthenticated, errMessage(err))
	}
	if f.patients.calls != 0 || f.repo.calls != 0 {
		t.Error("expected no storage access")
	}
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *Input)
	}{
		{"missing title", func(in *Input) { in.ChiefComplaint = "" }},
		{"long title", func(in *Input) { in.ChiefComplaint = strings.Repeat("a", 101) }},
		{"long description", func(in *Input) { in.ChiefComplaintDescription = strings.Repeat("a", 256) }},
		{"bad status", func(in *Input) { in.Status = "CLOSED" }},
		{"bad pain type", func(in *Input) { in.PainType = "BURNING" }},
		{"bad timing", func(in *Input) { in.PainTiming = "MORNING" }},
		{"severity zero", func(in *Input) { in.PainSeverity = validation.IntOf(0) }},
		{"severity eleven", func(in *Input) { in.PainSeverity = validation.IntOf(11) }},
		{"long onset", func(in *Input) { in.OnsetAndDuration = strings.Repeat("a", 45) }},
		{"long relieving", func(in *Input) { in.RelievingFactors = strings.Repeat("a", 45) }},
		{"patient mismatch", func(in *Input) { in.PatientID = uuid.New().String() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			in := validInput()
			tt.mutate(in)

			_, err := f.svc.Create(context.Background(), f.who, f.patient.String(), in)
			if result.KindOf(err) != result.KindValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
			if errMessage(err) != MsgInvalid {
				t.Errorf("expected %q, got %q", MsgInvalid, errMessage(err))
			}
			if f.repo.calls != 0 {
				t.Error("expected no insert")
			}
		})
	}
}

func TestCreate_LengthLimitsInclusive(t *testing.T) {
	f := newFixture()
	in := validInput()
	in.ChiefComplaint = strings.Repeat("a", 100)
	in.ChiefComplaintDescription = strings.Repeat("a", 255)
	in.Location = strings.Repeat("a", 100)
	in.OnsetAndDuration = strings.Repeat("a", 44)
	in.AggravatingFactors = strings.Repeat("a", 44)
	in.RelievingFactors = strings.Repeat("a", 44)

	c, err := f.svc.Create(context.Background(), f.who, f.patient.String(), in)
	if err != nil {
		t.Fatalf("expected fields at their maximum length to be accepted, got %v", err)
	}
	if c.ChiefComplaintDescription == nil || len(*c.ChiefComplaintDescription) != 255 {
		t.Error("expected 255-character description to be stored")
	}
}

func TestCreate_PatientIDCaseInsensitive(t *testing.T) {
	tests := []struct {
		name   string
		path   func(id uuid.UUID) string
		bodyID func(id uuid.UUID) string
	}{
		{"uppercase path", func(id uuid.UUID) string { return strings.ToUpper(id.String()) }, func(uuid.UUID) string { return "" }},
		{"uppercase body", func(id uuid.UUID) string { return id.String() }, func(id uuid.UUID) string { return strings.ToUpper(id.String()) }},
		{"both uppercase", func(id uuid.UUID) string { return strings.ToUpper(id.String()) }, func(id uuid.UUID) string { return strings.ToUpper(id.String()) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			in := validInput()
			in.PatientID = tt.bodyID(f.patient)

			c, err := f.svc.Create(context.Background(), f.who, tt.path(f.patient), in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c.PatientID != f.patient {
				t.Errorf("expected patient %s, got %s", f.patient, c.PatientID)
			}
		})
	}
}

func TestCreate_MalformedPatientID(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Create(context.Background(), f.who, "not-a-uuid", validInput())
	if result.KindOf(err) != result.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if f.patients.calls != 0 {
		t.Error("expected no ownership lookup")
	}
}

func TestCreate_SeverityUnset(t *testing.T) {
	f := newFixture()
	in := validInput()
	in.PainSeverity = validation.OptionalInt{}

	c, err := f.svc.Create(context.Background(), f.who, f.patient.String(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.PainSeverity != nil {
		t.Errorf("expected NULL severity, got %d", *c.PainSeverity)
	}
}

func TestCreate_Forbidden(t *testing.T) {
	f := newFixture()
	foreign := uuid.New()
	f.patients.owners[foreign] = uuid.New()

	for _, id := range []uuid.UUID{foreign, uuid.New()} {
		_, err := f.svc.Create(context.Background(), f.who, id.String(), validInput())
		if result.KindOf(err) != result.KindForbidden {
			t.Fatalf("expected forbidden, got %v", err)
		}
		if errMessage(err) != MsgForbidden {
			t.Errorf("expected %q, got %q", MsgForbidden, errMessage(err))
		}
	}
	if f.repo.calls != 0 {
		t.Error("expected no insert")
	}
}

func TestCreate_StorageFailures(t *testing.T) {
	f := newFixture()
	f.patients.err = errors.New("timeout")
	_, err := f.svc.Create(context.Background(), f.who, f.patient.String(), validInput())
	if result.KindOf(err) != result.KindUpstream || errMessage(err) != MsgSaveFailed {
		t.Errorf("ownership failure: got %v", err)
	}

	f = newFixture()
	f.repo.createErr = errors.New("insert failed")
	_, err = f.svc.Create(context.Background(), f.who, f.patient.String(), validInput())
	if result.KindOf(err) != result.KindUpstream || errMessage(err) != MsgSaveFailed {
		t.Errorf("insert failure: got %v", err)
	}
}

func TestListForPatient(t *testing.T) {
	f := newFixture()
	for _, title := range []string{"First", "Second"} {
		in := validInput()
		in.ChiefComplaint = title
		if _, err := f.svc.Create(context.Background(), f.who, f.patient.String(), in); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	out, err := f.svc.ListForPatient(context.Background(), f.who, f.patient.String())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 complaints, got %d", len(out))
	}
	if out[0].ChiefComplaint != "Second" {
		t.Errorf("expected newest first, got %s", out[0].ChiefComplaint)
	}

	other := &auth.Identity{DentistID: uuid.New()}
	out, err = f.svc.ListForPatient(context.Background(), other, f.patient.String())
	if err != nil {
		t.Fatalf("foreign list: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("expected no complaints for another dentist, got %d", len(out))
	}

	out, err = f.svc.ListForPatient(context.Background(), f.who, "garbage")
	if err != nil || out == nil || len(out) != 0 {
		t.Errorf("expected empty list for malformed id, got %v %v", out, err)
	}
}

func TestListForPatient_Failures(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.ListForPatient(context.Background(), nil, f.patient.String()); errMessage(err) != MsgUnauthenticated {
		t.Errorf("expected unauthenticated message, got %v", err)
	}

	f.repo.listErr = errors.New("boom")
	_, err := f.svc.ListForPatient(context.Background(), f.who, f.patient.String())
	if result.KindOf(err) != result.KindUpstream || errMessage(err) != MsgListFailed {
		t.Errorf("expected list failure, got %v", err)
	}
}

func TestEnumValid(t *testing.T) {
	if !StatusResolved.Valid() || Status("OPEN").Valid() {
		t.Error("status validity")
	}
	if !PainSensitive.Valid() || PainType("").Valid() {
		t.Error("pain type validity")
	}
	if !TimingOnStimulus.Valid() || PainTiming("ALWAYS").Valid() {
		t.Error("pain timing validity")
	}
}
