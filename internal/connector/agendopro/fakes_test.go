package agendopro

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/agendopro/webhook/internal/apperrors"
	"github.com/agendopro/webhook/internal/models"
)

// memStore is an in-memory stand-in for the three stores, keyed the way the
// database keys them.
type memStore struct {
	mu           sync.Mutex
	accounts     map[string]*models.Account
	appointments map[uuid.UUID]*models.Appointment
	logs         []models.CreateWebhookLogRequest

	accountErr error
	createErr  error
	// raceOnCreate makes the next Create lose a race: a rival row with the same
	// external_id appears and Create reports a conflict.
	raceOnCreate bool
}

func newMemStore() *memStore {
	return &memStore{
		accounts:     make(map[string]*models.Account),
		appointments: make(map[uuid.UUID]*models.Appointment),
	}
}

func (s *memStore) addAccount(professionalID string) *models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	pid := professionalID
	acc := &models.Account{ID: uuid.New(), Name: "Clinic " + professionalID, ExternalProfessionalID: &pid}
	s.accounts[professionalID] = acc

	return acc
}

func (s *memStore) FindByProfessionalID(_ context.Context, professionalID string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accountErr != nil {
		return nil, s.accountErr
	}

	acc, ok := s.accounts[professionalID]
	if !ok || professionalID == "" {
		return nil, apperrors.NewNotFoundError("account", "")
	}

	return acc, nil
}

func (s *memStore) findLocked(externalID string) *models.Appointment {
	for _, a := range s.appointments {
		if a.ExternalID != nil && *a.ExternalID == externalID {
			return a
		}
	}

	return nil
}

func (s *memStore) GetByExternalID(_ context.Context, externalID string) (*models.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.findLocked(externalID)
	if a == nil {
		return nil, apperrors.NewNotFoundError("appointment", "")
	}

	cp := *a

	return &cp, nil
}

func (s *memStore) Create(_ context.Context, req *models.UpsertAppointmentRequest) (*models.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.createErr != nil {
		return nil, s.createErr
	}

	if s.raceOnCreate {
		s.raceOnCreate = false
		rival := appointmentFrom(req)
		rival.ClientName = "rival"
		rival.Status = models.AppointmentStatusPending
		s.appointments[rival.ID] = rival

		return nil, apperrors.NewConflictError("appointment with this external_id already exists")
	}

	if s.findLocked(req.ExternalID) != nil {
		return nil, apperrors.NewConflictError("appointment with this external_id already exists")
	}

	a := appointmentFrom(req)
	s.appointments[a.ID] = a
	cp := *a

	return &cp, nil
}

func (s *memStore) UpdateByID(_ context.Context, id uuid.UUID, req *models.UpsertAppointmentRequest) (*models.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appointments[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("appointment", "")
	}

	updated := appointmentFrom(req)
	updated.ID = a.ID
	updated.CreatedAt = a.CreatedAt
	s.appointments[id] = updated
	cp := *updated

	return &cp, nil
}

func (s *memStore) SetStatusByExternalID(
	_ context.Context, externalID string, status models.AppointmentStatus, updatedAt time.Time,
) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64

	for _, a := range s.appointments {
		if a.ExternalID != nil && *a.ExternalID == externalID {
			a.Status = status
			a.UpdatedAt = updatedAt
			n++
		}
	}

	return n, nil
}

func (s *memStore) Append(_ context.Context, req *models.CreateWebhookLogRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logs = append(s.logs, *req)

	return nil
}

func (s *memStore) all() []models.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Appointment, 0, len(s.appointments))
	for _, a := range s.appointments {
		out = append(out, *a)
	}

	return out
}

func appointmentFrom(req *models.UpsertAppointmentRequest) *models.Appointment {
	ext := req.ExternalID

	return &models.Appointment{
		ID:              uuid.New(),
		AccountID:       req.AccountID,
		ExternalID:      &ext,
		ClientName:      req.ClientName,
		ClientEmail:     req.ClientEmail,
		ClientPhone:     req.ClientPhone,
		ServiceName:     req.ServiceName,
		AppointmentDate: req.AppointmentDate,
		AppointmentTime: req.AppointmentTime,
		Status:          req.Status,
		Notes:           req.Notes,
		CreatedAt:       req.UpdatedAt,
		UpdatedAt:       req.UpdatedAt,
	}
}

type mockLogStore struct {
	mock.Mock
}

func (m *mockLogStore) Append(ctx context.Context, req *models.CreateWebhookLogRequest) error {
	args := m.Called(ctx, req)

	return args.Error(0)
}

type recordedEvent struct {
	eventType string
	outcome   string
}

type fakeIngestMetrics struct {
	mu            sync.Mutex
	events        []recordedEvent
	auditFailures []string
}

func (f *fakeIngestMetrics) RecordEvent(_ context.Context, eventType, outcome string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.events = append(f.events, recordedEvent{eventType: eventType, outcome: outcome})
}

func (f *fakeIngestMetrics) RecordAuditFailure(_ context.Context, eventType string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.auditFailures = append(f.auditFailures, eventType)
}
