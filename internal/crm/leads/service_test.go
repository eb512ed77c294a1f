package leads

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vantage-crm/vantage-crm/internal/shared"
)

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

type memoryLeadRepo struct {
	nextID int64
	leads  map[int64]Lead
}

func newMemoryLeadRepo() *memoryLeadRepo {
	return &memoryLeadRepo{leads: make(map[int64]Lead)}
}

func (m *memoryLeadRepo) Create(_ context.Context, l *Lead) (int64, error) {
	m.nextID++
	l.ID = m.nextID
	l.CreatedAt = testNow
	l.UpdatedAt = testNow
	m.leads[l.ID] = *l
	return l.ID, nil
}

func (m *memoryLeadRepo) Get(_ context.Context, id int64) (*Lead, error) {
	l, ok := m.leads[id]
	if !ok {
		return nil, fmt.Errorf("%w: lead %d", shared.ErrNotFound, id)
	}
	copied := l
	return &copied, nil
}

func (m *memoryLeadRepo) List(_ context.Context, req ListLeadsRequest) ([]Lead, int, error) {
	var out []Lead
	for id := int64(1); id <= m.nextID; id++ {
		l, ok := m.leads[id]
		if !ok {
			continue
		}
		if req.Status != "" && l.Status != req.Status {
			continue
		}
		out = append(out, l)
	}
	return out, len(out), nil
}

func (m *memoryLeadRepo) UpdateHeader(_ context.Context, l *Lead) error {
	if _, ok := m.leads[l.ID]; !ok {
		return fmt.Errorf("%w: lead %d", shared.ErrNotFound, l.ID)
	}
	l.UpdatedAt = testNow
	m.leads[l.ID] = *l
	return nil
}

func (m *memoryLeadRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.leads[id]; !ok {
		return fmt.Errorf("%w: lead %d", shared.ErrNotFound, id)
	}
	delete(m.leads, id)
	return nil
}

type fakeClientWriter struct {
	nextID  int64
	created []int64
}

func (f *fakeClientWriter) CreateFromLead(_ context.Context, l *Lead, _ int64) (int64, error) {
	f.nextID++
	f.created = append(f.created, l.ID)
	return f.nextID, nil
}

func newTestService() (*Service, *memoryLeadRepo, *fakeClientWriter) {
	repo := newMemoryLeadRepo()
	writer := &fakeClientWriter{}
	svc := NewService(repo, NewStaticPipeline(PipelineConfig{}), writer)
	svc.WithClock(func() time.Time { return testNow })
	return svc, repo, writer
}

func createRequest() CreateLeadRequest {
	return CreateLeadRequest{
		Name:            "Meridian Fabrication",
		Source:          "Referral",
		ExpectedRevenue: 60000,
	}
}

func TestCreateDefaultsAndProbability(t *testing.T) {
	svc, _, _ := newTestService()

	l, err := svc.Create(context.Background(), createRequest(), 1)
	require.NoError(t, err)
	require.Equal(t, StatusOpen, l.Status)
	require.Equal(t, StageNew, l.Stage)
	require.Equal(t, PriorityMedium, l.Priority)
	require.Equal(t, 10, l.Probability)
}

func TestCreateDerivesProbabilityFromStage(t *testing.T) {
	svc, _, _ := newTestService()

	req := createRequest()
	req.Stage = StageQualified
	l, err := svc.Create(context.Background(), req, 1)
	require.NoError(t, err)
	require.Equal(t, 50, l.Probability)
}

func TestCreateRejectsUnknownSourceAndStage(t *testing.T) {
	svc, _, _ := newTestService()

	req := createRequest()
	req.Source = "Skywriting"
	_, err := svc.Create(context.Background(), req, 1)
	require.ErrorIs(t, err, shared.ErrValidation)

	req = createRequest()
	req.Stage = "Daydream"
	_, err = svc.Create(context.Background(), req, 1)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestChangeStageDerivesProbabilityAndStatus(t *testing.T) {
	svc, _, _ := newTestService()
	l, err := svc.Create(context.Background(), createRequest(), 1)
	require.NoError(t, err)

	l, err = svc.ChangeStage(context.Background(), l.ID, ChangeStageRequest{Stage: StageNegotiation})
	require.NoError(t, err)
	require.Equal(t, StageNegotiation, l.Stage)
	require.Equal(t, 80, l.Probability)
	require.Equal(t, StatusInProgress, l.Status)
}

func TestChangeStageToWonClosesLead(t *testing.T) {
	svc, _, _ := newTestService()
	l, err := svc.Create(context.Background(), createRequest(), 1)
	require.NoError(t, err)

	l, err = svc.ChangeStage(context.Background(), l.ID, ChangeStageRequest{Stage: StageWon})
	require.NoError(t, err)
	require.Equal(t, StatusWon, l.Status)
	require.Equal(t, 100, l.Probability)
	require.NotNil(t, l.ClosedAt)
	require.True(t, l.ClosedAt.Equal(testNow))

	_, err = svc.ChangeStage(context.Background(), l.ID, ChangeStageRequest{Stage: StageNew})
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestChangeStageToLostRequiresReason(t *testing.T) {
	svc, _, _ := newTestService()
	l, err := svc.Create(context.Background(), createRequest(), 1)
	require.NoError(t, err)

	_, err = svc.ChangeStage(context.Background(), l.ID, ChangeStageRequest{Stage: StageLost})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestMarkLost(t *testing.T) {
	svc, _, _ := newTestService()
	l, err := svc.Create(context.Background(), createRequest(), 1)
	require.NoError(t, err)

	l, err = svc.MarkLost(context.Background(), l.ID, MarkLostRequest{Reason: "Chose a competitor"})
	require.NoError(t, err)
	require.Equal(t, StatusLost, l.Status)
	require.Equal(t, StageLost, l.Stage)
	require.Zero(t, l.Probability)
	require.NotNil(t, l.LostReason)
	require.Equal(t, "Chose a competitor", *l.LostReason)

	_, err = svc.MarkLost(context.Background(), l.ID, MarkLostRequest{Reason: "again"})
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestConvertCreatesClientAndWins(t *testing.T) {
	svc, _, writer := newTestService()
	l, err := svc.Create(context.Background(), createRequest(), 1)
	require.NoError(t, err)

	converted, clientID, err := svc.Convert(context.Background(), l.ID, 2)
	require.NoError(t, err)
	require.Equal(t, int64(1), clientID)
	require.Equal(t, []int64{l.ID}, writer.created)
	require.Equal(t, StatusWon, converted.Status)
	require.Equal(t, StageWon, converted.Stage)
	require.Equal(t, 100, converted.Probability)
	require.NotNil(t, converted.ConvertedClientID)
	require.Equal(t, clientID, *converted.ConvertedClientID)
}

func TestConvertRejectsRepeatAndLost(t *testing.T) {
	svc, _, writer := newTestService()
	l, err := svc.Create(context.Background(), createRequest(), 1)
	require.NoError(t, err)

	_, _, err = svc.Convert(context.Background(), l.ID, 2)
	require.NoError(t, err)
	_, _, err = svc.Convert(context.Background(), l.ID, 2)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
	require.Len(t, writer.created, 1)

	lost, err := svc.Create(context.Background(), createRequest(), 1)
	require.NoError(t, err)
	_, err = svc.MarkLost(context.Background(), lost.ID, MarkLostRequest{Reason: "No budget"})
	require.NoError(t, err)
	_, _, err = svc.Convert(context.Background(), lost.ID, 2)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestUpdateClosedLeadRejected(t *testing.T) {
	svc, _, _ := newTestService()
	l, err := svc.Create(context.Background(), createRequest(), 1)
	require.NoError(t, err)
	_, err = svc.MarkLost(context.Background(), l.ID, MarkLostRequest{Reason: "No budget"})
	require.NoError(t, err)

	name := "Renamed"
	_, err = svc.Update(context.Background(), l.ID, UpdateLeadRequest{Name: &name})
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestDeleteConvertedLeadRejected(t *testing.T) {
	svc, repo, _ := newTestService()
	l, err := svc.Create(context.Background(), createRequest(), 1)
	require.NoError(t, err)
	_, _, err = svc.Convert(context.Background(), l.ID, 2)
	require.NoError(t, err)

	err = svc.Delete(context.Background(), l.ID)
	require.Error(t, err)
	require.Contains(t, repo.leads, l.ID)
}

func TestPipelineValidation(t *testing.T) {
	p := DefaultPipeline()
	require.NoError(t, p.ValidateStage(StageProposalSent))
	require.ErrorIs(t, p.ValidateStage("Backlog"), shared.ErrValidation)
	require.NoError(t, p.ValidateSource("Exhibition"))
	require.ErrorIs(t, p.ValidateSource("Telegram"), shared.ErrValidation)
	require.Equal(t, 65, p.ProbabilityFor(StageProposalSent))
	require.Equal(t, 0, p.ProbabilityFor(StageLost))
}
