package controller_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adworldmediaonline/email-cron/internal/controller"
	appErrors "github.com/adworldmediaonline/email-cron/internal/errors"
	"github.com/adworldmediaonline/email-cron/internal/model"
	"github.com/adworldmediaonline/email-cron/internal/service"
)

// --- Mock repositories ---

type mockCampaignRepo struct {
	campaigns map[int]*model.Campaign
}

func (m *mockCampaignRepo) Create(c *model.Campaign) error {
	c.ID = len(m.campaigns) + 1
	m.campaigns[c.ID] = c
	return nil
}

func (m *mockCampaignRepo) GetByID(id int) (*model.Campaign, error) {
	c, ok := m.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	return c, nil
}

func (m *mockCampaignRepo) ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error) {
	out := []*model.Campaign{}
	for _, c := range m.campaigns {
		out = append(out, c)
	}
	return out, len(out), nil
}

func (m *mockCampaignRepo) FindDue(now time.Time, limit int) ([]*model.Campaign, error) {
	return nil, nil
}
func (m *mockCampaignRepo) TransitionStatus(id int, from, to string) (bool, error) {
	return false, nil
}
func (m *mockCampaignRepo) MarkSent(id int, from string) (bool, error) { return false, nil }
func (m *mockCampaignRepo) ForceFail(id int) (bool, error)             { return false, nil }
func (m *mockCampaignRepo) Schedule(id int, at time.Time, timezone *string) (bool, error) {
	return true, nil
}
func (m *mockCampaignRepo) GetRecipientStats(campaignID int) (map[string]int, error) {
	return map[string]int{"pending": 3, "sent": 0, "failed": 0}, nil
}

type mockRecipientRepo struct {
	recipients map[int]*model.Recipient
}

func (m *mockRecipientRepo) CreateBatch(campaignID int, recipients []*model.Recipient) error {
	return nil
}
func (m *mockRecipientRepo) GetByID(id int) (*model.Recipient, error) { return m.recipients[id], nil }
func (m *mockRecipientRepo) ListPending(campaignID int) ([]*model.Recipient, error) {
	return nil, nil
}
func (m *mockRecipientRepo) MarkSent(id int, providerMessageID string) (bool, error) {
	return false, nil
}
func (m *mockRecipientRepo) MarkFailed(id int, errorMessage string) (bool, error) {
	return false, nil
}
func (m *mockRecipientRepo) ApplyDeliveryEvent(providerMessageID, lastEvent string, failed bool, errorMessage string) (int64, error) {
	return 0, nil
}

func newController(campaigns map[int]*model.Campaign, recipients map[int]*model.Recipient) *controller.CampaignController {
	return &controller.CampaignController{
		CampaignService: &service.CampaignService{
			CampaignRepo:  &mockCampaignRepo{campaigns: campaigns},
			RecipientRepo: &mockRecipientRepo{recipients: recipients},
		},
	}
}

// --- Tests ---

func TestPersonalizedPreviewHandler(t *testing.T) {
	campaigns := map[int]*model.Campaign{
		1: {ID: 1, Subject: "s", Body: "Hi {name}, see {email}!"},
	}
	recipients := map[int]*model.Recipient{
		7: {ID: 7, CampaignID: 1, Email: "alice@example.com", Name: "Alice"},
	}

	r := chi.NewRouter()
	ctrl := newController(campaigns, recipients)
	r.Post("/campaigns/{id}/preview", ctrl.PersonalizedPreview)

	body, _ := json.Marshal(map[string]interface{}{"recipient_id": 7})
	req := httptest.NewRequest("POST", "/campaigns/1/preview", bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var res map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.Equal(t, "Hi Alice, see alice@example.com!", res["rendered_message"])
}

func TestCreateCampaignHandler(t *testing.T) {
	r := chi.NewRouter()
	ctrl := newController(map[int]*model.Campaign{}, map[int]*model.Recipient{})
	r.Post("/campaigns", ctrl.CreateCampaign)

	body, _ := json.Marshal(map[string]interface{}{
		"name":       "Welcome",
		"subject":    "Hi {name}",
		"body":       "<p>welcome</p>",
		"from_email": "hello@example.com",
		"recipients": []map[string]string{{"email": "a@example.com", "name": "A"}},
	})
	req := httptest.NewRequest("POST", "/campaigns", bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var created model.Campaign
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	assert.Equal(t, "draft", created.Status)
	assert.NotZero(t, created.ID)
}

func TestCreateCampaignHandlerRejectsMissingSubject(t *testing.T) {
	r := chi.NewRouter()
	ctrl := newController(map[int]*model.Campaign{}, map[int]*model.Recipient{})
	r.Post("/campaigns", ctrl.CreateCampaign)

	body, _ := json.Marshal(map[string]interface{}{"body": "x", "from_email": "a@b.c"})
	req := httptest.NewRequest("POST", "/campaigns", bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetCampaignDetailsNotFound(t *testing.T) {
	r := chi.NewRouter()
	ctrl := newController(map[int]*model.Campaign{}, map[int]*model.Recipient{})
	r.Get("/campaigns/{id}", ctrl.GetCampaignDetails)

	req := httptest.NewRequest("GET", "/campaigns/99", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
