package callsync

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/callsync/internal/config"
	"github.com/sells-group/callsync/pkg/hubspot"
	"github.com/sells-group/callsync/pkg/threec"
)

// --- 3C Mock ---

type mockSource struct {
	mock.Mock
}

func (m *mockSource) ListCalls(ctx context.Context, params threec.ListCallsParams) ([]threec.Call, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]threec.Call), args.Error(1)
}

func (m *mockSource) RecordingURL(callID string) string {
	return "https://3c.test/calls/" + callID + "/recording"
}

func offset(n int) any {
	return mock.MatchedBy(func(p threec.ListCallsParams) bool { return p.Offset == n })
}

// --- HubSpot Mock ---

type mockCRM struct {
	mock.Mock
}

func (m *mockCRM) SearchByPhone(ctx context.Context, phone string) (*hubspot.Contact, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hubspot.Contact), args.Error(1)
}

func (m *mockCRM) CreateContact(ctx context.Context, props hubspot.Properties) (string, error) {
	args := m.Called(ctx, props)
	return args.String(0), args.Error(1)
}

func (m *mockCRM) UpdateContact(ctx context.Context, id string, props hubspot.Properties) error {
	args := m.Called(ctx, id, props)
	return args.Error(0)
}

// --- Fixtures ---

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.ThreeC.PageSize = 2
	cfg.ThreeC.MaxPages = 10
	cfg.CRM.Properties = config.PropertyConfig{
		Phone:         "phone",
		FirstName:     "firstname",
		StatusLabel:   "status_ultima_ligacao",
		RecordingLink: "ultima_gravacao_3c",
		Contacted:     "lead_contatado_",
		LastSuccess:   "ultimo_contato_feito_em",
		LastFailure:   "ultimo_contato_sem_sucesso",
	}
	cfg.Sync = config.SyncConfig{
		IntervalSecs:       60,
		PacingMs:           0,
		Timezone:           "America/Sao_Paulo",
		VoicemailLabels:    []string{"Caixa Postal"},
		DefaultStatusLabel: "Sem tabulação",
		NotAnsweredLabel:   "Não atendida",
		PlaceholderName:    "Lead 3C",
	}
	return cfg
}

var fixedNow = time.Date(2026, 10, 19, 18, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func noSleep(context.Context, time.Duration) {}

func textQual(s string) threec.Qualification {
	return threec.Qualification{Kind: threec.QualificationText, Name: s}
}
