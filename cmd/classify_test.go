package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/callsync/internal/config"
)

func testSyncConfig() config.SyncConfig {
	return config.SyncConfig{
		VoicemailLabels:    []string{"Caixa Postal"},
		DefaultStatusLabel: "Sem tabulação",
		PlaceholderName:    "Lead 3C",
	}
}

func TestDecodeInput(t *testing.T) {
	wrapped, err := decodeInput([]byte(`{"data":[{"id":1},{"id":2}]}`))
	require.NoError(t, err)
	assert.Len(t, wrapped, 2)

	bare, err := decodeInput([]byte(` [{"id":"a"}] `))
	require.NoError(t, err)
	assert.Len(t, bare, 1)

	single, err := decodeInput([]byte(`{"id":"x","number":"11"}`))
	require.NoError(t, err)
	require.Len(t, single, 1)
	assert.Equal(t, "x", single[0].ID)

	_, err = decodeInput([]byte(`{"meta":{}}`))
	assert.Error(t, err)
}

func TestClassifyCalls(t *testing.T) {
	calls, err := decodeInput([]byte(`[
		{"id":"1","number":"+55 (11) 99999-0000","speaking_time":"00:01:30",
		 "qualification":{"name":"Interested"},
		 "mailing_data":{"data":[{"Nome":" <b>Maria</b> &amp; Jo "}]}},
		{"id":"2","number":"11","speaking_time":"00:00:40","qualification":"Caixa Postal"},
		{"id":"3","number":"","speaking_time":"bad","readable_status_text":"-"}
	]`))
	require.NoError(t, err)

	out := classifyCalls(testSyncConfig(), calls)
	require.Len(t, out, 3)

	assert.Equal(t, classifiedCall{
		ID: "1", Phone: "5511999990000", Verdict: "success", StatusLabel: "Interested",
		Seconds: 90, Name: "Maria & Jo",
	}, out[0])
	assert.Equal(t, "voicemail", out[1].Verdict)
	assert.Equal(t, 40, out[1].Seconds)
	assert.Equal(t, "no_answer", out[2].Verdict)
	assert.Equal(t, "Sem tabulação", out[2].StatusLabel)
	assert.Equal(t, "Lead 3C", out[2].Name)
	assert.True(t, out[2].GenericName)
	assert.Empty(t, out[2].Phone)
}
