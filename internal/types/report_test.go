package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabaseReport_LastTabular(t *testing.T) {
	first := &TabularResult{Headers: []string{"a"}, Rows: [][]string{{"1"}}}
	second := &TabularResult{Headers: []string{"b"}, Rows: [][]string{{"2"}}}

	t.Run("no select outcomes", func(t *testing.T) {
		r := DatabaseReport{Results: []StatementOutcome{MutationOutcome(3), ErrorOutcome("boom")}}
		assert.Nil(t, r.LastTabular())
	})

	t.Run("trailing writes ignored", func(t *testing.T) {
		r := DatabaseReport{Results: []StatementOutcome{
			SelectOutcome(first),
			SelectOutcome(second),
			MutationOutcome(1),
		}}
		assert.Same(t, second, r.LastTabular())
	})

	t.Run("empty report", func(t *testing.T) {
		assert.Nil(t, DatabaseReport{}.LastTabular())
	})
}

func TestDatabaseReport_Counts(t *testing.T) {
	r := DatabaseReport{Results: []StatementOutcome{
		SelectOutcome(nil),
		ErrorOutcome("x"),
		MutationOutcome(0),
		ErrorOutcome("y"),
	}}
	s, f := r.Counts()
	assert.Equal(t, 2, s)
	assert.Equal(t, 2, f)
	assert.Equal(t, len(r.Results), s+f)
}

func TestDatabaseReport_Log(t *testing.T) {
	var r DatabaseReport
	assert.Equal(t, "", r.LogLine())
	r.SetLog("2 statements executed successfully.")
	assert.Equal(t, "2 statements executed successfully.", r.LogLine())
}

func TestStatementOutcome_JSON(t *testing.T) {
	report := DatabaseReport{
		Name:   "sales",
		Status: StatusError,
		Results: []StatementOutcome{
			SelectOutcome(&TabularResult{Headers: []string{"id"}, Rows: [][]string{{"1"}}}),
			MutationOutcome(4),
			ErrorOutcome("Error in query 3: relation does not exist"),
		},
	}
	report.SetLog("2 succeeded, 1 failed.")

	data, err := json.Marshal(report)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"name": "sales",
		"status": "error",
		"log": "2 succeeded, 1 failed.",
		"results": [
			{"type": "select", "payload": {"headers": ["id"], "rows": [["1"]]}},
			{"type": "mutation", "payload": {"affectedRows": 4}},
			{"type": "error", "payload": "Error in query 3: relation does not exist"}
		]
	}`, string(data))

	var decoded DatabaseReport
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, report, decoded)
}

func TestStatementOutcome_EmptySelectJSON(t *testing.T) {
	data, err := json.Marshal(SelectOutcome(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"select","payload":{"headers":[],"rows":[]}}`, string(data))
}

func TestStatementOutcome_UnknownKind(t *testing.T) {
	_, err := json.Marshal(StatementOutcome{Kind: "bogus"})
	assert.Error(t, err)

	var o StatementOutcome
	assert.Error(t, json.Unmarshal([]byte(`{"type":"bogus","payload":null}`), &o))
}

func TestParseSavePolicy(t *testing.T) {
	tests := []struct {
		input    string
		expected SavePolicy
		wantErr  bool
	}{
		{"", SaveNone, false},
		{"none", SaveNone, false},
		{"Separate", SaveSeparate, false},
		{" single ", SaveSingle, false},
		{"both", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p, err := ParseSavePolicy(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p)
		})
	}

	assert.False(t, SaveNone.NeedsFolder())
	assert.True(t, SaveSeparate.NeedsFolder())
	assert.True(t, SaveSingle.NeedsFolder())
}

func TestParseEngine(t *testing.T) {
	e, err := ParseEngine("")
	require.NoError(t, err)
	assert.Equal(t, EnginePostgres, e)

	e, err = ParseEngine("MariaDB")
	require.NoError(t, err)
	assert.Equal(t, EngineMySQL, e)

	_, err = ParseEngine("oracle")
	assert.Error(t, err)
}

func TestConnectionProfile_Defaults(t *testing.T) {
	p := ConnectionProfile{}
	assert.Equal(t, EnginePostgres, p.EffectiveEngine())
	assert.Equal(t, 5432, p.EffectivePort())

	p = ConnectionProfile{Engine: EngineMySQL}
	assert.Equal(t, 3306, p.EffectivePort())

	p.Port = 3307
	assert.Equal(t, 3307, p.EffectivePort())
}
