package browser

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceKnownOps(t *testing.T) {
	for _, op := range []Op{OpProbeButton, OpClickButton, OpFillField, OpInsertEditorText, OpReadVerification} {
		src, err := Source(op)
		require.NoError(t, err, "op %s", op)
		assert.True(t, strings.HasPrefix(src, "(args) =>"), "op %s must be a single-arg function", op)
	}
}

func TestSourceUnknownOp(t *testing.T) {
	_, err := Source(Op("drop_tables"))
	assert.Error(t, err)
}

func TestExpressionEscapesValues(t *testing.T) {
	// Free-form content with characters significant to the script context
	// must survive a JSON round-trip instead of being spliced into source.
	hostile := "\"'</script>\n  ${alert(1)}"

	expr, err := Expression(OpFillField, FieldArgs{
		Selector: `textarea[name="title"]`,
		Value:    hostile,
	})
	require.NoError(t, err)

	// The raw value never appears unescaped; its JSON encoding does.
	assert.NotContains(t, expr, "</script>\n")
	encoded, err := json.Marshal(hostile)
	require.NoError(t, err)
	assert.Contains(t, expr, strings.Trim(string(encoded), `"`))

	// The argument bag is valid JSON embedded in a call expression.
	start := strings.LastIndex(expr, ")(")
	require.Greater(t, start, 0)
	argJSON := expr[start+2 : len(expr)-1]
	var decoded FieldArgs
	require.NoError(t, json.Unmarshal([]byte(argJSON), &decoded))
	assert.Equal(t, hostile, decoded.Value)
}

func TestDecodeResult(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    *EvalResult
		wantNil bool
	}{
		{name: "empty means no readback", raw: "", wantNil: true},
		{name: "null means no readback", raw: "null", wantNil: true},
		{name: "undefined means no readback", raw: "undefined", wantNil: true},
		{
			name: "success envelope",
			raw:  `{"success": true, "data": {"found": true, "disabled": false}}`,
			want: &EvalResult{Success: true, Data: json.RawMessage(`{"found": true, "disabled": false}`)},
		},
		{
			name: "error envelope",
			raw:  `{"success": false, "error": "button not found"}`,
			want: &EvalResult{Success: false, Error: "button not found"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := DecodeResult([]byte(tt.raw))
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, res)
				return
			}
			require.NotNil(t, res)
			assert.Equal(t, tt.want.Success, res.Success)
			assert.Equal(t, tt.want.Error, res.Error)
			if len(tt.want.Data) == 0 {
				assert.Empty(t, res.Data)
			} else {
				assert.JSONEq(t, string(tt.want.Data), string(res.Data))
			}
		})
	}
}

func TestEvalResultDecodeData(t *testing.T) {
	res := &EvalResult{
		Success: true,
		Data:    json.RawMessage(`{"found": true, "disabled": true}`),
	}

	var probe ProbeData
	require.NoError(t, res.Decode(&probe))
	assert.True(t, probe.Found)
	assert.True(t, probe.Disabled)

	var nilRes *EvalResult
	assert.Error(t, nilRes.Decode(&probe))
}
