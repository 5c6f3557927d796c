package crm

import (
	"encoding/json"
	"math"
	"testing"

	"crm-bridge/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContactInput_AcceptsEitherCasing(t *testing.T) {
	for _, body := range []string{
		`{"email":"a@b.test","firstName":"Ada","lastName":"L"}`,
		`{"email":"a@b.test","firstname":"Ada","lastname":"L"}`,
	} {
		var in ContactInput
		require.NoError(t, json.Unmarshal([]byte(body), &in))
		assert.Equal(t, "Ada", in.FirstName, body)
		assert.Equal(t, "L", in.LastName, body)
	}
}

func TestContactInput_Normalize(t *testing.T) {
	out, err := ContactInput{Email: "  A@B.Test ", FirstName: " Ada "}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "a@b.test", out.Email)
	assert.Equal(t, "Ada", out.FirstName)

	_, err = ContactInput{}.Normalize()
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = ContactInput{Email: "not-an-email"}.Normalize()
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = ContactInput{Phone: "+1 555"}.Normalize()
	assert.NoError(t, err)
}

func TestFlexibleID(t *testing.T) {
	cases := map[string]FlexibleID{
		`{"contactId":"501"}`: "501",
		`{"contactId":501}`:   "501",
		`{"contactId":null}`:  "",
		`{}`:                  "",
		`{"contactId":" 7 "}`: "7",
		`{"contactId":12e2}`:  "12e2",
	}
	for body, want := range cases {
		var in CallInput
		require.NoError(t, json.Unmarshal([]byte(body), &in), body)
		assert.Equal(t, want, in.ContactID, body)
	}

	var in CallInput
	assert.Error(t, json.Unmarshal([]byte(`{"contactId":{"id":1}}`), &in))
}

func TestCallInput_Normalize(t *testing.T) {
	call, err := CallInput{Duration: seconds(5), Direction: "Inbound"}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, int64(5000), call.DurationMs)
	assert.Equal(t, "INBOUND", call.Direction)

	call, err = CallInput{Duration: seconds(1.5), Direction: "outbound"}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, int64(1500), call.DurationMs)

	bad := []CallInput{
		{Direction: "inbound"},
		{Duration: seconds(-1), Direction: "inbound"},
		{Duration: seconds(1)},
		{Duration: seconds(1), Direction: "sideways"},
		{Duration: seconds(1e19), Direction: "inbound"},
		{Duration: seconds(math.Inf(1)), Direction: "inbound"},
		{Duration: seconds(math.NaN()), Direction: "inbound"},
	}
	for _, in := range bad {
		_, err := in.Normalize()
		assert.True(t, apperr.IsKind(err, apperr.KindValidation), "%+v", in)
	}

	_, err = CallInput{Duration: seconds(1e19), Direction: "inbound"}.Normalize()
	assert.EqualError(t, err, "duration is too large")

	// Durations just under the limit still convert.
	got, err := CallInput{Duration: seconds(9e15), Direction: "inbound"}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, int64(9e18), got.DurationMs)
}
