package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUserFallsBackToPlaceholder(t *testing.T) {
	u := NewUser(Profile{Username: "ana"})
	assert.Equal(t, DefaultAvatar, u.Avatar)
	assert.Equal(t, "ana", u.DisplayName())
	assert.Equal(t, StatusOnline, u.Status)

	u = NewUser(Profile{Username: "ana", Nickname: "Ana", ProfilePicture: "http://x/a.png", IsAdmin: true})
	assert.Equal(t, "http://x/a.png", u.Avatar)
	assert.Equal(t, "Ana", u.DisplayName())
	assert.True(t, u.IsAdmin)
}

func TestMessageWireNames(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	raw, err := json.Marshal(Message{
		Message:   "hi",
		Username:  "ana",
		FileURL:   "http://x/f.mp4",
		IsVideo:   true,
		Timestamp: ts,
	})
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, "http://x/f.mp4", fields["fileURL"])
	assert.Equal(t, true, fields["isVideo"])
	assert.Equal(t, "2024-03-01T10:00:00Z", fields["timestamp"])
	assert.NotContains(t, fields, "isImage")
}

func TestSystemNotice(t *testing.T) {
	n := SystemNotice("done", time.Now())
	assert.True(t, n.IsSystem)
	assert.Equal(t, SystemUsername, n.Sender())
}

func TestMessageTimestampForms(t *testing.T) {
	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cases := map[string]struct {
		raw  string
		want time.Time
	}{
		"rfc3339":        {`"2024-01-01T00:00:00.000Z"`, want},
		"epoch ms":       {`1704067200000`, want},
		"epoch ms quote": {`"1704067200000"`, want},
		"empty":          {`""`, time.Time{}},
		"null":           {`null`, time.Time{}},
		"garbage":        {`"yesterday"`, time.Time{}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var m Message
			err := json.Unmarshal([]byte(`{"message":"hi","username":"ivy","timestamp":`+tc.raw+`}`), &m)
			require.NoError(t, err)
			assert.Equal(t, "hi", m.Message)
			assert.Equal(t, "ivy", m.Username)
			assert.True(t, tc.want.Equal(m.Timestamp), "got %v", m.Timestamp)
		})
	}

	var m Message
	require.NoError(t, json.Unmarshal([]byte(`{"message":"no stamp"}`), &m))
	assert.True(t, m.Timestamp.IsZero())
}
