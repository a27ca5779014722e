package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionDecodesListShape(t *testing.T) {
	var s Session
	err := json.Unmarshal([]byte(`{"id":"abc","filename":"Report.PDF","created_at":"2024-03-01T10:20:30.123456"}`), &s)
	require.NoError(t, err)

	assert.Equal(t, "abc", s.ID)
	assert.Equal(t, "Report.PDF", s.DocumentName)
	assert.Equal(t, FileTypePDF, s.FileType)
	assert.Equal(t, 2024, s.CreatedAt.Year())
	assert.Equal(t, 123456000, s.CreatedAt.Nanosecond())
}

func TestSessionDecodesDetailShape(t *testing.T) {
	var s Session
	err := json.Unmarshal([]byte(`{"session_id":"xyz","document_name":"notes","file_type":"txt","created_at":"Unknown"}`), &s)
	require.NoError(t, err)

	assert.Equal(t, "xyz", s.ID)
	assert.Equal(t, "notes", s.DocumentName)
	assert.Equal(t, FileTypeTXT, s.FileType)
	assert.True(t, s.CreatedAt.IsZero())
}

func TestSessionRoundTripKeepsFields(t *testing.T) {
	in := Session{
		ID:           "s1",
		DocumentName: "a.docx",
		FileType:     FileTypeDOCX,
		CreatedAt:    time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out Session
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.DocumentName, out.DocumentName)
	assert.Equal(t, in.FileType, out.FileType)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
}

func TestParseFileType(t *testing.T) {
	cases := map[string]FileType{
		"pdf":   FileTypePDF,
		".DOCX": FileTypeDOCX,
		"doc":   FileTypeDOC,
		" txt ": FileTypeTXT,
		"xlsx":  FileTypeOther,
		"":      FileTypeOther,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseFileType(in), in)
	}
	assert.Equal(t, FileTypeOther, FileTypeFromName("README"))
}

func TestChatMessageDecodesTimestamp(t *testing.T) {
	var msgs []ChatMessage
	err := json.Unmarshal([]byte(`[{"role":"user","content":"hi","timestamp":"2024-05-06T07:08:09"},{"role":"assistant","content":"hello"}]`), &msgs)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, 9, msgs[0].Timestamp.Second())
	assert.True(t, msgs[1].Timestamp.IsZero())
	assert.True(t, msgs[1].Role.Valid())
}

func TestUploadResponseUsesEnvelopeMessage(t *testing.T) {
	var resp UploadResponse
	err := json.Unmarshal([]byte(`{"success":true,"session_id":"n1","message":"Document \"a.txt\" uploaded successfully"}`), &resp)
	require.NoError(t, err)

	assert.True(t, resp.Outcome().Success)
	assert.Equal(t, "n1", resp.SessionID)
	assert.Equal(t, `Document "a.txt" uploaded successfully`, resp.Message)
}
