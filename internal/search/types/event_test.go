package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{
			name:    "valid content event",
			payload: `{"type":"content","content":"hello"}`,
			wantErr: false,
		},
		{
			name:    "valid source_found with url",
			payload: `{"type":"source_found","source":{"url":"https://example.com","title":"Example"}}`,
			wantErr: false,
		},
		{
			name:    "valid source_found with filename",
			payload: `{"type":"source_found","source":{"filename":"report.pdf"}}`,
			wantErr: false,
		},
		{
			name:    "valid end without payload",
			payload: `{"type":"end"}`,
			wantErr: false,
		},
		{
			name:    "unknown type",
			payload: `{"type":"bogus"}`,
			wantErr: true,
		},
		{
			name:    "content missing text",
			payload: `{"type":"content"}`,
			wantErr: true,
		},
		{
			name:    "search_start missing query",
			payload: `{"type":"search_start"}`,
			wantErr: true,
		},
		{
			name:    "query_generated with bad query_type",
			payload: `{"type":"query_generated","query":"x","query_type":"weird"}`,
			wantErr: true,
		},
		{
			name:    "source_found without identity",
			payload: `{"type":"source_found","source":{"title":"no key"}}`,
			wantErr: true,
		},
		{
			name:    "not json",
			payload: `{{{`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := DecodeEvent([]byte(tt.payload))
			if tt.wantErr {
				assert.Error(t, err)
				var malformed *MalformedEventError
				assert.ErrorAs(t, err, &malformed)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, ev)
			}
		})
	}
}

func TestNewSource_Classification(t *testing.T) {
	web := NewSource(&SourcePayload{URL: "https://news.example.com/a", Domain: "news.example.com"})
	assert.Equal(t, SourceKindWeb, web.Kind)
	assert.Equal(t, "https://news.example.com/a", web.Key())

	doc := NewSource(&SourcePayload{Filename: "notes.pdf", Title: "notes.pdf - Page 3"})
	assert.Equal(t, SourceKindDocument, doc.Kind)
	assert.Equal(t, "notes.pdf", doc.Key())
}

func TestNewSource_DocumentURL(t *testing.T) {
	src := NewSource(&SourcePayload{URL: "document://report.pdf#page12", Title: "report.pdf - Page 12"})

	assert.Equal(t, SourceKindDocument, src.Kind)
	assert.Equal(t, "report.pdf", src.Filename)
	assert.Equal(t, "report.pdf", src.Key())
}

func TestNewSource_DefaultTitle(t *testing.T) {
	src := NewSource(&SourcePayload{URL: "https://example.com/page"})
	assert.Equal(t, "https://example.com/page", src.Title)
}
