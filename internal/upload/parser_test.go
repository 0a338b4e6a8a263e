package upload

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalsum/internal/models"
)

type part struct {
	field, name string
	data        []byte
}

func multipartRequest(t *testing.T, fields map[string][]string, files []part) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for key, values := range fields {
		for _, v := range values {
			require.NoError(t, mw.WriteField(key, v))
		}
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = fw.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestParseStoresFirstFileWithUniqueName(t *testing.T) {
	dir := t.TempDir()
	p := NewParser(dir, 1<<20, nil)
	req := multipartRequest(t,
		map[string][]string{KeyField: {"sk-ant-first", "sk-ant-second"}},
		[]part{
			{field: FileField, name: "Evaluations.PDF", data: []byte("%PDF-1.4 first")},
			{field: FileField, name: "other.pdf", data: []byte("%PDF-1.4 second")},
		})

	form, err := p.Parse(httptest.NewRecorder(), req)
	require.NoError(t, err)
	require.NotNil(t, form.File)

	assert.Equal(t, "sk-ant-first", form.APIKey)
	assert.Equal(t, "Evaluations.PDF", form.File.OriginalName)
	assert.Regexp(t, regexp.MustCompile(`^\d+-[0-9a-f]{12}\.pdf$`), form.File.StoredName)
	assert.Equal(t, filepath.Join(dir, form.File.StoredName), form.File.Path)
	assert.Equal(t, int64(len("%PDF-1.4 first")), form.File.Size)
	assert.Equal(t, "application/pdf", form.File.ContentType)

	data, err := os.ReadFile(form.File.Path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 first", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "only the first file is kept")
}

func TestParseWithoutFile(t *testing.T) {
	p := NewParser(t.TempDir(), 1<<20, nil)
	req := multipartRequest(t, map[string][]string{KeyField: {"sk-ant-key"}}, nil)

	form, err := p.Parse(httptest.NewRecorder(), req)
	require.NoError(t, err)
	assert.Nil(t, form.File)
	assert.Equal(t, "sk-ant-key", form.APIKey)
}

func TestParseRejectsOversizeFile(t *testing.T) {
	dir := t.TempDir()
	p := NewParser(dir, 1024, nil)
	req := multipartRequest(t, nil, []part{{field: FileField, name: "big.pdf", data: bytes.Repeat([]byte("a"), 4096)}})

	_, err := p.Parse(httptest.NewRecorder(), req)
	require.Error(t, err)
	assert.Equal(t, models.KindFileTooLarge, models.KindOf(err))

	entries, err := os.ReadDir(dir)
	if err == nil {
		assert.Empty(t, entries)
	}
}

func TestParseRejectsOversizeBody(t *testing.T) {
	p := NewParser(t.TempDir(), 16, nil)
	req := multipartRequest(t, nil, []part{{field: FileField, name: "huge.pdf", data: bytes.Repeat([]byte("b"), 2<<20)}})

	_, err := p.Parse(httptest.NewRecorder(), req)
	require.Error(t, err)
	assert.Equal(t, models.KindFileTooLarge, models.KindOf(err))
}

func TestParseRejectsNonMultipart(t *testing.T) {
	p := NewParser(t.TempDir(), 1<<20, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(`{"apiKey":"x"}`))
	req.Header.Set("Content-Type", "application/json")

	_, err := p.Parse(httptest.NewRecorder(), req)
	require.Error(t, err)
	assert.Equal(t, models.KindFormatInvalid, models.KindOf(err))
}

func TestRemoveIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.pdf")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	f := &models.UploadedFile{Path: path}

	require.NoError(t, Remove(f))
	require.NoError(t, Remove(f))
	require.NoError(t, Remove(nil))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestUniqueNameDiffersPerCall(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	a := UniqueName("notes.txt", now)
	b := UniqueName("notes.txt", now)
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "1700000000000-"))
	assert.True(t, strings.HasSuffix(a, ".txt"))
	assert.Equal(t, "", filepath.Ext(UniqueName("README", now)))
}
