package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/chartmotion-backend/internal/domain/animation"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/templates"
	"github.com/yungbote/chartmotion-backend/internal/platform/apierr"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
	"github.com/yungbote/chartmotion-backend/internal/services"
)

type fakeDatasets struct {
	services.DatasetService

	seen map[string]*animation.Dataset
	name string
}

func (f *fakeDatasets) Upload(_ context.Context, name string, r io.Reader) (*animation.Dataset, bool, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, false, err
	}
	if len(b) == 0 {
		return nil, false, apierr.BadRequest("empty_dataset", io.ErrUnexpectedEOF)
	}
	f.name = name
	if ds, ok := f.seen[string(b)]; ok {
		return ds, false, nil
	}
	ds := &animation.Dataset{ID: uuid.New(), Name: name}
	f.seen[string(b)] = ds
	return ds, true, nil
}

func (f *fakeDatasets) Suggest(_ context.Context, _ uuid.UUID, templateID string) (*services.Suggestion, error) {
	if templateID != "bar_race" {
		return nil, apierr.NotFound("template_not_found", nil)
	}
	return &services.Suggestion{TemplateID: templateID}, nil
}

func upload(r http.Handler, field, filename, content string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		fw, _ := mw.CreateFormFile(field, filename)
		_, _ = fw.Write([]byte(content))
	}
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/datasets", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func datasetRouter(ds services.DatasetService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewDatasetHandler(logger.Nop(), ds)
	r := gin.New()
	r.POST("/api/datasets", h.Upload)
	r.GET("/api/datasets/:id/templates/:template_id/suggestions", h.Suggestions)
	return r
}

func TestUploadCreatedThenDeduped(t *testing.T) {
	fake := &fakeDatasets{seen: map[string]*animation.Dataset{}}
	r := datasetRouter(fake)
	csv := "year,country,gdp\n2000,A,1\n2001,A,2\n"

	rec := upload(r, "file", "gdp.csv", csv)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "gdp.csv", fake.name)
	var first struct {
		Dataset animation.Dataset `json:"dataset"`
		Created bool              `json:"created"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.True(t, first.Created)

	rec = upload(r, "file", "copy.csv", csv)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), first.Dataset.ID.String())
	assert.Contains(t, rec.Body.String(), `"created":false`)
}

func TestUploadErrors(t *testing.T) {
	r := datasetRouter(&fakeDatasets{seen: map[string]*animation.Dataset{}})

	rec := upload(r, "", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_file", errorCode(t, rec).Code)

	rec = upload(r, "file", "empty.csv", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "empty_dataset", errorCode(t, rec).Code)
}

func TestSuggestionsUnknownTemplate(t *testing.T) {
	r := datasetRouter(&fakeDatasets{})
	rec := do(r, http.MethodGet, "/api/datasets/"+uuid.NewString()+"/templates/pie/suggestions", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "template_not_found", errorCode(t, rec).Code)

	rec = do(r, http.MethodGet, "/api/datasets/"+uuid.NewString()+"/templates/bar_race/suggestions", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"template_id":"bar_race"`)
}

func TestTemplateListing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/templates", NewTemplateHandler(templates.NewRegistry(logger.Nop(), "")).List)

	rec := do(r, http.MethodGet, "/api/templates", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Templates []templates.Definition `json:"templates"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	var got []string
	for _, d := range body.Templates {
		got = append(got, d.ID)
	}
	assert.ElementsMatch(t, []string{"bar_race", "bubble", "line_evolution", "distribution", "bento_grid", "single_numeric"}, got)
}
