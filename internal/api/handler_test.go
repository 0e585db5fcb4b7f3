package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mr1hm/go-city-report/internal/models"
	"github.com/mr1hm/go-city-report/internal/repository"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

// mockRepo implements repository.ReportRepository and
// repository.CategoryRepository for testing
type mockRepo struct {
	reports    []models.Report
	images     map[int64][]byte
	categories []models.Category
	err        error
	geoCalls   int
	nextID     int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		images: make(map[int64][]byte),
		categories: []models.Category{
			{ID: 1, NameEn: "Pothole", NameSv: "Potthål"},
			{ID: 2, NameEn: "Graffiti", NameSv: "Klotter"},
		},
	}
}

func (m *mockRepo) Add(ctx context.Context, r *models.Report, data []byte) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.nextID++
	r.ID = m.nextID
	if r.UploadTimestamp.IsZero() {
		r.UploadTimestamp = time.Now().UTC()
	}
	m.reports = append(m.reports, *r)
	m.images[r.ID] = data
	return r.ID, nil
}

func (m *mockRepo) GetByID(ctx context.Context, id int64) (*models.Report, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, r := range m.reports {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockRepo) GetImage(ctx context.Context, id int64) (*models.ReportImage, error) {
	r, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.image(r), nil
}

func (m *mockRepo) GetImageByFilename(ctx context.Context, filename string) (*models.ReportImage, error) {
	for _, r := range m.reports {
		if r.Filename == filename {
			return m.image(&r), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockRepo) image(r *models.Report) *models.ReportImage {
	return &models.ReportImage{
		Filename:         r.Filename,
		OriginalFilename: r.OriginalFilename,
		MimeType:         r.MimeType,
		FileSize:         r.FileSize,
		Data:             m.images[r.ID],
	}
}

func (m *mockRepo) List(ctx context.Context, opts repository.Filter) ([]models.Report, error) {
	if m.err != nil {
		return nil, m.err
	}
	results := m.reports
	if opts.Offset >= len(results) {
		return []models.Report{}, nil
	}
	results = results[opts.Offset:]
	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

func (m *mockRepo) Delete(ctx context.Context, id int64) (bool, error) {
	for i, r := range m.reports {
		if r.ID == id {
			m.reports = append(m.reports[:i], m.reports[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepo) Stats(ctx context.Context) (*models.Stats, error) {
	if m.err != nil {
		return nil, m.err
	}
	s := &models.Stats{TotalImages: int64(len(m.reports))}
	for _, r := range m.reports {
		if r.HasLocation() {
			s.ImagesWithCoordinates++
		}
	}
	return s, nil
}

func (m *mockRepo) ListByBounds(ctx context.Context, b models.Bounds) ([]models.Report, error) {
	m.geoCalls++
	if m.err != nil {
		return nil, m.err
	}
	var results []models.Report
	for _, r := range m.reports {
		if r.HasLocation() && b.Contains(*r.Latitude, *r.Longitude) {
			results = append(results, r)
		}
	}
	return results, nil
}

func (m *mockRepo) ListWithCoordinates(ctx context.Context) ([]models.Report, error) {
	m.geoCalls++
	if m.err != nil {
		return nil, m.err
	}
	var results []models.Report
	for _, r := range m.reports {
		if r.HasLocation() {
			results = append(results, r)
		}
	}
	return results, nil
}

func (m *mockRepo) ListCategories(ctx context.Context) ([]models.Category, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.categories, nil
}

func (m *mockRepo) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	for _, c := range m.categories {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockRepo) FindCategoryByName(ctx context.Context, name string) (*models.Category, error) {
	for _, c := range m.categories {
		if strings.EqualFold(c.NameEn, name) || strings.EqualFold(c.NameSv, name) {
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockRepo) addLocated(lat, lng float64, ts time.Time) models.Report {
	r := models.Report{
		Filename:         "f.jpg",
		OriginalFilename: "f.jpg",
		MimeType:         "image/png",
		Latitude:         &lat,
		Longitude:        &lng,
		UploadTimestamp:  ts,
	}
	m.Add(context.Background(), &r, pngHeader)
	return r
}

func setupTestRouter(repo *mockRepo, opts Options) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	handler := NewHandler(repo, repo, opts)
	handler.RegisterRoutes(router)
	return router
}

func testOptions() Options {
	return Options{
		MaxUploadBytes: 1 << 20,
		PublicBaseURL:  "https://cityreport.example",
		DefaultCenter:  models.Coordinates{Latitude: 57.7089, Longitude: 11.9746},
	}
}

func do(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
}

func uploadRequest(t *testing.T, filename string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if data != nil {
		fw, err := mw.CreateFormFile("image", filename)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(data)
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()

	req, _ := http.NewRequest("POST", "/api/images/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	router := setupTestRouter(newMockRepo(), testOptions())

	w := do(router, "GET", "/health")
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var resp map[string]string
	decode(t, w, &resp)
	if resp["status"] != "ok" {
		t.Errorf("expected status ok, got %s", resp["status"])
	}
	if _, err := time.Parse(time.RFC3339, resp["timestamp"]); err != nil {
		t.Errorf("expected RFC3339 timestamp, got %q", resp["timestamp"])
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestRequestID_Reused(t *testing.T) {
	router := setupTestRouter(newMockRepo(), testOptions())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("expected request id to be echoed, got %q", got)
	}
}

func TestRoot(t *testing.T) {
	w := do(setupTestRouter(newMockRepo(), testOptions()), "GET", "/")

	var resp map[string]any
	decode(t, w, &resp)
	if resp["name"] != serviceName {
		t.Errorf("unexpected name %v", resp["name"])
	}
	if _, ok := resp["endpoints"].(map[string]any); !ok {
		t.Error("expected endpoints object")
	}
}

func TestListImages_Pagination(t *testing.T) {
	repo := newMockRepo()
	for i := 0; i < 60; i++ {
		repo.addLocated(57.7, 11.9, time.Now())
	}
	router := setupTestRouter(repo, testOptions())

	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
		wantCount  int
	}{
		{"", 50, 0, 50},
		{"?limit=10&offset=55", 10, 55, 5},
		{"?limit=1000", 50, 0, 50},
		{"?limit=abc&offset=-3", 50, 0, 50},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := do(router, "GET", "/api/images"+tt.query)
			if w.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", w.Code)
			}

			var resp struct {
				Images     []reportResponse `json:"images"`
				Pagination struct {
					Limit  int `json:"limit"`
					Offset int `json:"offset"`
					Count  int `json:"count"`
				} `json:"pagination"`
			}
			decode(t, w, &resp)

			if resp.Pagination.Limit != tt.wantLimit || resp.Pagination.Offset != tt.wantOffset {
				t.Errorf("expected limit %d offset %d, got %+v", tt.wantLimit, tt.wantOffset, resp.Pagination)
			}
			if resp.Pagination.Count != tt.wantCount || len(resp.Images) != tt.wantCount {
				t.Errorf("expected %d images, got %d", tt.wantCount, len(resp.Images))
			}
		})
	}
}

func TestUploadImage(t *testing.T) {
	repo := newMockRepo()
	router := setupTestRouter(repo, testOptions())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "hole.png", pngHeader, map[string]string{
		"latitude":    "57.7089",
		"longitude":   "11.9746",
		"category":    "Potthål",
		"description": "  Deep hole  ",
	}))

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Message string         `json:"message"`
		Image   reportResponse `json:"image"`
	}
	decode(t, w, &resp)

	img := resp.Image
	if img.OriginalFilename != "hole.png" || !strings.HasSuffix(img.Filename, "_hole.png") {
		t.Errorf("unexpected filenames %q / %q", img.Filename, img.OriginalFilename)
	}
	if img.MimeType != "image/png" {
		t.Errorf("expected sniffed image/png, got %s", img.MimeType)
	}
	if img.Latitude == nil || *img.Latitude != 57.7089 {
		t.Errorf("expected latitude 57.7089, got %v", img.Latitude)
	}
	if img.CategoryID == nil || *img.CategoryID != 1 || img.CategoryNameEn != "Pothole" {
		t.Errorf("expected Pothole category, got %v %q", img.CategoryID, img.CategoryNameEn)
	}
	if img.Description != "Deep hole" {
		t.Errorf("expected trimmed description, got %q", img.Description)
	}
	if len(repo.reports) != 1 || !bytes.Equal(repo.images[1], pngHeader) {
		t.Error("expected report and image data to be stored")
	}
}

func TestUploadImage_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		file   string
		data   []byte
		fields map[string]string
		status int
	}{
		{"no file", "", nil, nil, http.StatusBadRequest},
		{"not an image", "notes.png", []byte("just some text"), nil, http.StatusUnsupportedMediaType},
		{"too large", "big.png", append(append([]byte{}, pngHeader...), make([]byte, 2<<20)...), nil, http.StatusRequestEntityTooLarge},
		{"bad latitude", "a.png", pngHeader, map[string]string{"latitude": "91", "longitude": "10"}, http.StatusBadRequest},
		{"nan longitude", "a.png", pngHeader, map[string]string{"latitude": "57", "longitude": "NaN"}, http.StatusBadRequest},
		{"unknown category", "a.png", pngHeader, map[string]string{"category": "Volcano"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepo()
			router := setupTestRouter(repo, testOptions())

			w := httptest.NewRecorder()
			router.ServeHTTP(w, uploadRequest(t, tt.file, tt.data, tt.fields))

			if w.Code != tt.status {
				t.Errorf("expected status %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
			if len(repo.reports) != 0 {
				t.Error("expected nothing to be stored")
			}
		})
	}
}

func TestUploadImage_SingleCoordinateIgnored(t *testing.T) {
	repo := newMockRepo()
	router := setupTestRouter(repo, testOptions())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "a.png", pngHeader, map[string]string{"latitude": "57.7"}))

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", w.Code)
	}
	if repo.reports[0].HasLocation() {
		t.Error("expected report without location")
	}
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func TestUploadImage_StreamedBodyCapped(t *testing.T) {
	repo := newMockRepo()
	opts := testOptions()
	router := setupTestRouter(repo, opts)

	var head bytes.Buffer
	mw := multipart.NewWriter(&head)
	fw, err := mw.CreateFormFile("image", "huge.png")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(pngHeader)
	tail := "\r\n--" + mw.Boundary() + "--\r\n"

	body := &countingReader{r: io.MultiReader(
		&head,
		io.LimitReader(zeroReader{}, 8<<20),
		strings.NewReader(tail),
	)}
	req, _ := http.NewRequest("POST", "/api/images/upload", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.ContentLength = -1

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status 413, got %d: %s", w.Code, w.Body.String())
	}
	if limit := opts.MaxUploadBytes + uploadFormOverhead; body.n > limit+1 {
		t.Errorf("read %d bytes from body, limit is %d", body.n, limit)
	}
	if len(repo.reports) != 0 {
		t.Error("expected nothing to be stored")
	}
}

func TestGetImage(t *testing.T) {
	repo := newMockRepo()
	r := repo.addLocated(57.7, 11.9, time.Now())
	router := setupTestRouter(repo, testOptions())

	w := do(router, "GET", "/api/images/1")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var resp reportResponse
	decode(t, w, &resp)
	if resp.ID != r.ID || resp.Filename != r.Filename {
		t.Errorf("unexpected image %+v", resp)
	}

	if w := do(router, "GET", "/api/images/99"); w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
	if w := do(router, "GET", "/api/images/abc"); w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

func TestGetImageFile(t *testing.T) {
	repo := newMockRepo()
	r := repo.addLocated(57.7, 11.9, time.Now())
	router := setupTestRouter(repo, testOptions())

	w := do(router, "GET", "/api/images/1/file")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected image/png, got %s", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, r.OriginalFilename) {
		t.Errorf("expected disposition with filename, got %s", cd)
	}
	if !bytes.Equal(w.Body.Bytes(), pngHeader) {
		t.Error("expected raw image bytes")
	}

	w = do(router, "GET", "/api/images/by-filename/"+r.Filename)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if cc := w.Header().Get("Cache-Control"); !strings.Contains(cc, "immutable") {
		t.Errorf("expected immutable caching, got %q", cc)
	}

	if w := do(router, "GET", "/api/images/by-filename/missing.jpg"); w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestGetImageQR(t *testing.T) {
	repo := newMockRepo()
	repo.addLocated(57.7, 11.9, time.Now())
	router := setupTestRouter(repo, testOptions())

	w := do(router, "GET", "/api/images/1/qr")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected image/png, got %s", ct)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("expected a PNG body")
	}

	if w := do(router, "GET", "/api/images/1/qr?size=64"); w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for small size, got %d", w.Code)
	}
	if w := do(router, "GET", "/api/images/2/qr"); w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestDeleteImage(t *testing.T) {
	repo := newMockRepo()
	repo.addLocated(57.7, 11.9, time.Now())
	router := setupTestRouter(repo, testOptions())

	if w := do(router, "DELETE", "/api/images/1"); w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if w := do(router, "DELETE", "/api/images/1"); w.Code != http.StatusNotFound {
		t.Errorf("expected status 404 on second delete, got %d", w.Code)
	}
}

func TestStats(t *testing.T) {
	repo := newMockRepo()
	repo.addLocated(57.7, 11.9, time.Now())
	repo.Add(context.Background(), &models.Report{Filename: "x.jpg"}, pngHeader)
	router := setupTestRouter(repo, testOptions())

	var stats models.Stats
	decode(t, do(router, "GET", "/api/images/stats/summary"), &stats)
	if stats.TotalImages != 2 || stats.ImagesWithCoordinates != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestHeatmapCoordinates(t *testing.T) {
	repo := newMockRepo()
	repo.addLocated(57.7, 11.9, time.Now())
	repo.addLocated(57.8, 12.0, time.Now())
	repo.Add(context.Background(), &models.Report{Filename: "x.jpg"}, pngHeader)
	router := setupTestRouter(repo, testOptions())

	var resp struct {
		Points []coordinatePoint `json:"points"`
		Total  int               `json:"total"`
	}
	decode(t, do(router, "GET", "/api/heatmap/coordinates"), &resp)

	if resp.Total != 2 || len(resp.Points) != 2 {
		t.Fatalf("expected 2 points, got %d", resp.Total)
	}
	for _, p := range resp.Points {
		if p.Count != 1 {
			t.Errorf("expected count 1, got %d", p.Count)
		}
	}
}

func TestHeatmapBounds(t *testing.T) {
	repo := newMockRepo()
	now := time.Now()
	repo.addLocated(20, 20, now)
	repo.addLocated(10, 10, now.Add(-time.Hour))
	repo.addLocated(30, 30, now)
	router := setupTestRouter(repo, testOptions())

	w := do(router, "GET", "/api/heatmap/bounds?north=25&south=5&east=25&west=5")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp struct {
		Points []boundsPoint `json:"points"`
		Bounds models.Bounds `json:"bounds"`
		Total  int           `json:"total"`
	}
	decode(t, w, &resp)

	if resp.Total != 2 {
		t.Fatalf("expected 2 points, got %d", resp.Total)
	}
	if resp.Points[0].Lat != 20 || resp.Points[1].Lat != 10 {
		t.Errorf("expected store order kept, got %+v", resp.Points)
	}
	if resp.Bounds != (models.Bounds{North: 25, South: 5, East: 25, West: 5}) {
		t.Errorf("unexpected bounds %+v", resp.Bounds)
	}
}

func TestHeatmapBounds_Invalid(t *testing.T) {
	for _, q := range []string{
		"?north=25&south=5&east=25",
		"?north=25&south=5&east=abc&west=5",
		"",
	} {
		repo := newMockRepo()
		router := setupTestRouter(repo, testOptions())

		w := do(router, "GET", "/api/heatmap/bounds"+q)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%q: expected status 400, got %d", q, w.Code)
		}
		if repo.geoCalls != 0 {
			t.Errorf("%q: expected no store query, got %d", q, repo.geoCalls)
		}
	}
}

func TestHeatmapDensity(t *testing.T) {
	repo := newMockRepo()
	repo.addLocated(57.7089, 11.9746, time.Now())
	repo.addLocated(57.7091, 11.9748, time.Now())
	repo.addLocated(59.3293, 18.0686, time.Now())
	router := setupTestRouter(repo, testOptions())

	var resp struct {
		Points []struct {
			Lat       float64 `json:"lat"`
			Lng       float64 `json:"lng"`
			Count     int     `json:"count"`
			Intensity float64 `json:"intensity"`
		} `json:"points"`
		Precision   float64 `json:"precision"`
		Total       int     `json:"total"`
		TotalImages int     `json:"totalImages"`
	}
	decode(t, do(router, "GET", "/api/heatmap/density?precision=abc"), &resp)

	if resp.Precision != 0.01 {
		t.Errorf("expected fallback precision 0.01, got %v", resp.Precision)
	}
	if resp.Total != 2 || resp.TotalImages != 3 {
		t.Errorf("expected 2 cells over 3 images, got %d over %d", resp.Total, resp.TotalImages)
	}
	if resp.Points[0].Count != 2 || resp.Points[0].Intensity != 0.2 {
		t.Errorf("unexpected first cell %+v", resp.Points[0])
	}
}

func TestHeatmapDensity_SubnormalPrecision(t *testing.T) {
	repo := newMockRepo()
	repo.addLocated(57.7089, 11.9746, time.Now())
	router := setupTestRouter(repo, testOptions())

	w := do(router, "GET", "/api/heatmap/density?precision=1e-310")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp struct {
		Points []struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"points"`
		Precision float64 `json:"precision"`
		Total     int     `json:"total"`
	}
	decode(t, w, &resp)

	if resp.Precision != 0.01 {
		t.Errorf("expected fallback precision 0.01, got %v", resp.Precision)
	}
	if resp.Total != 1 || len(resp.Points) != 1 {
		t.Fatalf("expected 1 cell, got %d", resp.Total)
	}
	if resp.Points[0].Lat < 57.70 || resp.Points[0].Lat > 57.72 {
		t.Errorf("unexpected cell latitude %v", resp.Points[0].Lat)
	}
}

func TestHeatmapGeoJSON(t *testing.T) {
	repo := newMockRepo()
	repo.addLocated(57.7, 11.9, time.Now())
	repo.Add(context.Background(), &models.Report{Filename: "x.jpg"}, pngHeader)
	router := setupTestRouter(repo, testOptions())

	w := do(router, "GET", "/api/heatmap/geojson")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("expected content-type application/geo+json, got %s", ct)
	}

	fc, err := geojson.UnmarshalFeatureCollection(w.Body.Bytes())
	if err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(fc.Features) != 1 {
		t.Fatalf("expected 1 feature, got %d", len(fc.Features))
	}
	pt, ok := fc.Features[0].Geometry.(orb.Point)
	if !ok {
		t.Fatalf("expected point geometry, got %T", fc.Features[0].Geometry)
	}
	if pt.Lon() != 11.9 || pt.Lat() != 57.7 {
		t.Errorf("expected [lng, lat] order, got %v", pt)
	}
}

func TestCategories(t *testing.T) {
	router := setupTestRouter(newMockRepo(), testOptions())

	var list struct {
		Categories []categoryResponse `json:"categories"`
		Total      int                `json:"total"`
	}
	decode(t, do(router, "GET", "/api/categories"), &list)
	if list.Total != 2 || list.Categories[1].NameSv != "Klotter" {
		t.Errorf("unexpected categories %+v", list)
	}

	var cat categoryResponse
	decode(t, do(router, "GET", "/api/categories/1"), &cat)
	if cat.NameEn != "Pothole" {
		t.Errorf("expected Pothole, got %q", cat.NameEn)
	}

	if w := do(router, "GET", "/api/categories/9"); w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestMapData(t *testing.T) {
	repo := newMockRepo()
	repo.addLocated(57.7089, 11.9746, time.Now())
	repo.addLocated(57.70891, 11.97461, time.Now())
	repo.addLocated(57.71, 11.98, time.Now())
	router := setupTestRouter(repo, testOptions())

	var resp struct {
		Center         models.Coordinates `json:"center"`
		Zoom           int                `json:"zoom"`
		LocationStatus string             `json:"locationStatus"`
		Markers        []struct {
			Title       string `json:"title"`
			ClusterSize int    `json:"clusterSize"`
		} `json:"markers"`
	}
	decode(t, do(router, "GET", "/api/map"), &resp)

	if resp.LocationStatus != "markers" || resp.Zoom != 12 {
		t.Errorf("expected markers view, got %s zoom %d", resp.LocationStatus, resp.Zoom)
	}
	if len(resp.Markers) != 3 {
		t.Fatalf("expected 3 markers, got %d", len(resp.Markers))
	}
	if resp.Markers[0].Title != "f.jpg (1/2)" || resp.Markers[2].ClusterSize != 1 {
		t.Errorf("unexpected markers %+v", resp.Markers)
	}

	decode(t, do(router, "GET", "/api/map?lat=59.3&lng=18.0"), &resp)
	if resp.LocationStatus != "user" || resp.Center.Latitude != 59.3 {
		t.Errorf("expected user view, got %+v", resp)
	}

	if w := do(router, "GET", "/api/map?lat=59.3"); w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 with a single coordinate, got %d", w.Code)
	}
}

func TestStoreFailure(t *testing.T) {
	repo := newMockRepo()
	repo.err = errors.New("connection refused")
	router := setupTestRouter(repo, testOptions())

	for _, path := range []string{
		"/api/images",
		"/api/images/1",
		"/api/images/stats/summary",
		"/api/heatmap/coordinates",
		"/api/heatmap/bounds?north=1&south=0&east=1&west=0",
		"/api/heatmap/density",
		"/api/categories",
		"/api/map",
	} {
		w := do(router, "GET", path)
		if w.Code != http.StatusInternalServerError {
			t.Errorf("%s: expected status 500, got %d", path, w.Code)
		}
		if strings.Contains(w.Body.String(), "connection refused") {
			t.Errorf("%s: store error leaked to client", path)
		}
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimitMiddleware(1))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	if w := do(router, "GET", "/ping"); w.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", w.Code)
	}
	if w := do(router, "GET", "/ping"); w.Code != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", w.Code)
	}
}

func TestRateLimitMiddleware_Disabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimitMiddleware(0))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 50; i++ {
		if w := do(router, "GET", "/ping"); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected status 200, got %d", i, w.Code)
		}
	}
}

func TestRateLimiter_PerClient(t *testing.T) {
	rl := NewRateLimiter(1)
	if !rl.Allow("10.0.0.1") || !rl.Allow("10.0.0.2") {
		t.Error("expected each client to get its own bucket")
	}
	if rl.Allow("10.0.0.1") {
		t.Error("expected second request from the same client to be limited")
	}
}
