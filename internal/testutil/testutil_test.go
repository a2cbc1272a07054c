package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAssertHelpersPass(t *testing.T) {
	t.Parallel()

	AssertStatusCode(t, http.StatusOK, http.StatusOK)
	AssertNoError(t, nil)
	AssertError(t, io.EOF)
}

func TestNewJSONRequest(t *testing.T) {
	t.Parallel()

	req := NewJSONRequest(http.MethodPost, "/api/process_counts", `{"car_counts":[1,2,3,4]}`)
	if got := req.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
	var body map[string][]int
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body["car_counts"]) != 4 {
		t.Errorf("car_counts = %v", body["car_counts"])
	}
}

func TestNewMultipartRequest(t *testing.T) {
	t.Parallel()

	req := NewMultipartRequest(t, "/upload",
		Part{Field: "imageFile", Filename: "frame.jpg", Content: []byte("jpeg")},
		Part{Field: "note", Value: "hello"},
	)
	if err := req.ParseMultipartForm(1 << 20); err != nil {
		t.Fatalf("ParseMultipartForm: %v", err)
	}
	f, h, err := req.FormFile("imageFile")
	if err != nil {
		t.Fatalf("FormFile: %v", err)
	}
	defer f.Close()
	if h.Filename != "frame.jpg" {
		t.Errorf("filename = %q", h.Filename)
	}
	data, _ := io.ReadAll(f)
	if string(data) != "jpeg" {
		t.Errorf("content = %q", data)
	}
	if got := req.FormValue("note"); got != "hello" {
		t.Errorf("note = %q", got)
	}
}

func TestNewMultipartRequestEmptyFilename(t *testing.T) {
	t.Parallel()

	req := NewMultipartRequest(t, "/upload", Part{Field: "imageFile", Filename: "", Content: []byte("x")})
	if err := req.ParseMultipartForm(1 << 20); err != nil {
		t.Fatalf("ParseMultipartForm: %v", err)
	}
	if _, _, err := req.FormFile("imageFile"); err != http.ErrMissingFile {
		t.Errorf("FormFile err = %v, want ErrMissingFile", err)
	}
	if _, ok := req.MultipartForm.Value["imageFile"]; !ok {
		t.Error("empty-filename part should land in the value map")
	}
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	rec.WriteString(`{"status":"ok"}`)
	var got map[string]string
	DecodeJSON(t, rec, &got)
	if got["status"] != "ok" {
		t.Errorf("status = %q", got["status"])
	}
}
