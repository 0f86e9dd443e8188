package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/medmatch/internal/models"
)

func sampleResponse() *models.ClassificationResponse {
	return &models.ClassificationResponse{
		RequestID: "req-1",
		QueryTime: 12,
		Results: []models.ClassificationResult{
			{DiseaseName: "Pneumonia", Score: 0.95, BestPhrase: "Bilateral infiltrates"},
			{DiseaseName: "Fracture", Score: 0.1, BestPhrase: "Cortical discontinuity"},
		},
	}
}

func TestWriteClassification_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteClassification(&buf, sampleResponse(), OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded models.ClassificationResponse
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(decoded.Results) != 2 || decoded.Results[0].DiseaseName != "Pneumonia" {
		t.Errorf("decoded = %+v", decoded)
	}
	if strings.Contains(buf.String(), "Almost certain") {
		t.Error("JSON output must not carry confidence labels")
	}
}

func TestWriteClassification_text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteClassification(&buf, sampleResponse(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"#1 Pneumonia", "Almost certain", "Best phrase: Bilateral infiltrates", "#2 Fracture", "Unlikely"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteClassification_empty(t *testing.T) {
	var buf bytes.Buffer
	_ = WriteClassification(&buf, &models.ClassificationResponse{Results: []models.ClassificationResult{}}, OutputText)
	if !strings.Contains(buf.String(), "No diseases") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestWriteDiseases(t *testing.T) {
	diseases := []models.Disease{
		{ID: 1, Name: "Pneumonia", Description: "Bilateral infiltrates\nConsolidation"},
	}
	var buf bytes.Buffer
	if err := WriteDiseases(&buf, diseases, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "[1] Pneumonia: Bilateral infiltrates") {
		t.Errorf("text = %q", buf.String())
	}

	buf.Reset()
	if err := WriteDiseases(&buf, nil, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"diseases": []`) {
		t.Errorf("json = %q", buf.String())
	}
}

func TestWriteStatus_text(t *testing.T) {
	var buf bytes.Buffer
	status := map[string]interface{}{
		"diseases":    3,
		"initialized": true,
		"config":      map[string]interface{}{"seed": 42, "sampling": "process"},
	}
	if err := WriteStatus(&buf, status, OutputText); err != nil {
		t.Fatal(err)
	}
	want := "config:\n  sampling: process\n  seed: 42\ndiseases: 3\ninitialized: true\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestParseOutputFormat(t *testing.T) {
	if f, err := ParseOutputFormat("json"); err != nil || f != OutputJSON {
		t.Errorf("json = %v, %v", f, err)
	}
	if _, err := ParseOutputFormat("compact"); err == nil {
		t.Error("expected error for compact")
	}
}
