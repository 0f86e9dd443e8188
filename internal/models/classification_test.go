package models

import "testing"

func TestClassifyOptions_Validate(t *testing.T) {
	tests := []struct {
		name     string
		opts     ClassifyOptions
		maxTopK  int
		wantErr  bool
		wantTopK int
	}{
		{"defaults", ClassifyOptions{MaxPhrases: DefaultMaxPhrases, TopK: DefaultTopK}, 50, false, 5},
		{"zero max phrases", ClassifyOptions{MaxPhrases: 0, TopK: 5}, 50, true, 0},
		{"negative top k", ClassifyOptions{MaxPhrases: 1, TopK: -1}, 50, true, 0},
		{"caps top k", ClassifyOptions{MaxPhrases: 1, TopK: 500}, 50, false, 50},
		{"no cap", ClassifyOptions{MaxPhrases: 1, TopK: 500}, 0, false, 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate(tt.maxTopK)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && tt.opts.TopK != tt.wantTopK {
				t.Errorf("TopK = %d, want %d", tt.opts.TopK, tt.wantTopK)
			}
		})
	}
}

func TestDiseaseInput_Validate(t *testing.T) {
	in := &DiseaseInput{Name: "  Pneumonia  ", Description: "Consolidation"}
	if err := in.Validate(); err != nil {
		t.Fatal(err)
	}
	if in.Name != "Pneumonia" {
		t.Errorf("Name = %q, want trimmed", in.Name)
	}
	if err := (&DiseaseInput{Name: "   "}).Validate(); err == nil {
		t.Error("expected error for blank name")
	}
}
