package model

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestOptionListUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    OptionList
		wantErr bool
	}{
		{
			name: "literal array",
			raw:  `["A","B","C"]`,
			want: OptionList{"A", "B", "C"},
		},
		{
			name: "string-encoded array",
			raw:  `"[\"A\",\"B\"]"`,
			want: OptionList{"A", "B"},
		},
		{
			name: "empty array",
			raw:  `[]`,
			want: OptionList{},
		},
		{
			name:    "string that is not an array",
			raw:     `"not json"`,
			wantErr: true,
		},
		{
			name:    "number",
			raw:     `42`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got OptionList
			err := json.Unmarshal([]byte(tt.raw), &got)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Unmarshal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQuestionDecodeBothOptionEncodings(t *testing.T) {
	raw := `{
		"id": "q1",
		"question_text": "Pick one",
		"question_type": "mcq",
		"options": "[\"A\",\"B\"]",
		"marks": 5,
		"order_num": 1
	}`
	var q Question
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		t.Fatalf("unmarshal question: %v", err)
	}
	if len(q.Options) != 2 || q.Options[0] != "A" || q.Options[1] != "B" {
		t.Errorf("options = %v, want [A B]", q.Options)
	}
}

func TestAnswerSetClone(t *testing.T) {
	orig := AnswerSet{"q1": "A", "q2": "hello"}
	cp := orig.Clone()
	cp["q1"] = "B"
	if orig["q1"] != "A" {
		t.Errorf("Clone did not copy: orig[q1] = %q", orig["q1"])
	}
}
