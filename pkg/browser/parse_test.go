package browser

import (
	"reflect"
	"testing"
)

func TestParseCommand(t *testing.T) {
	cmd, err := ParseCommand("TAG POS=2 TYPE=INPUT:TEXT ATTR=ID:user CONTENT=Ann<SP>Lee")
	if err != nil {
		t.Fatalf("ParseCommand: %v", err)
	}
	if cmd.Name != "TAG" {
		t.Errorf("name = %q", cmd.Name)
	}
	want := map[string]string{"POS": "2", "TYPE": "INPUT:TEXT", "ATTR": "ID:user", "CONTENT": "Ann<SP>Lee"}
	if !reflect.DeepEqual(cmd.Params, want) {
		t.Errorf("params = %v", cmd.Params)
	}

	url, err := ParseCommand("url goto=http://example.com/?a=b")
	if err != nil {
		t.Fatalf("ParseCommand: %v", err)
	}
	if url.Name != "URL" || url.Params["GOTO"] != "http://example.com/?a=b" {
		t.Errorf("url = %+v", url)
	}
}

func TestParseCommandErrors(t *testing.T) {
	for _, line := range []string{"", "   ", "TAG ATTR"} {
		if _, err := ParseCommand(line); err == nil {
			t.Errorf("ParseCommand(%q) = nil error", line)
		}
	}
}

func TestTarget(t *testing.T) {
	tests := []struct {
		line    string
		want    Target
		wantErr bool
	}{
		{"TAG ATTR=ID:user", Target{ID: "user"}, false},
		{"TAG POS=3 TYPE=A ATTR=TXT:Edit<SP>row", Target{Text: "Edit row", Pos: 3}, false},
		{"TAG TYPE=A", Target{}, true},
		{"TAG ATTR=NAME:q", Target{}, true},
		{"TAG ATTR=TXT:Remove&&POS:", Target{}, true},
		{"TAG POS=0 ATTR=ID:x", Target{}, true},
		{"TAG ATTR=ID:", Target{}, true},
	}
	for _, tt := range tests {
		cmd, err := ParseCommand(tt.line)
		if err != nil {
			t.Fatalf("ParseCommand(%q): %v", tt.line, err)
		}
		got, err := cmd.Target()
		if (err != nil) != tt.wantErr {
			t.Errorf("%q: err = %v, wantErr %v", tt.line, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("%q: target = %+v, want %+v", tt.line, got, tt.want)
		}
	}
}

func TestContent(t *testing.T) {
	tests := []struct {
		line string
		want Content
	}{
		{"TAG ATTR=ID:go", Content{Kind: ContentNone}},
		{"TAG ATTR=ID:q CONTENT=two<SP>words", Content{Kind: ContentFill, Values: []string{"two words"}}},
		{"TAG ATTR=ID:q CONTENT=", Content{Kind: ContentFill, Values: []string{""}}},
		{"TAG ATTR=ID:c CONTENT=#2", Content{Kind: ContentIndex, Values: []string{"2"}}},
		{"TAG ATTR=ID:c CONTENT=#1:#3", Content{Kind: ContentIndex, Values: []string{"1", "3"}}},
		{"TAG ATTR=ID:c CONTENT=%cl:%ar", Content{Kind: ContentCode, Values: []string{"cl", "ar"}}},
		{"TAG ATTR=ID:c CONTENT=$New<SP>York", Content{Kind: ContentText, Values: []string{"New York"}}},
	}
	for _, tt := range tests {
		cmd, err := ParseCommand(tt.line)
		if err != nil {
			t.Fatalf("ParseCommand(%q): %v", tt.line, err)
		}
		if got := cmd.Content(); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%q: content = %+v, want %+v", tt.line, got, tt.want)
		}
	}
}

func TestToElementRef(t *testing.T) {
	ref := toElementRef(map[string]interface{}{
		"id":            "country",
		"value":         "cl",
		"text":          "<option>…</option>",
		"selectedIndex": float64(1),
		"options": []interface{}{
			map[string]interface{}{"value": "", "text": "Choose"},
			map[string]interface{}{"value": "cl", "text": "Chile"},
		},
	})
	if ref.ID != "country" || ref.Value != "cl" || ref.SelectedIndex != 1 || len(ref.Options) != 2 {
		t.Fatalf("ref = %+v", ref)
	}
	if opt, ok := ref.SelectedOption(); !ok || opt.Text != "Chile" {
		t.Errorf("selected = %+v, %v", opt, ok)
	}

	bare := toElementRef(map[string]interface{}{"id": "x"})
	if bare.SelectedIndex != -1 || bare.Options != nil {
		t.Errorf("bare = %+v", bare)
	}
}
