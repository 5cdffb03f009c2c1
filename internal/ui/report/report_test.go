package report

import (
	"encoding/json"
	"strings"
	"testing"

	"protoscope/internal/core/app"
)

func sampleRows() []app.ReportRow {
	return []app.ReportRow{
		{Type: "Cls8", Method: "method7", Declaring: "Cls8::method7", Prototype: "Cls7::method7"},
		{Type: "Cls8", Method: "create", Declaring: "Cls8::create", Code: "NO_PROTOTYPE", Message: "Method Cls8::create does not have a prototype"},
		{Type: "Cls8", Method: "method1", Declaring: "Cls7::method1", Prototype: "Cls2::method1"},
	}
}

func TestRenderTSV(t *testing.T) {
	out, err := RenderTSV(sampleRows())
	if err != nil {
		t.Fatalf("render tsv: %v", err)
	}

	body := string(out)
	if !strings.HasPrefix(body, "Type\tMethod\tDeclaring\tPrototype\tCode\n") {
		t.Fatalf("missing header in output: %s", body)
	}
	if !strings.Contains(body, "Cls8\tcreate\tCls8::create\t\tNO_PROTOTYPE\n") {
		t.Fatalf("missing no-prototype row: %s", body)
	}
	if !strings.Contains(body, "Cls8\tmethod1\tCls7::method1\tCls2::method1\t\n") {
		t.Fatalf("missing inherited row: %s", body)
	}
}

func TestRenderJSON(t *testing.T) {
	out, err := RenderJSON(sampleRows())
	if err != nil {
		t.Fatalf("render json: %v", err)
	}
	var decoded []app.ReportRow
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != 3 || decoded[1].Code != "NO_PROTOTYPE" {
		t.Fatalf("unexpected decoded rows: %+v", decoded)
	}

	empty, err := RenderJSON(nil)
	if err != nil {
		t.Fatalf("render empty json: %v", err)
	}
	if string(empty) != "[]" {
		t.Fatalf("expected empty array, got %s", empty)
	}
}

func TestRenderText(t *testing.T) {
	body := RenderText(sampleRows())
	for _, want := range []string{"Cls8", "-> Cls7::method7", "no prototype", "(declared in Cls7::method1)"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in output:\n%s", want, body)
		}
	}
	if strings.Count(body, "Cls8\n") != 1 {
		t.Fatalf("expected a single type header:\n%s", body)
	}
	if !strings.Contains(RenderText(nil), "no matching types") {
		t.Fatal("expected empty-report notice")
	}
}

func TestRenderMarkdown(t *testing.T) {
	body := RenderMarkdown(sampleRows())
	if !strings.Contains(body, "| Cls8 | create | Cls8::create | _none_ |") {
		t.Fatalf("missing no-prototype row:\n%s", body)
	}
}
