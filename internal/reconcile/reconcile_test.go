package reconcile

import (
	"reflect"
	"testing"
)

func TestParse_CodeFencedObject(t *testing.T) {
	raw := "Sure! ```json\n{\"comment\":\"ok\"}\n```"
	res := Parse(raw)
	if res.ParseFailed {
		t.Fatal("expected successful parse")
	}
	if res.Comment != "ok" {
		t.Errorf("expected comment 'ok', got %q", res.Comment)
	}
	if len(res.Labels) != 0 || len(res.Categories) != 0 {
		t.Errorf("expected empty labels and categories, got %v / %v", res.Labels, res.Categories)
	}
}

func TestParse_FullPayloadWithProse(t *testing.T) {
	raw := `Here is my analysis:
{"comment": "Notice the tightening.", "factors": ["resentment", "anger"], "categories": ["secondary affliction"]}
Hope that helps!`
	res := Parse(raw)
	if res.ParseFailed {
		t.Fatal("expected successful parse")
	}
	if res.Comment != "Notice the tightening." {
		t.Errorf("unexpected comment %q", res.Comment)
	}
	if !reflect.DeepEqual(res.Labels, []string{"resentment", "anger"}) {
		t.Errorf("unexpected labels %v", res.Labels)
	}
	if !reflect.DeepEqual(res.Categories, []string{"secondary affliction"}) {
		t.Errorf("unexpected categories %v", res.Categories)
	}
}

func TestParse_FactorObjectsWithNames(t *testing.T) {
	raw := `{"comment": "c", "factors": [{"name": "envy", "roots": ["greed"]}, {"name": "doubt"}]}`
	res := Parse(raw)
	if !reflect.DeepEqual(res.Labels, []string{"envy", "doubt"}) {
		t.Errorf("expected factor names extracted, got %v", res.Labels)
	}
}

func TestParse_NestedObjectSpan(t *testing.T) {
	// The span scan must balance braces, not stop at the first '}'.
	raw := `{"factors": [{"name": "anger"}], "comment": "after nested"}`
	res := Parse(raw)
	if res.Comment != "after nested" {
		t.Errorf("expected full object parsed, got comment %q", res.Comment)
	}
}

func TestParse_BraceInsideString(t *testing.T) {
	raw := `{"comment": "a { literal } brace", "factors": []}`
	res := Parse(raw)
	if res.Comment != "a { literal } brace" {
		t.Errorf("expected braces inside strings ignored, got %q", res.Comment)
	}
}

func TestParse_NoObjectSpan(t *testing.T) {
	res := Parse("the model refused to answer in JSON today")
	if res.ParseFailed {
		t.Fatal("missing span is an empty result, not a parse failure")
	}
	if res.Comment != "" || len(res.Labels) != 0 || len(res.Categories) != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
}

func TestParse_MalformedJSON(t *testing.T) {
	res := Parse(`{"comment": "unterminated`)
	if !res.ParseFailed {
		t.Fatal("expected parse failure")
	}
	if res.Comment != FallbackComment {
		t.Errorf("expected fallback comment, got %q", res.Comment)
	}
	if res.Labels == nil || res.Categories == nil {
		t.Error("sentinel result must carry empty, non-nil collections")
	}
}

func TestParse_MissingFieldsDefault(t *testing.T) {
	res := Parse(`{"factors": "not an array"}`)
	if res.ParseFailed {
		t.Fatal("field-level type mismatch should degrade, not fail")
	}
	if len(res.Labels) != 0 {
		t.Errorf("expected labels defaulted to empty, got %v", res.Labels)
	}
}

func TestParse_Deterministic(t *testing.T) {
	raw := `noise {"comment": "x", "factors": ["pride"]} noise`
	a := Parse(raw)
	b := Parse(raw)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("identical input must yield identical output: %+v vs %+v", a, b)
	}
}
