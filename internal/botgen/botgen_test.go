package botgen

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestApplyTemplate(t *testing.T) {
	t.Parallel()

	const p = "cats in space"
	cases := []struct {
		typ        PostType
		wantPrefix string
		wantSuffix string
		contains   []string
	}{
		{typ: PostText, wantPrefix: p, contains: []string{"247"}},
		{typ: PostPoll, contains: []string{p, `"question"`, `"options"`}},
		{typ: PostImage, wantSuffix: p, contains: []string{"images"}},
		{typ: PostVideo, wantSuffix: p, contains: []string{"video"}},
		{typ: PostSongReview, wantPrefix: p, contains: []string{`"songName"`, `"review"`}},
	}
	for _, tc := range cases {
		got := ApplyTemplate(p, tc.typ)
		if got == p {
			t.Fatalf("%s: template not applied", tc.typ)
		}
		if tc.wantPrefix != "" && !strings.HasPrefix(got, tc.wantPrefix) {
			t.Fatalf("%s: got %q, want prefix %q", tc.typ, got, tc.wantPrefix)
		}
		if tc.wantSuffix != "" && !strings.HasSuffix(got, tc.wantSuffix) {
			t.Fatalf("%s: got %q, want suffix %q", tc.typ, got, tc.wantSuffix)
		}
		for _, s := range tc.contains {
			if !strings.Contains(got, s) {
				t.Fatalf("%s: %q missing %q", tc.typ, got, s)
			}
		}
	}

	if got := ApplyTemplate(p, PostType("bogus")); got != p {
		t.Fatalf("unknown type should pass through, got %q", got)
	}
}

func TestParsePostType(t *testing.T) {
	t.Parallel()

	for _, typ := range PostTypes {
		got, err := ParsePostType(" " + strings.ToUpper(string(typ)) + " ")
		if err != nil || got != typ {
			t.Fatalf("ParsePostType(%q)=%q,%v", typ, got, err)
		}
	}
	if _, err := ParsePostType(""); !errors.Is(err, ErrPostTypeFalsey) {
		t.Fatalf("empty: err=%v", err)
	}
	_, err := ParsePostType("bogus")
	if !errors.Is(err, ErrUnknownPostType) {
		t.Fatalf("bogus: err=%v", err)
	}
	if !strings.Contains(err.Error(), "bogus") {
		t.Fatalf("error should name the type: %v", err)
	}
}

func TestOptionsWithDefaults(t *testing.T) {
	t.Parallel()

	o := Options{}.WithDefaults()
	if o.NumberOfPosts != 1 || o.NumberOfImages != 1 || o.PostType != PostText {
		t.Fatalf("defaults=%+v", o)
	}
	o = Options{NumberOfPosts: 4, NumberOfImages: 2, PostType: PostImage}.WithDefaults()
	if o.NumberOfPosts != 4 || o.NumberOfImages != 2 || o.PostType != PostImage {
		t.Fatalf("explicit values overwritten: %+v", o)
	}
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	var v map[string]any
	syntaxErr := json.Unmarshal([]byte("{not json"), &v)

	cases := []struct {
		err  error
		want Kind
	}{
		{ErrBotIDFalsey, KindValidation},
		{fmt.Errorf("wrapped: %w", ErrPromptFalsey), KindValidation},
		{UnknownPostType("x"), KindUnknownPostType},
		{ErrTooFewOptions, KindMalformedContent},
		{syntaxErr, KindMalformedContent},
		{errors.New("connection reset"), KindExternal},
	}
	for i, tc := range cases {
		if got := KindOf(tc.err); got != tc.want {
			t.Fatalf("case %d: KindOf(%v)=%v want %v", i, tc.err, got, tc.want)
		}
	}
	if Code(ErrOptionNotString) != "OptionNotString" {
		t.Fatalf("code=%q", Code(ErrOptionNotString))
	}
	if Code(errors.New("x")) != "" {
		t.Fatalf("unclassified error should have empty code")
	}
	if errors.Is(ErrOptionUndefined, ErrOptionNotString) {
		t.Fatalf("distinct sentinels must not match")
	}
}

func TestPostBodyMerge(t *testing.T) {
	t.Parallel()

	var b PostBody
	b.Merge(Content{VideoURL: "http://v"})
	b.Merge(Content{Text: "caption"})
	if b.VideoURL != "http://v" || b.Text != "caption" {
		t.Fatalf("merge=%+v", b)
	}
	if b.Poll != nil || b.Imgs != nil {
		t.Fatalf("unexpected fields: %+v", b)
	}
}

func TestPollLengthDuration(t *testing.T) {
	t.Parallel()

	if got := DefaultPollLength.Duration(); got != 72*time.Hour {
		t.Fatalf("default poll length=%v", got)
	}
}
