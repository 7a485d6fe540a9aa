package botgen

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind classifies pipeline failures.
type Kind int

const (
	// KindExternal covers collaborator and network failures passed through unchanged.
	KindExternal Kind = iota
	KindValidation
	KindUnknownPostType
	KindMalformedContent
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnknownPostType:
		return "unknown_post_type"
	case KindMalformedContent:
		return "malformed_content"
	default:
		return "external"
	}
}

// Error is a classified pipeline error. Sentinels are compared with errors.Is.
type Error struct {
	Kind Kind
	Code string
	msg  string
}

func (e *Error) Error() string { return e.msg }

// Is matches on Code so that UnknownPostType("x") matches ErrUnknownPostType.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, msg: msg}
}

var (
	ErrBotIDFalsey    = newError(KindValidation, "BotIdFalsey", "bot id is empty")
	ErrPostTypeFalsey = newError(KindValidation, "PostTypeFalsey", "post type is empty")
	ErrPromptFalsey   = newError(KindValidation, "PromptFalsey", "prompt is empty")
	ErrPromptsFalsey  = newError(KindValidation, "PromptsFalsey", "prompt listing is missing")

	ErrUnknownPostType = newError(KindUnknownPostType, "UnknownPostType", "unknown post type")

	ErrTextUndefined       = newError(KindMalformedContent, "TextUndefined", "generated text is empty")
	ErrPollFieldsUndefined = newError(KindMalformedContent, "PollFieldsUndefined", "poll question or options are missing")
	ErrOptionUndefined     = newError(KindMalformedContent, "OptionUndefined", "poll option is empty")
	ErrOptionNotString     = newError(KindMalformedContent, "OptionNotString", "poll option is not a string")
	ErrTooFewOptions       = newError(KindMalformedContent, "TooFewOptions", "poll needs at least 2 options")
	ErrImagesUndefined     = newError(KindMalformedContent, "ImagesUndefined", "generated images are missing")
	ErrImagesEmpty         = newError(KindMalformedContent, "ImagesEmpty", "generated images list is empty")
	ErrVideoURLUndefined   = newError(KindMalformedContent, "VideoUrlUndefined", "video url is empty")
	ErrSongNameUndefined   = newError(KindMalformedContent, "SongNameUndefined", "song name is missing")
	ErrReviewUndefined     = newError(KindMalformedContent, "ReviewUndefined", "song review is missing")
)

// UnknownPostType returns an error matching ErrUnknownPostType that names t.
func UnknownPostType(t string) error {
	return newError(KindUnknownPostType, ErrUnknownPostType.Code, fmt.Sprintf("unknown post type %q", t))
}

// KindOf classifies err. JSON decode failures count as malformed content.
func KindOf(err error) Kind {
	if err == nil {
		return KindExternal
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return KindMalformedContent
	}
	return KindExternal
}

// Code returns the taxonomy code of err, or "" when err is unclassified.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
