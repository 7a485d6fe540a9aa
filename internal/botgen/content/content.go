// Package content implements one generator per post type. Each generator
// calls its collaborators, validates what comes back, and shapes it into a
// botgen.Content value.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/EshelEyni/Chirper-sub001/internal/botgen"
)

// Mode selects how a completion should be formatted.
type Mode int

const (
	ModePlain Mode = iota
	// ModeStructured asks the model for a JSON object.
	ModeStructured
)

func (m Mode) String() string {
	if m == ModeStructured {
		return "structured"
	}
	return "plain"
}

// TextCompleter is a large language model completion call.
type TextCompleter interface {
	Complete(ctx context.Context, prompt string, mode Mode) (string, error)
}

// ImageGenerator produces count hosted image URLs for a prompt.
// A nil slice means "no result"; a non-nil empty slice means "nothing generated".
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string, count int) ([]string, error)
}

// VideoFinder returns the best matching video URL for a query.
type VideoFinder interface {
	Search(ctx context.Context, query string) (string, error)
}

// Generators bundles the per-type pipelines and their collaborators.
type Generators struct {
	Text   TextCompleter
	Images ImageGenerator
	Videos VideoFinder

	// Now stamps poll creation times. Defaults to time.Now.
	Now func() time.Time
}

var errMissingCollaborator = errors.New("content: collaborator not configured")

func (g *Generators) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

// Generate dispatches to the generator for t. count is only used for images.
func (g *Generators) Generate(ctx context.Context, t botgen.PostType, prompt string, count int) (botgen.Content, error) {
	switch t {
	case botgen.PostText:
		return g.GenerateText(ctx, prompt)
	case botgen.PostPoll:
		return g.GeneratePoll(ctx, prompt)
	case botgen.PostImage:
		return g.GenerateImages(ctx, prompt, count)
	case botgen.PostVideo:
		return g.GenerateVideo(ctx, prompt)
	case botgen.PostSongReview:
		return g.GenerateSongReview(ctx, prompt)
	default:
		return botgen.Content{}, botgen.UnknownPostType(string(t))
	}
}

func (g *Generators) GenerateText(ctx context.Context, prompt string) (botgen.Content, error) {
	if g.Text == nil {
		return botgen.Content{}, errMissingCollaborator
	}
	text, err := g.Text.Complete(ctx, prompt, ModePlain)
	if err != nil {
		return botgen.Content{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return botgen.Content{}, botgen.ErrTextUndefined
	}
	return botgen.Content{Text: text}, nil
}

type pollResponse struct {
	Question string `json:"question"`
	Options  []any  `json:"options"`
}

func (g *Generators) GeneratePoll(ctx context.Context, prompt string) (botgen.Content, error) {
	if g.Text == nil {
		return botgen.Content{}, errMissingCollaborator
	}
	raw, err := g.Text.Complete(ctx, prompt, ModeStructured)
	if err != nil {
		return botgen.Content{}, err
	}
	var resp pollResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return botgen.Content{}, err
	}
	if resp.Question == "" || resp.Options == nil {
		return botgen.Content{}, botgen.ErrPollFieldsUndefined
	}

	options := make([]botgen.PollOption, 0, len(resp.Options))
	for _, o := range resp.Options {
		if falsy(o) {
			return botgen.Content{}, botgen.ErrOptionUndefined
		}
		s, ok := o.(string)
		if !ok {
			return botgen.Content{}, botgen.ErrOptionNotString
		}
		options = append(options, botgen.PollOption{Text: s})
	}
	if len(options) < 2 {
		return botgen.Content{}, botgen.ErrTooFewOptions
	}

	return botgen.Content{
		Text: resp.Question,
		Poll: &botgen.Poll{
			Options:     options,
			Length:      botgen.DefaultPollLength,
			IsVotingOff: false,
			CreatedAt:   g.now(),
		},
	}, nil
}

// falsy mirrors what a loosely typed producer would consider "no value".
func falsy(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	case float64:
		return x == 0
	default:
		return false
	}
}

func (g *Generators) GenerateImages(ctx context.Context, prompt string, count int) (botgen.Content, error) {
	if g.Images == nil {
		return botgen.Content{}, errMissingCollaborator
	}
	urls, err := g.Images.Generate(ctx, prompt, count)
	if err != nil {
		return botgen.Content{}, err
	}
	if urls == nil {
		return botgen.Content{}, botgen.ErrImagesUndefined
	}
	if len(urls) == 0 {
		return botgen.Content{}, botgen.ErrImagesEmpty
	}
	imgs := make([]botgen.Image, len(urls))
	for i, u := range urls {
		imgs[i] = botgen.Image{URL: u, SortOrder: i}
	}
	return botgen.Content{Images: imgs}, nil
}

func (g *Generators) GenerateVideo(ctx context.Context, prompt string) (botgen.Content, error) {
	if g.Videos == nil {
		return botgen.Content{}, errMissingCollaborator
	}
	u, err := g.Videos.Search(ctx, prompt)
	if err != nil {
		return botgen.Content{}, err
	}
	if strings.TrimSpace(u) == "" {
		return botgen.Content{}, botgen.ErrVideoURLUndefined
	}
	return botgen.Content{VideoURL: u}, nil
}

type songReviewResponse struct {
	SongName string `json:"songName"`
	Review   string `json:"review"`
}

func (g *Generators) GenerateSongReview(ctx context.Context, prompt string) (botgen.Content, error) {
	if g.Text == nil || g.Videos == nil {
		return botgen.Content{}, errMissingCollaborator
	}
	raw, err := g.Text.Complete(ctx, prompt, ModeStructured)
	if err != nil {
		return botgen.Content{}, err
	}
	var resp songReviewResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return botgen.Content{}, err
	}
	if resp.SongName == "" {
		return botgen.Content{}, botgen.ErrSongNameUndefined
	}
	if resp.Review == "" {
		return botgen.Content{}, botgen.ErrReviewUndefined
	}

	u, err := g.Videos.Search(ctx, resp.SongName)
	if err != nil {
		return botgen.Content{}, err
	}
	if strings.TrimSpace(u) == "" {
		return botgen.Content{}, botgen.ErrVideoURLUndefined
	}
	return botgen.Content{VideoURL: u, Text: resp.Review}, nil
}
