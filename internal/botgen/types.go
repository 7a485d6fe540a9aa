package botgen

import (
	"strings"
	"time"
)

// PostType selects the content pipeline for a post.
type PostType string

const (
	PostText       PostType = "text"
	PostPoll       PostType = "poll"
	PostImage      PostType = "image"
	PostVideo      PostType = "video"
	PostSongReview PostType = "song-review"
)

// PostTypes lists every supported post type in a stable order.
var PostTypes = []PostType{PostText, PostPoll, PostImage, PostVideo, PostSongReview}

// Valid reports whether t is one of the supported post types.
func (t PostType) Valid() bool {
	switch t {
	case PostText, PostPoll, PostImage, PostVideo, PostSongReview:
		return true
	default:
		return false
	}
}

func (t PostType) String() string { return string(t) }

// ParsePostType normalizes s and validates it.
// Empty input fails with ErrPostTypeFalsey, anything else unknown with ErrUnknownPostType.
func ParsePostType(s string) (PostType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", ErrPostTypeFalsey
	}
	t := PostType(s)
	if !t.Valid() {
		return "", UnknownPostType(s)
	}
	return t, nil
}

const (
	DefaultNumberOfPosts  = 1
	DefaultNumberOfImages = 1
	DefaultPostType       = PostText
)

// Options is a post creation request minus the bot id.
// Zero values take the defaults (see WithDefaults).
type Options struct {
	Prompt           string     `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	Schedule         *time.Time `json:"schedule,omitempty" yaml:"schedule,omitempty"`
	NumberOfPosts    int        `json:"numberOfPosts,omitempty" yaml:"number_of_posts,omitempty"`
	PostType         PostType   `json:"postType,omitempty" yaml:"post_type,omitempty"`
	NumberOfImages   int        `json:"numberOfImages,omitempty" yaml:"number_of_images,omitempty"`
	AddTextToContent bool       `json:"addTextToContent,omitempty" yaml:"add_text_to_content,omitempty"`
}

func (o Options) WithDefaults() Options {
	if o.NumberOfPosts <= 0 {
		o.NumberOfPosts = DefaultNumberOfPosts
	}
	if o.PostType == "" {
		o.PostType = DefaultPostType
	}
	if o.NumberOfImages <= 0 {
		o.NumberOfImages = DefaultNumberOfImages
	}
	return o
}

// PromptRecord is a stored bot prompt. Unique per (BotID, PromptText).
type PromptRecord struct {
	ID          string    `json:"id"`
	BotID       string    `json:"botId"`
	PromptText  string    `json:"prompt"`
	ContentType PostType  `json:"type"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ---- Generated content ----

type PollOption struct {
	Text      string `json:"text"`
	VoteCount int    `json:"voteCount"`
	IsVoted   bool   `json:"isVoted"`
}

type PollLength struct {
	Days    int `json:"days"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

// Duration returns the poll length as a time.Duration.
func (l PollLength) Duration() time.Duration {
	return time.Duration(l.Days)*24*time.Hour + time.Duration(l.Hours)*time.Hour + time.Duration(l.Minutes)*time.Minute
}

// DefaultPollLength is applied to every generated poll.
var DefaultPollLength = PollLength{Days: 3}

type Poll struct {
	Options     []PollOption `json:"options"`
	Length      PollLength   `json:"length"`
	IsVotingOff bool         `json:"isVotingOff"`
	CreatedAt   time.Time    `json:"createdAt"`
}

type Image struct {
	URL       string `json:"url"`
	SortOrder int    `json:"sortOrder"`
}

// Content is the output of one content generator. Which fields are set
// depends on the post type:
//
//	text:        Text
//	poll:        Text (the question), Poll
//	image:       Images
//	video:       VideoURL
//	song-review: VideoURL, Text (the review)
type Content struct {
	Text     string
	Poll     *Poll
	Images   []Image
	VideoURL string
}

// PostBody is what gets persisted. Built fresh for every iteration.
type PostBody struct {
	CreatedByID string     `json:"createdById"`
	Text        string     `json:"text,omitempty"`
	Poll        *Poll      `json:"poll,omitempty"`
	Imgs        []Image    `json:"imgs,omitempty"`
	VideoURL    string     `json:"videoUrl,omitempty"`
	Schedule    *time.Time `json:"schedule,omitempty"`
}

// Merge copies the non-empty content fields onto the body.
func (b *PostBody) Merge(c Content) {
	if c.Text != "" {
		b.Text = c.Text
	}
	if c.Poll != nil {
		b.Poll = c.Poll
	}
	if len(c.Images) > 0 {
		b.Imgs = c.Images
	}
	if c.VideoURL != "" {
		b.VideoURL = c.VideoURL
	}
}

// Post is a persisted post body.
type Post struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	PostBody
}
