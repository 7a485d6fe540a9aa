package botgen

const (
	textSuffix = " Keep the response under 247 characters. Respond with the post text only."

	pollPrefix = "Write a poll for a social media post about the following topic: "
	pollSuffix = " Respond with a JSON object that has a \"question\" property holding the poll question" +
		" and an \"options\" property holding an array of 2 to 5 short answer strings."

	imagePrefix = "The following prompt will be used to generate images for a social media post." +
		" Write the text that should accompany those images: "

	videoPrefix = "The following prompt will be used to find a video for a social media post." +
		" Write the text that should accompany the video: "

	songReviewSuffix = " Respond with a JSON object that has a \"songName\" property holding the song title" +
		" and artist, and a \"review\" property holding a short review of the song."
)

// ApplyTemplate wraps a raw prompt with the fixed instructions for type t.
// Unknown types return the prompt unchanged.
func ApplyTemplate(prompt string, t PostType) string {
	switch t {
	case PostText:
		return prompt + textSuffix
	case PostPoll:
		return pollPrefix + prompt + pollSuffix
	case PostImage:
		return imagePrefix + prompt
	case PostVideo:
		return videoPrefix + prompt
	case PostSongReview:
		return prompt + songReviewSuffix
	default:
		return prompt
	}
}
