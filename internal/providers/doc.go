// Package providers groups the clients for the generative and media
// backends the content generators call: Gemini for text and image bytes,
// an S3-compatible bucket for hosting images, and YouTube for video lookup.
package providers
