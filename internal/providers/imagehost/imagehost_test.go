package imagehost

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/EshelEyni/Chirper-sub001/internal/providers/gemini"
	"github.com/EshelEyni/Chirper-sub001/pkg/logx"
)

type fakeS3 struct {
	puts   []*s3.PutObjectInput
	bodies []string
	failAt int // 1-based; 0 never fails
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, in)
	if f.failAt == len(f.puts) {
		return nil, errors.New("access denied")
	}
	b, _ := io.ReadAll(in.Body)
	f.bodies = append(f.bodies, string(b))
	return &s3.PutObjectOutput{}, nil
}

func TestURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		cfg  Config
		want string
	}{
		{"virtual hosted", Config{Bucket: "imgs", Region: "eu-west-1"}, "https://imgs.s3.eu-west-1.amazonaws.com/a/b.png"},
		{"default region", Config{Bucket: "imgs"}, "https://imgs.s3.us-east-1.amazonaws.com/a/b.png"},
		{"custom endpoint", Config{Bucket: "imgs", Endpoint: "http://minio:9000/"}, "http://minio:9000/imgs/a/b.png"},
		{"path style", Config{Bucket: "imgs", Region: "us-west-2", UsePathStyle: true}, "https://s3.us-west-2.amazonaws.com/imgs/a/b.png"},
		{"public base", Config{Bucket: "imgs", Endpoint: "http://minio:9000", PublicBaseURL: "https://cdn.example.com/"}, "https://cdn.example.com/a/b.png"},
	}
	for _, tc := range cases {
		h := NewWithAPI(&fakeS3{}, tc.cfg, logx.Nop())
		if got := h.URL("a/b.png"); got != tc.want {
			t.Fatalf("%s: got %q want %q", tc.name, got, tc.want)
		}
	}
}

func TestUploadAppliesPrefix(t *testing.T) {
	t.Parallel()

	api := &fakeS3{}
	h := NewWithAPI(api, Config{Bucket: "imgs", Prefix: "chirper/", PublicBaseURL: "https://cdn.example.com"}, logx.Nop())
	url, err := h.Upload(context.Background(), "/x.png", []byte("PNG"), "image/png")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if url != "https://cdn.example.com/chirper/x.png" {
		t.Fatalf("url=%q", url)
	}
	in := api.puts[0]
	if aws.ToString(in.Bucket) != "imgs" || aws.ToString(in.Key) != "chirper/x.png" || aws.ToString(in.ContentType) != "image/png" {
		t.Fatalf("input=%+v", in)
	}
	if aws.ToInt64(in.ContentLength) != 3 || api.bodies[0] != "PNG" {
		t.Fatalf("body=%q len=%d", api.bodies[0], aws.ToInt64(in.ContentLength))
	}
}

type sourceFunc func(ctx context.Context, prompt string, count int) ([]gemini.Image, error)

func (f sourceFunc) GenerateImages(ctx context.Context, prompt string, count int) ([]gemini.Image, error) {
	return f(ctx, prompt, count)
}

func TestGenerator(t *testing.T) {
	t.Parallel()

	three := sourceFunc(func(_ context.Context, _ string, count int) ([]gemini.Image, error) {
		out := make([]gemini.Image, count)
		for i := range out {
			out[i] = gemini.Image{Data: []byte(strconv.Itoa(i)), MIMEType: "image/jpeg"}
		}
		return out, nil
	})

	api := &fakeS3{}
	g := NewGenerator(three, NewWithAPI(api, Config{Bucket: "imgs"}, logx.Nop()))
	n := 0
	g.newKey = func() string { n++; return "k" + strconv.Itoa(n) }

	urls, err := g.Generate(context.Background(), "cats", 3)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(urls) != 3 || urls[0] != "https://imgs.s3.us-east-1.amazonaws.com/bots/k1.jpg" {
		t.Fatalf("urls=%v", urls)
	}
	for i, b := range api.bodies {
		if b != strconv.Itoa(i) {
			t.Fatalf("upload %d body=%q", i, b)
		}
	}

	failing := &fakeS3{failAt: 2}
	g = NewGenerator(three, NewWithAPI(failing, Config{Bucket: "imgs"}, logx.Nop()))
	if _, err := g.Generate(context.Background(), "cats", 3); err == nil || !strings.Contains(err.Error(), "access denied") {
		t.Fatalf("err=%v", err)
	}
}

func TestGeneratorKeepsNilAndEmpty(t *testing.T) {
	t.Parallel()

	api := &fakeS3{}
	up := NewWithAPI(api, Config{Bucket: "imgs"}, logx.Nop())

	nilSrc := sourceFunc(func(context.Context, string, int) ([]gemini.Image, error) { return nil, nil })
	urls, err := NewGenerator(nilSrc, up).Generate(context.Background(), "p", 1)
	if err != nil || urls != nil {
		t.Fatalf("nil source: %v %v", urls, err)
	}

	emptySrc := sourceFunc(func(context.Context, string, int) ([]gemini.Image, error) { return []gemini.Image{}, nil })
	urls, err = NewGenerator(emptySrc, up).Generate(context.Background(), "p", 1)
	if err != nil || urls == nil || len(urls) != 0 {
		t.Fatalf("empty source: %v %v", urls, err)
	}

	boom := errors.New("imagen unavailable")
	errSrc := sourceFunc(func(context.Context, string, int) ([]gemini.Image, error) { return nil, boom })
	if _, err := NewGenerator(errSrc, up).Generate(context.Background(), "p", 1); !errors.Is(err, boom) {
		t.Fatalf("err=%v", err)
	}
	if len(api.puts) != 0 {
		t.Fatalf("unexpected uploads: %d", len(api.puts))
	}
}
