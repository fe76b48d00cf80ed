package storage

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/blnkfinance/artify/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeUploader) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = params
	f.body, _ = io.ReadAll(params.Body)
	return &s3.PutObjectOutput{}, nil
}

func pngBytes(t *testing.T) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestArchive(t *testing.T) {
	data := pngBytes(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(data)
	}))
	defer server.Close()

	uploader := &fakeUploader{}
	archiver := NewArchiver(uploader, config.StorageConfig{BucketName: "artify-images", Region: "eu-west-1"})

	url, err := archiver.Archive(context.Background(), "gen_123", server.URL+"/out.png")
	require.NoError(t, err)
	assert.Equal(t, "https://artify-images.s3.eu-west-1.amazonaws.com/generations/gen_123.png", url)
	assert.Equal(t, "generations/gen_123.png", *uploader.input.Key)
	assert.Equal(t, "image/png", *uploader.input.ContentType)
	assert.Equal(t, data, uploader.body)
}

func TestArchive_PublicBaseURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(pngBytes(t))
	}))
	defer server.Close()

	archiver := NewArchiver(&fakeUploader{}, config.StorageConfig{BucketName: "b", PublicBaseUrl: "https://img.artify.test/"})
	url, err := archiver.Archive(context.Background(), "gen_9", server.URL)
	require.NoError(t, err)
	assert.Equal(t, "https://img.artify.test/generations/gen_9.png", url)
}

func TestArchive_Failures(t *testing.T) {
	notFound := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer notFound.Close()

	text := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not an image</html>"))
	}))
	defer text.Close()

	image := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(pngBytes(t))
	}))
	defer image.Close()

	cfg := config.StorageConfig{BucketName: "b"}

	_, err := NewArchiver(&fakeUploader{}, cfg).Archive(context.Background(), "a", notFound.URL)
	assert.Error(t, err)

	_, err = NewArchiver(&fakeUploader{}, cfg).Archive(context.Background(), "b", text.URL)
	assert.ErrorContains(t, err, "unsupported image type")

	_, err = NewArchiver(&fakeUploader{err: errors.New("access denied")}, cfg).Archive(context.Background(), "c", image.URL)
	assert.ErrorContains(t, err, "access denied")
}

func TestNewS3Archiver_RequiresBucket(t *testing.T) {
	_, err := NewS3Archiver(context.Background(), config.StorageConfig{})
	assert.Error(t, err)
}
