package oss

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"promptcraft/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestS3(t *testing.T, handler http.HandlerFunc) *S3Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewS3Client(S3Config{
		Endpoint:  srv.URL,
		Region:    "us-east-1",
		AccessKey: "test-access-key",
		SecretKey: "test-secret-key",
		PathStyle: true,
	})
	require.NoError(t, err)
	return client
}

func TestS3GetObject(t *testing.T) {
	var gotPath string
	client := newTestS3(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	})

	data, contentType, err := client.GetObject(context.Background(), "photos", "2026/cat.png", 1024)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
	assert.Equal(t, "image/png", contentType)
	assert.Equal(t, "/photos/2026/cat.png", gotPath)
}

func TestS3GetObjectTooLarge(t *testing.T) {
	client := newTestS3(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(make([]byte, 64))
	})

	_, _, err := client.GetObject(context.Background(), "photos", "big.jpg", 16)
	assert.ErrorContains(t, err, "exceeds 16 bytes")
}

func TestS3GetObjectNotFound(t *testing.T) {
	client := newTestS3(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`))
	})

	_, _, err := client.GetObject(context.Background(), "photos", "missing.png", 0)
	assert.ErrorContains(t, err, "failed to get object")
}

func TestNewOSSClientFromConfig(t *testing.T) {
	client, err := NewOSSClientFromConfig(&common.Config{})
	require.NoError(t, err)
	assert.Nil(t, client)

	client, err = NewOSSClientFromConfig(&common.Config{
		OSSEndpoint:  "minio.local:9000",
		OSSRegion:    "us-east-1",
		OSSAccessKey: "ak",
		OSSSecretKey: "sk",
	})
	require.NoError(t, err)
	assert.NotNil(t, client)
}
