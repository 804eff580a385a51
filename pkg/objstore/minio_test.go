package objstore

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goneUploadID = "gone-upload"

type completedXMLPart struct {
	PartNumber int    `xml:"PartNumber"`
	ETag       string `xml:"ETag"`
}

// fakeMinio answers the multipart subset of the S3 REST API with canned
// responses and records the requests it receives.
type fakeMinio struct {
	mu        sync.Mutex
	requests  []string
	completed []completedXMLPart
}

func (f *fakeMinio) record(r *http.Request, op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, op+" "+r.URL.Path)
}

func (f *fakeMinio) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func writeS3Error(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>%s</Code><Message>%s</Message></Error>`, code, code)
}

func (f *fakeMinio) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	switch {
	case r.Method == http.MethodGet && q.Has("uploads"):
		f.record(r, "ListMultipartUploads")
		w.Header().Set("Content-Type", "application/xml")
		if q.Get("key-marker") == "" {
			fmt.Fprint(w, `<ListMultipartUploadsResult><Bucket>b</Bucket>`+
				`<NextKeyMarker>wal/a</NextKeyMarker><NextUploadIdMarker>u-1</NextUploadIdMarker>`+
				`<MaxUploads>1000</MaxUploads><IsTruncated>true</IsTruncated>`+
				`<Upload><Key>wal/a</Key><UploadId>u-1</UploadId><Initiated>2025-01-02T03:04:05.000Z</Initiated></Upload>`+
				`</ListMultipartUploadsResult>`)
			return
		}
		fmt.Fprint(w, `<ListMultipartUploadsResult><Bucket>b</Bucket>`+
			`<MaxUploads>1000</MaxUploads><IsTruncated>false</IsTruncated>`+
			`<Upload><Key>wal/b</Key><UploadId>u-2</UploadId><Initiated>2025-01-02T03:04:06.000Z</Initiated></Upload>`+
			`</ListMultipartUploadsResult>`)

	case r.Method == http.MethodPut && q.Has("partNumber"):
		_, _ = io.Copy(io.Discard, r.Body)
		f.record(r, "UploadPart")
		if q.Get("uploadId") == goneUploadID {
			writeS3Error(w, http.StatusNotFound, "NoSuchUpload")
			return
		}
		w.Header().Set("ETag", `"etag-`+q.Get("partNumber")+`"`)
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodPut:
		_, _ = io.Copy(io.Discard, r.Body)
		f.record(r, "PutObject")
		w.Header().Set("ETag", `"object-etag"`)
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodGet && q.Has("uploadId"):
		f.record(r, "ListParts")
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, `<ListPartsResult><Bucket>b</Bucket><Key>wal/a</Key><UploadId>u-1</UploadId>`+
			`<MaxParts>1000</MaxParts><IsTruncated>false</IsTruncated>`+
			`<Part><PartNumber>3</PartNumber><ETag>"etag-3"</ETag><Size>5</Size></Part>`+
			`<Part><PartNumber>1</PartNumber><ETag>"etag-1"</ETag><Size>5</Size></Part>`+
			`</ListPartsResult>`)

	case r.Method == http.MethodPost && q.Has("uploadId"):
		f.record(r, "CompleteMultipartUpload")
		var body struct {
			Parts []completedXMLPart `xml:"Part"`
		}
		if err := xml.NewDecoder(r.Body).Decode(&body); err != nil {
			writeS3Error(w, http.StatusBadRequest, "MalformedXML")
			return
		}
		f.mu.Lock()
		f.completed = body.Parts
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, `<CompleteMultipartUploadResult><Bucket>b</Bucket><Key>wal/a</Key><ETag>"final"</ETag></CompleteMultipartUploadResult>`)

	case r.Method == http.MethodDelete && q.Has("uploadId"):
		f.record(r, "AbortMultipartUpload")
		if q.Get("uploadId") == goneUploadID {
			writeS3Error(w, http.StatusNotFound, "NoSuchUpload")
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeS3Error(w, http.StatusBadRequest, "NotImplemented")
	}
}

func newMinioTest(t *testing.T, completeOnLastPart bool) (Client, *fakeMinio) {
	t.Helper()
	fake := &fakeMinio{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := Open(context.Background(), Config{
		Provider:           ProviderMinio,
		Endpoint:           srv.URL,
		Region:             "us-east-1",
		AccessKeyID:        "access",
		SecretAccessKey:    "secret",
		PathStyle:          true,
		CompleteOnLastPart: completeOnLastPart,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, fake
}

// ============================================================================
// Minio adapter Tests
// ============================================================================

func TestMinio_ListMultipartUploadsFollowsMarkers(t *testing.T) {
	t.Parallel()

	c, fake := newMinioTest(t, true)

	uploads, err := c.ListMultipartUploads(context.Background(), "b")

	require.NoError(t, err)
	require.Len(t, uploads, 2)
	assert.Equal(t, "wal/a", uploads[0].Key)
	assert.Equal(t, "u-1", uploads[0].UploadID)
	assert.False(t, uploads[0].Initiated.IsZero())
	assert.Equal(t, "wal/b", uploads[1].Key)
	assert.Equal(t, "u-2", uploads[1].UploadID)
	ops := fake.ops()
	require.Len(t, ops, 2)
	for _, op := range ops {
		assert.True(t, strings.HasPrefix(op, "ListMultipartUploads /b"), op)
	}
}

func TestMinio_PutObject(t *testing.T) {
	t.Parallel()

	c, fake := newMinioTest(t, true)

	err := c.PutObject(context.Background(), "b", "wal/a", writeTemp(t, "hello"))

	require.NoError(t, err)
	assert.Equal(t, []string{"PutObject /b/wal/a"}, fake.ops())
}

func TestMinio_UploadLastPartCompletes(t *testing.T) {
	t.Parallel()

	c, fake := newMinioTest(t, true)

	err := c.UploadPart(context.Background(), "b", "wal/a", "u-1", 2, writeTemp(t, "tail"), true)

	require.NoError(t, err)
	assert.Equal(t, []string{
		"UploadPart /b/wal/a",
		"ListParts /b/wal/a",
		"CompleteMultipartUpload /b/wal/a",
	}, fake.ops())

	require.Len(t, fake.completed, 3)
	for i, p := range fake.completed {
		assert.Equal(t, i+1, p.PartNumber)
	}
	assert.Contains(t, fake.completed[1].ETag, "etag-2")
}

func TestMinio_UploadPartWithoutCompletion(t *testing.T) {
	t.Parallel()

	c, fake := newMinioTest(t, false)

	err := c.UploadPart(context.Background(), "b", "wal/a", "u-1", 2, writeTemp(t, "tail"), true)

	require.NoError(t, err)
	assert.Equal(t, []string{"UploadPart /b/wal/a"}, fake.ops())
}

func TestMinio_UploadPartNoSuchUpload(t *testing.T) {
	t.Parallel()

	c, fake := newMinioTest(t, true)

	err := c.UploadPart(context.Background(), "b", "wal/a", goneUploadID, 2, writeTemp(t, "tail"), true)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoSuchUpload))
	assert.Equal(t, []string{"UploadPart /b/wal/a"}, fake.ops())
}

func TestMinio_AbortMultipartUpload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		uploadID string
	}{
		{name: "open upload", uploadID: "u-1"},
		{name: "upload already gone", uploadID: goneUploadID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, fake := newMinioTest(t, true)

			err := c.AbortMultipartUpload(context.Background(), "b", "tmp/A1.rf_tmp", tt.uploadID)

			require.NoError(t, err)
			assert.Equal(t, []string{"AbortMultipartUpload /b/tmp/A1.rf_tmp"}, fake.ops())
		})
	}
}
