package archive

import (
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/youwol/datamanager/kernel/model"
)

type listResult struct {
	XMLName     xml.Name `xml:"ListBucketResult"`
	Name        string   `xml:"Name"`
	KeyCount    int      `xml:"KeyCount"`
	IsTruncated bool     `xml:"IsTruncated"`
	Contents    []struct {
		Key  string `xml:"Key"`
		Size int64  `xml:"Size"`
	} `xml:"Contents"`
}

// fakeS3 serves path-style requests for a single bucket.
func fakeS3(t *testing.T, bucket string) *httptest.Server {
	var mu sync.Mutex
	objects := make(map[string][]byte)

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()

		p := strings.TrimPrefix(r.URL.Path, "/"+bucket)
		key := strings.TrimPrefix(p, "/")
		switch {
		case r.Method == http.MethodGet && key == "":
			result := listResult{Name: bucket}
			var keys []string
			for k := range objects {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				result.Contents = append(result.Contents, struct {
					Key  string `xml:"Key"`
					Size int64  `xml:"Size"`
				}{k, int64(len(objects[k]))})
			}
			result.KeyCount = len(keys)
			w.Header().Set("Content-Type", "application/xml")
			_ = xml.NewEncoder(w).Encode(result)
		case r.Method == http.MethodHead:
			if _, found := objects[key]; !found {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPut:
			data, err := io.ReadAll(r.Body)
			if err != nil {
				t.Errorf("reading body: %v", err)
			}
			objects[key] = data
			w.Header().Set("ETag", `"etag"`)
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodGet:
			data, found := objects[key]
			if !found {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = w.Write(data)
		default:
			w.WriteHeader(http.StatusNotImplemented)
		}
	}))
}

func TestS3Store(t *testing.T) {
	server := fakeS3(t, "backups")
	defer server.Close()

	store, err := NewS3Store(model.ArchiveS3Config{
		Endpoint:  server.URL,
		Region:    "us-east-1",
		Bucket:    "backups",
		AccessKey: "ak",
		SecretKey: "sk",
	})
	require.NoError(t, err)
	exerciseStore(t, store)
}

func TestS3Store_RequiresBucket(t *testing.T) {
	_, err := NewS3Store(model.ArchiveS3Config{Region: "us-east-1"})
	require.True(t, model.IsConfigurationError(err))
}
