package objectstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const versionsXml = `<?xml version="1.0" encoding="UTF-8"?>
<ListVersionsResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>assets</Name>
  <IsTruncated>false</IsTruncated>
  <Version><Key>a</Key><VersionId>1</VersionId><IsLatest>true</IsLatest><Size>10</Size></Version>
  <Version><Key>a</Key><VersionId>0</VersionId><IsLatest>false</IsLatest><Size>5</Size></Version>
  <DeleteMarker><Key>b</Key><VersionId>2</VersionId><IsLatest>true</IsLatest></DeleteMarker>
</ListVersionsResult>`

func TestListingUsage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		switch q := r.URL.Query(); {
		case q.Has("location"):
			_, _ = w.Write([]byte(`<LocationConstraint xmlns="http://s3.amazonaws.com/doc/2006-03-01/"></LocationConstraint>`))
		case q.Has("versions"):
			_, _ = w.Write([]byte(versionsXml))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	usage, err := NewListingUsage(map[string]Instance{
		AliasLocal: {Host: u.Hostname(), Port: port, AccessKey: "ak", SecretKey: "sk"},
	})
	require.NoError(t, err)

	result, err := usage.Usage(context.Background(), AliasLocal, "assets")
	require.NoError(t, err)
	assert.Equal(t, Usage{Objects: 2, Size: 15}, result)

	_, err = usage.Usage(context.Background(), AliasCluster, "assets")
	assert.Error(t, err)
}
