package storage

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type fakeObject struct {
	body        []byte
	contentType string
	acl         string
}

// fakeS3 answers the handful of path-style S3 calls the backend issues.
type fakeS3 struct {
	bucket       string
	mu           sync.Mutex
	objects      map[string]fakeObject
	batchDeletes atomic.Int32
	failGets     atomic.Bool
}

func newFakeS3(bucket string) (*fakeS3, *httptest.Server) {
	f := &fakeS3{bucket: bucket, objects: make(map[string]fakeObject)}
	return f, httptest.NewTLSServer(f)
}

func (f *fakeS3) put(key string, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = fakeObject{body: []byte(body), contentType: "image/png"}
}

func (f *fakeS3) object(key string) (fakeObject, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.objects[key]
	return o, ok
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	bucketPrefix := "/" + f.bucket
	if !strings.HasPrefix(r.URL.Path, bucketPrefix) {
		writeS3Error(w, http.StatusNotFound, "NoSuchBucket", "")
		return
	}
	key := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, bucketPrefix), "/")

	switch {
	case r.Method == http.MethodGet && key == "" && r.URL.Query().Get("list-type") == "2":
		f.list(w, r.URL.Query().Get("prefix"))
	case r.Method == http.MethodPost && r.URL.Query().Has("delete"):
		f.batchDelete(w, r)
	case r.Method == http.MethodPut:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeS3Error(w, http.StatusBadRequest, "IncompleteBody", key)
			return
		}
		f.mu.Lock()
		f.objects[key] = fakeObject{body: body, contentType: r.Header.Get("Content-Type"), acl: r.Header.Get("X-Amz-Acl")}
		f.mu.Unlock()
		w.Header().Set("ETag", `"fake-etag"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet || r.Method == http.MethodHead:
		if f.failGets.Load() {
			writeS3Error(w, http.StatusForbidden, "AccessDenied", key)
			return
		}
		o, ok := f.object(key)
		if !ok {
			writeS3Error(w, http.StatusNotFound, "NoSuchKey", key)
			return
		}
		w.Header().Set("ETag", `"fake-etag"`)
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Type", o.contentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(o.body)))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(o.body)
		}
	case r.Method == http.MethodDelete:
		f.mu.Lock()
		delete(f.objects, key)
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	default:
		writeS3Error(w, http.StatusMethodNotAllowed, "MethodNotAllowed", key)
	}
}

type listEntry struct {
	Key          string `xml:"Key"`
	Size         int64  `xml:"Size"`
	ETag         string `xml:"ETag"`
	LastModified string `xml:"LastModified"`
}

type listResult struct {
	XMLName     xml.Name    `xml:"ListBucketResult"`
	Name        string      `xml:"Name"`
	Prefix      string      `xml:"Prefix"`
	KeyCount    int         `xml:"KeyCount"`
	MaxKeys     int         `xml:"MaxKeys"`
	IsTruncated bool        `xml:"IsTruncated"`
	Contents    []listEntry `xml:"Contents"`
}

func (f *fakeS3) list(w http.ResponseWriter, prefix string) {
	f.mu.Lock()
	var keys []string
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	result := listResult{Name: f.bucket, Prefix: prefix, KeyCount: len(keys), MaxKeys: 1000}
	for _, key := range keys {
		result.Contents = append(result.Contents, listEntry{
			Key:          key,
			Size:         int64(len(f.objects[key].body)),
			ETag:         `"fake-etag"`,
			LastModified: "2026-01-02T03:04:05.000Z",
		})
	}
	f.mu.Unlock()
	writeXML(w, http.StatusOK, result)
}

type deleteRequest struct {
	Objects []struct {
		Key string `xml:"Key"`
	} `xml:"Object"`
}

type deleteResult struct {
	XMLName xml.Name `xml:"DeleteResult"`
	Deleted []struct {
		Key string `xml:"Key"`
	} `xml:"Deleted"`
}

func (f *fakeS3) batchDelete(w http.ResponseWriter, r *http.Request) {
	f.batchDeletes.Add(1)
	var request deleteRequest
	if err := xml.NewDecoder(r.Body).Decode(&request); err != nil {
		writeS3Error(w, http.StatusBadRequest, "MalformedXML", "")
		return
	}
	f.mu.Lock()
	for _, o := range request.Objects {
		delete(f.objects, o.Key)
	}
	f.mu.Unlock()
	writeXML(w, http.StatusOK, deleteResult{})
}

func writeS3Error(w http.ResponseWriter, status int, code, key string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>%s</Code><Message>%s</Message><Key>%s</Key></Error>`, code, code, key)
}

func writeXML(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(xml.Header))
	_ = xml.NewEncoder(w).Encode(v)
}
