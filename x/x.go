// Package x stores utility functions, mostly for internal usage.
package x

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Create and seed the generator.
// Typically a non-fixed seed should be used, such as time.Now().UnixNano().
// Using a fixed seed will produce the same output on every run.
var r = rand.New(rand.NewSource(time.Now().UnixNano()))

// Status stores any error codes returned along with the error message; and
// is converted to JSON and returned if there's any error during the
// result.WriteJsonResponse call.
type Status struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Entity is a lightweight reference to a graph node, used on queues and
// iterators where a full node handle is not needed.
type Entity struct {
	Kind string
	Id   string
}

// Doc is the format data gets stored in search engine.
type Doc struct {
	Kind   string
	Id     string
	Values map[string]interface{}
	NanoTs int64
}

// NewDoc returns an empty document for the given node, with the id already
// present among the values and the timestamp set to the current time in
// nanoseconds.
func NewDoc(kind, id string) Doc {
	return Doc{
		Kind:   kind,
		Id:     id,
		Values: map[string]interface{}{"id": id},
		NanoTs: time.Now().UnixNano(),
	}
}

// Error constants.
const (
	E_ERROR            = "E_ERROR"
	E_INVALID_METHOD   = "E_INVALID_METHOD"
	E_INVALID_REQUEST  = "E_INVALID_REQUEST"
	E_MISSING_REQUIRED = "E_MISSING_REQUIRED"
	E_NOT_FOUND        = "E_NOT_FOUND"
	E_OK               = "E_OK"
)

// Log returns a logrus.Entry with a package field set.
func Log(p string) *logrus.Entry {
	l := logrus.WithFields(logrus.Fields{
		"package": p,
	})
	return l
}

// LogErr returns a logrus.Entry with an error field set.
func LogErr(entry *logrus.Entry, err error) *logrus.Entry {
	return entry.WithFields(logrus.Fields{
		"error": err.Error(),
	})
}

// SetStatus creates, converts to JSON, and writes a Status object
// to http.ResponseWriter.
func SetStatus(w http.ResponseWriter, code, msg string) {
	r := &Status{Code: code, Message: msg}
	if js, err := json.Marshal(r); err == nil {
		fmt.Fprint(w, string(js))
	} else {
		panic(fmt.Sprintf("Unable to marshal: %+v", r))
	}
}

// ParseRequest parses a JSON based POST or PUT request into the provided
// Golang interface.
func ParseRequest(w http.ResponseWriter, r *http.Request, data interface{}) bool {
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&data); err != nil {
		SetStatus(w, E_ERROR, fmt.Sprintf("While parsing request: %v", err))
		return false
	}
	return true
}

const alphachars = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// UniqueString generates a unique string only using the characters from
// alphachars constant, with length as specified.
func UniqueString(alpha int) string {
	var buf bytes.Buffer
	for i := 0; i < alpha; i++ {
		idx := r.Intn(len(alphachars))
		buf.WriteByte(alphachars[idx])
	}
	return buf.String()
}

// ParseIdFromUrl parses id from url (if it's a suffix) in this format:
//
//	url = host/xyz/id, urlToken = /xyz/ => uid = id
//	url = host/a/b/id, urlToken = /b/   => uid = id
func ParseIdFromUrl(r *http.Request, urlToken string) (uid string, ok bool) {
	url := r.URL.Path
	idx := strings.LastIndex(url, urlToken)
	if idx == -1 {
		return
	}
	return url[idx+len(urlToken):], true
}

// Reply would JSON marshal the provided rep Go interface object, and
// write that to http.ResponseWriter. In case of error, call SetStatus
// with the error.
func Reply(w http.ResponseWriter, rep interface{}) {
	if js, err := json.Marshal(rep); err == nil {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, string(js))
	} else {
		SetStatus(w, E_ERROR, err.Error())
	}
}
